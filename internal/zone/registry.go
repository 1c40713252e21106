package zone

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrZoneNotFound indicates the requested zone id is not registered.
	ErrZoneNotFound = errors.New("zone: not found")
	// ErrEmptyID indicates an upsert with an empty zone id.
	ErrEmptyID = errors.New("zone: id must not be empty")
)

// Registry owns the zone table. Reads are unlimited; writes go through
// UpsertZone only, never as a side effect of pricing.
type Registry struct {
	mu    sync.RWMutex
	zones map[string]Zone
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{zones: make(map[string]Zone)}
}

// NewRegistryWithDefaults constructs a registry seeded with the default
// market zones.
func NewRegistryWithDefaults() *Registry {
	r := NewRegistry()
	for _, z := range DefaultZones() {
		_ = r.UpsertZone(z)
	}
	return r
}

// GetZone returns the zone registered under id.
func (r *Registry) GetZone(id string) (Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	z, ok := r.zones[id]
	if !ok {
		return Zone{}, ErrZoneNotFound
	}
	return z, nil
}

// UpsertZone inserts or replaces a zone. Callers are responsible for
// semantically valid indicator ranges.
func (r *Registry) UpsertZone(z Zone) error {
	if z.ID == "" {
		return ErrEmptyID
	}
	if z.UpdatedAt.IsZero() {
		z.UpdatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.zones[z.ID] = z
	return nil
}

// ListZones returns all zones ordered by id.
func (r *Registry) ListZones() []Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()

	zones := make([]Zone, 0, len(r.zones))
	for _, z := range r.zones {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].ID < zones[j].ID })
	return zones
}
