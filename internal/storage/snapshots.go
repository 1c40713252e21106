package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"goldbridge/internal/zone"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	upsertSnapshotSQL = `INSERT INTO zone_snapshots (
        bucket_ts,
        zone_id,
        stability_deviation,
        reference_price,
        target_price,
        volatility,
        liquidity_depth
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (bucket_ts, zone_id) DO UPDATE
    SET
        stability_deviation = EXCLUDED.stability_deviation,
        reference_price     = EXCLUDED.reference_price,
        target_price        = EXCLUDED.target_price,
        volatility          = EXCLUDED.volatility,
        liquidity_depth     = EXCLUDED.liquidity_depth;`

	listSnapshotsBetweenSQL = `SELECT
        bucket_ts,
        zone_id,
        stability_deviation,
        reference_price,
        target_price,
        volatility,
        liquidity_depth,
        created_at
    FROM zone_snapshots
    WHERE zone_id = $1
      AND bucket_ts >= $2
      AND bucket_ts < $3
    ORDER BY bucket_ts;`

	listRecentSnapshotsSQL = `SELECT
        bucket_ts,
        zone_id,
        stability_deviation,
        reference_price,
        target_price,
        volatility,
        liquidity_depth,
        created_at
    FROM zone_snapshots
    WHERE zone_id = $1
    ORDER BY bucket_ts DESC
    LIMIT $2;`

	countSnapshotsSQL = `SELECT COUNT(*) FROM zone_snapshots;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SnapshotStore persists point-in-time zone state for audit and export.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, snap zone.Snapshot) error
	ListSnapshotsBetween(ctx context.Context, zoneID string, from, to time.Time) ([]zone.Snapshot, error)
	ListRecentSnapshots(ctx context.Context, zoneID string, limit int) ([]zone.Snapshot, error)
	CountSnapshots(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates snapshot persistence over a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the raw pgx pool for sibling stores sharing the connection.
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort
		}
		conn.Release()
	}
	return unlock, true, nil
}

// UpsertSnapshot persists or updates a zone snapshot.
func (s *Store) UpsertSnapshot(ctx context.Context, snap zone.Snapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertSnapshotSQL,
		snap.Bucket,
		snap.ZoneID,
		snap.StabilityDeviation.String(),
		snap.ReferencePrice.String(),
		snap.TargetPrice.String(),
		snap.Volatility.String(),
		snap.LiquidityDepth.String(),
	)
	if execErr != nil {
		return fmt.Errorf("upsert zone snapshot: %w", execErr)
	}
	return nil
}

// ListSnapshotsBetween lists a zone's snapshots within a time window.
func (s *Store) ListSnapshotsBetween(ctx context.Context, zoneID string, from, to time.Time) ([]zone.Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSnapshotsBetweenSQL, zoneID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	defer rows.Close()

	return collectSnapshots(rows, 0)
}

// ListRecentSnapshots lists the most recent snapshots for a zone.
func (s *Store) ListRecentSnapshots(ctx context.Context, zoneID string, limit int) ([]zone.Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSnapshotsSQL, zoneID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", queryErr)
	}
	defer rows.Close()

	return collectSnapshots(rows, limit)
}

// CountSnapshots counts stored snapshots.
func (s *Store) CountSnapshots(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSnapshotsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count snapshots: %w", scanErr)
	}
	return count, nil
}

func collectSnapshots(rows pgx.Rows, sizeHint int) ([]zone.Snapshot, error) {
	snaps := make([]zone.Snapshot, 0, sizeHint)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snaps, nil
}

func scanSnapshot(rows pgx.Rows) (zone.Snapshot, error) {
	var (
		snap         zone.Snapshot
		deviationStr string
		refStr       string
		targetStr    string
		volStr       string
		liqStr       string
	)

	if err := rows.Scan(
		&snap.Bucket,
		&snap.ZoneID,
		&deviationStr,
		&refStr,
		&targetStr,
		&volStr,
		&liqStr,
		&snap.CreatedAt,
	); err != nil {
		return zone.Snapshot{}, err
	}

	var err error
	if snap.StabilityDeviation, err = decimal.NewFromString(deviationStr); err != nil {
		return zone.Snapshot{}, fmt.Errorf("parse stability deviation: %w", err)
	}
	if snap.ReferencePrice, err = decimal.NewFromString(refStr); err != nil {
		return zone.Snapshot{}, fmt.Errorf("parse reference price: %w", err)
	}
	if snap.TargetPrice, err = decimal.NewFromString(targetStr); err != nil {
		return zone.Snapshot{}, fmt.Errorf("parse target price: %w", err)
	}
	if snap.Volatility, err = decimal.NewFromString(volStr); err != nil {
		return zone.Snapshot{}, fmt.Errorf("parse volatility: %w", err)
	}
	if snap.LiquidityDepth, err = decimal.NewFromString(liqStr); err != nil {
		return zone.Snapshot{}, fmt.Errorf("parse liquidity depth: %w", err)
	}

	return snap, nil
}
