package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Memory is the in-process ledger used by the simulate command and tests.
// One mutex per wallet keeps same-wallet updates serialized while unrelated
// wallets proceed concurrently.
type Memory struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	locks    map[string]*sync.Mutex
	entries  []Entry
	nextID   int64
}

// NewMemory seeds an in-memory ledger.
func NewMemory(balances map[string]decimal.Decimal) *Memory {
	copied := make(map[string]decimal.Decimal, len(balances))
	for k, v := range balances {
		copied[k] = v
	}
	return &Memory{
		balances: copied,
		locks:    make(map[string]*sync.Mutex),
		nextID:   1,
	}
}

func (m *Memory) walletLock(walletID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[walletID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[walletID] = lock
	}
	return lock
}

// GetBalance returns the wallet balance, zero for unknown wallets.
func (m *Memory) GetBalance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	if walletID == "" {
		return decimal.Decimal{}, ErrEmptyWallet
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[walletID], nil
}

// AdjustBalance applies delta under the wallet's exclusive lock and returns
// the resulting balance. A debit below zero is rejected without mutation.
func (m *Memory) AdjustBalance(ctx context.Context, walletID string, delta decimal.Decimal) (decimal.Decimal, error) {
	if walletID == "" {
		return decimal.Decimal{}, ErrEmptyWallet
	}

	lock := m.walletLock(walletID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	current := m.balances[walletID]
	m.mu.Unlock()

	next := current.Add(delta)
	if next.Sign() < 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: wallet %s balance %s, delta %s", ErrInsufficientFunds, walletID, current, delta)
	}

	m.mu.Lock()
	m.balances[walletID] = next
	m.mu.Unlock()

	return next, nil
}

// RecordTransaction appends an audit entry.
func (m *Memory) RecordTransaction(ctx context.Context, entry Entry) (Entry, error) {
	if entry.WalletID == "" {
		return Entry{}, ErrEmptyWallet
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry.ID = m.nextID
	m.nextID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m.entries = append(m.entries, entry)
	return entry, nil
}

// ListEntries returns the wallet's entries, most recent first.
func (m *Memory) ListEntries(ctx context.Context, walletID string, limit int) ([]Entry, error) {
	if walletID == "" {
		return nil, ErrEmptyWallet
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, 0, limit)
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].WalletID != walletID {
			continue
		}
		out = append(out, m.entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

var _ Store = (*Memory)(nil)
