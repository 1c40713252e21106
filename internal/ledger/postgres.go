package ledger

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	selectBalanceSQL = `SELECT balance FROM wallet_balances WHERE wallet_id = $1;`

	upsertBalanceSQL = `INSERT INTO wallet_balances (wallet_id, balance, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (wallet_id) DO UPDATE
    SET balance = EXCLUDED.balance,
        updated_at = now();`

	insertEntrySQL = `INSERT INTO ledger_entries (
        wallet_id,
        bridge_tx_id,
        delta,
        kind,
        reference
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    RETURNING id, created_at;`

	listEntriesSQL = `SELECT
        id,
        wallet_id,
        bridge_tx_id,
        delta,
        kind,
        reference,
        created_at
    FROM ledger_entries
    WHERE wallet_id = $1
    ORDER BY created_at DESC, id DESC
    LIMIT $2;`

	walletAdvisoryLockSQL = `SELECT pg_advisory_xact_lock($1);`
)

// Postgres persists wallet balances and ledger entries through pgx. Balance
// adjustments take a per-wallet transaction-scoped advisory lock so that
// unrelated wallets never contend.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wires a pgx pool into a ledger store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func walletLockKey(walletID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("ledger:" + walletID))
	return int64(h.Sum64())
}

// GetBalance reads the wallet balance, zero for unknown wallets.
func (p *Postgres) GetBalance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	if walletID == "" {
		return decimal.Decimal{}, ErrEmptyWallet
	}

	var balanceStr string
	err := p.pool.QueryRow(ctx, selectBalanceSQL, walletID).Scan(&balanceStr)
	if err == pgx.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("select balance: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse balance: %w", err)
	}
	return balance, nil
}

// AdjustBalance applies delta inside a transaction holding the wallet's
// advisory lock and returns the resulting balance.
func (p *Postgres) AdjustBalance(ctx context.Context, walletID string, delta decimal.Decimal) (decimal.Decimal, error) {
	if walletID == "" {
		return decimal.Decimal{}, ErrEmptyWallet
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("begin adjust: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, walletAdvisoryLockSQL, walletLockKey(walletID)); err != nil {
		return decimal.Decimal{}, fmt.Errorf("acquire wallet lock: %w", err)
	}

	current := decimal.Zero
	var balanceStr string
	err = tx.QueryRow(ctx, selectBalanceSQL, walletID).Scan(&balanceStr)
	switch err {
	case nil:
		current, err = decimal.NewFromString(balanceStr)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("parse balance: %w", err)
		}
	case pgx.ErrNoRows:
	default:
		return decimal.Decimal{}, fmt.Errorf("select balance: %w", err)
	}

	next := current.Add(delta)
	if next.Sign() < 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: wallet %s balance %s, delta %s", ErrInsufficientFunds, walletID, current, delta)
	}

	if _, err := tx.Exec(ctx, upsertBalanceSQL, walletID, next.String()); err != nil {
		return decimal.Decimal{}, fmt.Errorf("upsert balance: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return decimal.Decimal{}, fmt.Errorf("commit adjust: %w", err)
	}

	return next, nil
}

// RecordTransaction persists an audit entry.
func (p *Postgres) RecordTransaction(ctx context.Context, entry Entry) (Entry, error) {
	if entry.WalletID == "" {
		return Entry{}, ErrEmptyWallet
	}

	row := p.pool.QueryRow(ctx, insertEntrySQL,
		entry.WalletID,
		entry.BridgeTxID,
		entry.Delta.String(),
		entry.Kind,
		entry.Reference,
	)
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return Entry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	return entry, nil
}

// ListEntries lists a wallet's entries, most recent first.
func (p *Postgres) ListEntries(ctx context.Context, walletID string, limit int) ([]Entry, error) {
	if walletID == "" {
		return nil, ErrEmptyWallet
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := p.pool.Query(ctx, listEntriesSQL, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			entry     Entry
			deltaStr  string
			createdAt time.Time
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.WalletID,
			&entry.BridgeTxID,
			&deltaStr,
			&entry.Kind,
			&entry.Reference,
			&createdAt,
		); err != nil {
			return nil, err
		}
		entry.Delta, err = decimal.NewFromString(deltaStr)
		if err != nil {
			return nil, fmt.Errorf("parse delta: %w", err)
		}
		entry.CreatedAt = createdAt
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

var _ Store = (*Postgres)(nil)
