package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds indicates a debit larger than the wallet balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrEmptyWallet indicates a blank wallet id.
	ErrEmptyWallet = errors.New("ledger: wallet id must not be empty")
)

// Entry is one durable ledger record tied to a bridge transaction.
type Entry struct {
	ID         int64
	WalletID   string
	BridgeTxID string
	Delta      decimal.Decimal
	Kind       string
	Reference  string
	CreatedAt  time.Time
}

// Store is the durable wallet ledger. AdjustBalance is exclusive per wallet
// id: unrelated wallets mutate concurrently, same-wallet updates serialize.
type Store interface {
	GetBalance(ctx context.Context, walletID string) (decimal.Decimal, error)
	AdjustBalance(ctx context.Context, walletID string, delta decimal.Decimal) (decimal.Decimal, error)
	RecordTransaction(ctx context.Context, entry Entry) (Entry, error)
	ListEntries(ctx context.Context, walletID string, limit int) ([]Entry, error)
}
