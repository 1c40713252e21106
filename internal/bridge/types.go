package bridge

import (
	"time"

	"github.com/shopspring/decimal"

	"goldbridge/internal/asset"
	"goldbridge/internal/fees"
	"goldbridge/internal/provider"
)

// Status is a bridge transaction lifecycle state. Completed, Failed, and
// Reverted are terminal: a terminal transaction never transitions again, and
// a retry is a new transaction id.
type Status string

const (
	StatusInitiated        Status = "initiated"
	StatusProcessing       Status = "processing"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusRequiresApproval Status = "requires_approval"
	StatusReverted         Status = "reverted"
)

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusReverted
}

// Operation is a bridge request as submitted by a caller.
type Operation struct {
	Kind             asset.OperationKind
	SourceAsset      asset.Asset
	DestinationAsset asset.Asset
	Amount           decimal.Decimal

	SourceProvider      provider.ID
	DestinationProvider provider.ID
	SourceAuth          provider.AuthToken
	DestinationAuth     provider.AuthToken

	// Wallet ids on the native ledger; accounts on the banking rail.
	SourceWallet       string
	DestinationWallet  string
	SourceAccount      string
	DestinationAccount string

	ContractReference string
}

// Transaction is the managed record of one bridge operation. Mutated only by
// the Manager; retained for audit, never deleted. Decimal fields serialize
// as exact-precision strings.
type Transaction struct {
	ID                    string              `json:"id"`
	Kind                  asset.OperationKind `json:"kind"`
	SourceAsset           asset.Asset         `json:"source_asset"`
	DestinationAsset      asset.Asset         `json:"destination_asset"`
	Amount                decimal.Decimal     `json:"amount"`
	SourceProvider        provider.ID         `json:"source_provider,omitempty"`
	DestinationProvider   provider.ID         `json:"destination_provider,omitempty"`
	ExchangeRate          decimal.Decimal     `json:"exchange_rate"`
	Fees                  fees.FeeBreakdown   `json:"fees"`
	Status                Status              `json:"status"`
	ZoneID                string              `json:"zone_id,omitempty"`
	ContractReference     string              `json:"contract_reference,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	CompletedAt           *time.Time          `json:"completed_at,omitempty"`
	Confirmations         int                 `json:"confirmations"`
	RequiredConfirmations int                 `json:"required_confirmations"`
	Metadata              map[string]string   `json:"metadata"`
	FailureReason         string              `json:"failure_reason,omitempty"`
}

// clone returns a deep copy safe to hand to callers.
func (t *Transaction) clone() Transaction {
	out := *t
	out.Metadata = make(map[string]string, len(t.Metadata))
	for k, v := range t.Metadata {
		out.Metadata[k] = v
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		out.CompletedAt = &at
	}
	return out
}
