package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"goldbridge/internal/asset"
	"goldbridge/internal/config"
	"goldbridge/internal/fees"
	"goldbridge/internal/ledger"
	"goldbridge/internal/provider"
)

// FeeSource prices a bridge operation.
type FeeSource interface {
	PriceOperation(kind asset.OperationKind, source, destination asset.Network, amount decimal.Decimal, zoneID string) (fees.FeeBreakdown, error)
}

// Gateway is the subset of provider capabilities the manager sequences.
type Gateway interface {
	GetAccountBalance(ctx context.Context, id provider.ID, token provider.AuthToken, accountID string) (provider.AccountBalance, error)
	InitiatePayment(ctx context.Context, id provider.ID, token provider.AuthToken, req provider.PaymentRequest) (provider.PaymentResponse, error)
	GetQuote(ctx context.Context, id provider.ID, pair provider.TradingPair, amountIn decimal.Decimal) (provider.Quote, error)
	ExecuteSwap(ctx context.Context, id provider.ID, token provider.AuthToken, req provider.SwapRequest) (provider.SwapResult, error)
}

// Options tune the transaction manager.
type Options struct {
	// ProviderTimeout bounds every gateway call. Applying it is the
	// manager's job, not the adapter's.
	ProviderTimeout  time.Duration
	QueueSize        int
	MinConfirmations map[asset.Network]int
	OmnibusAccount   string
}

// OptionsFromConfig converts the configured bridge section.
func OptionsFromConfig(cfg config.BridgeConfig) Options {
	opts := Options{
		ProviderTimeout: cfg.ProviderTimeout,
		QueueSize:       cfg.SettlementQueueSize,
		OmnibusAccount:  cfg.OmnibusAccount,
	}
	opts.MinConfirmations = make(map[asset.Network]int, len(cfg.MinConfirmations))
	for network, n := range cfg.MinConfirmations {
		opts.MinConfirmations[asset.Network(network)] = n
	}
	return opts
}

type settlementJob struct {
	txID string
	op   Operation
}

// Manager owns the transaction registry and drives each operation through
// its state machine. Source legs execute synchronously inside
// InitiateBridge; destination legs settle through a queue consumed by the
// worker started with Start, so callers poll GetTransaction for the final
// status.
type Manager struct {
	mu      sync.RWMutex
	txs     map[string]*Transaction
	pending map[string]Operation

	fees    FeeSource
	gateway Gateway
	ledger  ledger.Store
	opts    Options
	logger  zerolog.Logger
	queue   chan settlementJob
	now     func() time.Time
}

// NewManager constructs a transaction manager.
func NewManager(feeSource FeeSource, gateway Gateway, ledgerStore ledger.Store, opts Options, logger zerolog.Logger) *Manager {
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 10 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}

	return &Manager{
		txs:     make(map[string]*Transaction),
		pending: make(map[string]Operation),
		fees:    feeSource,
		gateway: gateway,
		ledger:  ledgerStore,
		opts:    opts,
		logger:  logger.With().Str("component", "bridge_manager").Logger(),
		queue:   make(chan settlementJob, opts.QueueSize),
		now:     time.Now,
	}
}

// Start runs the settlement worker until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-m.queue:
				m.settle(ctx, job)
			}
		}
	}()
}

// InitiateBridge validates, prices, persists, and begins executing a bridge
// operation. The returned transaction is usually still Processing; terminal
// status arrives via the settlement worker.
func (m *Manager) InitiateBridge(ctx context.Context, op Operation, zoneID string) (Transaction, error) {
	if err := validate(op); err != nil {
		return Transaction{}, err
	}

	breakdown, err := m.fees.PriceOperation(op.Kind, op.SourceAsset.Chain, op.DestinationAsset.Chain, op.Amount, zoneID)
	if err != nil {
		if errors.Is(err, fees.ErrInvalidAmount) {
			return Transaction{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return Transaction{}, err
	}

	tx := &Transaction{
		ID:                    newTxID(op.Kind),
		Kind:                  op.Kind,
		SourceAsset:           op.SourceAsset,
		DestinationAsset:      op.DestinationAsset,
		Amount:                op.Amount,
		SourceProvider:        op.SourceProvider,
		DestinationProvider:   op.DestinationProvider,
		ExchangeRate:          decimal.NewFromInt(1),
		Fees:                  breakdown,
		Status:                StatusInitiated,
		ZoneID:                zoneID,
		ContractReference:     op.ContractReference,
		CreatedAt:             m.now().UTC(),
		RequiredConfirmations: m.requiredConfirmations(op.DestinationAsset.Chain),
		Metadata:              make(map[string]string),
	}

	// Operator-verification flows park before any money moves.
	if op.Kind.RequiresApproval() {
		tx.Status = StatusRequiresApproval
		m.store(tx, op)
		m.logger.Info().Str("tx", tx.ID).Msg("transaction awaiting approval")
		return tx.clone(), nil
	}

	// Fiat-involving operations start Processing only after a source
	// balance check.
	if op.Kind == asset.OpFiatToCrypto {
		if err := m.checkBankBalance(ctx, op); err != nil {
			return Transaction{}, err
		}
	}

	m.store(tx, op)
	m.setStatus(tx.ID, StatusProcessing, "")

	if err := m.executeSourceLeg(ctx, tx.ID, op); err != nil {
		return m.mustGet(tx.ID), err
	}

	if err := m.enqueue(settlementJob{txID: tx.ID, op: op}); err != nil {
		m.failTx(tx.ID, ReasonProviderError, "settlement queue full")
		return m.mustGet(tx.ID), err
	}

	return m.mustGet(tx.ID), nil
}

// Approve moves a RequiresApproval transaction into Processing and queues
// its settlement.
func (m *Manager) Approve(ctx context.Context, id string) (Transaction, error) {
	m.mu.Lock()
	tx, ok := m.txs[id]
	if !ok {
		m.mu.Unlock()
		return Transaction{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if tx.Status != StatusRequiresApproval {
		m.mu.Unlock()
		return Transaction{}, fmt.Errorf("%w: %s is %s, not %s", ErrInvalidTransition, id, tx.Status, StatusRequiresApproval)
	}
	tx.Status = StatusProcessing
	op := m.pending[id]
	m.mu.Unlock()

	if err := m.executeSourceLeg(ctx, id, op); err != nil {
		return m.mustGet(id), err
	}
	if err := m.enqueue(settlementJob{txID: id, op: op}); err != nil {
		m.failTx(id, ReasonProviderError, "settlement queue full")
		return m.mustGet(id), err
	}
	return m.mustGet(id), nil
}

// Reject moves a RequiresApproval transaction to the terminal Reverted
// state without executing anything.
func (m *Manager) Reject(id, reason string) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[id]
	if !ok {
		return Transaction{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if tx.Status != StatusRequiresApproval {
		return Transaction{}, fmt.Errorf("%w: %s is %s, not %s", ErrInvalidTransition, id, tx.Status, StatusRequiresApproval)
	}
	tx.Status = StatusReverted
	tx.FailureReason = reason
	delete(m.pending, id)
	return tx.clone(), nil
}

// GetTransaction returns a copy of the transaction record. Read-only: two
// calls without an intervening mutation return identical records.
func (m *Manager) GetTransaction(id string) (Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.txs[id]
	if !ok {
		return Transaction{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.clone(), nil
}

// ListTransactions returns up to limit transactions, most recent first.
// Ties on creation time break by id so the order is deterministic.
func (m *Manager) ListTransactions(limit int) []Transaction {
	m.mu.RLock()
	out := make([]Transaction, 0, len(m.txs))
	for _, tx := range m.txs {
		out = append(out, tx.clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func newTxID(kind asset.OperationKind) string {
	return strings.ToUpper(string(kind)) + "_" + uuid.NewString()
}

func validate(op Operation) error {
	if !op.Kind.Valid() {
		return fmt.Errorf("%w: unknown operation kind %q", ErrValidation, op.Kind)
	}
	if op.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	if !asset.Known(op.SourceAsset.Chain) {
		return fmt.Errorf("%w: unknown source network %q", ErrValidation, op.SourceAsset.Chain)
	}
	if !asset.Known(op.DestinationAsset.Chain) {
		return fmt.Errorf("%w: unknown destination network %q", ErrValidation, op.DestinationAsset.Chain)
	}
	return nil
}

func (m *Manager) requiredConfirmations(network asset.Network) int {
	if n, ok := m.opts.MinConfirmations[network]; ok {
		return n
	}
	return 1
}

func (m *Manager) checkBankBalance(ctx context.Context, op Operation) error {
	if op.SourceProvider == "" || op.SourceAccount == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.ProviderTimeout)
	defer cancel()

	balance, err := m.gateway.GetAccountBalance(ctx, op.SourceProvider, op.SourceAuth, op.SourceAccount)
	if err != nil {
		return fmt.Errorf("source balance check: %w", err)
	}
	if balance.Available.LessThan(op.Amount) {
		return fmt.Errorf("%w: account %s has %s, need %s", ErrInsufficientFunds, op.SourceAccount, balance.Available, op.Amount)
	}
	return nil
}

// executeSourceLeg runs the debit side of the operation synchronously under
// the provider timeout. On failure the transaction goes terminal Failed; the
// metadata trail records what already executed so a reconciler can resume
// without requerying providers.
func (m *Manager) executeSourceLeg(ctx context.Context, txID string, op Operation) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.ProviderTimeout)
	defer cancel()

	switch op.Kind {
	case asset.OpFiatToCrypto:
		res, err := m.gateway.InitiatePayment(ctx, op.SourceProvider, op.SourceAuth, provider.PaymentRequest{
			SourceAccount:      op.SourceAccount,
			DestinationAccount: m.opts.OmnibusAccount,
			Amount:             op.Amount,
			Currency:           op.SourceAsset.Symbol,
			Reference:          txID,
		})
		if err != nil {
			return m.failFromError(txID, "source_payment", err)
		}
		m.annotate(txID, "source_payment_id", res.PaymentID)

	case asset.OpLock, asset.OpBurn, asset.OpCryptoToFiat:
		_, err := m.ledger.AdjustBalance(ctx, op.SourceWallet, op.Amount.Neg())
		if err != nil {
			return m.failFromError(txID, "source_debit", err)
		}
		entry, err := m.ledger.RecordTransaction(ctx, ledger.Entry{
			WalletID:   op.SourceWallet,
			BridgeTxID: txID,
			Delta:      op.Amount.Neg(),
			Kind:       string(op.Kind),
			Reference:  "source leg debit",
		})
		if err != nil {
			m.annotate(txID, "source_debit", "applied_unrecorded")
			return m.failFromError(txID, "source_debit_record", err)
		}
		m.annotate(txID, "source_debit_entry", fmt.Sprintf("%d", entry.ID))

	case asset.OpCryptoToCrypto, asset.OpContractExecution:
		res, err := m.gateway.ExecuteSwap(ctx, op.SourceProvider, op.SourceAuth, provider.SwapRequest{
			Pair:        provider.TradingPair{Base: op.SourceAsset.Symbol, Quote: op.DestinationAsset.Symbol},
			AmountIn:    op.Amount,
			Destination: op.DestinationWallet,
		})
		if err != nil {
			return m.failFromError(txID, "source_swap", err)
		}
		m.annotate(txID, "swap_id", res.SwapID)
		m.setExchangeRate(txID, res.Rate)

	case asset.OpMint, asset.OpUnlock:
		// Credit-only operations: the omnibus is the source, nothing to
		// debit here.
	}

	m.annotate(txID, "stage", "source_leg_complete")
	return nil
}

// settle completes the destination leg and drives Processing → Completed.
func (m *Manager) settle(ctx context.Context, job settlementJob) {
	tx, err := m.GetTransaction(job.txID)
	if err != nil || tx.Status.Terminal() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.ProviderTimeout)
	defer cancel()

	op := job.op
	credit := tx.Amount.Mul(tx.ExchangeRate)

	switch op.Kind {
	case asset.OpCryptoToFiat:
		res, err := m.gateway.InitiatePayment(ctx, op.DestinationProvider, op.DestinationAuth, provider.PaymentRequest{
			SourceAccount:      m.opts.OmnibusAccount,
			DestinationAccount: op.DestinationAccount,
			Amount:             credit,
			Currency:           op.DestinationAsset.Symbol,
			Reference:          job.txID,
		})
		if err != nil {
			_ = m.failFromError(job.txID, "destination_payment", err)
			return
		}
		m.annotate(job.txID, "destination_payment_id", res.PaymentID)

	case asset.OpBurn:
		// Supply reduction: nothing to credit.

	default:
		if op.DestinationWallet != "" {
			if _, err := m.ledger.AdjustBalance(ctx, op.DestinationWallet, credit); err != nil {
				_ = m.failFromError(job.txID, "destination_credit", err)
				return
			}
			entry, err := m.ledger.RecordTransaction(ctx, ledger.Entry{
				WalletID:   op.DestinationWallet,
				BridgeTxID: job.txID,
				Delta:      credit,
				Kind:       string(op.Kind),
				Reference:  "destination leg credit",
			})
			if err != nil {
				m.annotate(job.txID, "destination_credit", "applied_unrecorded")
				_ = m.failFromError(job.txID, "destination_credit_record", err)
				return
			}
			m.annotate(job.txID, "destination_credit_entry", fmt.Sprintf("%d", entry.ID))
		}
	}

	m.annotate(job.txID, "stage", "settled")
	m.annotate(job.txID, "settled_amount", credit.String())
	m.complete(job.txID)

	m.logger.Info().Str("tx", job.txID).Str("kind", string(op.Kind)).Msg("transaction settled")
}

func (m *Manager) enqueue(job settlementJob) error {
	select {
	case m.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// failFromError maps an execution error onto the failure taxonomy, fails the
// transaction, and returns the typed error for the caller.
func (m *Manager) failFromError(txID, stage string, err error) error {
	m.annotate(txID, "failed_stage", stage)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		m.failTx(txID, ReasonProviderTimeout, fmt.Sprintf("%s: %v", stage, err))
		return fmt.Errorf("%s: %w", ReasonProviderTimeout, err)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		m.failTx(txID, "InsufficientFunds", fmt.Sprintf("%s: %v", stage, err))
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	default:
		m.failTx(txID, ReasonProviderError, fmt.Sprintf("%s: %v", stage, err))
		return fmt.Errorf("%s: %w", ReasonProviderError, err)
	}
}

func (m *Manager) store(tx *Transaction, op Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs[tx.ID] = tx
	m.pending[tx.ID] = op
}

func (m *Manager) mustGet(id string) Transaction {
	tx, _ := m.GetTransaction(id)
	return tx
}

func (m *Manager) setStatus(id string, status Status, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[id]
	if !ok || tx.Status.Terminal() {
		return
	}
	tx.Status = status
	if reason != "" {
		tx.FailureReason = reason
	}
	if status.Terminal() {
		delete(m.pending, id)
	}
}

func (m *Manager) failTx(id, reason, detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[id]
	if !ok || tx.Status.Terminal() {
		return
	}
	tx.Status = StatusFailed
	tx.FailureReason = reason
	if detail != "" {
		tx.Metadata["failure_detail"] = detail
	}
	delete(m.pending, id)

	m.logger.Warn().Str("tx", id).Str("reason", reason).Str("detail", detail).Msg("transaction failed")
}

func (m *Manager) complete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[id]
	if !ok || tx.Status.Terminal() {
		return
	}
	now := m.now().UTC()
	tx.Status = StatusCompleted
	tx.CompletedAt = &now
	tx.Confirmations = tx.RequiredConfirmations
	delete(m.pending, id)
}

func (m *Manager) annotate(id, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx, ok := m.txs[id]; ok {
		tx.Metadata[key] = value
	}
}

func (m *Manager) setExchangeRate(id string, rate decimal.Decimal) {
	if rate.Sign() <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx, ok := m.txs[id]; ok {
		tx.ExchangeRate = rate
	}
}
