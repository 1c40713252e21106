package bridge

import "errors"

var (
	// ErrValidation indicates a malformed operation; the caller's fault,
	// never retried.
	ErrValidation = errors.New("bridge: validation failed")
	// ErrNotFound indicates an unknown transaction id.
	ErrNotFound = errors.New("bridge: transaction not found")
	// ErrInvalidTransition indicates an attempt to move a terminal
	// transaction, or an approval on a transaction not awaiting one.
	ErrInvalidTransition = errors.New("bridge: invalid status transition")
	// ErrInsufficientFunds surfaces a failed source balance check.
	ErrInsufficientFunds = errors.New("bridge: insufficient funds")
	// ErrQueueFull indicates the settlement queue rejected a job.
	ErrQueueFull = errors.New("bridge: settlement queue full")
)

// Failure reason strings recorded on Failed transactions. Transient reasons
// are retried by creating a new transaction, never in place.
const (
	ReasonProviderTimeout = "ProviderTimeout"
	ReasonProviderError   = "ProviderError"
)
