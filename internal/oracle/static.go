package oracle

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Static serves a fixed price pair. Used in development and by the simulate
// command, where no upstream feed is wired.
type Static struct {
	symbol  string
	current decimal.Decimal
	target  decimal.Decimal
}

// NewStatic constructs a fixed-price source.
func NewStatic(symbol string, current, target decimal.Decimal) *Static {
	return &Static{symbol: symbol, current: current, target: target}
}

// CurrentPrice returns the configured pair stamped with now.
func (s *Static) CurrentPrice(ctx context.Context) (Sample, error) {
	return Sample{
		Symbol:     s.symbol,
		Price:      s.current,
		Target:     s.target,
		ObservedAt: time.Now().UTC(),
	}, nil
}

var _ Source = (*Static)(nil)
