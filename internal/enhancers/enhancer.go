// Package enhancers implements the signal enhancement chain: volume scoring,
// correlation filtering, and a heuristic ML blend. Each enhancer may raise or
// lower a signal's strength, or veto the symbol outright for this cycle.
package enhancers

import (
	"context"
	"errors"

	"contrarian-trading-bot/internal/logging"
	"contrarian-trading-bot/internal/signal"

	"github.com/rs/zerolog"
)

// ErrVetoed rejects a signal for this cycle. Any other error from an
// enhancer is non-fatal: the chain logs it and moves on with the signal
// unchanged.
var ErrVetoed = errors.New("signal vetoed")

// Enhancer inspects and adjusts an enhanced signal in place
type Enhancer interface {
	Name() string
	Enhance(ctx context.Context, sig *signal.EnhancedSignal) error
}

// Chain runs enhancers in a fixed order
type Chain struct {
	enhancers []Enhancer
	logger    zerolog.Logger
}

// NewChain creates an enhancer chain
func NewChain(enhancers ...Enhancer) *Chain {
	return &Chain{
		enhancers: enhancers,
		logger:    logging.Component("enhancers"),
	}
}

// Run applies every enhancer. A veto aborts immediately; other failures are
// logged and skipped so one broken enhancer never blocks signal flow.
func (c *Chain) Run(ctx context.Context, sig *signal.EnhancedSignal) error {
	for _, e := range c.enhancers {
		if err := e.Enhance(ctx, sig); err != nil {
			if errors.Is(err, ErrVetoed) {
				return err
			}
			c.logger.Warn().Str("enhancer", e.Name()).Str("symbol", sig.Symbol).Err(err).
				Msg("enhancer failed, continuing with unmodified signal")
		}
	}
	return nil
}

func clamp10(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
