package enhancers

import (
	"context"
	"fmt"
	"math"
	"time"

	"contrarian-trading-bot/internal/cache"
	"contrarian-trading-bot/internal/market"
	"contrarian-trading-bot/internal/signal"
)

// CorrelationConfig holds the correlation filter parameters
type CorrelationConfig struct {
	Threshold float64 `json:"threshold"` // |r| at or above this is a conflict
	Symbols   []string
}

// DefaultCorrelationConfig returns the standard conflict threshold
func DefaultCorrelationConfig(symbols []string) CorrelationConfig {
	return CorrelationConfig{Threshold: 0.7, Symbols: symbols}
}

// Correlation lookbacks over H1 closes, weighted toward the short term
var correlationLookbacks = []struct {
	bars   int
	weight float64
}{
	{100, 0.5},
	{500, 0.3},
	{1000, 0.2},
}

// OpenSymbolsFunc reports the symbols with currently open positions
type OpenSymbolsFunc func() []string

// CorrelationEnhancer vetoes signals whose symbol is highly correlated with
// any open position. The weighted Pearson matrix is rebuilt from H1 closes
// when the cached copy goes stale.
type CorrelationEnhancer struct {
	broker      market.Broker
	cache       *cache.CorrelationCache
	config      CorrelationConfig
	openSymbols OpenSymbolsFunc
}

// NewCorrelationEnhancer creates a correlation filter
func NewCorrelationEnhancer(broker market.Broker, c *cache.CorrelationCache, config CorrelationConfig, openSymbols OpenSymbolsFunc) *CorrelationEnhancer {
	return &CorrelationEnhancer{
		broker:      broker,
		cache:       c,
		config:      config,
		openSymbols: openSymbols,
	}
}

func (c *CorrelationEnhancer) Name() string { return "correlation" }

// Enhance vetoes the signal when its symbol conflicts with an open position
func (c *CorrelationEnhancer) Enhance(ctx context.Context, sig *signal.EnhancedSignal) error {
	open := c.openSymbols()
	if len(open) == 0 {
		sig.Enhancements = append(sig.Enhancements, "Correlation Clear")
		return nil
	}

	matrix, err := c.matrix(ctx)
	if err != nil {
		return err
	}

	for _, other := range open {
		if other == sig.Symbol {
			continue
		}
		r := matrix.Values[sig.Symbol][other]
		if math.Abs(r) >= c.config.Threshold {
			return fmt.Errorf("%w: %s correlated %.2f with open %s", ErrVetoed, sig.Symbol, r, other)
		}
	}

	sig.Enhancements = append(sig.Enhancements, "Correlation Clear")
	return nil
}

func (c *CorrelationEnhancer) matrix(ctx context.Context) (*cache.Matrix, error) {
	if cached, fresh := c.cache.GetMatrix(ctx); fresh {
		return cached, nil
	}

	matrix, err := c.build()
	if err != nil {
		// A stale matrix beats no matrix
		if cached, _ := c.cache.GetMatrix(ctx); cached != nil {
			return cached, nil
		}
		return nil, err
	}

	// Cache failures are non-fatal; the in-memory copy is always updated
	_ = c.cache.SetMatrix(ctx, matrix)
	return matrix, nil
}

// build computes the weighted Pearson matrix over H1 close returns
func (c *CorrelationEnhancer) build() (*cache.Matrix, error) {
	maxBars := correlationLookbacks[len(correlationLookbacks)-1].bars + 50

	returns := make(map[string][]float64, len(c.config.Symbols))
	for _, symbol := range c.config.Symbols {
		rates, err := c.broker.GetRates(symbol, market.H1, maxBars)
		if err != nil || len(rates) < 30 {
			continue
		}
		returns[symbol] = toReturns(market.Closes(rates))
	}

	if len(returns) < 2 {
		return nil, fmt.Errorf("not enough symbols with history to correlate")
	}

	values := make(map[string]map[string]float64, len(returns))
	for s1, r1 := range returns {
		values[s1] = make(map[string]float64)
		for s2, r2 := range returns {
			if s1 == s2 {
				values[s1][s2] = 1.0
				continue
			}

			var weighted, totalWeight float64
			for _, lb := range correlationLookbacks {
				corr, ok := pearsonTail(r1, r2, lb.bars)
				if !ok {
					continue
				}
				weighted += corr * lb.weight
				totalWeight += lb.weight
			}

			if totalWeight > 0 {
				values[s1][s2] = math.Round(weighted/totalWeight*10000) / 10000
			}
		}
	}

	return &cache.Matrix{Values: values, UpdatedAt: time.Now().UTC()}, nil
}

func toReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (prices[i]-prices[i-1])/prices[i-1])
	}
	return out
}

// pearsonTail computes the Pearson coefficient over the trailing n values of
// both series
func pearsonTail(a, b []float64, n int) (float64, bool) {
	if len(a) < n {
		n = len(a)
	}
	if len(b) < n {
		n = len(b)
	}
	if n < 30 {
		return 0, false
	}

	a = a[len(a)-n:]
	b = b[len(b)-n:]

	meanA := mean(a)
	meanB := mean(b)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}

	if varA == 0 || varB == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varA*varB), true
}
