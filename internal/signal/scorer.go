package signal

import (
	"math"

	"contrarian-trading-bot/internal/market"
)

// ScorerConfig holds the injectable scoring thresholds
type ScorerConfig struct {
	MinConfluences    int     // Minimum winning tally to accept a direction
	MinSignalStrength float64 // Minimum adjusted strength to emit a signal
}

// Scorer turns four timeframe snapshots into a directional signal. Scoring is
// fully deterministic: identical inputs reproduce the same direction,
// strength, and confluence order.
type Scorer struct {
	config ScorerConfig
}

// NewScorer creates a scorer with the given thresholds
func NewScorer(config ScorerConfig) *Scorer {
	return &Scorer{config: config}
}

// MinStrength returns the configured strength floor
func (s *Scorer) MinStrength() float64 {
	return s.config.MinSignalStrength
}

// Score evaluates the fixed rule set over the four timeframes and returns a
// signal, or nil when no side wins convincingly enough. The rules fire in a
// fixed order so the confluence list is stable.
func (s *Scorer) Score(symbol string, analyses map[market.Timeframe]TimeframeAnalysis) *Signal {
	m5, ok := analyses[market.M5]
	if !ok {
		return nil
	}
	m15, ok := analyses[market.M15]
	if !ok {
		return nil
	}
	h1, ok := analyses[market.H1]
	if !ok {
		return nil
	}
	h4, ok := analyses[market.H4]
	if !ok {
		return nil
	}

	var bullish, bearish int
	confluences := make([]string, 0, 10)

	addBear := func(weight int, tag string) {
		bearish += weight
		confluences = append(confluences, tag)
	}
	addBull := func(weight int, tag string) {
		bullish += weight
		confluences = append(confluences, tag)
	}

	// 1. M5 RSI extremes (weight 3)
	if m5.RSI > 75 {
		addBear(3, "M5 RSI Extreme Overbought (75+)")
	}
	if m5.RSI < 25 {
		addBull(3, "M5 RSI Extreme Oversold (25-)")
	}

	// 2. M5 MACD momentum (weight 1)
	if m5.MACD > m5.MACDSignal && m5.MACD > 0 {
		addBear(1, "M5 MACD Strong Bullish")
	}
	if m5.MACD < m5.MACDSignal && m5.MACD < 0 {
		addBull(1, "M5 MACD Strong Bearish")
	}

	// 3. M15 RSI (weight 2)
	if m15.RSI > 70 {
		addBear(2, "M15 RSI Overbought (70+)")
	}
	if m15.RSI < 30 {
		addBull(2, "M15 RSI Oversold (30-)")
	}

	// 4. M15 EMA trend (weight 2)
	if m15.Price > m15.EMAFast && m15.EMAFast > m15.EMASlow {
		addBear(2, "M15 Strong Uptrend")
	}
	if m15.Price < m15.EMAFast && m15.EMAFast < m15.EMASlow {
		addBull(2, "M15 Strong Downtrend")
	}

	// 5. H1 RSI (weight 1)
	if h1.RSI > 65 {
		addBear(1, "H1 RSI High")
	}
	if h1.RSI < 35 {
		addBull(1, "H1 RSI Low")
	}

	// 6. H1 Bollinger breach (weight 3)
	if h1.Price > h1.BollUpper {
		addBear(3, "H1 Price Above Bollinger Upper")
	}
	if h1.Price < h1.BollLower {
		addBull(3, "H1 Price Below Bollinger Lower")
	}

	// 7. H4 RSI bias (weight 1)
	if h4.RSI > 60 {
		addBear(1, "H4 RSI Overbought Bias")
	}
	if h4.RSI < 40 {
		addBull(1, "H4 RSI Oversold Bias")
	}

	// 8. Cross-timeframe RSI alignment (weight 2)
	if m5.RSI > 70 && m15.RSI > 65 && h1.RSI > 60 {
		addBear(2, "Multi-TF RSI Overbought Alignment")
	}
	if m5.RSI < 30 && m15.RSI < 35 && h1.RSI < 40 {
		addBull(2, "Multi-TF RSI Oversold Alignment")
	}

	// 9. Proximity to H1 structure, using the M5 price for precision (weight 2)
	currentPrice := m5.Price
	if currentPrice >= h1.Resistance*0.9995 {
		addBear(2, "Near H1 Resistance Level")
	}
	if currentPrice <= h1.Support*1.0005 {
		addBull(2, "Near H1 Support Level")
	}

	// 10. Momentum exhaustion: price above/below fast EMAs with stretched RSI (weight 2)
	momentumUp := m15.Price > m15.EMAFast && h1.Price > h1.EMAFast
	momentumDown := m15.Price < m15.EMAFast && h1.Price < h1.EMAFast
	if momentumUp && (m5.RSI > 70 || m15.RSI > 70) {
		addBear(2, "Momentum Up + RSI Overbought")
	}
	if momentumDown && (m5.RSI < 30 || m15.RSI < 30) {
		addBull(2, "Momentum Down + RSI Oversold")
	}

	// Decide the winner: strictly greater tally, at or above the confluence
	// floor. Ties produce no signal.
	var direction Direction
	var winning int
	total := bullish + bearish

	switch {
	case bullish > bearish && bullish >= s.config.MinConfluences:
		direction = Buy
		winning = bullish
	case bearish > bullish && bearish >= s.config.MinConfluences:
		direction = Sell
		winning = bearish
	default:
		return nil
	}

	baseStrength := math.Min(10, float64(winning)/float64(total)*10)
	strength := s.adjustStrength(baseStrength, confluences, m5, m15, h1)

	if strength < s.config.MinSignalStrength {
		return nil
	}

	return NewSignal(symbol, direction, strength, confluences, analyses)
}

// adjustStrength applies the ordered strength adjustments to the base score.
// The order matters only for readability; all adjustments are additive.
func (s *Scorer) adjustStrength(base float64, confluences []string, m5, m15, h1 TimeframeAnalysis) float64 {
	strength := base

	// Confluence count bonus, tiered
	switch {
	case len(confluences) >= 7:
		strength += 1.5
	case len(confluences) >= 5:
		strength += 1.0
	case len(confluences) >= 3:
		strength += 0.5
	}

	// Extreme execution-timeframe RSI bonus
	if m5.RSI > 80 || m5.RSI < 20 {
		strength += 1.0
	} else if m5.RSI > 75 || m5.RSI < 25 {
		strength += 0.5
	}

	// Tight cross-timeframe RSI agreement bonus
	spreadM5M15 := math.Abs(m5.RSI - m15.RSI)
	spreadM15H1 := math.Abs(m15.RSI - h1.RSI)
	if spreadM5M15 < 10 && spreadM15H1 < 15 {
		strength += 0.5
	}

	// Volatility floor penalty, tiered
	if m5.ATR < 0.00005 {
		strength -= 3.0
	} else if m5.ATR < 0.0001 {
		strength -= 1.0
	}

	// Bollinger breach distance bonus, scaled by how far past the band price sits
	if h1.Price > h1.BollUpper && h1.BollUpper > 0 {
		dist := (h1.Price - h1.BollUpper) / h1.BollUpper
		strength += math.Min(1.0, dist*1000)
	} else if h1.Price < h1.BollLower && h1.BollLower > 0 {
		dist := (h1.BollLower - h1.Price) / h1.BollLower
		strength += math.Min(1.0, dist*1000)
	}

	// Neutral-RSI penalties on confirmation and trend timeframes
	if m15.RSI >= 40 && m15.RSI <= 60 {
		strength -= 1.5
	}
	if h1.RSI >= 45 && h1.RSI <= 55 {
		strength -= 1.0
	}

	strength = math.Max(0, math.Min(10, strength))
	return math.Round(strength*10) / 10
}
