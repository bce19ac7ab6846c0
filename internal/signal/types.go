package signal

import (
	"time"

	"contrarian-trading-bot/internal/market"

	"github.com/google/uuid"
)

// Direction is a trade direction
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Reverse flips BUY and SELL. Anything else passes through unchanged so a
// malformed direction never silently turns into a trade.
func (d Direction) Reverse() Direction {
	switch d {
	case Buy:
		return Sell
	case Sell:
		return Buy
	default:
		return d
	}
}

// TimeframeAnalysis is an immutable indicator snapshot for one timeframe.
// Produced fresh each evaluation cycle and never mutated.
type TimeframeAnalysis struct {
	Price      float64 `json:"price"`
	RSI        float64 `json:"rsi"`
	EMAFast    float64 `json:"ema_fast"`
	EMASlow    float64 `json:"ema_slow"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	BollUpper  float64 `json:"bollinger_upper"`
	BollLower  float64 `json:"bollinger_lower"`
	ATR        float64 `json:"atr"`
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// Signal is a scored directional signal. Immutable once created; enhancers
// wrap it in an EnhancedSignal instead of mutating it.
type Signal struct {
	ID          string                                 `json:"id"`
	Symbol      string                                 `json:"symbol"`
	Direction   Direction                              `json:"direction"`
	Strength    float64                                `json:"strength"`
	Confluences []string                               `json:"confluences"`
	Analyses    map[market.Timeframe]TimeframeAnalysis `json:"analyses"`
	GeneratedAt time.Time                              `json:"generated_at"`
}

// NewSignal creates a signal with a fresh ID and timestamp
func NewSignal(symbol string, dir Direction, strength float64, confluences []string, analyses map[market.Timeframe]TimeframeAnalysis) *Signal {
	return &Signal{
		ID:          uuid.New().String(),
		Symbol:      symbol,
		Direction:   dir,
		Strength:    strength,
		Confluences: confluences,
		Analyses:    analyses,
		GeneratedAt: time.Now().UTC(),
	}
}

// EnhancedSignal is a Signal plus enhancement provenance. Enhancers may raise
// or lower Strength but never touch the embedded Signal's other fields.
type EnhancedSignal struct {
	Signal
	MLConfidence float64  `json:"ml_confidence"`
	VolumeScore  float64  `json:"volume_score"`
	Enhancements []string `json:"enhancements"`
}

// Enhanced wraps a signal for the enhancer chain
func Enhanced(s *Signal) *EnhancedSignal {
	return &EnhancedSignal{
		Signal:       *s,
		Enhancements: make([]string, 0),
	}
}
