package positions

import (
	"time"

	"contrarian-trading-bot/internal/risk"
	"contrarian-trading-bot/internal/signal"
)

// CloseReason explains why a position was fully closed
type CloseReason string

const (
	ReasonStopLoss   CloseReason = "SL"
	ReasonAllTargets CloseReason = "ALL_TARGETS"
	ReasonReversal   CloseReason = "REVERSAL"
)

// ActiveTrade is one open position owned by the engine loop and the monitor.
// Direction is the executed (post-reversal) side; OriginalDirection is what
// the scorer originally said before the contrarian flip.
type ActiveTrade struct {
	ID                string           `json:"id"`
	Ticket            int64            `json:"ticket"`
	Symbol            string           `json:"symbol"`
	Direction         signal.Direction `json:"direction"`
	OriginalDirection signal.Direction `json:"original_direction"`
	Entry             float64          `json:"entry_price"`
	LotSize           float64          `json:"lot_size"`
	RemainingLots     float64          `json:"remaining_lots"`
	Levels            risk.Levels      `json:"levels"`
	CurrentSL         float64          `json:"current_sl"`
	TPHits            [3]bool          `json:"tp_hits"`
	BreakevenSet      bool             `json:"breakeven_set"`
	TrailingActive    bool             `json:"trailing_active"`
	EntryTime         time.Time        `json:"entry_time"`
	Session           risk.Session     `json:"session"`
	Strength          float64          `json:"strength"`
}

// tpPrice returns the price level for TP index 0..2
func (t *ActiveTrade) tpPrice(i int) float64 {
	switch i {
	case 0:
		return t.Levels.TP1
	case 1:
		return t.Levels.TP2
	default:
		return t.Levels.TP3
	}
}

// AllTargetsHit reports whether every take-profit level has fired
func (t *ActiveTrade) AllTargetsHit() bool {
	return t.TPHits[0] && t.TPHits[1] && t.TPHits[2]
}
