package risk

import (
	"sync"
	"time"
)

// DailyState tracks per-UTC-day risk counters: realized P&L, trade counts,
// per-symbol session counts, and the symbols already marked successful. The
// engine loop is the single writer; the mutex exists only so the status API
// can take consistent read snapshots.
type DailyState struct {
	mu sync.RWMutex

	dailyPnL        float64
	tradeCount      int
	londonCounts    map[string]int
	newYorkCounts   map[string]int
	pairCounts      map[string]int
	successfulPairs map[string]bool
	lastResetDate   string // UTC date, YYYY-MM-DD
}

// NewDailyState creates daily state anchored to the given day
func NewDailyState(now time.Time) *DailyState {
	ds := &DailyState{}
	ds.reset(now)
	return ds
}

func (ds *DailyState) reset(now time.Time) {
	ds.dailyPnL = 0
	ds.tradeCount = 0
	ds.londonCounts = make(map[string]int)
	ds.newYorkCounts = make(map[string]int)
	ds.pairCounts = make(map[string]int)
	ds.successfulPairs = make(map[string]bool)
	ds.lastResetDate = now.UTC().Format("2006-01-02")
}

// MaybeReset clears all counters exactly once when the UTC calendar date
// advances. Returns true when a reset happened.
func (ds *DailyState) MaybeReset(now time.Time) bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	today := now.UTC().Format("2006-01-02")
	if today == ds.lastResetDate {
		return false
	}

	ds.reset(now)
	return true
}

// RecordTrade bumps the daily, per-pair, and window counters for a newly
// opened trade. The session argument is the admission window the trade was
// admitted under, so only the London and New York buckets are tracked.
func (ds *DailyState) RecordTrade(symbol string, session Session) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.tradeCount++
	ds.pairCounts[symbol]++

	switch session {
	case SessionLondon:
		ds.londonCounts[symbol]++
	case SessionNewYork:
		ds.newYorkCounts[symbol]++
	}
}

// AddPnL adds realized profit or loss to the daily total
func (ds *DailyState) AddPnL(delta float64) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.dailyPnL += delta
}

// MarkSuccessful records a symbol as done for the day
func (ds *DailyState) MarkSuccessful(symbol string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.successfulPairs[symbol] = true
}

// IsSuccessful reports whether the symbol already hit its target today
func (ds *DailyState) IsSuccessful(symbol string) bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.successfulPairs[symbol]
}

// PnL returns the realized daily P&L
func (ds *DailyState) PnL() float64 {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.dailyPnL
}

// TradeCount returns the number of trades opened today
func (ds *DailyState) TradeCount() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.tradeCount
}

// PairCount returns how many trades the symbol opened today
func (ds *DailyState) PairCount(symbol string) int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.pairCounts[symbol]
}

// SessionCount returns the symbol's trade count within the given admission
// window bucket
func (ds *DailyState) SessionCount(symbol string, session Session) int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	switch session {
	case SessionLondon:
		return ds.londonCounts[symbol]
	case SessionNewYork:
		return ds.newYorkCounts[symbol]
	default:
		return 0
	}
}

// Snapshot is a point-in-time copy of the daily counters for the status API
type Snapshot struct {
	DailyPnL        float64        `json:"daily_pnl"`
	TradeCount      int            `json:"trade_count"`
	PairCounts      map[string]int `json:"pair_counts"`
	LondonCounts    map[string]int `json:"london_counts"`
	NewYorkCounts   map[string]int `json:"new_york_counts"`
	SuccessfulPairs []string       `json:"successful_pairs"`
	Date            string         `json:"date"`
}

// Snapshot returns a consistent copy of the state
func (ds *DailyState) Snapshot() Snapshot {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	snap := Snapshot{
		DailyPnL:      ds.dailyPnL,
		TradeCount:    ds.tradeCount,
		PairCounts:    make(map[string]int, len(ds.pairCounts)),
		LondonCounts:  make(map[string]int, len(ds.londonCounts)),
		NewYorkCounts: make(map[string]int, len(ds.newYorkCounts)),
		Date:          ds.lastResetDate,
	}
	for k, v := range ds.pairCounts {
		snap.PairCounts[k] = v
	}
	for k, v := range ds.londonCounts {
		snap.LondonCounts[k] = v
	}
	for k, v := range ds.newYorkCounts {
		snap.NewYorkCounts[k] = v
	}
	for sym := range ds.successfulPairs {
		snap.SuccessfulPairs = append(snap.SuccessfulPairs, sym)
	}
	return snap
}
