package admission

import (
	"time"

	"contrarian-trading-bot/internal/risk"
)

// Config holds the injectable admission limits
type Config struct {
	DailyProfitTarget float64 `json:"daily_profit_target"`
	MaxDailyDrawdown  float64 `json:"max_daily_drawdown"`
	MaxConcurrent     int     `json:"max_concurrent_trades"`
	MaxTradesPerDay   int     `json:"max_trades_per_day"`
	MaxPerPairPerDay  int     `json:"max_per_pair_per_day"`
	SessionPairCap    int     `json:"session_pair_cap"`
	StopOnPairSuccess bool    `json:"stop_on_pair_success"`
}

// Controller arbitrates among competing signals under the daily and
// concurrency limits. It owns no state of its own; all counters live in the
// DailyState passed by the engine.
type Controller struct {
	config  Config
	windows risk.TradeWindows
}

// NewController creates an admission controller
func NewController(config Config, windows risk.TradeWindows) *Controller {
	return &Controller{config: config, windows: windows}
}

// Window returns the admission window containing now, if any
func (c *Controller) Window(now time.Time) (risk.Session, bool) {
	return c.windows.WindowAt(now)
}

// CheckGlobal evaluates the account-wide gates in fixed order, short-circuiting
// on the first failure
func (c *Controller) CheckGlobal(state *risk.DailyState, openCount int) (bool, string) {
	if state.PnL() >= c.config.DailyProfitTarget {
		return false, "daily profit target reached"
	}
	if state.PnL() <= -c.config.MaxDailyDrawdown {
		return false, "daily drawdown limit breached"
	}
	if openCount >= c.config.MaxConcurrent {
		return false, "concurrent trade cap reached"
	}
	if state.TradeCount() >= c.config.MaxTradesPerDay {
		return false, "daily trade count cap reached"
	}
	return true, ""
}

// CheckSymbol evaluates the per-symbol gates for the current admission
// window. Outside the London and New York windows no symbol is admitted.
func (c *Controller) CheckSymbol(state *risk.DailyState, symbol string, now time.Time) (bool, string) {
	if c.config.StopOnPairSuccess && state.IsSuccessful(symbol) {
		return false, "pair already successful today"
	}

	window, open := c.windows.WindowAt(now)
	if !open {
		return false, "outside trading sessions"
	}
	if state.SessionCount(symbol, window) >= c.config.SessionPairCap {
		return false, "session trade cap reached for pair"
	}

	if state.PairCount(symbol) >= c.config.MaxPerPairPerDay {
		return false, "daily trade cap reached for pair"
	}

	return true, ""
}

// SkippedEntry is a queued signal refused by a symbol gate during a drain
type SkippedEntry struct {
	Entry  *Entry
	Reason string
}

// DrainResult summarizes one queue drain
type DrainResult struct {
	Executed  int
	Skipped   []SkippedEntry
	Discarded int
	Blocked   string // global gate that stopped the drain, if any
}

// Drain pops entries in priority order and hands them to execute until the
// open-slot budget is spent or a global gate closes. Entries failing a
// symbol gate are skipped, never requeued. Whatever remains afterwards is
// discarded: queued signals do not survive into the next cycle because their
// technical context would be stale.
func (c *Controller) Drain(q *Queue, state *risk.DailyState, openCount int, now time.Time, execute func(*Entry) bool) DrainResult {
	var result DrainResult

	executed := 0
	for q.Len() > 0 {
		ok, reason := c.CheckGlobal(state, openCount+executed)
		if !ok {
			result.Blocked = reason
			break
		}

		entry := q.Pop()

		if ok, reason := c.CheckSymbol(state, entry.Symbol, now); !ok {
			result.Skipped = append(result.Skipped, SkippedEntry{Entry: entry, Reason: reason})
			continue
		}

		if execute(entry) {
			executed++
		}
	}

	result.Executed = executed
	result.Discarded = q.Clear()
	return result
}
