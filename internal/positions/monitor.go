package positions

import (
	"fmt"
	"math"
	"time"

	"contrarian-trading-bot/internal/logging"
	"contrarian-trading-bot/internal/market"
	"contrarian-trading-bot/internal/risk"
	"contrarian-trading-bot/internal/signal"

	"github.com/rs/zerolog"
)

// EventKind identifies a lifecycle transition observed during a tick
type EventKind string

const (
	EventTPHit             EventKind = "TP_HIT"
	EventBreakevenSet      EventKind = "BREAKEVEN_SET"
	EventTrailingActivated EventKind = "TRAILING_ACTIVATED"
	EventTrailingMoved     EventKind = "TRAILING_MOVED"
	EventClosed            EventKind = "CLOSED"
)

// Event describes one state-machine transition. Final events mean the trade
// left the active set; the engine applies P&L and counter updates from these.
type Event struct {
	Kind       EventKind
	Symbol     string
	TPIndex    int // 1-based for TP_HIT
	Price      float64
	ClosedLots float64
	PnL        float64
	NewSL      float64
	Final      bool
	Reason     CloseReason
}

// Config holds the injectable lifecycle thresholds
type Config struct {
	TradeFollowing         bool          `json:"trade_following"`
	ReversalCheckInterval  time.Duration `json:"reversal_check_interval"`
	MajorReversalThreshold float64       `json:"major_reversal_threshold"`
	ReversalConfluenceMin  int           `json:"reversal_confluence_min"`
	TPClosePercents        [3]float64    `json:"tp_close_percents"`
}

// SignalFunc regenerates a fresh signal for a symbol, or nil when the market
// offers none
type SignalFunc func(symbol string) *signal.Signal

// Monitor advances the per-position state machine on each price tick
type Monitor struct {
	config    Config
	broker    market.Broker
	signalFn  SignalFunc
	lastCheck map[string]time.Time
	logger    zerolog.Logger
}

// NewMonitor creates a lifecycle monitor
func NewMonitor(config Config, broker market.Broker, signalFn SignalFunc) *Monitor {
	return &Monitor{
		config:    config,
		broker:    broker,
		signalFn:  signalFn,
		lastCheck: make(map[string]time.Time),
		logger:    logging.Component("monitor"),
	}
}

// CheckAll runs Check over every open trade. A failure on one symbol is
// logged and isolated; the remaining trades are still monitored.
func (m *Monitor) CheckAll(trades map[string]*ActiveTrade, now time.Time) []Event {
	var all []Event
	for symbol, trade := range trades {
		events, err := m.checkOne(trade, now)
		if err != nil {
			m.logger.Error().Str("symbol", symbol).Err(err).Msg("monitoring failed for symbol")
			continue
		}
		all = append(all, events...)
	}
	return all
}

func (m *Monitor) checkOne(trade *ActiveTrade, now time.Time) (events []Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			events = nil
			err = fmt.Errorf("panic monitoring %s: %v", trade.Symbol, r)
		}
	}()

	tick, err := m.broker.GetTick(trade.Symbol)
	if err != nil {
		return nil, err
	}

	return m.Check(trade, tick, now)
}

// Check runs the fixed-order lifecycle checks for one trade against a tick:
// reversal, stop-loss, take-profits, breakeven, trailing stop. The order
// guarantees a position is never reported both stopped-out and
// take-profited in the same tick.
func (m *Monitor) Check(trade *ActiveTrade, tick *market.Tick, now time.Time) ([]Event, error) {
	// Exit side of the spread: a BUY closes at the bid, a SELL at the ask
	price := tick.Bid
	if trade.Direction == signal.Sell {
		price = tick.Ask
	}

	var events []Event

	// 1. Reversal: the market now confirms the original, pre-reversal call
	if ev, closed, err := m.checkReversal(trade, price, now); err != nil {
		return events, err
	} else if closed {
		return append(events, *ev), nil
	}

	// 2. Stop loss
	if m.crossedAgainst(trade, price, trade.CurrentSL) {
		if err := m.broker.ClosePosition(trade.Ticket); err != nil {
			return events, fmt.Errorf("closing %s at stop: %w", trade.Symbol, err)
		}
		pnl := m.pnl(trade, price, trade.RemainingLots)
		events = append(events, Event{
			Kind:       EventClosed,
			Symbol:     trade.Symbol,
			Price:      price,
			ClosedLots: trade.RemainingLots,
			PnL:        pnl,
			Final:      true,
			Reason:     ReasonStopLoss,
		})
		trade.RemainingLots = 0
		return events, nil
	}

	// 3. Take profits, in order, each firing at most once
	for i := 0; i < 3; i++ {
		if trade.TPHits[i] || !m.reachedInFavor(trade, price, trade.tpPrice(i)) {
			continue
		}

		closeLots := math.Round(trade.LotSize*m.config.TPClosePercents[i]*100) / 100
		if closeLots > trade.RemainingLots {
			closeLots = trade.RemainingLots
		}
		if closeLots > 0 {
			if err := m.broker.PartialClose(trade.Ticket, closeLots); err != nil {
				return events, fmt.Errorf("partial close %s TP%d: %w", trade.Symbol, i+1, err)
			}
		}

		trade.TPHits[i] = true
		trade.RemainingLots = math.Round((trade.RemainingLots-closeLots)*100) / 100

		events = append(events, Event{
			Kind:       EventTPHit,
			Symbol:     trade.Symbol,
			TPIndex:    i + 1,
			Price:      price,
			ClosedLots: closeLots,
			PnL:        m.pnl(trade, price, closeLots),
		})
	}

	if trade.AllTargetsHit() {
		if trade.RemainingLots > 0 {
			if err := m.broker.ClosePosition(trade.Ticket); err != nil {
				return events, fmt.Errorf("flattening %s: %w", trade.Symbol, err)
			}
		}
		events = append(events, Event{
			Kind:   EventClosed,
			Symbol: trade.Symbol,
			Price:  price,
			PnL:    m.pnl(trade, price, trade.RemainingLots),
			Final:  true,
			Reason: ReasonAllTargets,
		})
		trade.RemainingLots = 0
		return events, nil
	}

	// 4. Breakeven, once
	if !trade.BreakevenSet && m.reachedInFavor(trade, price, trade.Levels.BreakevenTrigger) {
		trade.CurrentSL = trade.Entry
		trade.BreakevenSet = true
		events = append(events, Event{
			Kind:   EventBreakevenSet,
			Symbol: trade.Symbol,
			Price:  price,
			NewSL:  trade.CurrentSL,
		})
	}

	// 5. Trailing stop: activate at the trigger, then only ever tighten
	if !trade.TrailingActive && m.reachedInFavor(trade, price, trade.Levels.TrailingTrigger) {
		trade.TrailingActive = true
		events = append(events, Event{
			Kind:   EventTrailingActivated,
			Symbol: trade.Symbol,
			Price:  price,
		})
	}
	if trade.TrailingActive {
		var candidate float64
		if trade.Direction == signal.Buy {
			candidate = price - trade.Levels.TrailDistance
		} else {
			candidate = price + trade.Levels.TrailDistance
		}

		if m.tightens(trade, candidate) {
			trade.CurrentSL = candidate
			events = append(events, Event{
				Kind:   EventTrailingMoved,
				Symbol: trade.Symbol,
				Price:  price,
				NewSL:  candidate,
			})
		}
	}

	return events, nil
}

func (m *Monitor) checkReversal(trade *ActiveTrade, price float64, now time.Time) (*Event, bool, error) {
	if !m.config.TradeFollowing || m.signalFn == nil {
		return nil, false, nil
	}
	if last, ok := m.lastCheck[trade.Symbol]; ok && now.Sub(last) < m.config.ReversalCheckInterval {
		return nil, false, nil
	}
	m.lastCheck[trade.Symbol] = now

	fresh := m.signalFn(trade.Symbol)
	if fresh == nil {
		return nil, false, nil
	}

	if fresh.Strength < m.config.MajorReversalThreshold ||
		len(fresh.Confluences) < m.config.ReversalConfluenceMin ||
		fresh.Direction != trade.OriginalDirection {
		return nil, false, nil
	}

	if err := m.broker.ClosePosition(trade.Ticket); err != nil {
		return nil, false, fmt.Errorf("reversal close %s: %w", trade.Symbol, err)
	}

	ev := &Event{
		Kind:       EventClosed,
		Symbol:     trade.Symbol,
		Price:      price,
		ClosedLots: trade.RemainingLots,
		PnL:        m.pnl(trade, price, trade.RemainingLots),
		Final:      true,
		Reason:     ReasonReversal,
	}
	trade.RemainingLots = 0
	return ev, true, nil
}

// ForgetSymbol drops the reversal-check timer for a closed symbol
func (m *Monitor) ForgetSymbol(symbol string) {
	delete(m.lastCheck, symbol)
}

// crossedAgainst reports whether price has crossed a protective level against
// the trade's direction
func (m *Monitor) crossedAgainst(trade *ActiveTrade, price, level float64) bool {
	if trade.Direction == signal.Buy {
		return price <= level
	}
	return price >= level
}

// reachedInFavor reports whether price has reached a target level in the
// trade's favor
func (m *Monitor) reachedInFavor(trade *ActiveTrade, price, level float64) bool {
	if trade.Direction == signal.Buy {
		return price >= level
	}
	return price <= level
}

// tightens reports whether the candidate stop improves on the current one in
// the trade's favor. The trailing stop never loosens.
func (m *Monitor) tightens(trade *ActiveTrade, candidate float64) bool {
	if trade.Direction == signal.Buy {
		return candidate > trade.CurrentSL
	}
	return candidate < trade.CurrentSL
}

// pnl approximates realized USD P&L for the closed lots. Pip value is the
// standard $10-per-pip-per-lot approximation; a proper cross-rate conversion
// is a known simplification carried from the original sizing model.
func (m *Monitor) pnl(trade *ActiveTrade, price float64, lots float64) float64 {
	pip := risk.PipSize(trade.Symbol)
	diff := price - trade.Entry
	if trade.Direction == signal.Sell {
		diff = trade.Entry - price
	}
	pips := diff / pip
	return pips * lots * 10
}
