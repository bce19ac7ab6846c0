// Package engine runs the single-threaded trading loop: daily reset, position
// monitoring, per-symbol evaluation, and queue drain, in that order, every
// cycle. All trading state is owned by this loop; other goroutines only read
// snapshots.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"contrarian-trading-bot/internal/admission"
	"contrarian-trading-bot/internal/enhancers"
	"contrarian-trading-bot/internal/events"
	"contrarian-trading-bot/internal/journal"
	"contrarian-trading-bot/internal/logging"
	"contrarian-trading-bot/internal/market"
	"contrarian-trading-bot/internal/metrics"
	"contrarian-trading-bot/internal/notification"
	"contrarian-trading-bot/internal/positions"
	"contrarian-trading-bot/internal/risk"
	"contrarian-trading-bot/internal/signal"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds the loop timing parameters and the symbol universe
type Config struct {
	Symbols        []string      `json:"symbols"`
	CycleInterval  time.Duration `json:"cycle_interval"`
	PairPause      time.Duration `json:"pair_pause"`
	StatusInterval time.Duration `json:"status_interval"`
}

// Deps are the collaborators the engine wires together. Journal may be nil
// when persistence is disabled.
type Deps struct {
	Broker     market.Broker
	Scorer     *signal.Scorer
	Chain      *enhancers.Chain
	Controller *admission.Controller
	Calculator *risk.Calculator
	Notifier   *notification.Manager
	Bus        *events.EventBus
	Metrics    *metrics.Metrics
	Journal    *journal.Repository
	ML         *enhancers.MLEnhancer
	Positions  positions.Config
}

// Engine is the single-threaded control loop
type Engine struct {
	config     Config
	broker     market.Broker
	analyzer   *signal.Analyzer
	scorer     *signal.Scorer
	chain      *enhancers.Chain
	queue      *admission.Queue
	controller *admission.Controller
	calculator *risk.Calculator
	monitor    *positions.Monitor
	notifier   *notification.Manager
	bus        *events.EventBus
	metrics    *metrics.Metrics
	journal    *journal.Repository
	ml         *enhancers.MLEnhancer
	logger     zerolog.Logger

	// mu guards active and the cycle bookkeeping for status snapshots; the
	// loop goroutine is the only writer
	mu         sync.RWMutex
	active     map[string]*positions.ActiveTrade
	state      *risk.DailyState
	cycleCount int64
	lastCycle  time.Time
	running    bool

	lastStatus time.Time
}

// New creates an engine. The position monitor is built here so its reversal
// checks reuse the engine's own analyzer and scorer.
func New(config Config, deps Deps) *Engine {
	e := &Engine{
		config:     config,
		broker:     deps.Broker,
		analyzer:   signal.NewAnalyzer(deps.Broker),
		scorer:     deps.Scorer,
		chain:      deps.Chain,
		queue:      admission.NewQueue(),
		controller: deps.Controller,
		calculator: deps.Calculator,
		notifier:   deps.Notifier,
		bus:        deps.Bus,
		metrics:    deps.Metrics,
		journal:    deps.Journal,
		ml:         deps.ML,
		logger:     logging.Component("engine"),
		active:     make(map[string]*positions.ActiveTrade),
		state:      risk.NewDailyState(time.Now()),
	}
	e.monitor = positions.NewMonitor(deps.Positions, deps.Broker, e.freshSignal)
	return e
}

// Run executes evaluation cycles until the context is cancelled
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	e.logger.Info().Strs("symbols", e.config.Symbols).
		Dur("cycle_interval", e.config.CycleInterval).
		Msg("trading loop started")

	for {
		e.cycle(ctx, time.Now().UTC())

		select {
		case <-ctx.Done():
			e.logger.Info().Msg("trading loop stopped")
			return ctx.Err()
		case <-time.After(e.config.CycleInterval):
		}
	}
}

// cycle runs one full evaluation pass. Phases run in fixed order; a failure
// in one symbol never aborts the cycle.
func (e *Engine) cycle(ctx context.Context, now time.Time) {
	if e.state.MaybeReset(now) {
		date := now.Format("2006-01-02")
		e.logger.Info().Str("date", date).Msg("daily counters reset")
		e.bus.PublishDailyReset(date)
		if err := e.notifier.SendDailyReset(date); err != nil {
			e.logger.Warn().Err(err).Msg("daily reset notification failed")
		}
	}

	e.monitorActives(now)
	e.evaluateSymbols(ctx, now)
	e.drainQueue(ctx, now)
	e.maybeSendStatus(now)

	e.mu.Lock()
	e.cycleCount++
	e.lastCycle = now
	e.mu.Unlock()

	e.metrics.CyclesTotal.Inc()
	e.metrics.OpenTrades.Set(float64(e.openCount()))
	e.metrics.DailyPnL.Set(e.state.PnL())
	e.metrics.DailyTradeCount.Set(float64(e.state.TradeCount()))
}

// monitorActives advances every open position's lifecycle and applies the
// resulting events to engine state. The checks mutate the trade structs in
// place, so the write lock is held for the whole pass: status snapshots
// never observe a half-applied update.
func (e *Engine) monitorActives(now time.Time) {
	e.mu.Lock()
	trades := make(map[string]*positions.ActiveTrade, len(e.active))
	for k, v := range e.active {
		trades[k] = v
	}
	evs := e.monitor.CheckAll(trades, now)
	e.mu.Unlock()

	for _, ev := range evs {
		e.applyEvent(ev)
	}
}

func (e *Engine) applyEvent(ev positions.Event) {
	switch ev.Kind {
	case positions.EventTPHit:
		e.state.AddPnL(ev.PnL)
		// First target reached: the pair has paid for the day
		if ev.TPIndex == 1 {
			e.state.MarkSuccessful(ev.Symbol)
		}
		e.logger.Info().Str("symbol", ev.Symbol).Int("tp", ev.TPIndex).
			Float64("price", ev.Price).Float64("pnl", ev.PnL).Msg("take profit hit")
		e.bus.PublishTPHit(ev.Symbol, ev.TPIndex, ev.Price, ev.ClosedLots, ev.PnL)
		if err := e.notifier.SendTPHit(ev.Symbol, ev.TPIndex, ev.Price, ev.ClosedLots, ev.PnL); err != nil {
			e.logger.Warn().Err(err).Msg("tp notification failed")
		}

	case positions.EventBreakevenSet:
		e.logger.Info().Str("symbol", ev.Symbol).Float64("new_sl", ev.NewSL).Msg("stop moved to breakeven")
		e.bus.Publish(events.Event{
			Type: events.EventBreakevenSet,
			Data: map[string]interface{}{"symbol": ev.Symbol, "new_sl": ev.NewSL},
		})

	case positions.EventTrailingActivated, positions.EventTrailingMoved:
		e.bus.Publish(events.Event{
			Type: events.EventTrailingUpdate,
			Data: map[string]interface{}{"symbol": ev.Symbol, "new_sl": ev.NewSL, "price": ev.Price},
		})

	case positions.EventClosed:
		e.state.AddPnL(ev.PnL)
		e.closeTrade(ev)
	}
}

// closeTrade removes a finished position and fans out the close
func (e *Engine) closeTrade(ev positions.Event) {
	e.mu.Lock()
	delete(e.active, ev.Symbol)
	e.mu.Unlock()
	e.monitor.ForgetSymbol(ev.Symbol)

	e.logger.Info().Str("symbol", ev.Symbol).Str("reason", string(ev.Reason)).
		Float64("price", ev.Price).Float64("pnl", ev.PnL).Msg("position closed")

	e.metrics.TradesClosed.WithLabelValues(ev.Symbol, string(ev.Reason)).Inc()
	e.bus.PublishTradeClosed(ev.Symbol, string(ev.Reason), ev.Price, ev.PnL)

	if e.ml != nil {
		e.ml.RecordOutcome(ev.Symbol, ev.PnL > 0)
	}

	var err error
	switch ev.Reason {
	case positions.ReasonStopLoss:
		err = e.notifier.SendSLHit(ev.Symbol, ev.Price, ev.PnL)
	case positions.ReasonReversal:
		err = e.notifier.SendReversalClose(ev.Symbol, ev.Price, ev.PnL)
	default:
		if ev.PnL > 0 {
			e.state.MarkSuccessful(ev.Symbol)
		}
		err = e.notifier.SendTPHit(ev.Symbol, 3, ev.Price, ev.ClosedLots, ev.PnL)
	}
	if err != nil {
		e.logger.Warn().Err(err).Msg("close notification failed")
	}
}

// evaluateSymbols scans the universe and enqueues every admissible signal
func (e *Engine) evaluateSymbols(ctx context.Context, now time.Time) {
	for i, symbol := range e.config.Symbols {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && e.config.PairPause > 0 {
			time.Sleep(e.config.PairPause)
		}

		e.evaluateSymbol(ctx, symbol, now)
	}
}

func (e *Engine) evaluateSymbol(ctx context.Context, symbol string, now time.Time) {
	// One position per symbol
	e.mu.RLock()
	_, open := e.active[symbol]
	e.mu.RUnlock()
	if open {
		return
	}

	// Cheap pre-check; the authoritative gates run again at drain time
	if ok, _ := e.controller.CheckSymbol(e.state, symbol, now); !ok {
		return
	}

	analyses, err := e.analyzer.Analyze(symbol)
	if err != nil {
		if !errors.Is(err, market.ErrNoData) {
			e.logger.Warn().Str("symbol", symbol).Err(err).Msg("analysis failed")
		}
		return
	}

	sig := e.scorer.Score(symbol, analyses)
	if sig == nil {
		return
	}

	e.logger.Info().Str("symbol", symbol).Str("direction", string(sig.Direction)).
		Float64("strength", sig.Strength).Int("confluences", len(sig.Confluences)).
		Msg("signal generated")
	e.metrics.SignalsGenerated.WithLabelValues(symbol, string(sig.Direction)).Inc()
	e.bus.PublishSignal(symbol, string(sig.Direction), sig.Strength, sig.Confluences)

	enhanced := signal.Enhanced(sig)
	if err := e.chain.Run(ctx, enhanced); err != nil {
		e.logger.Info().Str("symbol", symbol).Err(err).Msg("signal vetoed")
		e.metrics.SignalsVetoed.WithLabelValues(symbol).Inc()
		e.bus.PublishSignalVetoed(symbol, err.Error())
		e.journalSignal(ctx, enhanced, journal.OutcomeVetoed, err.Error())
		return
	}

	// Enhancers may push strength below the floor
	if enhanced.Strength < sig.Strength && enhanced.Strength < e.scorer.MinStrength() {
		e.logger.Info().Str("symbol", symbol).Float64("strength", enhanced.Strength).
			Msg("signal dropped after enhancement")
		e.journalSignal(ctx, enhanced, journal.OutcomeDiscarded, "strength below floor after enhancement")
		return
	}

	e.queue.Push(symbol, enhanced, now)
}

// drainQueue hands queued signals to the admission controller for execution
func (e *Engine) drainQueue(ctx context.Context, now time.Time) {
	if e.queue.Len() == 0 {
		return
	}

	result := e.controller.Drain(e.queue, e.state, e.openCount(), now, func(entry *admission.Entry) bool {
		return e.execute(ctx, entry, now)
	})

	for _, sk := range result.Skipped {
		e.logger.Info().Str("symbol", sk.Entry.Symbol).Str("reason", sk.Reason).
			Msg("signal skipped at admission")
		e.metrics.AdmissionRejected.WithLabelValues(sk.Reason).Inc()
		e.bus.PublishAdmissionRejected(sk.Entry.Symbol, sk.Reason)
		e.journalSignal(ctx, sk.Entry.Signal, journal.OutcomeSkipped, sk.Reason)
	}

	if result.Blocked != "" {
		e.logger.Info().Str("gate", result.Blocked).Msg("admission blocked remaining queue")
		e.metrics.AdmissionRejected.WithLabelValues(result.Blocked).Inc()
	}
	if result.Executed+len(result.Skipped)+result.Discarded > 0 {
		e.logger.Info().Int("executed", result.Executed).Int("skipped", len(result.Skipped)).
			Int("discarded", result.Discarded).Msg("queue drained")
	}
}

// execute opens the contrarian position for a queued signal. The executed
// direction is the reverse of what the scorer said.
func (e *Engine) execute(ctx context.Context, entry *admission.Entry, now time.Time) bool {
	sig := entry.Signal
	execDir := sig.Direction.Reverse()

	tick, err := e.broker.GetTick(entry.Symbol)
	if err != nil {
		e.logger.Warn().Str("symbol", entry.Symbol).Err(err).Msg("no tick at execution")
		return false
	}

	// Entry side of the spread for the executed direction
	entryPrice := tick.Ask
	if execDir == signal.Sell {
		entryPrice = tick.Bid
	}

	atr := sig.Analyses[market.M5].ATR
	levels := e.calculator.Levels(execDir, entry.Symbol, entryPrice, atr, sig.Strength, now)
	lots := e.calculator.LotSize(levels.SLPips)

	result, err := e.broker.PlaceOrder(entry.Symbol, string(execDir), lots, levels.StopLoss, levels.TP3)
	if err != nil {
		e.logger.Error().Str("symbol", entry.Symbol).Err(err).Msg("order rejected")
		e.bus.PublishError("engine", "order rejected", err)
		e.journalSignal(ctx, sig, journal.OutcomeBlocked, err.Error())
		return false
	}

	session := e.calculator.CurrentSession(now)
	trade := &positions.ActiveTrade{
		ID:                uuid.New().String(),
		Ticket:            result.Ticket,
		Symbol:            entry.Symbol,
		Direction:         execDir,
		OriginalDirection: sig.Direction,
		Entry:             result.Price,
		LotSize:           lots,
		RemainingLots:     lots,
		Levels:            levels,
		CurrentSL:         levels.StopLoss,
		EntryTime:         now,
		Session:           session,
		Strength:          sig.Strength,
	}

	e.mu.Lock()
	e.active[entry.Symbol] = trade
	e.mu.Unlock()

	// Counters bucket by admission window, not by the finer TP session
	window, _ := e.controller.Window(now)
	e.state.RecordTrade(entry.Symbol, window)

	e.logger.Info().Str("symbol", entry.Symbol).Str("direction", string(execDir)).
		Str("signal_direction", string(sig.Direction)).Float64("entry", result.Price).
		Float64("lots", lots).Float64("sl", levels.StopLoss).Float64("tp1", levels.TP1).
		Msg("contrarian trade opened")

	e.metrics.TradesOpened.WithLabelValues(entry.Symbol, string(execDir)).Inc()
	e.bus.PublishTradeOpened(entry.Symbol, string(execDir), result.Price, lots,
		levels.StopLoss, levels.TP1, levels.TP2, levels.TP3)
	e.journalSignal(ctx, sig, journal.OutcomeExecuted, "")

	if err := e.notifier.SendTradeOpened(entry.Symbol, string(execDir), string(sig.Direction),
		result.Price, lots, levels.StopLoss, levels.TP1, levels.TP2, levels.TP3); err != nil {
		e.logger.Warn().Err(err).Msg("trade open notification failed")
	}

	return true
}

// freshSignal regenerates a signal for the monitor's reversal check
func (e *Engine) freshSignal(symbol string) *signal.Signal {
	analyses, err := e.analyzer.Analyze(symbol)
	if err != nil {
		return nil
	}
	return e.scorer.Score(symbol, analyses)
}

// journalSignal persists a signal and its admission outcome, best effort
func (e *Engine) journalSignal(ctx context.Context, sig *signal.EnhancedSignal, outcome, reason string) {
	if e.journal == nil {
		return
	}

	jctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := e.journal.SaveSignal(jctx, sig); err != nil {
		e.logger.Warn().Err(err).Msg("signal journal write failed")
		return
	}
	if err := e.journal.SaveOutcome(jctx, sig.ID, sig.Symbol, outcome, reason); err != nil {
		e.logger.Warn().Err(err).Msg("outcome journal write failed")
	}
}

func (e *Engine) maybeSendStatus(now time.Time) {
	if e.config.StatusInterval <= 0 || now.Sub(e.lastStatus) < e.config.StatusInterval {
		return
	}
	e.lastStatus = now

	open := e.openCount()
	e.bus.PublishSystemStatus(open, e.state.PnL(), e.state.TradeCount())
	if err := e.notifier.SendSystemStatus(open, e.state.TradeCount(), e.state.PnL()); err != nil {
		e.logger.Warn().Err(err).Msg("status notification failed")
	}
}

func (e *Engine) openCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.active)
}

// OpenSymbols lists the symbols with open positions, for the correlation
// filter
func (e *Engine) OpenSymbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	symbols := make([]string, 0, len(e.active))
	for s := range e.active {
		symbols = append(symbols, s)
	}
	return symbols
}

// ActiveTrades returns copies of the open positions
func (e *Engine) ActiveTrades() []positions.ActiveTrade {
	e.mu.RLock()
	defer e.mu.RUnlock()

	trades := make([]positions.ActiveTrade, 0, len(e.active))
	for _, t := range e.active {
		trades = append(trades, *t)
	}
	return trades
}

// Snapshot is a point-in-time view of the engine for the status API
type Snapshot struct {
	Running    bool                    `json:"running"`
	CycleCount int64                   `json:"cycle_count"`
	LastCycle  time.Time               `json:"last_cycle"`
	OpenTrades []positions.ActiveTrade `json:"open_trades"`
	Daily      risk.Snapshot           `json:"daily"`
}

// Status returns a consistent snapshot of loop state
func (e *Engine) Status() Snapshot {
	e.mu.RLock()
	snap := Snapshot{
		Running:    e.running,
		CycleCount: e.cycleCount,
		LastCycle:  e.lastCycle,
		OpenTrades: make([]positions.ActiveTrade, 0, len(e.active)),
	}
	for _, t := range e.active {
		snap.OpenTrades = append(snap.OpenTrades, *t)
	}
	e.mu.RUnlock()

	snap.Daily = e.state.Snapshot()
	return snap
}

// Daily exposes the daily risk counters
func (e *Engine) Daily() risk.Snapshot {
	return e.state.Snapshot()
}
