package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"contrarian-trading-bot/internal/admission"
	"contrarian-trading-bot/internal/enhancers"
	"contrarian-trading-bot/internal/events"
	"contrarian-trading-bot/internal/market"
	"contrarian-trading-bot/internal/metrics"
	"contrarian-trading-bot/internal/notification"
	"contrarian-trading-bot/internal/positions"
	"contrarian-trading-bot/internal/risk"
	"contrarian-trading-bot/internal/signal"
)

// The default Prometheus registry rejects duplicate collectors, so every test
// in this binary shares one Metrics instance.
var testMetrics = metrics.New()

type placedOrder struct {
	Symbol  string
	Side    string
	LotSize float64
	SL      float64
	TP      float64
}

// scriptedBroker serves synthetic trending history and records orders
type scriptedBroker struct {
	mu         sync.Mutex
	trend      float64 // per-bar close increment; positive builds overbought tape
	bid        float64
	ask        float64
	noData     bool
	reject     bool
	orders     []placedOrder
	nextTicket int64
	closed     []int64
}

func newScriptedBroker(trend float64) *scriptedBroker {
	return &scriptedBroker{
		trend:      trend,
		bid:        1.1000,
		ask:        1.1002,
		nextTicket: 5000,
	}
}

func (b *scriptedBroker) setQuote(bid, ask float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bid = bid
	b.ask = ask
}

func (b *scriptedBroker) placed() []placedOrder {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]placedOrder, len(b.orders))
	copy(out, b.orders)
	return out
}

func (b *scriptedBroker) GetTick(symbol string) (*market.Tick, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &market.Tick{Symbol: symbol, Bid: b.bid, Ask: b.ask, Time: time.Now()}, nil
}

func (b *scriptedBroker) GetRates(symbol string, tf market.Timeframe, count int) ([]market.Rate, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.noData {
		return nil, market.ErrNoData
	}

	rates := make([]market.Rate, count)
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		close := 1.1000 - b.trend*float64(count-1-i)
		rates[i] = market.Rate{
			Time:       base.Add(time.Duration(i) * tf.Duration()),
			Open:       close - b.trend,
			High:       close + 0.0005,
			Low:        close - 0.0005,
			Close:      close,
			TickVolume: 100,
		}
	}
	return rates, nil
}

func (b *scriptedBroker) PlaceOrder(symbol, side string, lotSize, slPrice, tpPrice float64) (*market.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.reject {
		return nil, market.ErrOrderRejected
	}

	b.orders = append(b.orders, placedOrder{Symbol: symbol, Side: side, LotSize: lotSize, SL: slPrice, TP: tpPrice})
	b.nextTicket++

	price := b.ask
	if side == "SELL" {
		price = b.bid
	}
	return &market.OrderResult{
		Ticket:  b.nextTicket,
		Symbol:  symbol,
		Side:    side,
		LotSize: lotSize,
		Price:   price,
	}, nil
}

func (b *scriptedBroker) ClosePosition(ticket int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = append(b.closed, ticket)
	return nil
}

func (b *scriptedBroker) PartialClose(ticket int64, lots float64) error { return nil }

func testEngine(broker market.Broker, symbols []string) *Engine {
	return New(Config{
		Symbols:       symbols,
		CycleInterval: 10 * time.Millisecond,
	}, Deps{
		Broker: broker,
		Scorer: signal.NewScorer(signal.ScorerConfig{MinConfluences: 4, MinSignalStrength: 6.0}),
		Chain:  enhancers.NewChain(),
		Controller: admission.NewController(admission.Config{
			DailyProfitTarget: 140,
			MaxDailyDrawdown:  70,
			MaxConcurrent:     7,
			MaxTradesPerDay:   14,
			MaxPerPairPerDay:  2,
			SessionPairCap:    1,
			StopOnPairSuccess: true,
		}, risk.DefaultTradeWindows()),
		Calculator: risk.NewCalculator(risk.Config{
			UseFixedPips:        true,
			FixedSLPips:         15,
			FixedTPPips:         10,
			BreakevenTriggerATR: 0.5,
			TrailingTriggerATR:  0.8,
			TrailingDistanceATR: 0.5,
			FixedRiskAmount:     3.0,
			PipValuePerLot:      1.0,
			BaseLotSize:         0.03,
			SessionHours:        risk.DefaultSessionHours(),
			SessionMultipliers:  risk.DefaultSessionMultipliers(),
		}),
		Notifier: notification.NewManager(),
		Bus:      events.NewEventBus(),
		Metrics:  testMetrics,
		Positions: positions.Config{
			TradeFollowing:  false,
			TPClosePercents: [3]float64{0.7, 0.2, 0.1},
		},
	})
}

var tradingTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestCycleOpensContrarianTrade(t *testing.T) {
	// A steadily rising tape leaves every timeframe overbought: the scorer
	// says SELL, so the engine must buy
	broker := newScriptedBroker(0.0001)
	e := testEngine(broker, []string{"EURUSD"})

	e.cycle(context.Background(), tradingTime)

	trades := e.ActiveTrades()
	if len(trades) != 1 {
		t.Fatalf("expected 1 open trade, got %d", len(trades))
	}

	trade := trades[0]
	if trade.Direction != signal.Buy {
		t.Errorf("executed direction = %s, want BUY", trade.Direction)
	}
	if trade.OriginalDirection != signal.Sell {
		t.Errorf("original direction = %s, want SELL", trade.OriginalDirection)
	}
	// A BUY fills at the ask
	if trade.Entry != 1.1002 {
		t.Errorf("entry = %v, want ask 1.1002", trade.Entry)
	}
	// $3 over 15 pips at $1/pip/lot
	if trade.LotSize != 0.2 {
		t.Errorf("lot size = %v, want 0.2", trade.LotSize)
	}
	if trade.CurrentSL != 1.09870 {
		t.Errorf("stop = %v, want 1.09870", trade.CurrentSL)
	}

	orders := broker.placed()
	if len(orders) != 1 || orders[0].Side != "BUY" {
		t.Fatalf("orders = %+v", orders)
	}
	// The broker-side TP is the final target; TP1/TP2 partials are managed
	// by the monitor
	if orders[0].TP != trade.Levels.TP3 {
		t.Errorf("broker TP = %v, want TP3 %v", orders[0].TP, trade.Levels.TP3)
	}

	if got := e.Daily().TradeCount; got != 1 {
		t.Errorf("daily trade count = %d, want 1", got)
	}

	// Next cycle: the symbol already has a position, nothing new opens
	e.cycle(context.Background(), tradingTime.Add(30*time.Second))
	if got := len(broker.placed()); got != 1 {
		t.Errorf("order count after second cycle = %d, want 1", got)
	}
}

func TestCycleSellsIntoOversoldTape(t *testing.T) {
	// Falling tape, oversold everywhere: scorer says BUY, engine sells at
	// the bid
	broker := newScriptedBroker(-0.0001)
	e := testEngine(broker, []string{"GBPUSD"})

	e.cycle(context.Background(), tradingTime)

	trades := e.ActiveTrades()
	if len(trades) != 1 {
		t.Fatalf("expected 1 open trade, got %d", len(trades))
	}
	if trades[0].Direction != signal.Sell || trades[0].OriginalDirection != signal.Buy {
		t.Errorf("directions = %s/%s, want SELL/BUY", trades[0].Direction, trades[0].OriginalDirection)
	}
	if trades[0].Entry != 1.1000 {
		t.Errorf("entry = %v, want bid 1.1000", trades[0].Entry)
	}
}

func TestCycleRejectedOrder(t *testing.T) {
	broker := newScriptedBroker(0.0001)
	broker.reject = true
	e := testEngine(broker, []string{"EURUSD"})

	e.cycle(context.Background(), tradingTime)

	if got := len(e.ActiveTrades()); got != 0 {
		t.Errorf("open trades = %d, want 0 after rejection", got)
	}
	if got := e.Daily().TradeCount; got != 0 {
		t.Errorf("daily trade count = %d, want 0", got)
	}
}

func TestCycleStopOutFreesSymbol(t *testing.T) {
	broker := newScriptedBroker(0.0001)
	e := testEngine(broker, []string{"EURUSD"})

	e.cycle(context.Background(), tradingTime)
	if len(e.ActiveTrades()) != 1 {
		t.Fatal("setup: trade not opened")
	}

	// Quote collapses through the stop before the next cycle
	broker.setQuote(1.0980, 1.0982)
	e.cycle(context.Background(), tradingTime.Add(30*time.Second))

	if got := len(e.ActiveTrades()); got != 0 {
		t.Errorf("open trades = %d, want 0 after stop-out", got)
	}
	if pnl := e.Daily().DailyPnL; pnl >= 0 {
		t.Errorf("daily PnL = %v, want a realized loss", pnl)
	}
	// Session pair cap keeps the symbol out for the rest of the session
	if got := e.Daily().TradeCount; got != 1 {
		t.Errorf("daily trade count = %d, want 1", got)
	}
}

func TestCycleOutsideTradingHours(t *testing.T) {
	// Overbought tape at 22:00 UTC: outside both admission windows, nothing
	// opens no matter how strong the signal is
	broker := newScriptedBroker(0.0001)
	e := testEngine(broker, []string{"EURUSD"})

	quiet := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	e.cycle(context.Background(), quiet)

	if got := len(broker.placed()); got != 0 {
		t.Errorf("orders placed outside trading hours = %d, want 0", got)
	}
	if got := e.Daily().TradeCount; got != 0 {
		t.Errorf("daily trade count = %d, want 0", got)
	}

	// The same tape trades as soon as the London window opens
	e.cycle(context.Background(), time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC))
	if got := len(broker.placed()); got != 1 {
		t.Errorf("orders after london open = %d, want 1", got)
	}
}

func TestStatusDuringActiveMonitoring(t *testing.T) {
	broker := newScriptedBroker(0.0001)
	e := testEngine(broker, []string{"EURUSD"})

	e.cycle(context.Background(), tradingTime)
	if len(e.ActiveTrades()) != 1 {
		t.Fatal("setup: trade not opened")
	}

	// Hammer the read-side snapshots while cycles mutate the live trade
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			for _, tr := range e.Status().OpenTrades {
				if tr.RemainingLots < 0 || tr.RemainingLots > tr.LotSize {
					t.Errorf("snapshot observed inconsistent lots: %v of %v", tr.RemainingLots, tr.LotSize)
					return
				}
			}
			_ = e.ActiveTrades()
		}
	}()

	// Price walks up through the breakeven, trailing, and TP levels
	for i := 0; i < 20; i++ {
		bid := 1.1000 + 0.0001*float64(i)
		broker.setQuote(bid, bid+0.0002)
		e.cycle(context.Background(), tradingTime.Add(time.Duration(i+1)*30*time.Second))
	}

	close(stop)
	wg.Wait()
}

func TestCycleNoDataNoTrades(t *testing.T) {
	broker := newScriptedBroker(0.0001)
	broker.noData = true
	e := testEngine(broker, []string{"EURUSD", "GBPUSD"})

	e.cycle(context.Background(), tradingTime)

	if got := len(e.ActiveTrades()); got != 0 {
		t.Errorf("open trades = %d, want 0 without market data", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	broker := newScriptedBroker(0.0001)
	broker.noData = true
	e := testEngine(broker, []string{"EURUSD"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	if e.Status().Running {
		t.Error("engine still reports running after shutdown")
	}
}

func TestStatusSnapshot(t *testing.T) {
	broker := newScriptedBroker(0.0001)
	e := testEngine(broker, []string{"EURUSD"})

	e.cycle(context.Background(), tradingTime)

	snap := e.Status()
	if snap.CycleCount != 1 {
		t.Errorf("cycle count = %d, want 1", snap.CycleCount)
	}
	if len(snap.OpenTrades) != 1 {
		t.Errorf("open trades = %d, want 1", len(snap.OpenTrades))
	}
	if snap.Daily.TradeCount != 1 {
		t.Errorf("daily trade count = %d, want 1", snap.Daily.TradeCount)
	}

	open := e.OpenSymbols()
	if len(open) != 1 || open[0] != "EURUSD" {
		t.Errorf("open symbols = %v", open)
	}
}
