package market

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// MockBroker provides simulated quotes and fills for dry-run mode and
// development without a live terminal connection.
type MockBroker struct {
	prices     map[string]float64
	positions  map[int64]*mockPosition
	nextTicket int64
	lastUpdate time.Time
	rng        *rand.Rand
	mu         sync.Mutex
}

type mockPosition struct {
	symbol string
	side   string
	lots   float64
}

// NewMockBroker creates a mock broker seeded with realistic forex prices
func NewMockBroker() *MockBroker {
	mb := &MockBroker{
		positions:  make(map[int64]*mockPosition),
		nextTicket: 1000,
		lastUpdate: time.Now(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	mb.prices = map[string]float64{
		"EURUSD": 1.0850,
		"GBPUSD": 1.2650,
		"USDJPY": 149.50,
		"USDCHF": 0.8800,
		"AUDUSD": 0.6550,
		"USDCAD": 1.3600,
		"NZDUSD": 0.6100,
	}

	return mb
}

// updatePrices adds small random variations to simulate market movement
func (mb *MockBroker) updatePrices() {
	if time.Since(mb.lastUpdate) < time.Second {
		return
	}

	for symbol, price := range mb.prices {
		// Random walk: -0.05% to +0.05% per second
		change := (mb.rng.Float64() - 0.5) * 0.001
		mb.prices[symbol] = price * (1 + change)
	}
	mb.lastUpdate = time.Now()
}

func (mb *MockBroker) spread(symbol string) float64 {
	if len(symbol) >= 6 && symbol[3:6] == "JPY" {
		return 0.015
	}
	return 0.00012
}

// GetTick returns a simulated bid/ask quote
func (mb *MockBroker) GetTick(symbol string) (*Tick, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.updatePrices()

	price, ok := mb.prices[symbol]
	if !ok {
		return nil, ErrNoData
	}

	half := mb.spread(symbol) / 2
	return &Tick{
		Symbol: symbol,
		Bid:    price - half,
		Ask:    price + half,
		Time:   time.Now(),
	}, nil
}

// GetRates returns simulated OHLC bars generated backwards from the current
// price with mild volatility
func (mb *MockBroker) GetRates(symbol string, tf Timeframe, count int) ([]Rate, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.updatePrices()

	basePrice, ok := mb.prices[symbol]
	if !ok {
		return nil, ErrNoData
	}

	barDuration := tf.Duration()
	rates := make([]Rate, count)
	now := time.Now()

	volatility := 0.002
	currentPrice := basePrice
	for i := count - 1; i >= 0; i-- {
		openTime := now.Add(-time.Duration(count-i) * barDuration)

		open := currentPrice
		change := (mb.rng.Float64() - 0.5) * volatility
		closePrice := open * (1 + change)

		high := math.Max(open, closePrice) * (1 + mb.rng.Float64()*volatility*0.3)
		low := math.Min(open, closePrice) * (1 - mb.rng.Float64()*volatility*0.3)

		rates[i] = Rate{
			Time:       openTime,
			Open:       open,
			High:       high,
			Low:        low,
			Close:      closePrice,
			TickVolume: int64(200 + mb.rng.Intn(1800)),
		}

		currentPrice = closePrice
	}

	return rates, nil
}

// PlaceOrder simulates a market order fill at the current quote
func (mb *MockBroker) PlaceOrder(symbol, side string, lotSize, slPrice, tpPrice float64) (*OrderResult, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.updatePrices()

	price, ok := mb.prices[symbol]
	if !ok {
		return nil, ErrNoData
	}

	half := mb.spread(symbol) / 2
	fill := price + half
	if side == "SELL" {
		fill = price - half
	}

	mb.nextTicket++
	ticket := mb.nextTicket
	mb.positions[ticket] = &mockPosition{symbol: symbol, side: side, lots: lotSize}

	return &OrderResult{
		Ticket:   ticket,
		Symbol:   symbol,
		Side:     side,
		LotSize:  lotSize,
		Price:    fill,
		StopLoss: slPrice,
	}, nil
}

// ClosePosition simulates closing the full position
func (mb *MockBroker) ClosePosition(ticket int64) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if _, ok := mb.positions[ticket]; !ok {
		return ErrUnknownTicket
	}
	delete(mb.positions, ticket)
	return nil
}

// PartialClose simulates closing part of a position
func (mb *MockBroker) PartialClose(ticket int64, lots float64) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	pos, ok := mb.positions[ticket]
	if !ok {
		return ErrUnknownTicket
	}

	pos.lots -= lots
	if pos.lots <= 0 {
		delete(mb.positions, ticket)
	}
	return nil
}

// Compile-time interface check
var _ Broker = (*MockBroker)(nil)
