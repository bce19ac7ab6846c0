package enhancers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"contrarian-trading-bot/internal/cache"
	"contrarian-trading-bot/internal/market"
	"contrarian-trading-bot/internal/risk"
	"contrarian-trading-bot/internal/signal"
)

// ratesBroker serves canned rate history per symbol
type ratesBroker struct {
	rates map[string][]market.Rate
}

func (b *ratesBroker) GetTick(symbol string) (*market.Tick, error) {
	return nil, market.ErrNoData
}

func (b *ratesBroker) GetRates(symbol string, tf market.Timeframe, count int) ([]market.Rate, error) {
	rates, ok := b.rates[symbol]
	if !ok {
		return nil, market.ErrNoData
	}
	return rates, nil
}

func (b *ratesBroker) PlaceOrder(symbol, side string, lotSize, slPrice, tpPrice float64) (*market.OrderResult, error) {
	return nil, market.ErrOrderRejected
}

func (b *ratesBroker) ClosePosition(ticket int64) error          { return nil }
func (b *ratesBroker) PartialClose(ticket int64, l float64) error { return nil }

func flatRates(n int, volume int64) []market.Rate {
	rates := make([]market.Rate, n)
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := range rates {
		rates[i] = market.Rate{
			Time:       base.Add(time.Duration(i) * time.Hour),
			Open:       1.1000,
			High:       1.1000,
			Low:        1.1000,
			Close:      1.1000,
			TickVolume: volume,
		}
	}
	return rates
}

func testSignal(symbol string, strength float64) *signal.EnhancedSignal {
	analyses := map[market.Timeframe]signal.TimeframeAnalysis{
		market.M5:  {Price: 1.1000, RSI: 82, ATR: 0.0008},
		market.M15: {Price: 1.1000, RSI: 72},
		market.H1:  {Price: 1.1000, RSI: 68},
		market.H4:  {Price: 1.1000, RSI: 65},
	}
	sig := signal.NewSignal(symbol, signal.Sell, strength,
		[]string{"a", "b", "c", "d"}, analyses)
	return signal.Enhanced(sig)
}

// ==================== volume ====================

func TestVolumeEnhancer(t *testing.T) {
	t.Run("flat volume gives a moderate confirmation", func(t *testing.T) {
		broker := &ratesBroker{rates: map[string][]market.Rate{
			"EURUSD": flatRates(50, 100),
		}}
		e := NewVolumeEnhancer(broker, DefaultVolumeConfig())
		sig := testSignal("EURUSD", 7.0)

		if err := e.Enhance(context.Background(), sig); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sig.VolumeScore != 5.0 {
			t.Errorf("volume score = %v, want 5.0", sig.VolumeScore)
		}
		if sig.Strength != 7.5 {
			t.Errorf("strength = %v, want 7.5", sig.Strength)
		}
		if len(sig.Enhancements) != 1 || sig.Enhancements[0] != "Moderate Volume Confirmation" {
			t.Errorf("enhancements = %v", sig.Enhancements)
		}
	})

	t.Run("a closing spike on every timeframe upgrades the tier", func(t *testing.T) {
		rates := flatRates(50, 100)
		rates[49].TickVolume = 300
		broker := &ratesBroker{rates: map[string][]market.Rate{
			"EURUSD": rates,
		}}
		e := NewVolumeEnhancer(broker, DefaultVolumeConfig())
		sig := testSignal("EURUSD", 7.0)

		if err := e.Enhance(context.Background(), sig); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// Per-timeframe spike score 7.0, plus the multi-timeframe spike bonus
		if sig.VolumeScore != 8.0 {
			t.Errorf("volume score = %v, want 8.0", sig.VolumeScore)
		}
		if sig.Strength != 8.5 {
			t.Errorf("strength = %v, want 8.5", sig.Strength)
		}
	})

	t.Run("missing data is an error, not a veto", func(t *testing.T) {
		broker := &ratesBroker{rates: map[string][]market.Rate{}}
		e := NewVolumeEnhancer(broker, DefaultVolumeConfig())
		sig := testSignal("EURUSD", 7.0)

		err := e.Enhance(context.Background(), sig)
		if err == nil {
			t.Fatal("expected an error with no volume data")
		}
		if errors.Is(err, ErrVetoed) {
			t.Errorf("data failure must not veto: %v", err)
		}
		if sig.Strength != 7.0 {
			t.Errorf("strength changed on failure: %v", sig.Strength)
		}
	})
}

// ==================== correlation ====================

func seedMatrix(values map[string]map[string]float64) *cache.CorrelationCache {
	cc := cache.NewCorrelationCache(cache.RedisConfig{Enabled: false}, cache.DefaultMatrixTTL)
	_ = cc.SetMatrix(context.Background(), &cache.Matrix{
		Values:    values,
		UpdatedAt: time.Now().UTC(),
	})
	return cc
}

func TestCorrelationEnhancer(t *testing.T) {
	symbols := []string{"EURUSD", "GBPUSD"}

	t.Run("no open positions passes", func(t *testing.T) {
		e := NewCorrelationEnhancer(&ratesBroker{}, seedMatrix(nil),
			DefaultCorrelationConfig(symbols), func() []string { return nil })
		sig := testSignal("EURUSD", 7.0)

		if err := e.Enhance(context.Background(), sig); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sig.Enhancements) != 1 || sig.Enhancements[0] != "Correlation Clear" {
			t.Errorf("enhancements = %v", sig.Enhancements)
		}
	})

	t.Run("high correlation with an open position vetoes", func(t *testing.T) {
		cc := seedMatrix(map[string]map[string]float64{
			"EURUSD": {"EURUSD": 1.0, "GBPUSD": 0.85},
			"GBPUSD": {"EURUSD": 0.85, "GBPUSD": 1.0},
		})
		e := NewCorrelationEnhancer(&ratesBroker{}, cc,
			DefaultCorrelationConfig(symbols), func() []string { return []string{"GBPUSD"} })

		err := e.Enhance(context.Background(), testSignal("EURUSD", 7.0))
		if !errors.Is(err, ErrVetoed) {
			t.Errorf("expected a veto, got %v", err)
		}
	})

	t.Run("strong negative correlation also vetoes", func(t *testing.T) {
		cc := seedMatrix(map[string]map[string]float64{
			"EURUSD": {"EURUSD": 1.0, "GBPUSD": -0.8},
			"GBPUSD": {"EURUSD": -0.8, "GBPUSD": 1.0},
		})
		e := NewCorrelationEnhancer(&ratesBroker{}, cc,
			DefaultCorrelationConfig(symbols), func() []string { return []string{"GBPUSD"} })

		err := e.Enhance(context.Background(), testSignal("EURUSD", 7.0))
		if !errors.Is(err, ErrVetoed) {
			t.Errorf("expected a veto, got %v", err)
		}
	})

	t.Run("weak correlation passes", func(t *testing.T) {
		cc := seedMatrix(map[string]map[string]float64{
			"EURUSD": {"EURUSD": 1.0, "GBPUSD": 0.4},
			"GBPUSD": {"EURUSD": 0.4, "GBPUSD": 1.0},
		})
		e := NewCorrelationEnhancer(&ratesBroker{}, cc,
			DefaultCorrelationConfig(symbols), func() []string { return []string{"GBPUSD"} })

		if err := e.Enhance(context.Background(), testSignal("EURUSD", 7.0)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("same symbol open is ignored", func(t *testing.T) {
		cc := seedMatrix(map[string]map[string]float64{
			"EURUSD": {"EURUSD": 1.0},
		})
		e := NewCorrelationEnhancer(&ratesBroker{}, cc,
			DefaultCorrelationConfig(symbols), func() []string { return []string{"EURUSD"} })

		if err := e.Enhance(context.Background(), testSignal("EURUSD", 7.0)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("builds the matrix from rate history when stale", func(t *testing.T) {
		// Identical close series correlate perfectly
		n := 200
		rates := make([]market.Rate, n)
		base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		for i := range rates {
			price := 1.1000 + 0.0001*float64(i%7) + 0.00001*float64(i)
			rates[i] = market.Rate{
				Time: base.Add(time.Duration(i) * time.Hour),
				Open: price, High: price, Low: price, Close: price,
				TickVolume: 100,
			}
		}
		broker := &ratesBroker{rates: map[string][]market.Rate{
			"EURUSD": rates,
			"GBPUSD": rates,
		}}

		cc := cache.NewCorrelationCache(cache.RedisConfig{Enabled: false}, cache.DefaultMatrixTTL)
		e := NewCorrelationEnhancer(broker, cc,
			DefaultCorrelationConfig(symbols), func() []string { return []string{"GBPUSD"} })

		err := e.Enhance(context.Background(), testSignal("EURUSD", 7.0))
		if !errors.Is(err, ErrVetoed) {
			t.Errorf("expected a veto from perfectly correlated history, got %v", err)
		}

		// The built matrix is now cached for the next cycle
		matrix, fresh := cc.GetMatrix(context.Background())
		if matrix == nil || !fresh {
			t.Fatal("matrix not cached after build")
		}
		if r := matrix.Values["EURUSD"]["GBPUSD"]; r < 0.99 {
			t.Errorf("identical series correlation = %v, want ~1.0", r)
		}
	})
}

// ==================== ml ====================

func TestMLEnhancer(t *testing.T) {
	t.Run("blends strength with the heuristic ensemble", func(t *testing.T) {
		e := NewMLEnhancer(MLConfig{
			MinATRThreshold: 0.0008,
			SessionHours:    risk.DefaultSessionHours(),
		})
		sig := testSignal("EURUSD", 7.0)

		if err := e.Enhance(context.Background(), sig); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// Stretched RSI, four confluences, ATR at threshold: the ensemble
		// lands at 7.3 whether or not a major session is active
		if sig.Strength != 7.3 {
			t.Errorf("blended strength = %v, want 7.3", sig.Strength)
		}
		if sig.MLConfidence < 80 || sig.MLConfidence > 100 {
			t.Errorf("confidence = %v, want within [80, 100]", sig.MLConfidence)
		}
		if len(sig.Enhancements) != 1 {
			t.Errorf("enhancements = %v", sig.Enhancements)
		}
	})

	t.Run("missing m5 analysis is an error", func(t *testing.T) {
		e := NewMLEnhancer(MLConfig{SessionHours: risk.DefaultSessionHours()})
		sig := signal.Enhanced(signal.NewSignal("EURUSD", signal.Sell, 7.0, nil, nil))

		if err := e.Enhance(context.Background(), sig); err == nil {
			t.Error("expected an error without the M5 analysis")
		}
	})
}

func TestMLOutcomeHistory(t *testing.T) {
	historyFile := filepath.Join(t.TempDir(), "history.json")
	cfg := MLConfig{HistoryFile: historyFile, SessionHours: risk.DefaultSessionHours()}

	e := NewMLEnhancer(cfg)
	if got := e.WinRate("EURUSD"); got != 0.5 {
		t.Errorf("empty history WinRate = %v, want 0.5", got)
	}

	e.RecordOutcome("EURUSD", true)
	e.RecordOutcome("EURUSD", true)
	e.RecordOutcome("EURUSD", false)
	want := 2.0 / 3.0
	if got := e.WinRate("EURUSD"); got != want {
		t.Errorf("WinRate = %v, want %v", got, want)
	}

	// A fresh enhancer reloads the persisted outcomes
	reloaded := NewMLEnhancer(cfg)
	if got := reloaded.WinRate("EURUSD"); got != want {
		t.Errorf("reloaded WinRate = %v, want %v", got, want)
	}
}

// ==================== chain ====================

type scriptedEnhancer struct {
	name   string
	err    error
	called *int
}

func (s *scriptedEnhancer) Name() string { return s.name }

func (s *scriptedEnhancer) Enhance(_ context.Context, sig *signal.EnhancedSignal) error {
	*s.called++
	return s.err
}

func TestChain(t *testing.T) {
	t.Run("a veto stops the chain", func(t *testing.T) {
		var first, second int
		chain := NewChain(
			&scriptedEnhancer{name: "vetoer", err: fmt.Errorf("%w: conflict", ErrVetoed), called: &first},
			&scriptedEnhancer{name: "after", called: &second},
		)

		err := chain.Run(context.Background(), testSignal("EURUSD", 7.0))
		if !errors.Is(err, ErrVetoed) {
			t.Errorf("expected a veto, got %v", err)
		}
		if first != 1 || second != 0 {
			t.Errorf("calls = %d/%d, want 1/0", first, second)
		}
	})

	t.Run("ordinary failures are skipped", func(t *testing.T) {
		var first, second int
		chain := NewChain(
			&scriptedEnhancer{name: "flaky", err: errors.New("feed down"), called: &first},
			&scriptedEnhancer{name: "after", called: &second},
		)

		if err := chain.Run(context.Background(), testSignal("EURUSD", 7.0)); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if first != 1 || second != 1 {
			t.Errorf("calls = %d/%d, want 1/1", first, second)
		}
	})
}
