package signal

import (
	"reflect"
	"testing"

	"contrarian-trading-bot/internal/market"
)

// neutral returns an analysis that fires no scoring rule
func neutral() TimeframeAnalysis {
	return TimeframeAnalysis{
		Price:      1.1000,
		RSI:        50,
		EMAFast:    1.1000,
		EMASlow:    1.1000,
		MACD:       0,
		MACDSignal: 0,
		BollUpper:  1.1100,
		BollLower:  1.0900,
		ATR:        0.0008,
		Support:    1.0500,
		Resistance: 1.1500,
	}
}

func neutralAnalyses() map[market.Timeframe]TimeframeAnalysis {
	return map[market.Timeframe]TimeframeAnalysis{
		market.M5:  neutral(),
		market.M15: neutral(),
		market.H1:  neutral(),
		market.H4:  neutral(),
	}
}

func defaultScorer() *Scorer {
	return NewScorer(ScorerConfig{MinConfluences: 4, MinSignalStrength: 6.0})
}

func TestScoreOverboughtAcrossTimeframes(t *testing.T) {
	// Overbought everywhere: M5 RSI 82, M15 72, H1 68, plus trend, Bollinger
	// breach, and structure all pointing the same way
	analyses := neutralAnalyses()

	m5 := neutral()
	m5.RSI = 82
	m5.MACD = 0.0002
	m5.MACDSignal = 0.0001
	m5.Price = 1.1009
	analyses[market.M5] = m5

	m15 := neutral()
	m15.RSI = 72
	m15.Price = 1.1010
	m15.EMAFast = 1.1005
	m15.EMASlow = 1.1000
	analyses[market.M15] = m15

	h1 := neutral()
	h1.RSI = 68
	h1.Price = 1.1010
	h1.EMAFast = 1.1000
	h1.BollUpper = 1.1000
	h1.Resistance = 1.1010
	analyses[market.H1] = h1

	h4 := neutral()
	h4.RSI = 65
	analyses[market.H4] = h4

	sig := defaultScorer().Score("EURUSD", analyses)
	if sig == nil {
		t.Fatal("expected a signal, got nil")
	}
	if sig.Direction != Sell {
		t.Errorf("expected SELL, got %s", sig.Direction)
	}
	if sig.Strength < 8.0 {
		t.Errorf("expected strength >= 8.0, got %v", sig.Strength)
	}
	if len(sig.Confluences) != 10 {
		t.Errorf("expected all 10 bearish confluences, got %d: %v", len(sig.Confluences), sig.Confluences)
	}

	// Tags in rule order; dashboards and journaled rows key off these strings
	want := []string{
		"M5 RSI Extreme Overbought (75+)",
		"M5 MACD Strong Bullish",
		"M15 RSI Overbought (70+)",
		"M15 Strong Uptrend",
		"H1 RSI High",
		"H1 Price Above Bollinger Upper",
		"H4 RSI Overbought Bias",
		"Multi-TF RSI Overbought Alignment",
		"Near H1 Resistance Level",
		"Momentum Up + RSI Overbought",
	}
	if !reflect.DeepEqual(sig.Confluences, want) {
		t.Errorf("confluence tags = %v, want %v", sig.Confluences, want)
	}
}

func TestScoreOversoldProducesBuy(t *testing.T) {
	analyses := neutralAnalyses()

	m5 := neutral()
	m5.RSI = 18
	analyses[market.M5] = m5

	m15 := neutral()
	m15.RSI = 28
	analyses[market.M15] = m15

	h1 := neutral()
	h1.RSI = 33
	analyses[market.H1] = h1

	h4 := neutral()
	h4.RSI = 38
	analyses[market.H4] = h4

	sig := defaultScorer().Score("GBPUSD", analyses)
	if sig == nil {
		t.Fatal("expected a signal, got nil")
	}
	if sig.Direction != Buy {
		t.Errorf("expected BUY, got %s", sig.Direction)
	}
	if sig.Strength < 6.0 {
		t.Errorf("expected strength above the floor, got %v", sig.Strength)
	}
}

func TestScoreNeutralMarketProducesNothing(t *testing.T) {
	if sig := defaultScorer().Score("EURUSD", neutralAnalyses()); sig != nil {
		t.Errorf("expected nil for a neutral market, got %+v", sig)
	}
}

func TestScoreTieProducesNothing(t *testing.T) {
	analyses := neutralAnalyses()

	// Equal-weight conflict: M5 extreme overbought (bear 3 + MACD bear 1)
	// against H1 Bollinger breach low (bull 3) + H4 oversold bias (bull 1)
	m5 := neutral()
	m5.RSI = 80.5
	m5.MACD = 0.0002
	m5.MACDSignal = 0.0001
	analyses[market.M5] = m5

	h1 := neutral()
	h1.Price = 1.0890
	h1.BollLower = 1.0900
	analyses[market.H1] = h1

	h4 := neutral()
	h4.RSI = 38
	analyses[market.H4] = h4

	if sig := defaultScorer().Score("EURUSD", analyses); sig != nil {
		t.Errorf("expected nil on a tied tally, got %+v", sig)
	}
}

func TestScoreBelowConfluenceFloor(t *testing.T) {
	analyses := neutralAnalyses()

	// A lone extreme M5 RSI scores 3, below the floor of 4
	m5 := neutral()
	m5.RSI = 82
	analyses[market.M5] = m5

	if sig := defaultScorer().Score("EURUSD", analyses); sig != nil {
		t.Errorf("expected nil below the confluence floor, got %+v", sig)
	}
}

func TestScoreLowVolatilityRejected(t *testing.T) {
	analyses := neutralAnalyses()

	// Tally passes the floor but the dead-market ATR penalty sinks strength
	m5 := neutral()
	m5.RSI = 76
	m5.ATR = 0.00004
	analyses[market.M5] = m5

	h4 := neutral()
	h4.RSI = 65
	analyses[market.H4] = h4

	if sig := defaultScorer().Score("EURUSD", analyses); sig != nil {
		t.Errorf("expected nil after volatility penalty, got strength %v", sig.Strength)
	}
}

func TestScoreDeterministic(t *testing.T) {
	analyses := neutralAnalyses()
	m5 := neutral()
	m5.RSI = 18
	analyses[market.M5] = m5
	m15 := neutral()
	m15.RSI = 28
	analyses[market.M15] = m15
	h1 := neutral()
	h1.RSI = 33
	analyses[market.H1] = h1
	h4 := neutral()
	h4.RSI = 38
	analyses[market.H4] = h4

	scorer := defaultScorer()
	a := scorer.Score("EURUSD", analyses)
	b := scorer.Score("EURUSD", analyses)
	if a == nil || b == nil {
		t.Fatal("expected signals from both runs")
	}
	if a.Direction != b.Direction || a.Strength != b.Strength {
		t.Errorf("scoring not deterministic: %s/%v vs %s/%v", a.Direction, a.Strength, b.Direction, b.Strength)
	}
	if !reflect.DeepEqual(a.Confluences, b.Confluences) {
		t.Errorf("confluence order not stable: %v vs %v", a.Confluences, b.Confluences)
	}
}

func TestScoreMissingTimeframe(t *testing.T) {
	analyses := neutralAnalyses()
	delete(analyses, market.H4)

	if sig := defaultScorer().Score("EURUSD", analyses); sig != nil {
		t.Errorf("expected nil with a missing timeframe, got %+v", sig)
	}
}

func TestDirectionReverse(t *testing.T) {
	cases := []struct {
		in   Direction
		want Direction
	}{
		{Buy, Sell},
		{Sell, Buy},
		{Direction("HOLD"), Direction("HOLD")},
	}
	for _, tc := range cases {
		if got := tc.in.Reverse(); got != tc.want {
			t.Errorf("Reverse(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
