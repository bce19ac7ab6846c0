package signal

import (
	"fmt"

	"contrarian-trading-bot/internal/indicators"
	"contrarian-trading-bot/internal/market"
)

// Bar counts per timeframe: one trading day of M5, one day of M15, ~4 days of
// H1, ~8 days of H4
var barCounts = map[market.Timeframe]int{
	market.M5:  288,
	market.M15: 96,
	market.H1:  100,
	market.H4:  48,
}

// minBars is the fewest bars a timeframe may have before analysis is skipped
const minBars = 30

// Analyzer builds per-timeframe indicator snapshots from broker rate history
type Analyzer struct {
	broker market.Broker
}

// NewAnalyzer creates an analyzer over the given broker
func NewAnalyzer(broker market.Broker) *Analyzer {
	return &Analyzer{broker: broker}
}

// Analyze fetches history for every timeframe and computes the indicator
// snapshot for each. Missing or short data on any timeframe aborts the whole
// analysis: a confluence score over partial timeframes would be meaningless.
func (a *Analyzer) Analyze(symbol string) (map[market.Timeframe]TimeframeAnalysis, error) {
	analyses := make(map[market.Timeframe]TimeframeAnalysis, len(barCounts))

	for tf, count := range barCounts {
		rates, err := a.broker.GetRates(symbol, tf, count)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", symbol, tf, err)
		}
		if len(rates) < minBars {
			return nil, fmt.Errorf("%s %s: %w: %d bars", symbol, tf, market.ErrNoData, len(rates))
		}

		analyses[tf] = analyzeRates(rates)
	}

	return analyses, nil
}

// analyzeRates computes the full indicator snapshot for one timeframe
func analyzeRates(rates []market.Rate) TimeframeAnalysis {
	closes := market.Closes(rates)
	highs := market.Highs(rates)
	lows := market.Lows(rates)

	price := closes[len(closes)-1]

	ta := TimeframeAnalysis{
		Price: price,
		RSI:   indicators.RSI(closes, 14),
		ATR:   indicators.ATR(highs, lows, closes, 14),
	}

	// Price fallbacks keep trend rules neutral on short series
	ta.EMAFast = indicators.LastEMA(closes, 20)
	if ta.EMAFast == 0 {
		ta.EMAFast = price
	}
	ta.EMASlow = indicators.LastEMA(closes, 50)
	if ta.EMASlow == 0 {
		ta.EMASlow = price
	}

	macd, macdSignal := indicators.MACD(closes, 12, 26, 9)
	if len(macd) > 0 {
		ta.MACD = macd[len(macd)-1]
	}
	if len(macdSignal) > 0 {
		ta.MACDSignal = macdSignal[len(macdSignal)-1]
	}

	upper, _, lower := indicators.BollingerBands(closes, 20, 2.0)
	if len(upper) > 0 {
		ta.BollUpper = upper[len(upper)-1]
		ta.BollLower = lower[len(lower)-1]
	} else {
		ta.BollUpper = price
		ta.BollLower = price
	}

	ta.Support, ta.Resistance = indicators.SupportResistance(highs, lows, closes, 5)

	return ta
}
