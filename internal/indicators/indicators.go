package indicators

import "math"

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// SMA calculates the simple moving average over the last period values.
func SMA(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}

	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}

	return sum / float64(period)
}

// EMA calculates the exponential moving average series. The first element is
// the SMA seed over the first period values; the series is therefore
// len(prices)-period+1 long. Returns nil when the input is too short.
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}

	seed := 0.0
	for _, p := range prices[:period] {
		seed += p
	}
	seed /= float64(period)

	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(prices)-period+1)
	out = append(out, seed)

	ema := seed
	for i := period; i < len(prices); i++ {
		ema = prices[i]*k + ema*(1-k)
		out = append(out, ema)
	}

	return out
}

// LastEMA returns the most recent EMA value, or 0 for short input.
func LastEMA(prices []float64, period int) float64 {
	series := EMA(prices, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// RSI calculates the Wilder-smoothed Relative Strength Index over the whole
// series and returns the latest value. The seed averages use the first
// period deltas; later deltas are smoothed with
// avg = (avg*(period-1) + new) / period. Short input returns neutral 50.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50.0
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	rsi := rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		rsi = rsiValue(avgGain, avgLoss)
	}

	return rsi
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// MACD (Moving Average Convergence Divergence)
// ============================================================================

// MACD calculates the MACD line (fast EMA minus slow EMA, aligned by
// truncating the longer head) and its signal line (EMA of the MACD line).
// Both series are nil when the input cannot cover the slow period.
func MACD(prices []float64, fastPeriod, slowPeriod, signalPeriod int) (macd, signal []float64) {
	fast := EMA(prices, fastPeriod)
	slow := EMA(prices, slowPeriod)
	if fast == nil || slow == nil || len(fast) < len(slow) {
		return nil, nil
	}

	offset := len(fast) - len(slow)
	macd = make([]float64, len(slow))
	for i := range slow {
		macd[i] = fast[i+offset] - slow[i]
	}

	signal = EMA(macd, signalPeriod)
	return macd, signal
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// BollingerBands calculates rolling mean +/- mult standard deviations over a
// sliding window. Each returned series has len(prices)-period+1 entries.
func BollingerBands(prices []float64, period int, mult float64) (upper, middle, lower []float64) {
	if period <= 0 || len(prices) < period {
		return nil, nil, nil
	}

	n := len(prices) - period + 1
	upper = make([]float64, n)
	middle = make([]float64, n)
	lower = make([]float64, n)

	for i := 0; i < n; i++ {
		window := prices[i : i+period]

		mean := 0.0
		for _, p := range window {
			mean += p
		}
		mean /= float64(period)

		variance := 0.0
		for _, p := range window {
			diff := p - mean
			variance += diff * diff
		}
		std := math.Sqrt(variance / float64(period))

		middle[i] = mean
		upper[i] = mean + mult*std
		lower[i] = mean - mult*std
	}

	return upper, middle, lower
}

// ============================================================================
// ATR (Average True Range)
// ============================================================================

// ATR calculates the Wilder-smoothed Average True Range and returns the
// latest value. True range is max(high-low, |high-prevClose|,
// |low-prevClose|); the first ATR is a simple mean of the first period true
// ranges. Returns 0 when fewer than period+1 bars are supplied.
func ATR(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if period <= 0 || n < period+1 || len(highs) != n || len(lows) != n {
		return 0
	}

	trueRanges := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		tr := math.Max(
			highs[i]-lows[i],
			math.Max(
				math.Abs(highs[i]-closes[i-1]),
				math.Abs(lows[i]-closes[i-1]),
			),
		)
		trueRanges = append(trueRanges, tr)
	}

	atr := 0.0
	for _, tr := range trueRanges[:period] {
		atr += tr
	}
	atr /= float64(period)

	for i := period; i < len(trueRanges); i++ {
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
	}

	return atr
}

// ============================================================================
// SUPPORT AND RESISTANCE
// ============================================================================

// SupportResistance scans for local extrema: a bar is a local low/high when
// its low/high is the minimum/maximum of all bars within window positions on
// each side. Support is the nearest local low below the current close
// (fallback close*0.99); resistance is the nearest local high above it
// (fallback close*1.01).
func SupportResistance(highs, lows, closes []float64, window int) (support, resistance float64) {
	n := len(closes)
	if n == 0 {
		return 0, 0
	}

	price := closes[n-1]
	support = price * 0.99
	resistance = price * 1.01

	if window <= 0 || n < 2*window+1 || len(highs) != n || len(lows) != n {
		return support, resistance
	}

	var localLows, localHighs []float64
	for i := window; i < n-window; i++ {
		isLow, isHigh := true, true
		for j := i - window; j <= i+window; j++ {
			if lows[j] < lows[i] {
				isLow = false
			}
			if highs[j] > highs[i] {
				isHigh = false
			}
		}
		if isLow {
			localLows = append(localLows, lows[i])
		}
		if isHigh {
			localHighs = append(localHighs, highs[i])
		}
	}

	// Nearest below = highest of the candidates under price, and vice versa.
	for _, low := range localLows {
		if low < price && low > support {
			support = low
		}
	}
	found := false
	for _, high := range localHighs {
		if high > price && (!found || high < resistance) {
			resistance = high
			found = true
		}
	}

	return support, resistance
}
