package indicators

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestSMA(t *testing.T) {
	t.Run("simple average over last period", func(t *testing.T) {
		got := SMA([]float64{1, 2, 3, 4, 5}, 3)
		if !almostEqual(got, 4.0, 1e-9) {
			t.Errorf("expected 4.0, got %v", got)
		}
	})

	t.Run("short input returns zero", func(t *testing.T) {
		if got := SMA([]float64{1, 2}, 3); got != 0 {
			t.Errorf("expected 0 for short input, got %v", got)
		}
	})
}

func TestEMA(t *testing.T) {
	t.Run("first value is the SMA seed", func(t *testing.T) {
		series := EMA([]float64{2, 4, 6, 8}, 3)
		if len(series) != 2 {
			t.Fatalf("expected 2 values, got %d", len(series))
		}
		if !almostEqual(series[0], 4.0, 1e-9) {
			t.Errorf("expected seed 4.0, got %v", series[0])
		}
		// k = 2/(3+1) = 0.5; next = 8*0.5 + 4*0.5 = 6
		if !almostEqual(series[1], 6.0, 1e-9) {
			t.Errorf("expected 6.0, got %v", series[1])
		}
	})

	t.Run("short input returns nil", func(t *testing.T) {
		if series := EMA([]float64{1, 2}, 5); series != nil {
			t.Errorf("expected nil for short input, got %v", series)
		}
	})

	t.Run("constant series stays constant", func(t *testing.T) {
		prices := make([]float64, 50)
		for i := range prices {
			prices[i] = 1.25
		}
		if got := LastEMA(prices, 20); !almostEqual(got, 1.25, 1e-9) {
			t.Errorf("expected 1.25, got %v", got)
		}
	})
}

func TestRSI(t *testing.T) {
	t.Run("all gains saturate at 100", func(t *testing.T) {
		prices := make([]float64, 30)
		for i := range prices {
			prices[i] = 1.0 + float64(i)*0.001
		}
		if got := RSI(prices, 14); !almostEqual(got, 100, 1e-9) {
			t.Errorf("expected 100 for monotonic gains, got %v", got)
		}
	})

	t.Run("all losses approach zero", func(t *testing.T) {
		prices := make([]float64, 30)
		for i := range prices {
			prices[i] = 2.0 - float64(i)*0.001
		}
		got := RSI(prices, 14)
		if got > 1 {
			t.Errorf("expected near-zero RSI for monotonic losses, got %v", got)
		}
	})

	t.Run("short input returns neutral 50", func(t *testing.T) {
		if got := RSI([]float64{1, 2, 3}, 14); got != 50.0 {
			t.Errorf("expected 50 for short input, got %v", got)
		}
	})

	t.Run("balanced moves sit near 50", func(t *testing.T) {
		prices := make([]float64, 40)
		for i := range prices {
			if i%2 == 0 {
				prices[i] = 1.0
			} else {
				prices[i] = 1.001
			}
		}
		got := RSI(prices, 14)
		if got < 40 || got > 60 {
			t.Errorf("expected RSI near 50 for alternating moves, got %v", got)
		}
	})
}

func TestMACD(t *testing.T) {
	t.Run("series align on the slow tail", func(t *testing.T) {
		prices := make([]float64, 60)
		for i := range prices {
			prices[i] = 1.0 + float64(i)*0.01
		}
		macd, signalLine := MACD(prices, 12, 26, 9)
		if macd == nil || signalLine == nil {
			t.Fatal("expected non-nil macd and signal")
		}
		if len(macd) != 60-26+1 {
			t.Errorf("expected macd length %d, got %d", 60-26+1, len(macd))
		}
		// Rising series: fast EMA above slow EMA, MACD positive at the end
		if macd[len(macd)-1] <= 0 {
			t.Errorf("expected positive MACD on a rising series, got %v", macd[len(macd)-1])
		}
	})

	t.Run("short input returns nil", func(t *testing.T) {
		macd, signalLine := MACD([]float64{1, 2, 3}, 12, 26, 9)
		if macd != nil || signalLine != nil {
			t.Error("expected nil series for short input")
		}
	})
}

func TestBollingerBands(t *testing.T) {
	t.Run("constant series collapses the bands", func(t *testing.T) {
		prices := make([]float64, 25)
		for i := range prices {
			prices[i] = 1.1
		}
		upper, middle, lower := BollingerBands(prices, 20, 2.0)
		n := len(upper)
		if n != 6 {
			t.Fatalf("expected 6 windows, got %d", n)
		}
		if !almostEqual(upper[n-1], 1.1, 1e-9) || !almostEqual(middle[n-1], 1.1, 1e-9) || !almostEqual(lower[n-1], 1.1, 1e-9) {
			t.Errorf("expected collapsed bands at 1.1, got %v / %v / %v", upper[n-1], middle[n-1], lower[n-1])
		}
	})

	t.Run("bands bracket the mean symmetrically", func(t *testing.T) {
		prices := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
		upper, middle, lower := BollingerBands(prices, 5, 2.0)
		for i := range middle {
			if !almostEqual(upper[i]-middle[i], middle[i]-lower[i], 1e-9) {
				t.Errorf("asymmetric bands at %d: %v / %v / %v", i, upper[i], middle[i], lower[i])
			}
			if upper[i] < middle[i] || lower[i] > middle[i] {
				t.Errorf("band ordering broken at %d", i)
			}
		}
	})
}

func TestATR(t *testing.T) {
	t.Run("constant range gives that range", func(t *testing.T) {
		n := 20
		highs := make([]float64, n)
		lows := make([]float64, n)
		closes := make([]float64, n)
		for i := 0; i < n; i++ {
			highs[i] = 1.0010
			lows[i] = 1.0000
			closes[i] = 1.0005
		}
		got := ATR(highs, lows, closes, 14)
		if !almostEqual(got, 0.0010, 1e-9) {
			t.Errorf("expected ATR 0.0010, got %v", got)
		}
	})

	t.Run("short input returns zero", func(t *testing.T) {
		if got := ATR([]float64{1}, []float64{1}, []float64{1}, 14); got != 0 {
			t.Errorf("expected 0 for short input, got %v", got)
		}
	})

	t.Run("gap widens true range", func(t *testing.T) {
		// Prev close far below the next bar's low: TR uses |high-prevClose|
		highs := []float64{1.0010, 1.0110}
		lows := []float64{1.0000, 1.0100}
		closes := []float64{1.0005, 1.0105}
		got := ATR(highs, lows, closes, 1)
		if !almostEqual(got, 1.0110-1.0005, 1e-9) {
			t.Errorf("expected gap TR %v, got %v", 1.0110-1.0005, got)
		}
	})
}

func TestSupportResistance(t *testing.T) {
	t.Run("finds the local extrema around price", func(t *testing.T) {
		n := 21
		highs := make([]float64, n)
		lows := make([]float64, n)
		closes := make([]float64, n)
		for i := 0; i < n; i++ {
			// One strict swing low at index 8 and one strict swing high at
			// index 12
			lows[i] = 1.0900 + 0.0010*math.Abs(float64(i-8))
			highs[i] = 1.1000 - 0.0010*math.Abs(float64(i-12))
			closes[i] = 1.0950
		}

		support, resistance := SupportResistance(highs, lows, closes, 5)
		if !almostEqual(support, 1.0900, 1e-9) {
			t.Errorf("expected support 1.0900, got %v", support)
		}
		if !almostEqual(resistance, 1.1000, 1e-9) {
			t.Errorf("expected resistance 1.1000, got %v", resistance)
		}
	})

	t.Run("fallbacks bracket price by one percent", func(t *testing.T) {
		highs := []float64{1.0, 1.0}
		lows := []float64{1.0, 1.0}
		closes := []float64{1.0, 1.0}
		support, resistance := SupportResistance(highs, lows, closes, 5)
		if !almostEqual(support, 0.99, 1e-9) || !almostEqual(resistance, 1.01, 1e-9) {
			t.Errorf("expected fallbacks 0.99/1.01, got %v/%v", support, resistance)
		}
	})

	t.Run("empty input returns zeros", func(t *testing.T) {
		support, resistance := SupportResistance(nil, nil, nil, 5)
		if support != 0 || resistance != 0 {
			t.Errorf("expected zeros for empty input, got %v/%v", support, resistance)
		}
	})
}
