package market

import "time"

// Timeframe identifies a chart timeframe
type Timeframe string

const (
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	H1  Timeframe = "H1"
	H4  Timeframe = "H4"
)

// Duration returns the bar duration for the timeframe
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case M5:
		return 5 * time.Minute
	case M15:
		return 15 * time.Minute
	case H1:
		return time.Hour
	case H4:
		return 4 * time.Hour
	default:
		return time.Minute
	}
}

// Tick represents the current bid/ask quote for a symbol
type Tick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

// Rate represents a single OHLC bar with tick volume
type Rate struct {
	Time       time.Time `json:"time"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	TickVolume int64     `json:"tick_volume"`
}

// Closes extracts the close series (oldest first) from a rate slice
func Closes(rates []Rate) []float64 {
	out := make([]float64, len(rates))
	for i, r := range rates {
		out[i] = r.Close
	}
	return out
}

// Highs extracts the high series from a rate slice
func Highs(rates []Rate) []float64 {
	out := make([]float64, len(rates))
	for i, r := range rates {
		out[i] = r.High
	}
	return out
}

// Lows extracts the low series from a rate slice
func Lows(rates []Rate) []float64 {
	out := make([]float64, len(rates))
	for i, r := range rates {
		out[i] = r.Low
	}
	return out
}

// Volumes extracts the tick volume series from a rate slice
func Volumes(rates []Rate) []float64 {
	out := make([]float64, len(rates))
	for i, r := range rates {
		out[i] = float64(r.TickVolume)
	}
	return out
}

// OrderResult describes a filled order returned by the broker
type OrderResult struct {
	Ticket   int64   `json:"ticket"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	LotSize  float64 `json:"lot_size"`
	Price    float64 `json:"price"`
	StopLoss float64 `json:"stop_loss"`
}
