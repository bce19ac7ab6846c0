package risk

import "time"

// Session is a UTC-hour-defined trading window
type Session string

const (
	SessionAsian     Session = "ASIAN"
	SessionLondonPre Session = "LONDON_PRE"
	SessionLondon    Session = "LONDON"
	SessionOverlap   Session = "OVERLAP"
	SessionNewYork   Session = "NY"
	SessionQuiet     Session = "QUIET"
)

// SessionHours holds the UTC hour boundaries between sessions
type SessionHours struct {
	LondonPreStart int `json:"london_pre_start"` // Asian before this
	LondonStart    int `json:"london_start"`
	OverlapStart   int `json:"overlap_start"`
	NewYorkStart   int `json:"new_york_start"`
	NewYorkEnd     int `json:"new_york_end"` // Quiet after this
}

// DefaultSessionHours matches the standard forex session map
func DefaultSessionHours() SessionHours {
	return SessionHours{
		LondonPreStart: 6,
		LondonStart:    8,
		OverlapStart:   12,
		NewYorkStart:   16,
		NewYorkEnd:     20,
	}
}

// TradeWindows are the UTC admission windows. New trades are only admitted
// inside the London or New York window; hours covered by both count as
// London. TP scaling uses the finer SessionHours map instead.
type TradeWindows struct {
	LondonStart  int `json:"london_start"`
	LondonEnd    int `json:"london_end"`
	NewYorkStart int `json:"new_york_start"`
	NewYorkEnd   int `json:"new_york_end"`
}

// DefaultTradeWindows returns the standard windows: London 8-16, NY 13-21
func DefaultTradeWindows() TradeWindows {
	return TradeWindows{
		LondonStart:  8,
		LondonEnd:    16,
		NewYorkStart: 13,
		NewYorkEnd:   21,
	}
}

// WindowAt maps a UTC time to its admission window. The second return is
// false outside both windows, when no new trades are admitted.
func (w TradeWindows) WindowAt(t time.Time) (Session, bool) {
	hour := t.UTC().Hour()
	switch {
	case hour >= w.LondonStart && hour < w.LondonEnd:
		return SessionLondon, true
	case hour >= w.NewYorkStart && hour < w.NewYorkEnd:
		return SessionNewYork, true
	}
	return "", false
}

// SessionMultipliers scales take-profit distances per session
type SessionMultipliers struct {
	Asian     float64 `json:"asian"`
	LondonPre float64 `json:"london_pre"`
	London    float64 `json:"london"`
	Overlap   float64 `json:"overlap"`
	NewYork   float64 `json:"new_york"`
	Quiet     float64 `json:"quiet"`
}

// DefaultSessionMultipliers returns the standard per-session TP scaling
func DefaultSessionMultipliers() SessionMultipliers {
	return SessionMultipliers{
		Asian:     0.7,
		LondonPre: 1.2,
		London:    1.2,
		Overlap:   1.3,
		NewYork:   1.1,
		Quiet:     0.7,
	}
}

// SessionAt maps a UTC time to its trading session
func (h SessionHours) SessionAt(t time.Time) Session {
	hour := t.UTC().Hour()
	switch {
	case hour < h.LondonPreStart:
		return SessionAsian
	case hour < h.LondonStart:
		return SessionLondonPre
	case hour < h.OverlapStart:
		return SessionLondon
	case hour < h.NewYorkStart:
		return SessionOverlap
	case hour < h.NewYorkEnd:
		return SessionNewYork
	default:
		return SessionQuiet
	}
}

// For returns the TP multiplier for a session
func (m SessionMultipliers) For(s Session) float64 {
	switch s {
	case SessionAsian:
		return m.Asian
	case SessionLondonPre:
		return m.LondonPre
	case SessionLondon:
		return m.London
	case SessionOverlap:
		return m.Overlap
	case SessionNewYork:
		return m.NewYork
	default:
		return m.Quiet
	}
}
