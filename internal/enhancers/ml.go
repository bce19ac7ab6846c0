package enhancers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"contrarian-trading-bot/internal/market"
	"contrarian-trading-bot/internal/risk"
	"contrarian-trading-bot/internal/signal"
)

// MLConfig holds the ML enhancer parameters
type MLConfig struct {
	MinATRThreshold float64           `json:"min_atr_threshold"`
	HistoryFile     string            `json:"history_file"` // per-symbol outcome history artifact
	SessionHours    risk.SessionHours `json:"session_hours"`
}

// symbolHistory tracks recent outcomes for one symbol
type symbolHistory struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// MLEnhancer blends the scored strength with a small ensemble of heuristic
// predictions and attaches a confidence estimate. It is the non-model path of
// the score-enhancement boundary: deterministic feature rules, no training.
type MLEnhancer struct {
	config  MLConfig
	mu      sync.Mutex
	history map[string]*symbolHistory
}

// NewMLEnhancer creates the enhancer and loads any persisted outcome history
func NewMLEnhancer(config MLConfig) *MLEnhancer {
	e := &MLEnhancer{
		config:  config,
		history: make(map[string]*symbolHistory),
	}
	e.loadHistory()
	return e
}

func (e *MLEnhancer) Name() string { return "ml" }

// Enhance blends strength 50/50 with the heuristic ensemble mean and sets
// MLConfidence
func (e *MLEnhancer) Enhance(_ context.Context, sig *signal.EnhancedSignal) error {
	m5, ok := sig.Analyses[market.M5]
	if !ok {
		return fmt.Errorf("missing M5 analysis for %s", sig.Symbol)
	}
	m15 := sig.Analyses[market.M15]
	h1 := sig.Analyses[market.H1]

	original := sig.Strength
	confluences := float64(len(sig.Confluences))

	session := e.config.SessionHours.SessionAt(time.Now().UTC())
	activeSession := session == risk.SessionLondon || session == risk.SessionOverlap || session == risk.SessionNewYork

	// Heuristic ensemble
	predictions := []float64{
		math.Min(10, original+confluences*0.3),
		e.rsiAdjusted(original, m5.RSI, m15.RSI, h1.RSI),
		e.timeAdjusted(original, activeSession),
		e.volatilityAdjusted(original, m5.ATR),
	}

	ensembleMean := mean(predictions)
	blended := clamp10(original*0.5 + ensembleMean*0.5)

	// Confidence: base 60, plus ensemble agreement, confluence quality, and
	// session timing
	confidence := 60.0
	confidence += math.Max(0, 20-stddev(predictions)*4)
	if len(sig.Confluences) >= 3 {
		confidence += 10
	}
	if activeSession {
		confidence += 5
	}
	confidence = math.Max(0, math.Min(100, confidence))

	sig.Strength = math.Round(blended*10) / 10
	sig.MLConfidence = math.Round(confidence*10) / 10
	sig.Enhancements = append(sig.Enhancements,
		fmt.Sprintf("ML Blend %.1f -> %.1f (conf %.0f%%)", original, sig.Strength, sig.MLConfidence))

	return nil
}

func (e *MLEnhancer) rsiAdjusted(base, m5RSI, m15RSI, h1RSI float64) float64 {
	avgRSI := (m5RSI + m15RSI + h1RSI) / 3
	switch {
	case avgRSI > 75 || avgRSI < 25:
		return math.Min(10, base+1.5)
	case avgRSI > 65 || avgRSI < 35:
		return math.Min(10, base+0.5)
	default:
		return base
	}
}

func (e *MLEnhancer) timeAdjusted(base float64, activeSession bool) float64 {
	if activeSession {
		return math.Min(10, base+0.5)
	}
	return base
}

func (e *MLEnhancer) volatilityAdjusted(base, atr float64) float64 {
	if atr >= e.config.MinATRThreshold {
		return math.Min(10, base+0.3)
	}
	return base
}

// RecordOutcome persists a win/loss outcome for a symbol. The history file is
// the enhancer's on-disk artifact; losing it only resets the statistics.
func (e *MLEnhancer) RecordOutcome(symbol string, win bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.history[symbol]
	if !ok {
		h = &symbolHistory{}
		e.history[symbol] = h
	}
	if win {
		h.Wins++
	} else {
		h.Losses++
	}

	e.saveHistoryLocked()
}

// WinRate returns the historical win rate for a symbol, or 0.5 with no data
func (e *MLEnhancer) WinRate(symbol string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.history[symbol]
	if !ok || h.Wins+h.Losses == 0 {
		return 0.5
	}
	return float64(h.Wins) / float64(h.Wins+h.Losses)
}

func (e *MLEnhancer) loadHistory() {
	if e.config.HistoryFile == "" {
		return
	}
	data, err := os.ReadFile(e.config.HistoryFile)
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, &e.history)
}

func (e *MLEnhancer) saveHistoryLocked() {
	if e.config.HistoryFile == "" {
		return
	}
	data, err := json.MarshalIndent(e.history, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(e.config.HistoryFile, data, 0644)
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
