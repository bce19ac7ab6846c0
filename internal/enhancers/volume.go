package enhancers

import (
	"context"
	"fmt"
	"math"

	"contrarian-trading-bot/internal/market"
	"contrarian-trading-bot/internal/signal"
)

// VolumeConfig holds the volume enhancer thresholds
type VolumeConfig struct {
	Periods       int     `json:"periods"`         // bars per timeframe
	VetoScore     float64 `json:"veto_score"`      // veto below this score...
	VetoMaxStr    float64 `json:"veto_max_str"`    // ...unless strength is at least this
	SpikeRatio    float64 `json:"spike_ratio"`     // volume spike vs 20-bar average
	DryUpRatio    float64 `json:"dry_up_ratio"`    // volume dry-up vs 20-bar average
	ExhaustionMin float64 `json:"exhaustion_min"`  // spike multiple that counts as exhaustion
}

// DefaultVolumeConfig returns the standard thresholds
func DefaultVolumeConfig() VolumeConfig {
	return VolumeConfig{
		Periods:       50,
		VetoScore:     3.0,
		VetoMaxStr:    8.0,
		SpikeRatio:    1.5,
		DryUpRatio:    0.7,
		ExhaustionMin: 2.0,
	}
}

// VolumeEnhancer scores tick-volume behavior for contrarian confirmation:
// spikes and dry-ups, price-volume divergence, exhaustion bars,
// accumulation/distribution shifts, and the volume trend.
type VolumeEnhancer struct {
	broker market.Broker
	config VolumeConfig
}

// NewVolumeEnhancer creates a volume enhancer
func NewVolumeEnhancer(broker market.Broker, config VolumeConfig) *VolumeEnhancer {
	return &VolumeEnhancer{broker: broker, config: config}
}

func (v *VolumeEnhancer) Name() string { return "volume" }

// Enhance computes a 0-10 contrarian volume score across M5/M15/H1 and folds
// it into the signal strength
func (v *VolumeEnhancer) Enhance(_ context.Context, sig *signal.EnhancedSignal) error {
	timeframes := []market.Timeframe{market.M5, market.M15, market.H1}

	var scores []float64
	spikes, divergences, exhaustions := 0, 0, 0

	for _, tf := range timeframes {
		rates, err := v.broker.GetRates(sig.Symbol, tf, v.config.Periods)
		if err != nil || len(rates) < 20 {
			continue
		}

		profile := v.analyzeProfile(rates)
		scores = append(scores, profile.score)
		if profile.spike {
			spikes++
		}
		if profile.divergence {
			divergences++
		}
		if profile.exhaustion {
			exhaustions++
		}
	}

	if len(scores) == 0 {
		return fmt.Errorf("no volume data for %s", sig.Symbol)
	}

	combined := mean(scores)

	// Multi-timeframe confirmation bonuses
	if spikes >= 2 {
		combined += 1.0
	}
	if divergences >= 2 {
		combined += 1.5
	}
	if exhaustions >= 1 {
		combined += 2.0
	}
	combined = math.Min(10.0, combined)

	sig.VolumeScore = combined

	// Fold the volume score into strength, tiered
	switch {
	case combined >= 8.0:
		sig.Strength = clamp10(sig.Strength + 1.5)
		sig.Enhancements = append(sig.Enhancements, "Strong Volume Confirmation")
	case combined >= 6.5:
		sig.Strength = clamp10(sig.Strength + 1.0)
		sig.Enhancements = append(sig.Enhancements, "Good Volume Confirmation")
	case combined >= 5.0:
		sig.Strength = clamp10(sig.Strength + 0.5)
		sig.Enhancements = append(sig.Enhancements, "Moderate Volume Confirmation")
	default:
		sig.Strength = clamp10(sig.Strength - 1.0)
		sig.Enhancements = append(sig.Enhancements, "Volume Warning")
	}

	// Very weak volume vetoes anything short of an exceptional signal
	if combined < v.config.VetoScore && sig.Strength < v.config.VetoMaxStr {
		return fmt.Errorf("%w: volume score %.1f", ErrVetoed, combined)
	}

	return nil
}

type volumeProfile struct {
	score      float64
	spike      bool
	dryUp      bool
	divergence bool
	exhaustion bool
}

func (v *VolumeEnhancer) analyzeProfile(rates []market.Rate) volumeProfile {
	volumes := market.Volumes(rates)
	closes := market.Closes(rates)
	highs := market.Highs(rates)
	lows := market.Lows(rates)

	n := len(volumes)
	sma20 := mean(volumes[n-20:])
	current := volumes[n-1]

	profile := volumeProfile{
		spike: sma20 > 0 && current > sma20*v.config.SpikeRatio,
		dryUp: sma20 > 0 && current < sma20*v.config.DryUpRatio,
	}

	divStrength := v.divergenceStrength(closes[n-10:], volumes[n-10:])
	profile.divergence = divStrength > 0

	exhStrength := v.exhaustionStrength(volumes, highs, lows)
	profile.exhaustion = exhStrength > 0

	adSignal := accumulationDistributionSignal(rates[n-20:])

	trendBonus := decreasingVolumeTrend(volumes[n-10:])

	score := 5.0
	if profile.spike {
		score += 2.0
	}
	if profile.dryUp {
		score += 1.0
	}
	score += divStrength / 10
	score += math.Min(3.0, exhStrength/10)
	if adSignal {
		score += 1.0
	}
	if trendBonus {
		score += 1.0
	}

	profile.score = math.Max(0, math.Min(10, score))
	return profile
}

// divergenceStrength detects price moving on declining volume. Returns 0 when
// no divergence is present.
func (v *VolumeEnhancer) divergenceStrength(prices, volumes []float64) float64 {
	if len(prices) < 5 || len(volumes) < 5 {
		return 0
	}

	priceMomentum := (prices[len(prices)-1] - prices[0]) / prices[0]
	head := mean(volumes[:3])
	if head == 0 {
		return 0
	}
	volumeMomentum := (mean(volumes[len(volumes)-3:]) - head) / head

	if math.Abs(priceMomentum) > 0.001 && volumeMomentum < -0.2 {
		return math.Abs(volumeMomentum) * 100
	}
	return 0
}

// exhaustionStrength looks for a climax-volume wide-range bar a few bars back
func (v *VolumeEnhancer) exhaustionStrength(volumes, highs, lows []float64) float64 {
	n := len(volumes)
	if n < 10 {
		return 0
	}

	recentVolumes := volumes[n-5:]
	recentHighs := highs[n-5:]
	recentLows := lows[n-5:]

	maxIdx := 0
	for i, vol := range recentVolumes {
		if vol > recentVolumes[maxIdx] {
			maxIdx = i
		}
	}
	maxVolume := recentVolumes[maxIdx]

	lookback := volumes
	if n >= 20 {
		lookback = volumes[n-20:]
	}
	avgVolume := mean(lookback)
	if avgVolume == 0 || maxVolume <= avgVolume*v.config.ExhaustionMin {
		return 0
	}

	// The spike must be settled, not on the latest bar
	if maxIdx < 3 {
		return 0
	}

	barRange := recentHighs[maxIdx] - recentLows[maxIdx]
	avgRange := 0.0
	for i := range recentHighs {
		avgRange += recentHighs[i] - recentLows[i]
	}
	avgRange /= float64(len(recentHighs))

	if barRange <= avgRange*1.5 {
		return 0
	}

	return (maxVolume / avgVolume) * 10
}

// accumulationDistributionSignal reports whether money flow has shifted
// decisively toward accumulation or distribution
func accumulationDistributionSignal(rates []market.Rate) bool {
	if len(rates) < 10 {
		return false
	}

	mfv := make([]float64, len(rates))
	for i, r := range rates {
		if r.High == r.Low {
			continue
		}
		clv := ((r.Close - r.Low) - (r.High - r.Close)) / (r.High - r.Low)
		mfv[i] = clv * float64(r.TickVolume)
	}

	short := mean(mfv[len(mfv)-5:])
	long := mean(mfv[len(mfv)-10:])
	if long == 0 {
		return false
	}
	return short > long*1.1 || short < long*0.9
}

// decreasingVolumeTrend fits a line through the recent volumes and reports a
// meaningful downslope
func decreasingVolumeTrend(volumes []float64) bool {
	if len(volumes) < 5 {
		return false
	}

	n := float64(len(volumes))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range volumes {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return false
	}
	slope := (n*sumXY - sumX*sumY) / denom

	avg := sumY / n
	if avg == 0 {
		return false
	}
	return slope < -avg*0.1 && math.Abs(slope)/avg > 0.2
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
