package risk

import (
	"math"
	"strings"
	"time"

	"contrarian-trading-bot/internal/signal"
)

// Config holds the injectable level and sizing parameters
type Config struct {
	UseFixedPips bool    `json:"use_fixed_pips"`
	FixedSLPips  float64 `json:"fixed_sl_pips"`
	FixedTPPips  float64 `json:"fixed_tp_pips"`

	SLATRMultiplier  float64    `json:"sl_atr_multiplier"`
	TPATRMultipliers [3]float64 `json:"tp_atr_multipliers"`

	BreakevenTriggerATR float64 `json:"breakeven_trigger_atr"`
	TrailingTriggerATR  float64 `json:"trailing_trigger_atr"`
	TrailingDistanceATR float64 `json:"trailing_distance_atr"`

	FixedRiskAmount float64 `json:"fixed_risk_amount"`
	PipValuePerLot  float64 `json:"pip_value_per_lot"`
	BaseLotSize     float64 `json:"base_lot_size"`

	SessionHours       SessionHours       `json:"session_hours"`
	SessionMultipliers SessionMultipliers `json:"session_multipliers"`
	TradeWindows       TradeWindows       `json:"trade_windows"`
}

// Levels holds the protective levels for one trade. Computed once at open;
// only the live stop (kept on the trade, not here) moves afterwards.
type Levels struct {
	StopLoss float64 `json:"sl_price"`
	TP1      float64 `json:"tp1_price"`
	TP2      float64 `json:"tp2_price"`
	TP3      float64 `json:"tp3_price"`

	BreakevenTrigger float64 `json:"breakeven_trigger_price"`
	TrailingTrigger  float64 `json:"trailing_trigger_price"`
	TrailDistance    float64 `json:"trail_distance"`

	SLPips             float64 `json:"sl_pips"`
	SessionMultiplier  float64 `json:"session_multiplier"`
	StrengthMultiplier float64 `json:"strength_multiplier"`
}

// Calculator derives contrarian trade levels and position sizes. It performs
// no I/O and touches no shared state.
type Calculator struct {
	config Config
}

// NewCalculator creates a level calculator
func NewCalculator(config Config) *Calculator {
	return &Calculator{config: config}
}

// PipSize returns the standard pip for a symbol: 0.01 for JPY-quoted pairs,
// 0.0001 otherwise
func PipSize(symbol string) float64 {
	if strings.Contains(strings.ToUpper(symbol), "JPY") {
		return 0.01
	}
	return 0.0001
}

// StrengthMultiplier maps signal strength to a TP-scaling tier
func StrengthMultiplier(strength float64) (float64, string) {
	switch {
	case strength >= 9.0:
		return 1.2, "ultra"
	case strength >= 8.0:
		return 1.0, "strong"
	case strength < 7.0:
		return 0.8, "weak"
	default:
		return 1.0, "standard"
	}
}

// Levels computes SL/TP/breakeven/trailing levels for an already-reversed
// direction. Multipliers scale TP distances only; the stop distance is never
// scaled.
func (c *Calculator) Levels(dir signal.Direction, symbol string, entry, atr, strength float64, now time.Time) Levels {
	pip := PipSize(symbol)
	session := c.config.SessionHours.SessionAt(now)
	sessionMult := c.config.SessionMultipliers.For(session)
	strengthMult, _ := StrengthMultiplier(strength)

	var slDist, tp1Dist, tp2Dist, tp3Dist float64
	if c.config.UseFixedPips {
		slDist = c.config.FixedSLPips * pip
		base := c.config.FixedTPPips * pip
		tp1Dist = base * strengthMult
		tp2Dist = 2 * base * strengthMult
		tp3Dist = 3 * base * strengthMult
	} else {
		slDist = atr * c.config.SLATRMultiplier
		scale := sessionMult * strengthMult
		tp1Dist = atr * c.config.TPATRMultipliers[0] * scale
		tp2Dist = atr * c.config.TPATRMultipliers[1] * scale
		tp3Dist = atr * c.config.TPATRMultipliers[2] * scale
	}

	sign := 1.0
	if dir == signal.Sell {
		sign = -1.0
	}

	levels := Levels{
		StopLoss:           round5(entry - sign*slDist),
		TP1:                round5(entry + sign*tp1Dist),
		TP2:                round5(entry + sign*tp2Dist),
		TP3:                round5(entry + sign*tp3Dist),
		BreakevenTrigger:   round5(entry + sign*atr*c.config.BreakevenTriggerATR),
		TrailingTrigger:    round5(entry + sign*atr*c.config.TrailingTriggerATR),
		TrailDistance:      atr * c.config.TrailingDistanceATR,
		SLPips:             slDist / pip,
		SessionMultiplier:  sessionMult,
		StrengthMultiplier: strengthMult,
	}

	return levels
}

// CurrentSession returns the session tag for a time
func (c *Calculator) CurrentSession(t time.Time) Session {
	return c.config.SessionHours.SessionAt(t)
}

// LotSize sizes a position from the configured risk amount and the stop
// distance in pips. The result is rounded to 0.01 lots and clamped to
// [0.01, 1.0]; unusable inputs fall back to the configured base lot.
func (c *Calculator) LotSize(slPips float64) float64 {
	if slPips <= 0 || c.config.PipValuePerLot <= 0 || c.config.FixedRiskAmount <= 0 {
		return c.config.BaseLotSize
	}

	lots := c.config.FixedRiskAmount / (slPips * c.config.PipValuePerLot)
	lots = math.Round(lots*100) / 100

	if lots < 0.01 {
		return 0.01
	}
	if lots > 1.0 {
		return 1.0
	}
	return lots
}

func round5(v float64) float64 {
	return math.Round(v*100000) / 100000
}
