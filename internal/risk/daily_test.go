package risk

import (
	"testing"
	"time"
)

func TestDailyStateReset(t *testing.T) {
	day1 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("same day never resets", func(t *testing.T) {
		ds := NewDailyState(day1)
		ds.AddPnL(5)
		ds.RecordTrade("EURUSD", SessionLondon)

		if ds.MaybeReset(day1.Add(10 * time.Hour)) {
			t.Error("reset fired within the same UTC day")
		}
		if ds.PnL() != 5 || ds.TradeCount() != 1 {
			t.Errorf("counters changed without a reset: pnl=%v trades=%d", ds.PnL(), ds.TradeCount())
		}
	})

	t.Run("new day resets once", func(t *testing.T) {
		ds := NewDailyState(day1)
		ds.AddPnL(5)
		ds.RecordTrade("EURUSD", SessionLondon)
		ds.MarkSuccessful("EURUSD")

		day2 := day1.Add(24 * time.Hour)
		if !ds.MaybeReset(day2) {
			t.Fatal("expected a reset on the new UTC day")
		}
		if ds.PnL() != 0 || ds.TradeCount() != 0 || ds.PairCount("EURUSD") != 0 {
			t.Errorf("counters not cleared: pnl=%v trades=%d pair=%d", ds.PnL(), ds.TradeCount(), ds.PairCount("EURUSD"))
		}
		if ds.IsSuccessful("EURUSD") {
			t.Error("successful-pair flag survived the reset")
		}
		if ds.MaybeReset(day2.Add(time.Hour)) {
			t.Error("reset fired twice for the same day")
		}
	})
}

func TestDailyStatePnL(t *testing.T) {
	ds := NewDailyState(time.Now())

	// Three $1 winners and one $2 loser net to $1
	ds.AddPnL(1)
	ds.AddPnL(1)
	ds.AddPnL(1)
	ds.AddPnL(-2)

	if got := ds.PnL(); got != 1 {
		t.Errorf("PnL = %v, want 1", got)
	}
}

func TestDailyStateSessionBuckets(t *testing.T) {
	ds := NewDailyState(time.Now())

	ds.RecordTrade("EURUSD", SessionLondon)
	ds.RecordTrade("EURUSD", SessionLondon)
	ds.RecordTrade("EURUSD", SessionNewYork)

	// Only the two admission-window buckets are tracked
	if got := ds.SessionCount("EURUSD", SessionLondon); got != 2 {
		t.Errorf("london count = %d, want 2", got)
	}
	if got := ds.SessionCount("EURUSD", SessionNewYork); got != 1 {
		t.Errorf("new york count = %d, want 1", got)
	}
	if got := ds.SessionCount("EURUSD", SessionAsian); got != 0 {
		t.Errorf("asian bucket should not be tracked, got %d", got)
	}

	if got := ds.TradeCount(); got != 3 {
		t.Errorf("trade count = %d, want 3", got)
	}
	if got := ds.PairCount("EURUSD"); got != 3 {
		t.Errorf("pair count = %d, want 3", got)
	}
	if got := ds.PairCount("GBPUSD"); got != 0 {
		t.Errorf("untouched pair count = %d, want 0", got)
	}
}

func TestDailyStateSnapshot(t *testing.T) {
	ds := NewDailyState(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	ds.AddPnL(2.5)
	ds.RecordTrade("EURUSD", SessionLondon)
	ds.RecordTrade("GBPUSD", SessionNewYork)
	ds.MarkSuccessful("EURUSD")

	snap := ds.Snapshot()

	if snap.DailyPnL != 2.5 || snap.TradeCount != 2 {
		t.Errorf("snapshot totals wrong: pnl=%v trades=%d", snap.DailyPnL, snap.TradeCount)
	}
	if snap.Date != "2026-03-10" {
		t.Errorf("snapshot date = %s, want 2026-03-10", snap.Date)
	}
	if snap.PairCounts["EURUSD"] != 1 || snap.PairCounts["GBPUSD"] != 1 {
		t.Errorf("pair counts wrong: %v", snap.PairCounts)
	}
	if len(snap.SuccessfulPairs) != 1 || snap.SuccessfulPairs[0] != "EURUSD" {
		t.Errorf("successful pairs wrong: %v", snap.SuccessfulPairs)
	}

	// The snapshot is a copy; mutating it must not touch live state
	snap.PairCounts["EURUSD"] = 99
	if ds.PairCount("EURUSD") != 1 {
		t.Error("snapshot maps alias live state")
	}
}
