package admission

import (
	"sort"
	"time"

	"contrarian-trading-bot/internal/signal"
)

// Entry is one queued signal. Entries live for a single evaluation cycle;
// the queue is always fully drained before the next cycle starts.
type Entry struct {
	Symbol     string
	Signal     *signal.EnhancedSignal
	EnqueuedAt time.Time
}

// Queue is a priority queue ordered by strength descending, then enqueue time
// ascending. The stable tie-break keeps equal-strength signals in arrival
// order.
type Queue struct {
	entries []*Entry
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{entries: make([]*Entry, 0)}
}

// Push inserts a signal and re-sorts the queue
func (q *Queue) Push(symbol string, sig *signal.EnhancedSignal, at time.Time) {
	q.entries = append(q.entries, &Entry{
		Symbol:     symbol,
		Signal:     sig,
		EnqueuedAt: at,
	})

	sort.SliceStable(q.entries, func(i, j int) bool {
		if q.entries[i].Signal.Strength != q.entries[j].Signal.Strength {
			return q.entries[i].Signal.Strength > q.entries[j].Signal.Strength
		}
		return q.entries[i].EnqueuedAt.Before(q.entries[j].EnqueuedAt)
	})
}

// Pop removes and returns the highest-priority entry, or nil when empty
func (q *Queue) Pop() *Entry {
	if len(q.entries) == 0 {
		return nil
	}
	head := q.entries[0]
	q.entries = q.entries[1:]
	return head
}

// Len returns the number of queued entries
func (q *Queue) Len() int {
	return len(q.entries)
}

// Clear discards all remaining entries and returns how many were dropped
func (q *Queue) Clear() int {
	dropped := len(q.entries)
	q.entries = q.entries[:0]
	return dropped
}
