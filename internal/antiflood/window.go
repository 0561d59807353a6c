package antiflood

import "time"

// WindowTable tracks per-user message timestamps inside a sliding window.
// Expired instants are never scheduled for removal; they are pruned lazily
// whenever an entry is read or written. A missing entry is zero state.
//
// WindowTable is not safe for concurrent use; the Engine serializes access.
type WindowTable struct {
	window  time.Duration
	entries map[int64][]time.Time
}

// NewWindowTable creates an empty table with the given window duration.
func NewWindowTable(window time.Duration) *WindowTable {
	return &WindowTable{
		window:  window,
		entries: make(map[int64][]time.Time),
	}
}

// prune drops every instant at or before cutoff from an ordered sequence.
// Pure function of its inputs so the pruning rule is testable on its own.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}

// RecordAndCheck appends now to the user's sequence, prunes expired
// instants and returns the resulting count. Call at most once per message.
func (t *WindowTable) RecordAndCheck(user int64, now time.Time) int {
	stamps := prune(t.entries[user], now.Add(-t.window))
	stamps = append(stamps, now)
	t.entries[user] = stamps
	return len(stamps)
}

// Peek returns the user's current count. It prunes expired instants (a
// removal-only write) but records nothing.
func (t *WindowTable) Peek(user int64, now time.Time) int {
	stamps := prune(t.entries[user], now.Add(-t.window))
	if len(stamps) == 0 {
		delete(t.entries, user)
		return 0
	}
	t.entries[user] = stamps
	return len(stamps)
}

// Clear removes all state for a user.
func (t *WindowTable) Clear(user int64) {
	delete(t.entries, user)
}

// Snapshot returns a deep copy of the table for persistence.
func (t *WindowTable) Snapshot() map[int64][]time.Time {
	out := make(map[int64][]time.Time, len(t.entries))
	for user, stamps := range t.entries {
		cp := make([]time.Time, len(stamps))
		copy(cp, stamps)
		out[user] = cp
	}
	return out
}

// Restore replaces the table contents, pruning each sequence against now.
func (t *WindowTable) Restore(data map[int64][]time.Time, now time.Time) {
	t.entries = make(map[int64][]time.Time, len(data))
	cutoff := now.Add(-t.window)
	for user, stamps := range data {
		if kept := prune(stamps, cutoff); len(kept) > 0 {
			t.entries[user] = kept
		}
	}
}
