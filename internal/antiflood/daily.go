package antiflood

import "time"

// DailyTable tracks per-user message counts for the current UTC calendar
// day. A stored entry from an earlier day resets to 1 on the next message.
//
// DailyTable is not safe for concurrent use; the Engine serializes access.
type DailyTable struct {
	entries map[int64]DailyEntry
}

// NewDailyTable creates an empty daily counter table.
func NewDailyTable() *DailyTable {
	return &DailyTable{entries: make(map[int64]DailyEntry)}
}

// utcDay truncates an instant to UTC midnight.
func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RecordAndCheck counts a message for the user and returns the new count.
// The count resets to 1 when the stored day differs from now's UTC date.
func (t *DailyTable) RecordAndCheck(user int64, now time.Time) int {
	day := utcDay(now)
	entry, ok := t.entries[user]
	if !ok || !entry.Date.Equal(day) {
		entry = DailyEntry{Date: day, Count: 1}
	} else {
		entry.Count++
	}
	t.entries[user] = entry
	return entry.Count
}

// Peek returns the user's count for now's UTC date without recording.
func (t *DailyTable) Peek(user int64, now time.Time) int {
	entry, ok := t.entries[user]
	if !ok || !entry.Date.Equal(utcDay(now)) {
		return 0
	}
	return entry.Count
}

// Clear removes all state for a user.
func (t *DailyTable) Clear(user int64) {
	delete(t.entries, user)
}

// Snapshot returns a copy of the table for persistence.
func (t *DailyTable) Snapshot() map[int64]DailyEntry {
	out := make(map[int64]DailyEntry, len(t.entries))
	for user, entry := range t.entries {
		out[user] = entry
	}
	return out
}

// Restore replaces the table contents.
func (t *DailyTable) Restore(data map[int64]DailyEntry) {
	t.entries = make(map[int64]DailyEntry, len(data))
	for user, entry := range data {
		if entry.Count < 0 {
			continue
		}
		t.entries[user] = DailyEntry{Date: utcDay(entry.Date), Count: entry.Count}
	}
}
