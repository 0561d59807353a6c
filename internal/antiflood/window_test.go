package antiflood

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrune(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	stamps := []time.Time{
		base.Add(-10 * time.Minute),
		base.Add(-5 * time.Minute),
		base.Add(-1 * time.Minute),
		base,
	}

	t.Run("drops expired instants", func(t *testing.T) {
		kept := prune(stamps, base.Add(-5*time.Minute))
		assert.Equal(t, []time.Time{base.Add(-1 * time.Minute), base}, kept)
	})

	t.Run("cutoff is exclusive", func(t *testing.T) {
		// An instant exactly at the cutoff is expired
		kept := prune(stamps, base.Add(-10*time.Minute))
		assert.Len(t, kept, 3)
	})

	t.Run("idempotent", func(t *testing.T) {
		cutoff := base.Add(-5 * time.Minute)
		once := prune(stamps, cutoff)
		twice := prune(once, cutoff)
		assert.Equal(t, once, twice)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, prune(nil, base))
	})
}

func TestWindowTable_RecordAndCheck(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	table := NewWindowTable(5 * time.Minute)

	assert.Equal(t, 1, table.RecordAndCheck(7, now))
	assert.Equal(t, 2, table.RecordAndCheck(7, now.Add(time.Minute)))
	assert.Equal(t, 3, table.RecordAndCheck(7, now.Add(2*time.Minute)))

	// Six minutes later the first two instants have aged out
	assert.Equal(t, 2, table.RecordAndCheck(7, now.Add(6*time.Minute)))
}

func TestWindowTable_CountMatchesMessagesInWindow(t *testing.T) {
	// Regardless of how many older messages were sent in the session,
	// the count equals the messages inside the window.
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	table := NewWindowTable(5 * time.Minute)

	for i := 0; i < 50; i++ {
		table.RecordAndCheck(7, now.Add(time.Duration(i)*time.Minute))
	}

	at := now.Add(49 * time.Minute)
	assert.Equal(t, 5, table.Peek(7, at)) // minutes 45..49
}

func TestWindowTable_Peek(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	table := NewWindowTable(5 * time.Minute)

	t.Run("missing entry is zero state", func(t *testing.T) {
		assert.Equal(t, 0, table.Peek(99, now))
	})

	t.Run("peek does not record", func(t *testing.T) {
		table.RecordAndCheck(7, now)
		assert.Equal(t, 1, table.Peek(7, now))
		assert.Equal(t, 1, table.Peek(7, now))
	})

	t.Run("peek prunes", func(t *testing.T) {
		assert.Equal(t, 0, table.Peek(7, now.Add(10*time.Minute)))
	})
}

func TestWindowTable_Clear(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	table := NewWindowTable(5 * time.Minute)

	table.RecordAndCheck(7, now)
	table.RecordAndCheck(8, now)
	table.Clear(7)

	assert.Equal(t, 0, table.Peek(7, now))
	assert.Equal(t, 1, table.Peek(8, now))
}

func TestWindowTable_SnapshotRestore(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	table := NewWindowTable(time.Hour)

	table.RecordAndCheck(7, now.Add(-30*time.Minute))
	table.RecordAndCheck(7, now)
	table.RecordAndCheck(8, now.Add(-2*time.Hour)) // expired by restore time

	snap := table.Snapshot()

	restored := NewWindowTable(time.Hour)
	restored.Restore(snap, now)

	assert.Equal(t, 2, restored.Peek(7, now))
	assert.Equal(t, 0, restored.Peek(8, now))
}
