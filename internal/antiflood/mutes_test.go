package antiflood

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMuteRegistry_Status(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	reg := NewMuteRegistry()

	t.Run("unmuted without entry", func(t *testing.T) {
		state, _ := reg.Status(7, now)
		assert.Equal(t, StateUnmuted, state)
	})

	t.Run("muted before expiry", func(t *testing.T) {
		reg.Install(7, now.Add(15*time.Minute))
		state, until := reg.Status(7, now)
		assert.Equal(t, StateMuted, state)
		assert.True(t, until.Sub(now) > 0)
	})

	t.Run("expired after the instant passes", func(t *testing.T) {
		state, _ := reg.Status(7, now.Add(15*time.Minute))
		assert.Equal(t, StateExpired, state)

		state, _ = reg.Status(7, now.Add(time.Hour))
		assert.Equal(t, StateExpired, state)
	})
}

func TestMuteRegistry_InstallOverwrites(t *testing.T) {
	// The latest mute always wins, even when shorter
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	reg := NewMuteRegistry()

	reg.Install(7, now.Add(time.Hour))
	reg.Install(7, now.Add(5*time.Minute))

	state, until := reg.Status(7, now)
	require.Equal(t, StateMuted, state)
	assert.Equal(t, now.Add(5*time.Minute), until)
}

func TestMuteRegistry_ExpireCascade(t *testing.T) {
	reg := NewMuteRegistry()
	reg.Install(7, time.Now())

	clears := reg.Expire(7)

	assert.True(t, clears.ShortTerm)
	assert.True(t, clears.Hourly)
	assert.False(t, clears.Daily, "automatic expiry must not clear the daily counter")

	state, _ := reg.Status(7, time.Now())
	assert.Equal(t, StateUnmuted, state)
}

func TestMuteRegistry_UnmuteCascade(t *testing.T) {
	reg := NewMuteRegistry()
	reg.Install(7, time.Now().Add(time.Hour))

	clears, ok := reg.Unmute(7)
	require.True(t, ok)
	assert.True(t, clears.ShortTerm)
	assert.True(t, clears.Hourly)
	assert.True(t, clears.Daily, "explicit unmute is a full reset")

	_, ok = reg.Unmute(7)
	assert.False(t, ok, "second unmute is a no-op")
}

func TestMuteRegistry_ListActive(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	reg := NewMuteRegistry()

	reg.Install(1, now.Add(10*time.Minute))
	reg.Install(2, now.Add(-time.Minute)) // already lapsed
	reg.Install(3, now.Add(time.Hour))

	active, removed := reg.ListActive(now)

	assert.Len(t, active, 2)
	assert.Equal(t, 1, removed)
	for _, m := range active {
		assert.True(t, m.Remaining > 0)
		assert.Equal(t, m.Until.Sub(now), m.Remaining)
	}

	// The lapsed entry is gone for good
	state, _ := reg.Status(2, now)
	assert.Equal(t, StateUnmuted, state)
}

func TestMuteRegistry_Restore(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	reg := NewMuteRegistry()

	reg.Restore(map[int64]time.Time{
		1: now.Add(time.Hour),
		2: now.Add(-time.Hour), // dropped
	}, now)

	state, _ := reg.Status(1, now)
	assert.Equal(t, StateMuted, state)
	state, _ = reg.Status(2, now)
	assert.Equal(t, StateUnmuted, state)
}
