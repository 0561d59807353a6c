package antiflood

import "time"

// MuteState is a user's mute standing at a given instant.
type MuteState int

const (
	// StateUnmuted means no mute entry exists.
	StateUnmuted MuteState = iota
	// StateMuted means an entry exists with its expiry in the future.
	StateMuted
	// StateExpired means an entry exists but its expiry has passed.
	// Expiry is a pure function of time; it is observed, never scheduled.
	StateExpired
)

// MuteRegistry holds per-user mute expiry instants. Expired entries linger
// until observed, at which point the caller removes them via Expire,
// Unmute or ListActive.
//
// MuteRegistry is not safe for concurrent use; the Engine serializes access.
type MuteRegistry struct {
	entries map[int64]time.Time
}

// NewMuteRegistry creates an empty registry.
func NewMuteRegistry() *MuteRegistry {
	return &MuteRegistry{entries: make(map[int64]time.Time)}
}

// Install sets a user's mute expiry, overwriting any prior entry. The
// latest mute always wins, even when it is shorter than the one it replaces.
func (r *MuteRegistry) Install(user int64, until time.Time) {
	r.entries[user] = until
}

// Status reports the user's mute state at now and, when an entry exists,
// its expiry instant.
func (r *MuteRegistry) Status(user int64, now time.Time) (MuteState, time.Time) {
	until, ok := r.entries[user]
	if !ok {
		return StateUnmuted, time.Time{}
	}
	if until.After(now) {
		return StateMuted, until
	}
	return StateExpired, until
}

// Expire removes a lapsed entry observed on the message path and returns
// the counter tables the transition also clears. Daily counters survive so
// the coarser limit keeps its history across a short mute cycle.
func (r *MuteRegistry) Expire(user int64) ClearSet {
	delete(r.entries, user)
	return expiryClears
}

// Unmute removes a user's entry on an explicit command. The returned
// ClearSet wipes all three counter tables, a full reset stronger than
// automatic expiry. ok is false when no entry existed (a no-op).
func (r *MuteRegistry) Unmute(user int64) (clears ClearSet, ok bool) {
	if _, exists := r.entries[user]; !exists {
		return ClearSet{}, false
	}
	delete(r.entries, user)
	return unmuteClears, true
}

// ListActive returns (user, until, remaining) for every entry with its
// expiry still in the future, and drops expired entries it encounters.
// Unlike the message-path expiry, listing never cascades into the counter
// tables: a read-mostly operation must not reset a user's flood history.
func (r *MuteRegistry) ListActive(now time.Time) (active []ActiveMute, removed int) {
	for user, until := range r.entries {
		if until.After(now) {
			active = append(active, ActiveMute{
				UserID:    user,
				Until:     until,
				Remaining: until.Sub(now),
			})
			continue
		}
		delete(r.entries, user)
		removed++
	}
	return active, removed
}

// Snapshot returns a copy of the registry for persistence.
func (r *MuteRegistry) Snapshot() map[int64]time.Time {
	out := make(map[int64]time.Time, len(r.entries))
	for user, until := range r.entries {
		out[user] = until
	}
	return out
}

// Restore replaces the registry contents, keeping only entries that are
// still active at now.
func (r *MuteRegistry) Restore(data map[int64]time.Time, now time.Time) {
	r.entries = make(map[int64]time.Time, len(data))
	for user, until := range data {
		if until.After(now) {
			r.entries[user] = until
		}
	}
}
