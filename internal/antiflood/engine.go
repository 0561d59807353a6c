package antiflood

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"modguard/internal/chat"
	"modguard/internal/metrics"

	"github.com/hako/durafmt"
	"github.com/rs/zerolog/log"
)

// ErrInvalidDuration is returned when a mute is requested with a
// non-positive duration. Rejected before any state change.
var ErrInvalidDuration = errors.New("mute duration must be positive")

// Store is the persistence surface the engine flushes to. The on-disk
// snapshot is never a source of truth while the engine runs; it only
// survives restarts. Save failures are non-fatal and logged by the engine.
type Store interface {
	LoadShortTerm() (map[int64][]time.Time, error)
	LoadHourly() (map[int64][]time.Time, error)
	LoadDaily() (map[int64]DailyEntry, error)
	LoadMutes() (map[int64]time.Time, error)

	SaveShortTerm(map[int64][]time.Time) error
	SaveHourly(map[int64][]time.Time) error
	SaveDaily(map[int64]DailyEntry) error
	SaveMutes(map[int64]time.Time) error
}

// Limits configures the three thresholds and the mute durations each
// escalation installs.
type Limits struct {
	Daily     int
	Hourly    int
	ShortTerm int

	ShortWindow time.Duration

	ShortMute  time.Duration
	HourlyMute time.Duration
	VoiceMute  time.Duration
	DailyMute  time.Duration
}

// Engine is the moderation state machine. It exclusively owns the counter
// tables, the mute registry and the group lock flag; collaborators
// (persistent store, chat client, exemption policy) are injected.
//
// Message events are processed one at a time under a single mutex,
// matching the single-writer model the tables assume.
type Engine struct {
	mu     sync.Mutex
	limits Limits
	policy ExemptPolicy
	client chat.Client
	store  Store // may be nil for in-memory operation

	short  *WindowTable
	hourly *WindowTable
	daily  *DailyTable
	mutes  *MuteRegistry
	locked bool

	nowFunc func() time.Time
}

// NewEngine creates an engine and, when a store is supplied, restores the
// persisted tables. Load failures leave the affected table empty; the
// engine stays available regardless.
func NewEngine(limits Limits, policy ExemptPolicy, client chat.Client, store Store) *Engine {
	e := &Engine{
		limits:  limits,
		policy:  policy,
		client:  client,
		store:   store,
		short:   NewWindowTable(limits.ShortWindow),
		hourly:  NewWindowTable(time.Hour),
		daily:   NewDailyTable(),
		mutes:   NewMuteRegistry(),
		nowFunc: func() time.Time { return time.Now().UTC() },
	}

	if store != nil {
		e.restore()
	}

	return e
}

func (e *Engine) restore() {
	now := e.nowFunc()

	short, err := e.store.LoadShortTerm()
	if err != nil {
		log.Error().Err(err).Msg("antiflood: failed to load short-term table")
	}
	e.short.Restore(short, now)

	hourly, err := e.store.LoadHourly()
	if err != nil {
		log.Error().Err(err).Msg("antiflood: failed to load hourly table")
	}
	e.hourly.Restore(hourly, now)

	daily, err := e.store.LoadDaily()
	if err != nil {
		log.Error().Err(err).Msg("antiflood: failed to load daily table")
	}
	e.daily.Restore(daily)

	mutes, err := e.store.LoadMutes()
	if err != nil {
		log.Error().Err(err).Msg("antiflood: failed to load mute table")
	}
	e.mutes.Restore(mutes, now)

	log.Info().
		Int("short_term", len(short)).
		Int("hourly", len(hourly)).
		Int("daily", len(daily)).
		Int("active_mutes", len(e.mutes.entries)).
		Msg("antiflood: state restored")
}

// HandleMessage evaluates one inbound message and carries out its side
// effects: counter updates, mute installs, deletion and notification
// requests to the chat client, and snapshot flushes. The first matching
// outcome terminates processing.
func (e *Engine) HandleMessage(ctx context.Context, ev Event) Outcome {
	if ev.IsCommand {
		return OutcomeIgnored
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	outcome := e.evaluate(ctx, ev)
	metrics.MessagesTotal.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (e *Engine) evaluate(ctx context.Context, ev Event) Outcome {
	now := e.nowFunc()

	// Counters record the message's own instant; mute state is always
	// judged against the wall clock.
	msgTime := ev.Time
	if msgTime.IsZero() {
		msgTime = now
	}

	// Role lookups are live membership queries; fetch at most once per
	// event and treat failure as unknown (no privilege, no exemption).
	var role chat.Role
	roleFetched := false
	roleOf := func() chat.Role {
		if roleFetched {
			return role
		}
		roleFetched = true
		r, err := e.client.MemberRole(ctx, ev.ChatID, ev.SenderID)
		if err != nil {
			log.Warn().Err(err).Int64("user_id", ev.SenderID).Msg("antiflood: role lookup failed")
			role = chat.RoleUnknown
			return role
		}
		role = r
		return role
	}

	// 1. Mute check. A lapsed mute observed here also clears the
	// short-term and hourly tables before the message is re-evaluated.
	if ev.SenderID != 0 {
		switch state, _ := e.mutes.Status(ev.SenderID, now); state {
		case StateMuted:
			e.deleteMessage(ctx, ev)
			return OutcomeDeletedMuted
		case StateExpired:
			clears := e.mutes.Expire(ev.SenderID)
			e.applyClears(ev.SenderID, clears)
			e.persistMutes()
			log.Info().Int64("user_id", ev.SenderID).Msg("antiflood: mute expired, counters cleared")
		}
	}

	// 2. Group lock: only privileged roles may post while locked. A
	// failed role lookup denies (delete) to fail safe.
	if e.locked && !roleOf().Privileged() {
		e.deleteMessage(ctx, ev)
		return OutcomeDeletedLocked
	}

	// 3. Voice messages are removed unconditionally; non-privileged
	// senders are also muted. Anonymous senders have no identity to mute.
	if ev.IsVoice {
		e.deleteMessage(ctx, ev)
		if ev.SenderID != 0 && !roleOf().Privileged() {
			e.softMute(ctx, ev, e.limits.VoiceMute, "voice message", "voice")
		}
		return OutcomeDeletedVoice
	}

	// 4. Anonymous non-voice messages are ignored entirely.
	if ev.SenderID == 0 {
		return OutcomeIgnored
	}

	// 5. Exemption: counters never change for exempt identities.
	if e.policy.IsExempt(ev.SenderID, roleOf()) {
		return OutcomeExempt
	}

	// 6. Short-term threshold. On breach, hourly and daily counters are
	// not updated for this message.
	if n := e.short.RecordAndCheck(ev.SenderID, msgTime); n > e.limits.ShortTerm {
		e.softMute(ctx, ev, e.limits.ShortMute, "short-term flood", "short_term")
		e.deleteMessage(ctx, ev)
		e.persistShort()
		return OutcomeMutedShortTerm
	}

	// 7. Hourly threshold.
	if n := e.hourly.RecordAndCheck(ev.SenderID, msgTime); n > e.limits.Hourly {
		e.softMute(ctx, ev, e.limits.HourlyMute, "hourly flood", "hourly")
		e.deleteMessage(ctx, ev)
		e.persistHourly()
		return OutcomeMutedHourly
	}

	// 8. Daily threshold.
	if n := e.daily.RecordAndCheck(ev.SenderID, msgTime); n > e.limits.Daily {
		e.softMute(ctx, ev, e.limits.DailyMute, "daily limit exceeded", "daily")
		e.deleteMessage(ctx, ev)
		e.persistDaily()
		return OutcomeMutedDaily
	}

	// 9. Normal acceptance.
	e.persistShort()
	e.persistHourly()
	e.persistDaily()
	return OutcomeAccepted
}

// softMute installs an automatic mute and emits the two best-effort
// notifications. Notification failures never abort the mute installation.
func (e *Engine) softMute(ctx context.Context, ev Event, d time.Duration, reason, metricReason string) {
	now := e.nowFunc()
	e.mutes.Install(ev.SenderID, now.Add(d))
	e.persistMutes()
	metrics.MutesInstalledTotal.WithLabelValues(metricReason).Inc()

	human := durafmt.Parse(d).LimitFirstN(2).String()
	name := ev.SenderName
	if name == "" {
		name = "user"
	}

	notice := fmt.Sprintf(
		`<a href="tg://user?id=%d">%s</a> has been restricted for %s: %s. Messages will be deleted.`,
		ev.SenderID, name, human, reason,
	)
	if err := e.client.SendHTML(ctx, ev.ChatID, notice); err != nil {
		log.Warn().Err(err).Int64("chat_id", ev.ChatID).Msg("antiflood: failed to send group notice")
	}

	private := fmt.Sprintf("You have been restricted in the group for %s: %s.", human, reason)
	if err := e.client.SendMessage(ctx, ev.SenderID, private); err != nil {
		log.Debug().Err(err).Int64("user_id", ev.SenderID).Msg("antiflood: failed to send private notice")
	}

	log.Info().
		Int64("user_id", ev.SenderID).
		Dur("duration", d).
		Str("reason", reason).
		Msg("antiflood: soft mute installed")
}

func (e *Engine) deleteMessage(ctx context.Context, ev Event) {
	if err := e.client.DeleteMessage(ctx, ev.ChatID, ev.MessageID); err != nil {
		log.Warn().Err(err).
			Int64("chat_id", ev.ChatID).
			Int("message_id", ev.MessageID).
			Msg("antiflood: failed to delete message")
		return
	}
	metrics.MessagesDeletedTotal.Inc()
}

// applyClears resets the tables named by a mute-transition ClearSet and
// flushes each one it touched.
func (e *Engine) applyClears(user int64, clears ClearSet) {
	if clears.ShortTerm {
		e.short.Clear(user)
		e.persistShort()
	}
	if clears.Hourly {
		e.hourly.Clear(user)
		e.persistHourly()
	}
	if clears.Daily {
		e.daily.Clear(user)
		e.persistDaily()
	}
}

// Lock gates non-privileged posting process-wide.
func (e *Engine) Lock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locked = true
	log.Info().Msg("antiflood: group locked")
}

// Unlock restores normal posting.
func (e *Engine) Unlock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locked = false
	log.Info().Msg("antiflood: group unlocked")
}

// Locked reports the group lock flag.
func (e *Engine) Locked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locked
}

// ManualMute installs an operator-issued mute. It overwrites any existing
// entry and rejects non-positive durations before touching state.
func (e *Engine) ManualMute(user int64, d time.Duration, reason string) error {
	if d <= 0 {
		return ErrInvalidDuration
	}
	if user == 0 {
		return errors.New("cannot mute an anonymous sender")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.mutes.Install(user, e.nowFunc().Add(d))
	e.persistMutes()
	metrics.MutesInstalledTotal.WithLabelValues("manual").Inc()

	log.Info().
		Int64("user_id", user).
		Dur("duration", d).
		Str("reason", reason).
		Msg("antiflood: manual mute installed")
	return nil
}

// Unmute removes a user's mute entry and clears all three counter tables.
// It returns false when no entry existed; that call changes nothing.
func (e *Engine) Unmute(user int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	clears, ok := e.mutes.Unmute(user)
	if !ok {
		return false
	}

	e.applyClears(user, clears)
	e.persistMutes()
	log.Info().Int64("user_id", user).Msg("antiflood: unmuted, all counters cleared")
	return true
}

// ListMutes returns every active mute with its remaining duration.
// Expired entries encountered during listing are removed, but the counter
// tables are left alone.
func (e *Engine) ListMutes() []ActiveMute {
	e.mu.Lock()
	defer e.mu.Unlock()

	active, removed := e.mutes.ListActive(e.nowFunc())
	if removed > 0 {
		e.persistMutes()
	}
	return active
}

// UserSnapshot reports a user's current counts and mute status without
// recording anything.
func (e *Engine) UserSnapshot(user int64) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.nowFunc()
	snap := Snapshot{
		ShortTerm: e.short.Peek(user, now),
		Hourly:    e.hourly.Peek(user, now),
		Daily:     e.daily.Peek(user, now),
	}
	if state, until := e.mutes.Status(user, now); state == StateMuted {
		snap.MutedUntil = &until
	}
	return snap
}

// FlushAll persists every table. Used by the periodic flush job and on
// shutdown; failures are logged per table.
func (e *Engine) FlushAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.persistShort()
	e.persistHourly()
	e.persistDaily()
	e.persistMutes()
}

func (e *Engine) persistShort() {
	if e.store == nil {
		return
	}
	if err := e.store.SaveShortTerm(e.short.Snapshot()); err != nil {
		metrics.PersistErrorsTotal.Inc()
		log.Error().Err(err).Msg("antiflood: failed to persist short-term table")
	}
}

func (e *Engine) persistHourly() {
	if e.store == nil {
		return
	}
	if err := e.store.SaveHourly(e.hourly.Snapshot()); err != nil {
		metrics.PersistErrorsTotal.Inc()
		log.Error().Err(err).Msg("antiflood: failed to persist hourly table")
	}
}

func (e *Engine) persistDaily() {
	if e.store == nil {
		return
	}
	if err := e.store.SaveDaily(e.daily.Snapshot()); err != nil {
		metrics.PersistErrorsTotal.Inc()
		log.Error().Err(err).Msg("antiflood: failed to persist daily table")
	}
}

func (e *Engine) persistMutes() {
	if e.store == nil {
		return
	}
	if err := e.store.SaveMutes(e.mutes.Snapshot()); err != nil {
		metrics.PersistErrorsTotal.Inc()
		log.Error().Err(err).Msg("antiflood: failed to persist mute table")
	}
}
