package antiflood

import "time"

// Event is a single inbound message as seen by the decision engine.
// SenderID is zero for anonymous senders (no resolvable identity).
type Event struct {
	ChatID     int64
	MessageID  int
	SenderID   int64
	SenderName string
	Time       time.Time
	IsVoice    bool
	IsCommand  bool
}

// Outcome is the terminal decision for a message event.
type Outcome string

const (
	OutcomeAccepted       Outcome = "accepted"
	OutcomeIgnored        Outcome = "ignored"
	OutcomeExempt         Outcome = "exempt"
	OutcomeDeletedMuted   Outcome = "deleted_muted"
	OutcomeDeletedLocked  Outcome = "deleted_locked"
	OutcomeDeletedVoice   Outcome = "deleted_voice"
	OutcomeMutedShortTerm Outcome = "muted_short_term"
	OutcomeMutedHourly    Outcome = "muted_hourly"
	OutcomeMutedDaily     Outcome = "muted_daily"
)

// DailyEntry is a user's calendar-day message count. Date is the UTC
// midnight of the day the last counted message arrived.
type DailyEntry struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// ActiveMute pairs a muted user with how long the mute has left.
type ActiveMute struct {
	UserID    int64
	Until     time.Time
	Remaining time.Duration
}

// Snapshot is a user's current standing across all tables, for reporting.
type Snapshot struct {
	ShortTerm  int
	Hourly     int
	Daily      int
	MutedUntil *time.Time // nil when not actively muted
}

// ClearSet names the counter tables a mute-state transition also resets.
// The asymmetry between transitions is fixed here: automatic expiry spares
// the daily counter, an explicit unmute does not.
type ClearSet struct {
	ShortTerm bool
	Hourly    bool
	Daily     bool
}

var (
	// expiryClears applies when a mute lapses on the message path.
	expiryClears = ClearSet{ShortTerm: true, Hourly: true}

	// unmuteClears applies on an explicit unmute command.
	unmuteClears = ClearSet{ShortTerm: true, Hourly: true, Daily: true}
)
