// Package chat provides a minimal Telegram Bot API client and a long-poll
// update source. The moderation core only depends on the Client interface;
// everything Telegram-specific stays behind it.
package chat

import "context"

// Role is a member's standing in a group, as reported by the platform.
type Role string

const (
	RoleCreator       Role = "creator"
	RoleAdministrator Role = "administrator"
	RoleMember        Role = "member"
	RoleUnknown       Role = "unknown"
)

// Privileged reports whether the role bypasses the group lock.
func (r Role) Privileged() bool {
	return r == RoleCreator || r == RoleAdministrator
}

// Client is the outbound surface the moderation core requests from the
// chat platform. Implementations must be safe for concurrent use.
type Client interface {
	// DeleteMessage removes a message from a chat.
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error

	// SendMessage sends a plain-text message without notification sound.
	SendMessage(ctx context.Context, chatID int64, text string) error

	// SendHTML sends an HTML-formatted message without notification sound.
	SendHTML(ctx context.Context, chatID int64, text string) error

	// MemberRole looks up a user's role in a chat. A failed lookup
	// returns RoleUnknown together with the error.
	MemberRole(ctx context.Context, chatID, userID int64) (Role, error)
}
