package chat

// Wire types for the Telegram Bot API. Only the fields the moderation
// engine and command layer consume are mapped.

// Update is a single getUpdates result entry.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID      int      `json:"message_id"`
	From           *User    `json:"from,omitempty"`
	SenderChat     *Chat    `json:"sender_chat,omitempty"`
	Chat           Chat     `json:"chat"`
	Date           int64    `json:"date"` // unix seconds
	Text           string   `json:"text,omitempty"`
	Voice          *Voice   `json:"voice,omitempty"`
	ReplyToMessage *Message `json:"reply_to_message,omitempty"`
}

// IsAnonymous reports whether the message has no resolvable sender
// identity (channel posts, anonymous group admins).
func (m *Message) IsAnonymous() bool {
	return m.From == nil || m.SenderChat != nil
}

// User identifies a message sender.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"` // "private", "group", "supergroup", "channel"
}

// Voice marks a message as a voice recording.
type Voice struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
}

// chatMember is the getChatMember result payload.
type chatMember struct {
	Status string `json:"status"`
}
