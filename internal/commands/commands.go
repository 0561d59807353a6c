// Package commands implements the operator-facing command layer. Every
// command is backed entirely by the engine's mutation API; this package
// only parses, authorizes and formats.
package commands

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"modguard/internal/antiflood"
	"modguard/internal/chat"

	"github.com/hako/durafmt"
	"github.com/rs/zerolog/log"
)

// privateReplyInterval limits how often the bot answers a non-owner user
// in private.
const privateReplyInterval = time.Minute

// Handler routes slash commands to the moderation engine.
type Handler struct {
	engine  *antiflood.Engine
	client  chat.Client
	ownerID int64

	mu          sync.Mutex
	lastPrivate map[int64]time.Time

	nowFunc func() time.Time
}

// NewHandler creates a command handler.
func NewHandler(engine *antiflood.Engine, client chat.Client, ownerID int64) *Handler {
	return &Handler{
		engine:      engine,
		client:      client,
		ownerID:     ownerID,
		lastPrivate: make(map[int64]time.Time),
		nowFunc:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes a command message. Command messages posted in a group
// are removed best-effort regardless of the command's validity.
func (h *Handler) Handle(ctx context.Context, msg *chat.Message) {
	if msg.Chat.Type != "private" {
		if err := h.client.DeleteMessage(ctx, msg.Chat.ID, msg.MessageID); err != nil {
			log.Debug().Err(err).Msg("commands: failed to delete command message")
		}
	}

	if msg.From == nil {
		return
	}
	issuer := msg.From.ID

	name, _, _ := strings.Cut(msg.Text, " ")
	// Strip the @botname suffix used in group chats.
	name, _, _ = strings.Cut(name, "@")

	switch name {
	case "/start":
		h.replyPrivate(ctx, issuer,
			"modguard watches the group for flooding. Exceeding the short-term, hourly or daily message limit restricts you automatically. Use /stats to see your current counters.")

	case "/lock":
		if !h.requireOwner(issuer) {
			return
		}
		h.engine.Lock()
		h.replyPrivate(ctx, issuer, "Group locked: only administrators may post.")

	case "/unlock":
		if !h.requireOwner(issuer) {
			return
		}
		h.engine.Unlock()
		h.replyPrivate(ctx, issuer, "Group unlocked.")

	case "/mute15":
		h.manualMute(ctx, msg, 15*time.Minute)
	case "/mute60":
		h.manualMute(ctx, msg, time.Hour)
	case "/mute24h":
		h.manualMute(ctx, msg, 24*time.Hour)
	case "/mute666":
		h.manualMute(ctx, msg, 666*time.Minute)

	case "/unmute":
		if !h.requireOwner(issuer) {
			return
		}
		target, ok := h.target(msg)
		if !ok {
			h.replyPrivate(ctx, issuer, "Usage: /unmute <user_id>, or reply to the user's message.")
			return
		}
		if h.engine.Unmute(target) {
			h.replyPrivate(ctx, issuer, fmt.Sprintf("User %d unmuted; all counters cleared.", target))
		} else {
			h.replyPrivate(ctx, issuer, fmt.Sprintf("User %d has no active mute.", target))
		}

	case "/listmute":
		if !h.requireOwner(issuer) {
			return
		}
		h.replyPrivate(ctx, issuer, formatMuteList(h.engine.ListMutes()))

	case "/stats":
		target := issuer
		if issuer == h.ownerID {
			if t, ok := h.target(msg); ok {
				target = t
			}
		}
		h.replyPrivate(ctx, issuer, formatSnapshot(target, h.engine.UserSnapshot(target), h.nowFunc()))

	default:
		log.Debug().Str("command", name).Msg("commands: unknown command ignored")
	}
}

func (h *Handler) manualMute(ctx context.Context, msg *chat.Message, d time.Duration) {
	issuer := msg.From.ID
	if !h.requireOwner(issuer) {
		return
	}

	target, ok := h.target(msg)
	if !ok {
		h.replyPrivate(ctx, issuer, "Usage: reply to the user's message, or pass a numeric user id.")
		return
	}

	if err := h.engine.ManualMute(target, d, "manual"); err != nil {
		h.replyPrivate(ctx, issuer, "Mute failed: "+err.Error())
		return
	}

	human := durafmt.Parse(d).LimitFirstN(2).String()
	h.replyPrivate(ctx, issuer, fmt.Sprintf("User %d muted for %s.", target, human))
}

// requireOwner authorizes privileged commands. Unauthorized attempts are
// logged and silently dropped (the command message is already deleted).
func (h *Handler) requireOwner(issuer int64) bool {
	if h.ownerID != 0 && issuer == h.ownerID {
		return true
	}
	log.Info().Int64("user_id", issuer).Msg("commands: privileged command from non-owner ignored")
	return false
}

// target resolves the subject of a mute/unmute/stats command: the sender
// of the replied-to message, or a numeric argument.
func (h *Handler) target(msg *chat.Message) (int64, bool) {
	if reply := msg.ReplyToMessage; reply != nil && reply.From != nil {
		return reply.From.ID, true
	}

	fields := strings.Fields(msg.Text)
	if len(fields) < 2 {
		return 0, false
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// replyPrivate answers the issuer in a direct chat, rate limited to one
// reply per minute for everyone but the owner.
func (h *Handler) replyPrivate(ctx context.Context, userID int64, text string) {
	now := h.nowFunc()

	if userID != h.ownerID {
		h.mu.Lock()
		last, seen := h.lastPrivate[userID]
		if seen && now.Sub(last) < privateReplyInterval {
			h.mu.Unlock()
			log.Debug().Int64("user_id", userID).Msg("commands: private reply rate limited")
			return
		}
		h.mu.Unlock()
	}

	if err := h.client.SendMessage(ctx, userID, text); err != nil {
		log.Info().Err(err).Int64("user_id", userID).Msg("commands: failed to send private reply")
		return
	}

	if userID != h.ownerID {
		h.mu.Lock()
		h.lastPrivate[userID] = now
		h.mu.Unlock()
	}
}

func formatMuteList(mutes []antiflood.ActiveMute) string {
	if len(mutes) == 0 {
		return "No active mutes."
	}

	sort.Slice(mutes, func(i, j int) bool { return mutes[i].Until.Before(mutes[j].Until) })

	var b strings.Builder
	b.WriteString("Active mutes:\n")
	for _, m := range mutes {
		remaining := durafmt.Parse(m.Remaining.Round(time.Second)).LimitFirstN(2).String()
		fmt.Fprintf(&b, "• %d: %s remaining\n", m.UserID, remaining)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSnapshot(user int64, snap antiflood.Snapshot, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stats for %d:\n", user)
	fmt.Fprintf(&b, "• short-term: %d\n", snap.ShortTerm)
	fmt.Fprintf(&b, "• hourly: %d\n", snap.Hourly)
	fmt.Fprintf(&b, "• daily: %d\n", snap.Daily)
	if snap.MutedUntil != nil {
		remaining := durafmt.Parse(snap.MutedUntil.Sub(now).Round(time.Second)).LimitFirstN(2).String()
		fmt.Fprintf(&b, "• muted for another %s", remaining)
	} else {
		b.WriteString("• not muted")
	}
	return b.String()
}
