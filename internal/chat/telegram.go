package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"modguard/internal/metrics"
)

const defaultBaseURL = "https://api.telegram.org"

// BotAPI is a Telegram Bot API client implementing Client.
type BotAPI struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewBotAPI creates a client for the public Telegram Bot API.
func NewBotAPI(token string) *BotAPI {
	return NewBotAPIWith(token, defaultBaseURL, nil)
}

// NewBotAPIWith creates a client against a custom endpoint, primarily for
// tests. A nil httpClient falls back to a client with a sane timeout.
func NewBotAPIWith(token, baseURL string, httpClient *http.Client) *BotAPI {
	if httpClient == nil {
		// Long polls hold the request open for up to 50s server-side.
		httpClient = &http.Client{Timeout: 65 * time.Second}
	}
	return &BotAPI{
		token:   token,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
	}
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

func (b *BotAPI) call(ctx context.Context, method string, params url.Values, result any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", b.baseURL, b.token, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.http.Do(req)
	if err != nil {
		metrics.ChatErrorsTotal.WithLabelValues(method).Inc()
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		metrics.ChatErrorsTotal.WithLabelValues(method).Inc()
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	if !envelope.OK {
		metrics.ChatErrorsTotal.WithLabelValues(method).Inc()
		return fmt.Errorf("%s rejected: %s (code %d)", method, envelope.Description, envelope.ErrorCode)
	}

	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}

	return nil
}

// DeleteMessage removes a message from a chat.
func (b *BotAPI) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("message_id", strconv.Itoa(messageID))
	return b.call(ctx, "deleteMessage", params, nil)
}

// SendMessage sends a plain-text message with notifications disabled.
func (b *BotAPI) SendMessage(ctx context.Context, chatID int64, text string) error {
	return b.send(ctx, chatID, text, "")
}

// SendHTML sends an HTML-formatted message with notifications disabled.
func (b *BotAPI) SendHTML(ctx context.Context, chatID int64, text string) error {
	return b.send(ctx, chatID, text, "HTML")
}

func (b *BotAPI) send(ctx context.Context, chatID int64, text, parseMode string) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)
	params.Set("disable_notification", "true")
	if parseMode != "" {
		params.Set("parse_mode", parseMode)
	}
	return b.call(ctx, "sendMessage", params, nil)
}

// MemberRole looks up a user's role in a chat via getChatMember.
func (b *BotAPI) MemberRole(ctx context.Context, chatID, userID int64) (Role, error) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("user_id", strconv.FormatInt(userID, 10))

	var member chatMember
	if err := b.call(ctx, "getChatMember", params, &member); err != nil {
		return RoleUnknown, err
	}

	switch member.Status {
	case "creator":
		return RoleCreator, nil
	case "administrator":
		return RoleAdministrator, nil
	case "member", "restricted":
		return RoleMember, nil
	default:
		// "left", "kicked" and anything the API adds later
		return RoleUnknown, nil
	}
}

// GetUpdates long-polls for new updates starting at offset.
func (b *BotAPI) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("timeout", strconv.Itoa(int(timeout.Seconds())))
	params.Set("allowed_updates", `["message"]`)

	var updates []Update
	if err := b.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}
