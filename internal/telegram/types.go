package telegram

import (
	"time"

	"kiran/internal/types"
)

// BotConfig configuration of the transport
type BotConfig struct {
	Token string
	// Endpoint is a format string taking the token and the method name.
	Endpoint string
	Debug    bool
	// UpdatesTimeout is the long poll timeout. Requests are allowed this much
	// plus RequestGrace before the HTTP client gives up.
	UpdatesTimeout time.Duration
	RequestGrace   time.Duration
}

// Message an outgoing telegram message
type Message struct {
	ChatID                int64
	ReplyToMessageID      int
	Text                  string
	ParseMode             types.ParseMode
	DisableWebPagePreview bool
}

// Params encodes the message as sendMessage fields.
func (m Message) Params() Params {
	return Params{}.
		SetInt("chat_id", m.ChatID).
		Set("text", m.Text).
		SetEnum("parse_mode", m.ParseMode).
		SetInt("reply_to_message_id", int64(m.ReplyToMessageID)).
		SetBool("disable_web_page_preview", m.DisableWebPagePreview)
}

// UpdatesRequest are the getUpdates arguments.
type UpdatesRequest struct {
	Offset         int64
	Limit          int
	Timeout        time.Duration
	AllowedUpdates []types.UpdateKind
}
