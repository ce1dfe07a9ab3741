package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"kiran/internal/commands"
	"kiran/internal/telegram"
	"kiran/internal/types"
)

// Handler runs one command invocation.
type Handler func(ctx *Context) error

// Context is built for a single invocation and dropped when the handler
// returns.
type Context struct {
	context.Context

	ID      uuid.UUID
	Command commands.Descriptor
	Surface commands.Surface
	Prefix  string
	Args    string

	ChatID    int64
	MessageID int
	Text      string
	Message   *types.Message
	UpdateID  int64

	Client *telegram.Client
	Time   time.Time
	Logger log.FieldLogger
}

// Caller is the sender of the invoking message, nil for channel posts.
func (c *Context) Caller() *types.User {
	return c.Message.From
}

// Language is the caller's two-letter language code, or "".
func (c *Context) Language() string {
	return userLanguage(c.Message.From)
}

// Reply answers the invoking message with plain text.
func (c *Context) Reply(text string) (*types.Message, error) {
	return c.Send(telegram.Message{
		ChatID:           c.ChatID,
		ReplyToMessageID: c.MessageID,
		Text:             text,
	})
}

// ReplyMarkdown answers with MarkdownV2 text. The caller escapes it.
func (c *Context) ReplyMarkdown(text string) (*types.Message, error) {
	return c.Send(telegram.Message{
		ChatID:                c.ChatID,
		ReplyToMessageID:      c.MessageID,
		Text:                  text,
		ParseMode:             types.ParseModeMarkdownV2,
		DisableWebPagePreview: true,
	})
}

func (c *Context) Send(m telegram.Message) (*types.Message, error) {
	return c.Client.SendMessage(c, m)
}

func userLanguage(u *types.User) string {
	if u == nil || len(u.LanguageCode) < 2 {
		return ""
	}
	return u.LanguageCode[:2]
}
