package telegram

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"kiran/internal/types"
)

// Client exposes typed Bot API methods over a Transport.
type Client struct {
	transport Transport
	logger    log.FieldLogger
}

func NewClient(t Transport, logger log.FieldLogger) *Client {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Client{transport: t, logger: logger}
}

// Transport returns the underlying transport.
func (c *Client) Transport() Transport { return c.transport }

// Call performs any Bot API method and decodes its result into out, which
// may be nil.
func (c *Client) Call(ctx context.Context, method string, params Params, out interface{}) error {
	resp, err := c.transport.Request(ctx, method, params)
	if err != nil {
		return err
	}
	if !resp.OK {
		return &APIError{Method: method, Code: resp.ErrorCode, Description: resp.Description}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return &TransportError{Method: method, Err: errors.Wrap(ErrInvalidEnvelope, err.Error())}
	}
	return nil
}

func (c *Client) GetMe(ctx context.Context) (*types.User, error) {
	var u types.User
	if err := c.Call(ctx, "getMe", Params{}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUpdates returns the raw envelope; decoding is left to the caller so a
// bad update does not spoil the batch.
func (c *Client) GetUpdates(ctx context.Context, r UpdatesRequest) (*types.APIResponse, error) {
	params := Params{}.
		SetInt("offset", r.Offset).
		SetInt("limit", int64(r.Limit)).
		SetInt("timeout", int64(r.Timeout.Seconds()))
	if len(r.AllowedUpdates) > 0 {
		if err := params.SetObject("allowed_updates", r.AllowedUpdates); err != nil {
			return nil, err
		}
	}
	return c.transport.Request(ctx, "getUpdates", params)
}

func commandParams(scope types.BotCommandScope, lang string) (Params, error) {
	params := Params{}.Set("language_code", lang)
	if err := params.SetObject("scope", types.ScopeOrDefault(scope)); err != nil {
		return nil, err
	}
	return params, nil
}

// SetMyCommands replaces the command menu of one (scope, language) pair.
func (c *Client) SetMyCommands(ctx context.Context, commands []types.BotCommand, scope types.BotCommandScope, lang string) error {
	params, err := commandParams(scope, lang)
	if err != nil {
		return err
	}
	if err := params.SetObject("commands", commands); err != nil {
		return err
	}
	return c.Call(ctx, "setMyCommands", params, nil)
}

func (c *Client) DeleteMyCommands(ctx context.Context, scope types.BotCommandScope, lang string) error {
	params, err := commandParams(scope, lang)
	if err != nil {
		return err
	}
	return c.Call(ctx, "deleteMyCommands", params, nil)
}

func (c *Client) GetMyCommands(ctx context.Context, scope types.BotCommandScope, lang string) ([]types.BotCommand, error) {
	params, err := commandParams(scope, lang)
	if err != nil {
		return nil, err
	}
	var out []types.BotCommand
	if err := c.Call(ctx, "getMyCommands", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage sends a telegram message
func (c *Client) SendMessage(ctx context.Context, m Message) (*types.Message, error) {
	var sent types.Message
	if err := c.Call(ctx, "sendMessage", m.Params(), &sent); err != nil {
		return nil, errors.Wrapf(err, "could not send message to chat %d", m.ChatID)
	}
	c.logger.WithFields(log.Fields{"chat_id": m.ChatID, "message_id": sent.MessageID}).Debug("message sent")
	return &sent, nil
}
