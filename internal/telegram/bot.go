package telegram

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"kiran/internal/types"
)

const defaultRequestGrace = 10 * time.Second

// Transport performs Bot API calls.
type Transport interface {
	Request(ctx context.Context, method string, params Params) (*types.APIResponse, error)
	Close() error
}

// BotTransport is a Transport on top of tgbotapi. All calls share one
// http.Client.
type BotTransport struct {
	api    *tgbotapi.BotAPI
	http   *http.Client
	cancel context.CancelFunc
	logger log.FieldLogger
}

// boundClient ties every request to the lifetime of the transport so Close
// aborts requests in flight.
type boundClient struct {
	ctx    context.Context
	client *http.Client
}

func (c boundClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

// NewBot creates the transport and checks the token with getMe.
func NewBot(c BotConfig, logger log.FieldLogger) (*BotTransport, error) {
	if c.Token == "" {
		return nil, ErrMissingToken
	}
	if c.Endpoint == "" {
		c.Endpoint = tgbotapi.APIEndpoint
	}
	if c.RequestGrace <= 0 {
		c.RequestGrace = defaultRequestGrace
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	if err := tgbotapi.SetLogger(logger.WithField("component", "tgbotapi")); err != nil {
		return nil, errors.Wrap(err, "could not set telegram logger")
	}

	httpClient := &http.Client{Timeout: c.UpdatesTimeout + c.RequestGrace}
	ctx, cancel := context.WithCancel(context.Background())

	bot, err := tgbotapi.NewBotAPIWithClient(c.Token, c.Endpoint, boundClient{ctx: ctx, client: httpClient})
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug

	logger.WithField("username", bot.Self.UserName).Debug("telegram transport ready")

	return &BotTransport{
		api:    bot,
		http:   httpClient,
		cancel: cancel,
		logger: logger,
	}, nil
}

// Self is the bot account reported by getMe at construction.
func (t *BotTransport) Self() types.User {
	return types.User{
		ID:           t.api.Self.ID,
		IsBot:        t.api.Self.IsBot,
		FirstName:    t.api.Self.FirstName,
		LastName:     t.api.Self.LastName,
		UserName:     t.api.Self.UserName,
		LanguageCode: t.api.Self.LanguageCode,
	}
}

// Request calls a Bot API method. When ctx ends first the call is abandoned
// and ctx.Err() is returned; the request itself ends with Close or its
// timeout.
func (t *BotTransport) Request(ctx context.Context, method string, params Params) (*types.APIResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		resp *tgbotapi.APIResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := t.api.MakeRequest(method, tgbotapi.Params(params))
		done <- result{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return convertResponse(method, r.resp, r.err)
	}
}

func convertResponse(method string, resp *tgbotapi.APIResponse, err error) (*types.APIResponse, error) {
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			return nil, &APIError{
				Method:      method,
				Code:        apiErr.Code,
				Description: apiErr.Message,
				RetryAfter:  apiErr.RetryAfter,
			}
		}
		return nil, &TransportError{Method: method, Err: err}
	}
	if resp == nil {
		return nil, &TransportError{Method: method, Err: ErrInvalidEnvelope}
	}

	out := &types.APIResponse{
		OK:          resp.Ok,
		Result:      resp.Result,
		ErrorCode:   resp.ErrorCode,
		Description: resp.Description,
	}
	if resp.Parameters != nil {
		out.Parameters = &types.ResponseParameters{
			MigrateToChatID: resp.Parameters.MigrateToChatID,
			RetryAfter:      resp.Parameters.RetryAfter,
		}
	}
	return out, nil
}

// Close aborts requests in flight and drops idle connections.
func (t *BotTransport) Close() error {
	t.cancel()
	t.http.CloseIdleConnections()
	return nil
}
