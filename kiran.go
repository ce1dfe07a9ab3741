// Package kiran is a Telegram Bot API framework: register commands, push
// them to the bot menu and serve them from a long polling loop.
package kiran

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"kiran/internal/commands"
	"kiran/internal/decoder"
	"kiran/internal/dispatch"
	"kiran/internal/metrics"
	"kiran/internal/poller"
	"kiran/internal/telegram"
	"kiran/internal/types"
)

// Config of a Bot.
type Config struct {
	Token string
	// Endpoint overrides the Bot API URL format, see tgbotapi.APIEndpoint.
	Endpoint     string
	Debug        bool
	Polling      PollingConfig
	DecodePolicy DecodePolicy
	// Prefixes enable prefix commands such as "!roll".
	Prefixes []string
	// SyncCommands pushes the command menu when Run starts.
	SyncCommands bool
}

func DefaultConfig() Config {
	return Config{
		Polling:      poller.DefaultConfig(),
		DecodePolicy: decoder.PolicySkip,
		SyncCommands: true,
	}
}

// Bot ties the transport, the command table, the dispatcher and the poller
// together. A Bot runs once; Run closes the transport when it returns.
type Bot struct {
	cfg        Config
	transport  telegram.Transport
	client     *telegram.Client
	table      *commands.Table[Handler]
	dispatcher *dispatch.Dispatcher
	syncer     *commands.Syncer
	store      Store
	metrics    *metrics.BotMetrics
	logger     log.FieldLogger

	started atomic.Bool
	mu      sync.Mutex
	self    *types.User
	poller  *poller.Poller
}

// New creates a bot. Without WithTransport it connects to the Bot API and
// checks the token with getMe.
func New(cfg Config, opts ...Option) (*Bot, error) {
	b := &Bot{
		cfg:    cfg,
		table:  commands.NewTable[Handler](),
		logger: log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.transport == nil {
		t, err := telegram.NewBot(telegram.BotConfig{
			Token:          cfg.Token,
			Endpoint:       cfg.Endpoint,
			Debug:          cfg.Debug,
			UpdatesTimeout: cfg.Polling.Timeout,
		}, b.logger)
		if err != nil {
			return nil, err
		}
		self := t.Self()
		b.self = &self
		b.transport = t
	}
	b.client = telegram.NewClient(b.transport, b.logger)

	dispatchOpts := []dispatch.Option{
		dispatch.WithPrefixes(cfg.Prefixes...),
		dispatch.WithLogger(b.logger),
	}
	if b.metrics != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithRecorder(b.metrics))
	}
	b.dispatcher = dispatch.New(b.table, b.client, dispatchOpts...)

	var scopes commands.ScopeStore
	if b.store != nil {
		scopes = b.store
	}
	b.syncer = commands.NewSyncer(b.client, scopes, b.logger)
	return b, nil
}

// Command starts the registration of a slash command.
func (b *Bot) Command(name string) *commands.Builder[Handler] {
	return b.table.Define(name)
}

// Handle registers a slash command for every language in the default
// scope.
func (b *Bot) Handle(name, description string, h Handler) error {
	return b.table.Define(name).Describe(description).Handle(h)
}

// On subscribes fn to raw updates of one kind.
func (b *Bot) On(kind UpdateKind, fn Listener) {
	b.dispatcher.On(kind, fn)
}

// Commands lists the registered commands in registration order.
func (b *Bot) Commands() []commands.Entry[Handler] {
	return b.table.Entries()
}

func (b *Bot) Client() *telegram.Client {
	return b.client
}

// Offset is the last committed update_id, 0 before Run.
func (b *Bot) Offset() int64 {
	b.mu.Lock()
	p := b.poller
	b.mu.Unlock()
	if p == nil {
		return 0
	}
	return p.Offset()
}

// Self returns the bot account, calling getMe once when it is not known.
func (b *Bot) Self(ctx context.Context) (*User, error) {
	b.mu.Lock()
	self := b.self
	b.mu.Unlock()
	if self != nil {
		return self, nil
	}

	u, err := b.client.GetMe(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not identify the bot")
	}
	b.mu.Lock()
	b.self = u
	b.mu.Unlock()
	return u, nil
}

// SyncCommands pushes the slash command menu, one call per (scope,
// language) group, and removes menus pushed earlier that are gone now.
func (b *Bot) SyncCommands(ctx context.Context) (*SyncReport, error) {
	return b.syncer.Sync(ctx, b.table.Groups())
}

// ResetCommands removes the menus this bot pushed.
func (b *Bot) ResetCommands(ctx context.Context) (*SyncReport, error) {
	return b.syncer.Reset(ctx)
}

// Run serves updates until ctx is done. It returns nil on stop and a
// *PollingError when polling fails for good. A failed getMe at startup is
// reported the same way, with Attempts set to 1 and Offset to 0.
func (b *Bot) Run(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer b.Close()

	b.table.Freeze()

	self, err := b.Self(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return &PollingError{Attempts: 1, Err: err}
	}
	b.dispatcher.SetUsername(self.UserName)

	if b.cfg.SyncCommands {
		if report, err := b.SyncCommands(ctx); err != nil {
			b.logger.WithError(err).Warn("command menu is out of date")
		} else {
			b.logger.WithFields(log.Fields{
				"pushed":  len(report.Pushed),
				"removed": len(report.Removed),
			}).Info("command menu synced")
		}
	}

	pcfg := b.cfg.Polling
	pcfg.BotID = self.ID
	pollOpts := []poller.Option{poller.WithLogger(b.logger)}
	if b.store != nil {
		pollOpts = append(pollOpts, poller.WithStore(b.store))
	}
	if b.metrics != nil {
		pollOpts = append(pollOpts, poller.WithRecorder(b.metrics))
	}
	p := poller.New(pcfg, b.client, decoder.New(b.cfg.DecodePolicy, b.logger), b.dispatcher, pollOpts...)

	b.mu.Lock()
	b.poller = p
	b.mu.Unlock()

	b.logger.WithFields(log.Fields{
		"username": self.UserName,
		"commands": b.table.Len(),
	}).Info("bot started")
	return p.Run(ctx)
}

// Close releases the transport.
func (b *Bot) Close() error {
	return b.transport.Close()
}
