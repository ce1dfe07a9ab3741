// Package dispatch routes decoded updates to event listeners and command
// handlers.
package dispatch

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"kiran/internal/commands"
	"kiran/internal/telegram"
	"kiran/internal/types"
)

var ErrHandlerPanic = errors.New("handler panicked")

// Listener receives raw updates of one kind.
type Listener func(ctx context.Context, u types.Update) error

// Recorder receives dispatch metrics.
type Recorder interface {
	MessageHandled(chat types.Chat)
	CommandProcessed(command string, err error, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) MessageHandled(types.Chat) {}

func (nopRecorder) CommandProcessed(string, error, time.Duration) {}

type Option func(*Dispatcher)

// WithPrefixes enables prefix commands, e.g. "!" for "!roll 2d6".
func WithPrefixes(prefixes ...string) Option {
	return func(d *Dispatcher) { d.prefixes = append(d.prefixes, prefixes...) }
}

// WithUsername ignores commands addressed to other bots ("/cmd@other").
func WithUsername(username string) Option {
	return func(d *Dispatcher) { d.username = strings.TrimPrefix(username, "@") }
}

func WithLogger(l log.FieldLogger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// Dispatcher runs handlers one at a time, in the order updates arrive.
type Dispatcher struct {
	table    *commands.Table[Handler]
	client   *telegram.Client
	prefixes []string
	username string

	mu        sync.RWMutex
	listeners map[types.UpdateKind][]Listener

	logger   log.FieldLogger
	recorder Recorder
	now      func() time.Time
}

func New(table *commands.Table[Handler], client *telegram.Client, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		table:     table,
		client:    client,
		listeners: make(map[types.UpdateKind][]Listener),
		logger:    log.StandardLogger(),
		recorder:  nopRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetUsername sets the bot name used to filter "/cmd@bot" mentions.
func (d *Dispatcher) SetUsername(username string) {
	d.mu.Lock()
	d.username = strings.TrimPrefix(username, "@")
	d.mu.Unlock()
}

// On subscribes fn to updates of the given kind.
func (d *Dispatcher) On(kind types.UpdateKind, fn Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[kind] = append(d.listeners[kind], fn)
}

// Dispatch feeds one update to its listeners and then to the command
// table. Only new messages can invoke commands.
func (d *Dispatcher) Dispatch(ctx context.Context, u types.Update) error {
	var errs []error

	d.mu.RLock()
	listeners := d.listeners[u.Kind()]
	d.mu.RUnlock()
	for i, fn := range listeners {
		if err := d.runListener(ctx, fn, u); err != nil {
			d.logger.WithFields(log.Fields{
				"update_id": u.UpdateID,
				"kind":      u.Kind().String(),
				"listener":  i,
			}).WithError(err).Error("listener failed")
			errs = append(errs, err)
		}
	}

	if u.Message != nil {
		if err := d.dispatchMessage(ctx, u.UpdateID, u.Message); err != nil {
			errs = append(errs, err)
		}
	}

	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errors.Wrapf(errs[0], "update %d", u.UpdateID)
	}
	return errors.Wrapf(errs[0], "update %d (and %d more errors)", u.UpdateID, len(errs)-1)
}

// Resolve finds the command a message invokes, trying the slash form
// first and configured prefixes second.
func (d *Dispatcher) Resolve(msg *types.Message) (*commands.Entry[Handler], Invocation, bool) {
	lang := userLanguage(msg.From)

	if inv, ok := ExtractCommand(msg); ok && d.addressedToUs(inv) {
		if e, ok := d.table.Lookup(inv.Name, commands.SurfaceSlash, lang); ok {
			return e, inv, true
		}
	}
	if inv, ok := ExtractPrefixed(msg.Text, d.prefixes); ok && d.addressedToUs(inv) {
		if e, ok := d.table.Lookup(inv.Name, commands.SurfacePrefix, lang); ok {
			return e, inv, true
		}
	}
	return nil, Invocation{}, false
}

func (d *Dispatcher) addressedToUs(inv Invocation) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return inv.Mention == "" || d.username == "" || strings.EqualFold(inv.Mention, d.username)
}

func (d *Dispatcher) dispatchMessage(ctx context.Context, updateID int64, msg *types.Message) error {
	entry, inv, ok := d.Resolve(msg)
	if !ok {
		return nil
	}

	d.recorder.MessageHandled(msg.Chat)

	cctx := &Context{
		Context:   ctx,
		ID:        uuid.New(),
		Command:   entry.Descriptor,
		Surface:   inv.Surface,
		Prefix:    inv.Prefix,
		Args:      inv.Args,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
		Message:   msg,
		UpdateID:  updateID,
		Client:    d.client,
		Time:      d.now(),
	}
	cctx.Logger = d.logger.WithFields(log.Fields{
		"invocation": cctx.ID.String(),
		"command":    inv.Name,
		"chat_id":    cctx.ChatID,
	})
	cctx.Logger.WithField("surface", inv.Surface.String()).Debug("invoking command")

	start := d.now()
	err := d.runHandler(cctx, entry.Handler)
	d.recorder.CommandProcessed(inv.Name, err, d.now().Sub(start))
	if err != nil {
		cctx.Logger.WithError(err).Error("command failed")
		return errors.Wrapf(err, "command %s", inv.Name)
	}
	return nil
}

func (d *Dispatcher) runHandler(ctx *Context, h Handler) (err error) {
	defer recoverPanic(d.logger, &err)
	return h(ctx)
}

func (d *Dispatcher) runListener(ctx context.Context, fn Listener, u types.Update) (err error) {
	defer recoverPanic(d.logger, &err)
	return fn(ctx, u)
}

func recoverPanic(logger log.FieldLogger, err *error) {
	r := recover()
	if r == nil {
		return
	}
	stackBuf := make([]byte, 4096)
	stackSize := runtime.Stack(stackBuf, false)
	stackTrace := bytes.TrimRight(stackBuf[:stackSize], "\x00")
	logger.Errorf("Recovered from panic: %v\nStack trace: %s", r, stackTrace)
	*err = errors.Wrapf(ErrHandlerPanic, "%v", r)
}
