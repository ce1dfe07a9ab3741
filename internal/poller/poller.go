// Package poller implements the long polling loop: fetch updates after the
// committed offset, dispatch them in order, then commit the new offset.
package poller

import (
	"bytes"
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"kiran/internal/decoder"
	"kiran/internal/telegram"
	"kiran/internal/types"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultInterval      = time.Second
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
)

// Config tunes the loop.
type Config struct {
	// Timeout is the server side long poll timeout.
	Timeout time.Duration
	// Interval is the pause between batches.
	Interval       time.Duration
	Limit          int
	AllowedUpdates []types.UpdateKind
	// RetryAttempts counts every try of one fetch, the first included.
	RetryAttempts int
	RetryDelay    time.Duration
	// BotID keys the persisted offset.
	BotID int64
}

func (c *Config) setDefaults() {
	if c.Timeout < 0 {
		c.Timeout = 0
	}
	if c.Interval < 0 {
		c.Interval = 0
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		Timeout:       DefaultTimeout,
		Interval:      DefaultInterval,
		RetryAttempts: DefaultRetryAttempts,
		RetryDelay:    DefaultRetryDelay,
	}
}

type Fetcher interface {
	GetUpdates(ctx context.Context, r telegram.UpdatesRequest) (*types.APIResponse, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, u types.Update) error
}

// OffsetStore persists the committed offset between runs.
type OffsetStore interface {
	LoadOffset(ctx context.Context, botID int64) (int64, error)
	SaveOffset(ctx context.Context, botID int64, offset int64) error
}

// Recorder receives loop metrics.
type Recorder interface {
	BatchReceived(size int)
	PollFailed(err error)
	UpdateFailed()
	OffsetCommitted(offset int64)
}

type nopRecorder struct{}

func (nopRecorder) BatchReceived(int)     {}
func (nopRecorder) PollFailed(error)      {}
func (nopRecorder) UpdateFailed()         {}
func (nopRecorder) OffsetCommitted(int64) {}

type Option func(*Poller)

func WithStore(s OffsetStore) Option {
	return func(p *Poller) { p.store = s }
}

func WithLogger(l log.FieldLogger) Option {
	return func(p *Poller) { p.logger = l }
}

func WithRecorder(r Recorder) Option {
	return func(p *Poller) {
		if r != nil {
			p.recorder = r
		}
	}
}

// Poller is a single logical update stream. Run never overlaps two
// getUpdates calls.
type Poller struct {
	cfg        Config
	fetcher    Fetcher
	decoder    *decoder.Decoder
	dispatcher Dispatcher
	store      OffsetStore
	logger     log.FieldLogger
	recorder   Recorder

	running atomic.Bool
	mu      sync.Mutex
	offset  int64
}

func New(cfg Config, f Fetcher, dec *decoder.Decoder, d Dispatcher, opts ...Option) *Poller {
	cfg.setDefaults()
	p := &Poller{
		cfg:        cfg,
		fetcher:    f,
		decoder:    dec,
		dispatcher: d,
		logger:     log.StandardLogger(),
		recorder:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Offset is the last committed update_id.
func (p *Poller) Offset() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}

// PollOnce fetches the updates after offset. It returns them in server
// order with the highest update_id seen, or offset when there were none.
// The committed offset is left alone.
func (p *Poller) PollOnce(ctx context.Context, offset int64) ([]types.Update, int64, error) {
	resp, err := p.fetcher.GetUpdates(ctx, telegram.UpdatesRequest{
		Offset:         offset + 1,
		Limit:          p.cfg.Limit,
		Timeout:        p.cfg.Timeout,
		AllowedUpdates: p.cfg.AllowedUpdates,
	})
	if err != nil {
		return nil, offset, err
	}

	batch, err := p.decoder.Decode(resp)
	if err != nil {
		return nil, offset, err
	}
	for range batch.Failures {
		p.recorder.UpdateFailed()
	}

	newOffset := offset
	if batch.MaxUpdateID > newOffset {
		newOffset = batch.MaxUpdateID
	}
	return batch.Updates, newOffset, nil
}

// Run polls until ctx is done or fetching fails for good. Stop takes
// effect between batches: a batch that was received is dispatched and
// committed in full. It returns nil on stop and a *PollingError otherwise.
func (p *Poller) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	p.loadOffset(ctx)
	p.logger.WithField("offset", p.Offset()).Info("polling started")

	for {
		if ctx.Err() != nil {
			p.logger.Info("polling stopped")
			return nil
		}

		offset := p.Offset()
		updates, newOffset, err := p.fetch(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("polling stopped")
				return nil
			}
			return err
		}

		if len(updates) > 0 {
			p.logger.WithFields(log.Fields{"count": len(updates), "offset": offset}).Debug("received updates")
		}
		p.recorder.BatchReceived(len(updates))

		// handlers of a received batch run to completion even when stop
		// was requested meanwhile
		batchCtx := context.WithoutCancel(ctx)
		for _, u := range updates {
			p.dispatchOne(batchCtx, u)
		}
		p.commit(batchCtx, newOffset)

		if err := sleep(ctx, p.cfg.Interval); err != nil {
			p.logger.Info("polling stopped")
			return nil
		}
	}
}

// fetch runs PollOnce with the retry policy: RetryAttempts tries spaced by
// RetryDelay, or by the server's retry_after when that is longer.
func (p *Poller) fetch(ctx context.Context, offset int64) ([]types.Update, int64, error) {
	var (
		updates   []types.Update
		newOffset = offset
		attempts  int
	)
	delay := &retryAfterBackOff{base: backoff.NewConstantBackOff(p.cfg.RetryDelay)}

	op := func() error {
		attempts++
		u, off, err := p.PollOnce(ctx, offset)
		if err == nil {
			updates, newOffset = u, off
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		p.recorder.PollFailed(err)
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		var apiErr *telegram.APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			delay.next = time.Duration(apiErr.RetryAfter) * time.Second
		}
		p.logger.WithFields(log.Fields{
			"attempt": attempts,
			"of":      p.cfg.RetryAttempts,
			"offset":  offset,
		}).WithError(err).Warn("getUpdates failed")
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(delay, uint64(p.cfg.RetryAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if ctx.Err() != nil {
			return nil, offset, ctx.Err()
		}
		return nil, offset, &PollingError{Attempts: attempts, Offset: offset, Err: err}
	}
	return updates, newOffset, nil
}

func retryable(err error) bool {
	return telegram.IsTransient(err) || errors.Is(err, decoder.ErrMalformed)
}

// dispatchOne is the per-update error boundary.
func (p *Poller) dispatchOne(ctx context.Context, u types.Update) {
	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 4096)
			stackSize := runtime.Stack(stackBuf, false)
			stackTrace := bytes.TrimRight(stackBuf[:stackSize], "\x00")
			p.logger.Errorf("Recovered from panic: %v\nStack trace: %s", r, stackTrace)
			p.recorder.UpdateFailed()
		}
	}()

	if err := p.dispatcher.Dispatch(ctx, u); err != nil {
		p.logger.WithField("update_id", u.UpdateID).WithError(err).Error("failed to handle update")
		p.recorder.UpdateFailed()
	}
}

func (p *Poller) commit(ctx context.Context, offset int64) {
	p.mu.Lock()
	if offset <= p.offset {
		p.mu.Unlock()
		return
	}
	p.offset = offset
	p.mu.Unlock()

	p.recorder.OffsetCommitted(offset)
	if p.store == nil {
		return
	}
	if err := p.store.SaveOffset(ctx, p.cfg.BotID, offset); err != nil {
		p.logger.WithField("offset", offset).WithError(err).Warn("failed to persist offset")
	}
}

func (p *Poller) loadOffset(ctx context.Context) {
	if p.store == nil {
		return
	}
	offset, err := p.store.LoadOffset(ctx, p.cfg.BotID)
	if err != nil {
		p.logger.WithError(err).Warn("failed to load offset, starting from the server's")
		return
	}
	p.mu.Lock()
	if offset > p.offset {
		p.offset = offset
	}
	p.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryAfterBackOff waits the constant delay, or the server's retry_after
// once when that is longer.
type retryAfterBackOff struct {
	base backoff.BackOff
	next time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.base.NextBackOff()
	if b.next > d {
		d = b.next
	}
	b.next = 0
	return d
}

func (b *retryAfterBackOff) Reset() {
	b.base.Reset()
	b.next = 0
}
