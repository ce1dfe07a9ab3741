package kiran

import (
	log "github.com/sirupsen/logrus"

	"kiran/internal/metrics"
	"kiran/internal/telegram"
)

type Option func(*Bot)

// WithTransport replaces the Bot API connection, mostly for tests.
func WithTransport(t telegram.Transport) Option {
	return func(b *Bot) { b.transport = t }
}

// WithStore persists the update offset and the pushed command menus.
func WithStore(s Store) Option {
	return func(b *Bot) { b.store = s }
}

func WithLogger(l log.FieldLogger) Option {
	return func(b *Bot) {
		if l != nil {
			b.logger = l
		}
	}
}

func WithMetrics(m *metrics.BotMetrics) Option {
	return func(b *Bot) { b.metrics = m }
}
