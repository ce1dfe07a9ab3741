// Package metrics exposes the bot counters to Prometheus and persists them
// between restarts.
package metrics

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"

	"kiran/internal/types"
)

const (
	namespace = "kiran"
	subsystem = "bot"
)

// Store persists metric samples.
type Store interface {
	SaveMetric(ctx context.Context, metricName, labelKey, labelValue string, value float64) error
	GetMetric(ctx context.Context, metricName string) (float64, error)
	GetMetricsWithLabels(ctx context.Context, metricName string) (map[string]map[string]float64, error)
}

// BotMetrics implements the dispatch and poller recorders. A nil
// *BotMetrics records nothing.
type BotMetrics struct {
	CommandsProcessed  *prometheus.CounterVec
	CommandDuration    *prometheus.HistogramVec
	MessagesHandled    prometheus.Counter
	ChannelsCount      prometheus.Gauge
	ChannelNames       *prometheus.CounterVec
	MessagesPerChannel *prometheus.CounterVec
	UpdatesReceived    prometheus.Counter
	UpdateFailures     prometheus.Counter
	PollFailures       prometheus.Counter
	Offset             prometheus.Gauge

	mu          sync.Mutex
	channelsSet map[int64]string
	logger      log.FieldLogger
}

func New(reg prometheus.Registerer, logger log.FieldLogger) *BotMetrics {
	if logger == nil {
		logger = log.StandardLogger()
	}
	m := &BotMetrics{
		CommandsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "commands_processed",
			Help:      "The total number of processed commands",
		}, []string{"command", "result"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "command_duration_seconds",
			Help:      "Time spent in command handlers",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		MessagesHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_handled",
			Help:      "The total number of handled messages",
		}),
		ChannelsCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "channels_count",
			Help:      "The current number of unique channels the bot is operating in",
		}),
		ChannelNames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "channel_names",
			Help:      "Tracks channels the bot has interacted with",
		}, []string{"chat_id", "chat_name"}),
		MessagesPerChannel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_per_channel",
			Help:      "The total number of messages handled per channel",
		}, []string{"chat_id", "chat_name"}),
		UpdatesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "updates_received",
			Help:      "The total number of updates returned by getUpdates",
		}),
		UpdateFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "update_failures",
			Help:      "Updates that could not be decoded or handled",
		}),
		PollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poll_failures",
			Help:      "Failed getUpdates attempts",
		}),
		Offset: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "committed_offset",
			Help:      "The last committed update_id",
		}),
		channelsSet: make(map[int64]string),
		logger:      logger,
	}

	if reg != nil {
		reg.MustRegister(
			m.CommandsProcessed,
			m.CommandDuration,
			m.MessagesHandled,
			m.ChannelsCount,
			m.ChannelNames,
			m.MessagesPerChannel,
			m.UpdatesReceived,
			m.UpdateFailures,
			m.PollFailures,
			m.Offset,
		)
	}
	return m
}

func chatName(chat types.Chat) string {
	if name := chat.DisplayName(); name != "" {
		return name
	}
	return fmt.Sprintf("%s-%d", "PrivateChat", chat.ID)
}

func (m *BotMetrics) MessageHandled(chat types.Chat) {
	if m == nil {
		return
	}
	m.MessagesHandled.Inc()
	name := chatName(chat)
	m.updateChannelsSet(chat.ID, name)
	m.MessagesPerChannel.WithLabelValues(strconv.FormatInt(chat.ID, 10), name).Inc()
}

func (m *BotMetrics) CommandProcessed(command string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CommandsProcessed.WithLabelValues(command, result).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

func (m *BotMetrics) BatchReceived(size int) {
	if m == nil {
		return
	}
	m.UpdatesReceived.Add(float64(size))
}

func (m *BotMetrics) PollFailed(error) {
	if m == nil {
		return
	}
	m.PollFailures.Inc()
}

func (m *BotMetrics) UpdateFailed() {
	if m == nil {
		return
	}
	m.UpdateFailures.Inc()
}

func (m *BotMetrics) OffsetCommitted(offset int64) {
	if m == nil {
		return
	}
	m.Offset.Set(float64(offset))
}

func (m *BotMetrics) updateChannelsSet(chatID int64, chatName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.channelsSet[chatID]; !exists {
		m.channelsSet[chatID] = chatName
		m.ChannelsCount.Set(float64(len(m.channelsSet)))
		m.ChannelNames.WithLabelValues(strconv.FormatInt(chatID, 10), chatName).Inc()
	}
}

// GetMetricValue reads the current value of a single counter or gauge.
func GetMetricValue(metric prometheus.Collector) float64 {
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	sample, ok := <-metricChan
	if !ok {
		return 0
	}
	metricProto := &dto.Metric{}
	if err := sample.Write(metricProto); err != nil {
		log.Errorf("Failed to read metric value: %v", err)
		return 0
	}

	switch {
	case metricProto.Counter != nil:
		return metricProto.Counter.GetValue()
	case metricProto.Gauge != nil:
		return metricProto.Gauge.GetValue()
	}
	return 0
}
