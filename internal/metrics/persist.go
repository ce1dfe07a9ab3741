package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
)

// Load adds the persisted values to the collectors. Call it once, before
// the bot starts.
func (m *BotMetrics) Load(ctx context.Context, store Store) {
	m.mu.Lock()
	defer m.mu.Unlock()

	messagesHandled, err := store.GetMetric(ctx, "messages_handled")
	if err != nil {
		m.logger.WithError(err).Warn("Failed to load messages_handled")
	}
	m.MessagesHandled.Add(messagesHandled)

	updatesReceived, err := store.GetMetric(ctx, "updates_received")
	if err != nil {
		m.logger.WithError(err).Warn("Failed to load updates_received")
	}
	m.UpdatesReceived.Add(updatesReceived)

	m.loadLabeled(ctx, store, "channel_names", func(chatIDStr, chatName string, _ float64) {
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			m.logger.Warnf("Failed to parse chatID %s: %v", chatIDStr, err)
			return
		}
		m.ChannelNames.WithLabelValues(chatIDStr, chatName).Add(1)
		m.channelsSet[chatID] = chatName
	})
	m.ChannelsCount.Set(float64(len(m.channelsSet)))

	m.loadLabeled(ctx, store, "messages_per_channel", func(chatID, chatName string, value float64) {
		m.MessagesPerChannel.WithLabelValues(chatID, chatName).Add(value)
	})

	m.loadLabeled(ctx, store, "commands_processed", func(command, result string, value float64) {
		m.CommandsProcessed.WithLabelValues(command, result).Add(value)
	})

	m.logger.Debug("Metrics loaded from database.")
}

func (m *BotMetrics) loadLabeled(ctx context.Context, store Store, metricName string, callback func(labelKey, labelValue string, value float64)) {
	metricsWithLabels, err := store.GetMetricsWithLabels(ctx, metricName)
	if err != nil {
		m.logger.WithError(err).Warnf("Failed to load %s", metricName)
		return
	}
	for labelKey, labelValues := range metricsWithLabels {
		for labelValue, value := range labelValues {
			callback(labelKey, labelValue, value)
		}
	}
}

// Save writes the current values to store. It returns the first error
// and keeps going past it.
func (m *BotMetrics) Save(ctx context.Context, store Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	save := func(name, labelKey, labelValue string, value float64) {
		if err := store.SaveMetric(ctx, name, labelKey, labelValue, value); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	save("messages_handled", "", "", GetMetricValue(m.MessagesHandled))
	save("updates_received", "", "", GetMetricValue(m.UpdatesReceived))
	save("channels_count", "", "", float64(len(m.channelsSet)))

	for chatID, chatName := range m.channelsSet {
		save("channel_names", strconv.FormatInt(chatID, 10), chatName, float64(chatID))
	}

	collectLabeled(m.MessagesPerChannel, "chat_id", "chat_name", func(chatID, chatName string, value float64) {
		save("messages_per_channel", chatID, chatName, value)
	})
	collectLabeled(m.CommandsProcessed, "command", "result", func(command, result string, value float64) {
		save("commands_processed", command, result, value)
	})

	if firstErr == nil {
		m.logger.Debug("Metrics saved to database.")
	}
	return firstErr
}

// collectLabeled walks the children of a two label counter vector.
func collectLabeled(vec *prometheus.CounterVec, keyLabel, valueLabel string, fn func(key, value string, v float64)) {
	metricChan := make(chan prometheus.Metric, 1)
	go func() {
		vec.Collect(metricChan)
		close(metricChan)
	}()

	for metric := range metricChan {
		metricProto := &dto.Metric{}
		if err := metric.Write(metricProto); err != nil {
			log.Errorf("Failed to read %s metric: %v", keyLabel, err)
			continue
		}
		var key, value string
		for _, label := range metricProto.Label {
			switch label.GetName() {
			case keyLabel:
				key = label.GetValue()
			case valueLabel:
				value = label.GetValue()
			}
		}
		fn(key, value, metricProto.Counter.GetValue())
	}
}
