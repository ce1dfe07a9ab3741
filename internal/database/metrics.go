package database

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SaveMetric stores one sample. Unlabelled metrics use empty label key and
// value.
func (s *Store) SaveMetric(ctx context.Context, metricName, labelKey, labelValue string, value float64) error {
	b := squirrel.Insert("metrics").
		Options("OR REPLACE").
		Columns("metric_name", "label_key", "label_value", "metric_value").
		Values(metricName, labelKey, labelValue, value)
	if err := s.exec(ctx, b); err != nil {
		return errors.Wrapf(err, "failed to save metric %s", metricName)
	}
	s.logger.WithFields(log.Fields{
		"metric": metricName,
		"label":  labelKey + "=" + labelValue,
		"value":  value,
	}).Debug("Metric saved")
	return nil
}

// GetMetric loads an unlabelled metric, 0 when it was never saved.
func (s *Store) GetMetric(ctx context.Context, metricName string) (float64, error) {
	query, args, err := squirrel.Select("metric_value").
		From("metrics").
		Where(squirrel.Eq{"metric_name": metricName, "label_key": "", "label_value": ""}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(ErrBuildQuery, err.Error())
	}

	var value float64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debugf("Metric %s not found in the database, defaulting to 0", metricName)
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get metric %s", metricName)
	}
	return value, nil
}

// GetMetricsWithLabels fetches all labelled samples of a metric keyed by
// label key, then label value.
func (s *Store) GetMetricsWithLabels(ctx context.Context, metricName string) (map[string]map[string]float64, error) {
	query, args, err := squirrel.Select("label_key", "label_value", "metric_value").
		From("metrics").
		Where(squirrel.Eq{"metric_name": metricName}).
		Where(squirrel.NotEq{"label_key": ""}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(ErrBuildQuery, err.Error())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query metrics with labels")
	}
	defer rows.Close()

	metrics := make(map[string]map[string]float64)
	for rows.Next() {
		var labelKey, labelValue string
		var value float64
		if err := rows.Scan(&labelKey, &labelValue, &value); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}

		if _, exists := metrics[labelKey]; !exists {
			metrics[labelKey] = make(map[string]float64)
		}
		metrics[labelKey][labelValue] = value
	}
	return metrics, errors.Wrap(rows.Err(), "failed to read metrics")
}
