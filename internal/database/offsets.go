package database

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// LoadOffset returns the last committed update_id of the bot, 0 when none
// was saved yet.
func (s *Store) LoadOffset(ctx context.Context, botID int64) (int64, error) {
	query, args, err := squirrel.Select("update_offset").
		From("offsets").
		Where(squirrel.Eq{"bot_id": botID}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(ErrBuildQuery, err.Error())
	}

	var offset int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "failed to load offset of bot %d", botID)
	}
	return offset, nil
}

// SaveOffset stores offset unless a higher one is already there.
func (s *Store) SaveOffset(ctx context.Context, botID, offset int64) error {
	b := squirrel.Insert("offsets").
		Columns("bot_id", "update_offset").
		Values(botID, offset).
		Suffix("ON CONFLICT(bot_id) DO UPDATE SET update_offset = MAX(update_offset, excluded.update_offset), updated_at = CURRENT_TIMESTAMP")
	if err := s.exec(ctx, b); err != nil {
		return errors.Wrapf(err, "failed to save offset %d of bot %d", offset, botID)
	}
	s.logger.WithFields(log.Fields{"bot_id": botID, "offset": offset}).Debug("Offset saved")
	return nil
}
