// Package database keeps the bot state that must survive a restart in
// SQLite: the committed update offset, the command menus that were pushed
// and the persisted metric values.
package database

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS offsets (
		bot_id INTEGER PRIMARY KEY,
		update_offset INTEGER NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS command_scopes (
		scope_key TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (scope_key, language)
	);`,
	`CREATE TABLE IF NOT EXISTS metrics (
		metric_name TEXT NOT NULL,
		label_key TEXT NOT NULL DEFAULT '',
		label_value TEXT NOT NULL DEFAULT '',
		metric_value REAL NOT NULL,
		PRIMARY KEY (metric_name, label_key, label_value)
	);`,
}

type Store struct {
	db     *sql.DB
	logger log.FieldLogger
}

// Open opens (and creates when missing) the database at path and applies
// the schema.
func Open(ctx context.Context, path string, logger log.FieldLogger) (*Store, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	// a single writer keeps SQLite from reporting SQLITE_BUSY
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "failed to create schema")
		}
	}

	logger.WithField("path", path).Debug("Database initialized successfully.")
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, b squirrel.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(ErrBuildQuery, err.Error())
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}
