package database

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"kiran/internal/commands"
)

// LoadCommandScopes lists the menus pushed by the last sync.
func (s *Store) LoadCommandScopes(ctx context.Context) ([]commands.MenuKey, error) {
	query, args, err := squirrel.Select("scope_key", "language").
		From("command_scopes").
		OrderBy("scope_key", "language").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(ErrBuildQuery, err.Error())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query command scopes")
	}
	defer rows.Close()

	var keys []commands.MenuKey
	for rows.Next() {
		var k commands.MenuKey
		if err := rows.Scan(&k.Scope, &k.Language); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		keys = append(keys, k)
	}
	return keys, errors.Wrap(rows.Err(), "failed to read command scopes")
}

// SaveCommandScopes replaces the stored menu list with keys.
func (s *Store) SaveCommandScopes(ctx context.Context, keys []commands.MenuKey) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	query, args, err := squirrel.Delete("command_scopes").ToSql()
	if err != nil {
		return errors.Wrap(ErrBuildQuery, err.Error())
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "failed to clear command scopes")
	}

	if len(keys) > 0 {
		insert := squirrel.Insert("command_scopes").Options("OR IGNORE").Columns("scope_key", "language")
		for _, k := range keys {
			insert = insert.Values(k.Scope, k.Language)
		}
		query, args, err = insert.ToSql()
		if err != nil {
			return errors.Wrap(ErrBuildQuery, err.Error())
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrap(err, "failed to save command scopes")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit command scopes")
}
