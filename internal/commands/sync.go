package commands

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"kiran/internal/types"
)

// MenuClient is the part of the Bot API the syncer needs.
type MenuClient interface {
	SetMyCommands(ctx context.Context, commands []types.BotCommand, scope types.BotCommandScope, lang string) error
	DeleteMyCommands(ctx context.Context, scope types.BotCommandScope, lang string) error
}

// ScopeStore remembers which menus were pushed so later runs can remove
// the ones that are gone.
type ScopeStore interface {
	LoadCommandScopes(ctx context.Context) ([]MenuKey, error)
	SaveCommandScopes(ctx context.Context, keys []MenuKey) error
}

type GroupFailure struct {
	Key MenuKey
	Err error
}

// SyncReport lists the outcome per menu.
type SyncReport struct {
	Pushed  []MenuKey
	Removed []MenuKey
	Failed  []GroupFailure
}

// Syncer pushes command menus, one setMyCommands call per group.
type Syncer struct {
	client MenuClient
	store  ScopeStore
	logger log.FieldLogger
}

// NewSyncer creates a syncer. store may be nil, then stale menus are not
// tracked.
func NewSyncer(client MenuClient, store ScopeStore, logger log.FieldLogger) *Syncer {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Syncer{client: client, store: store, logger: logger}
}

// Sync pushes every group. A failing group does not stop the others; the
// returned error wraps ErrSyncIncomplete when any call failed.
func (s *Syncer) Sync(ctx context.Context, groups []Group) (*SyncReport, error) {
	report := &SyncReport{}
	previous := s.loadScopes(ctx)

	current := make(map[MenuKey]bool, len(groups))
	attempted := len(groups)
	var keep []MenuKey
	for _, g := range groups {
		current[g.Key] = true
		err := s.client.SetMyCommands(ctx, g.Commands, g.Scope, g.Language)
		if err != nil {
			s.logger.WithField("menu", g.Key.String()).WithError(err).Error("failed to set commands")
			report.Failed = append(report.Failed, GroupFailure{Key: g.Key, Err: err})
			// the old menu for this key may still be live
			if contains(previous, g.Key) {
				keep = append(keep, g.Key)
			}
			continue
		}
		s.logger.WithFields(log.Fields{"menu": g.Key.String(), "count": len(g.Commands)}).Debug("set commands for menu")
		report.Pushed = append(report.Pushed, g.Key)
		keep = append(keep, g.Key)
	}

	for _, key := range previous {
		if current[key] {
			continue
		}
		attempted++
		if err := s.deleteMenu(ctx, key); err != nil {
			s.logger.WithField("menu", key.String()).WithError(err).Warn("failed to remove stale commands")
			report.Failed = append(report.Failed, GroupFailure{Key: key, Err: err})
			keep = append(keep, key)
			continue
		}
		report.Removed = append(report.Removed, key)
	}

	s.saveScopes(ctx, keep)

	s.logger.WithFields(log.Fields{
		"pushed":  len(report.Pushed),
		"removed": len(report.Removed),
		"failed":  len(report.Failed),
	}).Info("synced commands to Telegram")

	if len(report.Failed) > 0 {
		return report, errors.Wrapf(ErrSyncIncomplete, "%d of %d menus failed", len(report.Failed), attempted)
	}
	return report, nil
}

// Reset removes every stored menu, or the four broad default menus when
// nothing is stored.
func (s *Syncer) Reset(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{}
	keys := s.loadScopes(ctx)
	if len(keys) == 0 {
		for _, scope := range []types.BotCommandScope{
			types.ScopeDefault{},
			types.ScopeAllPrivateChats{},
			types.ScopeAllGroupChats{},
			types.ScopeAllChatAdministrators{},
		} {
			keys = append(keys, MenuKey{Scope: scope.ScopeKey()})
		}
	}

	var keep []MenuKey
	for _, key := range keys {
		if err := s.deleteMenu(ctx, key); err != nil {
			s.logger.WithField("menu", key.String()).WithError(err).Warn("failed to reset commands")
			report.Failed = append(report.Failed, GroupFailure{Key: key, Err: err})
			keep = append(keep, key)
			continue
		}
		report.Removed = append(report.Removed, key)
	}
	s.saveScopes(ctx, keep)

	if len(report.Failed) > 0 {
		return report, errors.Wrapf(ErrSyncIncomplete, "%d of %d menus not reset", len(report.Failed), len(keys))
	}
	return report, nil
}

func (s *Syncer) deleteMenu(ctx context.Context, key MenuKey) error {
	scope, err := types.ParseScopeKey(key.Scope)
	if err != nil {
		return err
	}
	return s.client.DeleteMyCommands(ctx, scope, key.Language)
}

func (s *Syncer) loadScopes(ctx context.Context) []MenuKey {
	if s.store == nil {
		return nil
	}
	keys, err := s.store.LoadCommandScopes(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("failed to load command scopes")
		return nil
	}
	return keys
}

func (s *Syncer) saveScopes(ctx context.Context, keys []MenuKey) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveCommandScopes(ctx, keys); err != nil {
		s.logger.WithError(err).Warn("failed to save command scopes")
	}
}

func contains(keys []MenuKey, key MenuKey) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
