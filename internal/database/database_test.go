package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiran/internal/commands"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger := log.New()
	logger.SetOutput(io.Discard)

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "bot.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOffsets(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	offset, err := s.LoadOffset(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, offset)

	require.NoError(t, s.SaveOffset(ctx, 1, 100))
	require.NoError(t, s.SaveOffset(ctx, 2, 7))
	require.NoError(t, s.SaveOffset(ctx, 1, 90))

	offset, err = s.LoadOffset(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), offset, "offset never goes back")

	offset, err = s.LoadOffset(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(7), offset)
}

func TestOffsetsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.db")
	ctx := context.Background()

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.SaveOffset(ctx, 5, 555))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	offset, err := s.LoadOffset(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(555), offset)
}

func TestCommandScopes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	keys, err := s.LoadCommandScopes(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, s.SaveCommandScopes(ctx, []commands.MenuKey{
		{Scope: "default"},
		{Scope: "chat:42", Language: "ru"},
		{Scope: "default"},
	}))
	keys, err = s.LoadCommandScopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []commands.MenuKey{{Scope: "chat:42", Language: "ru"}, {Scope: "default"}}, keys)

	require.NoError(t, s.SaveCommandScopes(ctx, []commands.MenuKey{{Scope: "all_private_chats", Language: "en"}}))
	keys, err = s.LoadCommandScopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []commands.MenuKey{{Scope: "all_private_chats", Language: "en"}}, keys)

	require.NoError(t, s.SaveCommandScopes(ctx, nil))
	keys, err = s.LoadCommandScopes(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMetrics(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v, err := s.GetMetric(ctx, "commands_processed")
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, s.SaveMetric(ctx, "commands_processed", "", "", 3))
	require.NoError(t, s.SaveMetric(ctx, "commands_processed", "", "", 12))
	require.NoError(t, s.SaveMetric(ctx, "messages_per_channel", "42", "Group", 5))
	require.NoError(t, s.SaveMetric(ctx, "messages_per_channel", "43", "PrivateChat-43", 1))

	v, err = s.GetMetric(ctx, "commands_processed")
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)

	labelled, err := s.GetMetricsWithLabels(ctx, "messages_per_channel")
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]float64{
		"42": {"Group": 5},
		"43": {"PrivateChat-43": 1},
	}, labelled)

	labelled, err = s.GetMetricsWithLabels(ctx, "commands_processed")
	require.NoError(t, err)
	assert.Empty(t, labelled)
}
