package handlers

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiran/internal/commands"
	"kiran/internal/dispatch"
	"kiran/internal/telegram"
	"kiran/internal/types"
	"kiran/lib/translation"
)

type tableRegistrar struct {
	table *commands.Table[dispatch.Handler]
}

func (r tableRegistrar) Command(name string) *commands.Builder[dispatch.Handler] {
	return r.table.Define(name)
}

func (r tableRegistrar) Commands() []commands.Entry[dispatch.Handler] {
	return r.table.Entries()
}

type sink struct {
	mu    sync.Mutex
	texts []string
	modes []string
}

func (s *sink) Request(_ context.Context, _ string, params telegram.Params) (*types.APIResponse, error) {
	s.mu.Lock()
	s.texts = append(s.texts, params["text"])
	s.modes = append(s.modes, params["parse_mode"])
	s.mu.Unlock()
	return &types.APIResponse{OK: true, Result: json.RawMessage(`{"message_id": 1, "chat": {"id": 1, "type": "private"}}`)}, nil
}

func (s *sink) Close() error { return nil }

func setup(t *testing.T, stats Stats, started time.Time) (*dispatch.Dispatcher, *commands.Table[dispatch.Handler], *sink) {
	t.Helper()
	translation.Configure("../../locales", "en")

	logger := log.New()
	logger.SetOutput(io.Discard)

	table := commands.NewTable[dispatch.Handler]()
	_, err := Register(tableRegistrar{table}, stats, started)
	require.NoError(t, err)

	out := &sink{}
	d := dispatch.New(table, telegram.NewClient(out, logger), dispatch.WithLogger(logger))
	return d, table, out
}

func send(t *testing.T, d *dispatch.Dispatcher, text, lang string) {
	t.Helper()
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	err := d.Dispatch(context.Background(), types.Update{UpdateID: 1, Message: &types.Message{
		MessageID: 2,
		Chat:      types.Chat{ID: 3, Type: types.ChatPrivate},
		From:      &types.User{ID: 4, FirstName: "Ann", LanguageCode: lang},
		Text:      text,
		Entities:  []types.MessageEntity{{Type: types.EntityBotCommand, Offset: 0, Length: cmdLen}},
	}})
	require.NoError(t, err)
}

func TestRegisterMenus(t *testing.T) {
	_, table, _ := setup(t, nil, time.Now())

	groups := table.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "", groups[0].Language)
	assert.Equal(t, "ru", groups[1].Language)
	assert.Equal(t, []types.BotCommand{
		{Command: "start", Description: "Start the bot"},
		{Command: "help", Description: "List available commands"},
		{Command: "ping", Description: "Check that the bot is alive"},
		{Command: "status", Description: "Show bot uptime and statistics"},
	}, groups[0].Commands)
	assert.Equal(t, "Запустить бота", groups[1].Commands[0].Description)
}

func TestRegisterSkipsRegionalCatalogues(t *testing.T) {
	po, err := os.ReadFile("../../locales/en/default.po")
	require.NoError(t, err)
	dir := t.TempDir()
	for _, lang := range []string{"en", "pt_BR"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, lang), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, lang, "default.po"), po, 0o600))
	}
	translation.Configure(dir, "en")
	t.Cleanup(func() { translation.Configure("../../locales", "en") })

	table := commands.NewTable[dispatch.Handler]()
	_, err = Register(tableRegistrar{table}, nil, time.Now())
	require.NoError(t, err)

	groups := table.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "", groups[0].Language)
}

func TestStartAndPing(t *testing.T) {
	d, _, out := setup(t, nil, time.Now())

	send(t, d, "/start", "en")
	send(t, d, "/ping", "ru-RU")
	send(t, d, "/ping", "de")

	assert.Equal(t, []string{
		"Hi Ann! Send /help to see what I can do.",
		"понг",
		"pong",
	}, out.texts)
}

func TestHelp(t *testing.T) {
	d, _, out := setup(t, nil, time.Now())

	send(t, d, "/help", "ru")
	require.Len(t, out.texts, 1)
	assert.Equal(t, "MarkdownV2", out.modes[0])
	assert.Contains(t, out.texts[0], "*Доступные команды:*\n")
	assert.Contains(t, out.texts[0], `/ping \- Проверить, что бот работает`)
}

func TestHelpText(t *testing.T) {
	noop := func(*dispatch.Context) error { return nil }
	entries := []commands.Entry[dispatch.Handler]{
		{Descriptor: commands.Descriptor{Name: "a", Description: "Alpha"}, Surface: commands.SurfaceSlash, Handler: noop},
		{Descriptor: commands.Descriptor{Name: "roll", Description: "Roll"}, Surface: commands.SurfacePrefix, Handler: noop},
		{Descriptor: commands.Descriptor{Name: "b", Description: "Beta (fr)", Language: "fr"}, Surface: commands.SurfaceBoth, Handler: noop},
		{Descriptor: commands.Descriptor{Name: "a", Description: "Alpha (fr)", Language: "fr"}, Surface: commands.SurfaceSlash, Handler: noop},
		{Descriptor: commands.Descriptor{Name: "b", Description: "Beta"}, Surface: commands.SurfaceSlash, Handler: noop},
	}
	translation.Configure("../../locales", "en")

	assert.Equal(t, "*Available commands:*\n/a \\- Alpha\n/b \\- Beta\n", HelpText(entries, "en"))
	assert.Equal(t, "*Available commands:*\n/a \\- Alpha \\(fr\\)\n/b \\- Beta \\(fr\\)\n", HelpText(entries, "fr"))
}

func TestStatus(t *testing.T) {
	started := time.Now().Add(-2*time.Hour - time.Minute)
	d, _, out := setup(t, func() float64 { return 1234 }, started)

	send(t, d, "/status", "en")
	require.Len(t, out.texts, 1)
	assert.Equal(t, "Up for 2 hours, started 2 hours ago. Handled 1,234 messages.", out.texts[0])
}
