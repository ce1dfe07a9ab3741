package commands

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiran/internal/types"
)

type menuCall struct {
	Op       string
	Scope    string
	Language string
	Commands []types.BotCommand
}

type fakeMenuClient struct {
	mu    sync.Mutex
	calls []menuCall
	fail  map[string]bool // scope key|lang
}

func (f *fakeMenuClient) SetMyCommands(_ context.Context, cmds []types.BotCommand, scope types.BotCommandScope, lang string) error {
	return f.record(menuCall{Op: "set", Scope: scope.ScopeKey(), Language: lang, Commands: cmds})
}

func (f *fakeMenuClient) DeleteMyCommands(_ context.Context, scope types.BotCommandScope, lang string) error {
	return f.record(menuCall{Op: "delete", Scope: scope.ScopeKey(), Language: lang})
}

func (f *fakeMenuClient) record(c menuCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.fail[c.Scope+"|"+c.Language] {
		return errors.New("Bad Request: BOT_COMMAND_INVALID")
	}
	return nil
}

type memScopeStore struct {
	keys []MenuKey
}

func (m *memScopeStore) LoadCommandScopes(context.Context) ([]MenuKey, error) {
	return append([]MenuKey(nil), m.keys...), nil
}

func (m *memScopeStore) SaveCommandScopes(_ context.Context, keys []MenuKey) error {
	m.keys = append([]MenuKey(nil), keys...)
	return nil
}

func quietLogger() log.FieldLogger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func sampleTable(t *testing.T) *Table[handler] {
	tbl := NewTable[handler]()
	require.NoError(t, tbl.Define("start").Describe("Start").Handle(named("1")))
	require.NoError(t, tbl.Define("start").Describe("Старт").Language("ru").Handle(named("2")))
	require.NoError(t, tbl.Define("ban").Describe("Ban").Scope(types.ScopeAllChatAdministrators{}).Handle(named("3")))
	return tbl
}

func TestSyncOneCallPerGroup(t *testing.T) {
	client := &fakeMenuClient{}
	store := &memScopeStore{}
	s := NewSyncer(client, store, quietLogger())

	report, err := s.Sync(context.Background(), sampleTable(t).Groups())
	require.NoError(t, err)
	assert.Len(t, report.Pushed, 3)
	assert.Empty(t, report.Failed)

	require.Len(t, client.calls, 3)
	assert.Equal(t, menuCall{Op: "set", Scope: "default", Commands: []types.BotCommand{{Command: "start", Description: "Start"}}}, client.calls[0])
	assert.Equal(t, "ru", client.calls[1].Language)
	assert.Equal(t, "all_chat_administrators", client.calls[2].Scope)

	assert.Equal(t, report.Pushed, store.keys)
}

func TestSyncGroupFailureIsIndependent(t *testing.T) {
	client := &fakeMenuClient{fail: map[string]bool{"default|ru": true}}
	s := NewSyncer(client, &memScopeStore{}, quietLogger())

	report, err := s.Sync(context.Background(), sampleTable(t).Groups())
	assert.True(t, errors.Is(err, ErrSyncIncomplete))
	require.NotNil(t, report)

	assert.Len(t, client.calls, 3, "every group is attempted")
	assert.Equal(t, []MenuKey{{Scope: "default"}, {Scope: "all_chat_administrators"}}, report.Pushed)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, MenuKey{Scope: "default", Language: "ru"}, report.Failed[0].Key)
}

func TestSyncRemovesStaleMenus(t *testing.T) {
	client := &fakeMenuClient{}
	store := &memScopeStore{keys: []MenuKey{
		{Scope: "default"},
		{Scope: "chat:42", Language: "de"},
	}}
	s := NewSyncer(client, store, quietLogger())

	tbl := NewTable[handler]()
	require.NoError(t, tbl.Define("start").Describe("Start").Handle(named("1")))

	report, err := s.Sync(context.Background(), tbl.Groups())
	require.NoError(t, err)
	assert.Equal(t, []MenuKey{{Scope: "chat:42", Language: "de"}}, report.Removed)
	assert.Equal(t, menuCall{Op: "delete", Scope: "chat:42", Language: "de"}, client.calls[1])
	assert.Equal(t, []MenuKey{{Scope: "default"}}, store.keys)
}

func TestSyncKeepsStaleMenuWhenDeleteFails(t *testing.T) {
	client := &fakeMenuClient{fail: map[string]bool{"chat:42|": true}}
	store := &memScopeStore{keys: []MenuKey{{Scope: "chat:42"}}}
	s := NewSyncer(client, store, quietLogger())

	_, err := s.Sync(context.Background(), nil)
	assert.Error(t, err)
	assert.Equal(t, []MenuKey{{Scope: "chat:42"}}, store.keys)
}

func TestSyncWithoutStore(t *testing.T) {
	client := &fakeMenuClient{}
	report, err := NewSyncer(client, nil, quietLogger()).Sync(context.Background(), sampleTable(t).Groups())
	require.NoError(t, err)
	assert.Len(t, report.Pushed, 3)
}

func TestResetStored(t *testing.T) {
	client := &fakeMenuClient{}
	store := &memScopeStore{keys: []MenuKey{{Scope: "default", Language: "ru"}, {Scope: "chat_member:1:2"}}}

	report, err := NewSyncer(client, store, quietLogger()).Reset(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Removed, 2)
	assert.Equal(t, "chat_member:1:2", client.calls[1].Scope)
	assert.Empty(t, store.keys)
}

func TestResetFallback(t *testing.T) {
	client := &fakeMenuClient{}

	report, err := NewSyncer(client, &memScopeStore{}, quietLogger()).Reset(context.Background())
	require.NoError(t, err)
	require.Len(t, client.calls, 4)
	assert.Equal(t, "default", client.calls[0].Scope)
	assert.Equal(t, "all_chat_administrators", client.calls[3].Scope)
	assert.Len(t, report.Removed, 4)
}

func TestResetInvalidStoredKey(t *testing.T) {
	store := &memScopeStore{keys: []MenuKey{{Scope: "users"}}}
	report, err := NewSyncer(&fakeMenuClient{}, store, quietLogger()).Reset(context.Background())
	assert.Error(t, err)
	assert.Len(t, report.Failed, 1)
}
