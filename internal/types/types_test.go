package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScopeKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    BotCommandScope
		wantErr bool
	}{
		{name: "default", key: "default", want: ScopeDefault{}},
		{name: "private chats", key: "all_private_chats", want: ScopeAllPrivateChats{}},
		{name: "group chats", key: "all_group_chats", want: ScopeAllGroupChats{}},
		{name: "all admins", key: "all_chat_administrators", want: ScopeAllChatAdministrators{}},
		{name: "chat", key: "chat:-100123", want: ScopeChat{ChatID: -100123}},
		{name: "chat admins", key: "chat_administrators:42", want: ScopeChatAdministrators{ChatID: 42}},
		{name: "chat member", key: "chat_member:42:7", want: ScopeChatMember{ChatID: 42, UserID: 7}},
		{name: "chat without id", key: "chat:", wantErr: true},
		{name: "member without user", key: "chat_member:42", wantErr: true},
		{name: "unknown", key: "users", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScopeKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.key, got.ScopeKey())
		})
	}
}

func TestScopeMarshalJSON(t *testing.T) {
	raw, err := json.Marshal(ScopeChatMember{ChatID: 42, UserID: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"chat_member","chat_id":42,"user_id":7}`, string(raw))

	raw, err = json.Marshal(ScopeDefault{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"default"}`, string(raw))
}

func TestUpdateKind(t *testing.T) {
	var u Update
	require.NoError(t, json.Unmarshal([]byte(`{"update_id":5,"edited_message":{"message_id":1,"chat":{"id":3,"type":"private"}},"poll":{}}`), &u))
	assert.Equal(t, KindEditedMessage, u.Kind())
	assert.Equal(t, 1, u.AnyMessage().MessageID)
	assert.Equal(t, ChatPrivate, u.AnyMessage().Chat.Type)

	assert.Equal(t, KindUnknown, Update{UpdateID: 1}.Kind())
	assert.Nil(t, Update{UpdateID: 1}.AnyMessage())
}

func TestMessageEntityText(t *testing.T) {
	// the emoji takes two UTF-16 code units
	m := Message{Text: "😀 /go now"}
	e := MessageEntity{Type: EntityBotCommand, Offset: 3, Length: 3}
	assert.Equal(t, "/go", m.EntityText(e))
	assert.Equal(t, " now", m.TextAfter(e))

	assert.Equal(t, "", m.EntityText(MessageEntity{Offset: 8, Length: 10}))
}
