package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// BotCommandScope selects the chats and users a command menu applies to.
type BotCommandScope interface {
	// ScopeType is the Bot API "type" discriminator.
	ScopeType() string
	// ScopeKey identifies the scope in storage and in table partitions.
	ScopeKey() string
}

type ScopeDefault struct{}

func (ScopeDefault) ScopeType() string { return "default" }
func (ScopeDefault) ScopeKey() string  { return "default" }
func (s ScopeDefault) MarshalJSON() ([]byte, error) {
	return marshalScope(s, nil)
}

type ScopeAllPrivateChats struct{}

func (ScopeAllPrivateChats) ScopeType() string { return "all_private_chats" }
func (ScopeAllPrivateChats) ScopeKey() string  { return "all_private_chats" }
func (s ScopeAllPrivateChats) MarshalJSON() ([]byte, error) {
	return marshalScope(s, nil)
}

type ScopeAllGroupChats struct{}

func (ScopeAllGroupChats) ScopeType() string { return "all_group_chats" }
func (ScopeAllGroupChats) ScopeKey() string  { return "all_group_chats" }
func (s ScopeAllGroupChats) MarshalJSON() ([]byte, error) {
	return marshalScope(s, nil)
}

type ScopeAllChatAdministrators struct{}

func (ScopeAllChatAdministrators) ScopeType() string { return "all_chat_administrators" }
func (ScopeAllChatAdministrators) ScopeKey() string  { return "all_chat_administrators" }
func (s ScopeAllChatAdministrators) MarshalJSON() ([]byte, error) {
	return marshalScope(s, nil)
}

// ScopeChat covers one chat.
type ScopeChat struct {
	ChatID int64
}

func (ScopeChat) ScopeType() string  { return "chat" }
func (s ScopeChat) ScopeKey() string { return fmt.Sprintf("chat:%d", s.ChatID) }
func (s ScopeChat) MarshalJSON() ([]byte, error) {
	return marshalScope(s, map[string]interface{}{"chat_id": s.ChatID})
}

// ScopeChatAdministrators covers the administrators of one group chat.
type ScopeChatAdministrators struct {
	ChatID int64
}

func (ScopeChatAdministrators) ScopeType() string { return "chat_administrators" }
func (s ScopeChatAdministrators) ScopeKey() string {
	return fmt.Sprintf("chat_administrators:%d", s.ChatID)
}
func (s ScopeChatAdministrators) MarshalJSON() ([]byte, error) {
	return marshalScope(s, map[string]interface{}{"chat_id": s.ChatID})
}

// ScopeChatMember covers one member of one group chat.
type ScopeChatMember struct {
	ChatID int64
	UserID int64
}

func (ScopeChatMember) ScopeType() string { return "chat_member" }
func (s ScopeChatMember) ScopeKey() string {
	return fmt.Sprintf("chat_member:%d:%d", s.ChatID, s.UserID)
}
func (s ScopeChatMember) MarshalJSON() ([]byte, error) {
	return marshalScope(s, map[string]interface{}{"chat_id": s.ChatID, "user_id": s.UserID})
}

func marshalScope(s BotCommandScope, fields map[string]interface{}) ([]byte, error) {
	if fields == nil {
		fields = make(map[string]interface{}, 1)
	}
	fields["type"] = s.ScopeType()
	return json.Marshal(fields)
}

// ScopeOrDefault maps a nil scope to ScopeDefault.
func ScopeOrDefault(s BotCommandScope) BotCommandScope {
	if s == nil {
		return ScopeDefault{}
	}
	return s
}

// ParseScopeKey is the inverse of BotCommandScope.ScopeKey.
func ParseScopeKey(key string) (BotCommandScope, error) {
	switch {
	case key == "default":
		return ScopeDefault{}, nil
	case key == "all_private_chats":
		return ScopeAllPrivateChats{}, nil
	case key == "all_group_chats":
		return ScopeAllGroupChats{}, nil
	case key == "all_chat_administrators":
		return ScopeAllChatAdministrators{}, nil
	case strings.HasPrefix(key, "chat_administrators:"):
		var chatID int64
		if n, _ := fmt.Sscanf(key, "chat_administrators:%d", &chatID); n != 1 {
			return nil, errors.Errorf("invalid scope key %q", key)
		}
		return ScopeChatAdministrators{ChatID: chatID}, nil
	case strings.HasPrefix(key, "chat_member:"):
		var chatID, userID int64
		if n, _ := fmt.Sscanf(key, "chat_member:%d:%d", &chatID, &userID); n != 2 {
			return nil, errors.Errorf("invalid scope key %q", key)
		}
		return ScopeChatMember{ChatID: chatID, UserID: userID}, nil
	case strings.HasPrefix(key, "chat:"):
		var chatID int64
		if n, _ := fmt.Sscanf(key, "chat:%d", &chatID); n != 1 {
			return nil, errors.Errorf("invalid scope key %q", key)
		}
		return ScopeChat{ChatID: chatID}, nil
	}
	return nil, errors.Errorf("unknown scope key %q", key)
}
