package types

type UpdateKind string

const (
	KindUnknown           UpdateKind = "unknown"
	KindMessage           UpdateKind = "message"
	KindEditedMessage     UpdateKind = "edited_message"
	KindChannelPost       UpdateKind = "channel_post"
	KindEditedChannelPost UpdateKind = "edited_channel_post"
	KindCallbackQuery     UpdateKind = "callback_query"
)

func (k UpdateKind) String() string { return string(k) }

type EntityType string

const (
	EntityBotCommand EntityType = "bot_command"
	EntityMention    EntityType = "mention"
	EntityHashtag    EntityType = "hashtag"
	EntityURL        EntityType = "url"
	EntityBold       EntityType = "bold"
	EntityItalic     EntityType = "italic"
	EntityCode       EntityType = "code"
	EntityPre        EntityType = "pre"
	EntityTextLink   EntityType = "text_link"
)

func (t EntityType) String() string { return string(t) }

type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

func (t ChatType) String() string { return string(t) }

// ParseMode selects how the Bot API formats outgoing text.
type ParseMode string

const (
	ParseModeNone       ParseMode = ""
	ParseModeMarkdownV2 ParseMode = "MarkdownV2"
	ParseModeHTML       ParseMode = "HTML"
)

func (p ParseMode) String() string { return string(p) }
