package dispatch

import (
	"strings"
	"unicode"

	"kiran/internal/commands"
	"kiran/internal/types"
)

// Invocation is a command call parsed from a message.
type Invocation struct {
	Name string
	// Mention is the bot name after "@", if any.
	Mention string
	Args    string
	// Prefix is "/" for slash commands, else the matched text prefix.
	Prefix  string
	Surface commands.Surface
}

// ExtractCommand parses a slash command. The message qualifies only when
// its first entity is a bot_command at offset 0.
func ExtractCommand(msg *types.Message) (Invocation, bool) {
	if msg == nil || len(msg.Entities) == 0 {
		return Invocation{}, false
	}
	e := msg.Entities[0]
	if e.Type != types.EntityBotCommand || e.Offset != 0 {
		return Invocation{}, false
	}
	token := msg.EntityText(e)
	if !strings.HasPrefix(token, "/") {
		return Invocation{}, false
	}

	name, mention := splitMention(token[1:])
	if name == "" {
		return Invocation{}, false
	}
	return Invocation{
		Name:    name,
		Mention: mention,
		Args:    strings.TrimSpace(msg.TextAfter(e)),
		Prefix:  "/",
		Surface: commands.SurfaceSlash,
	}, true
}

// ExtractPrefixed parses "<prefix>name args" for the first matching prefix.
func ExtractPrefixed(text string, prefixes []string) (Invocation, bool) {
	for _, p := range prefixes {
		if p == "" || !strings.HasPrefix(text, p) {
			continue
		}
		rest := text[len(p):]
		end := strings.IndexFunc(rest, unicode.IsSpace)
		token, args := rest, ""
		if end >= 0 {
			token, args = rest[:end], rest[end:]
		}
		name, mention := splitMention(token)
		if name == "" {
			continue
		}
		return Invocation{
			Name:    name,
			Mention: mention,
			Args:    strings.TrimSpace(args),
			Prefix:  p,
			Surface: commands.SurfacePrefix,
		}, true
	}
	return Invocation{}, false
}

// splitMention cuts "name@bot" and stops the name at the first space.
func splitMention(token string) (name, mention string) {
	if i := strings.IndexFunc(token, unicode.IsSpace); i >= 0 {
		token = token[:i]
	}
	name = token
	if i := strings.IndexByte(token, '@'); i >= 0 {
		name, mention = token[:i], token[i+1:]
	}
	return name, mention
}
