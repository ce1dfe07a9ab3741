// Package commands holds the command table and pushes the slash command
// menu to the Bot API.
package commands

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/language"

	"kiran/internal/types"
)

// Surface is the set of ways a command can be invoked.
type Surface uint8

const (
	// SurfaceSlash is "/name", listed in the command menu.
	SurfaceSlash Surface = 1 << iota
	// SurfacePrefix is a configured text prefix such as "!name".
	SurfacePrefix

	SurfaceBoth = SurfaceSlash | SurfacePrefix
)

func (s Surface) Has(o Surface) bool { return s&o == o }

func (s Surface) String() string {
	switch s {
	case SurfaceSlash:
		return "slash"
	case SurfacePrefix:
		return "prefix"
	case SurfaceBoth:
		return "both"
	}
	return "none"
}

func (s Surface) valid() bool {
	return s != 0 && s&^SurfaceBoth == 0
}

// Bot API limits for menu commands.
const (
	maxDescriptionLen = 256
)

var slashName = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

// Descriptor names a command inside one (scope, language) partition.
type Descriptor struct {
	Name        string
	Description string
	// Scope is nil for the default scope.
	Scope types.BotCommandScope
	// Language is an ISO 639-1 code, empty for every language.
	Language string
}

func (d Descriptor) ScopeKey() string {
	return types.ScopeOrDefault(d.Scope).ScopeKey()
}

// MenuKey is the partition the descriptor belongs to.
func (d Descriptor) MenuKey() MenuKey {
	return MenuKey{Scope: d.ScopeKey(), Language: d.Language}
}

// MenuKey identifies one command menu: a scope and a language.
type MenuKey struct {
	Scope    string
	Language string
}

func (k MenuKey) String() string { return k.Scope + "|" + k.Language }

func (d Descriptor) validate(s Surface) error {
	if !s.valid() {
		return errors.Wrapf(ErrInvalidCommand, "%s: no invocation surface", d.Name)
	}
	if err := ValidateLanguage(d.Language); err != nil {
		return errors.Wrapf(ErrInvalidCommand, "%s: %v", d.Name, err)
	}

	if s.Has(SurfaceSlash) {
		if !slashName.MatchString(d.Name) {
			return errors.Wrapf(ErrInvalidCommand, "%q: slash commands use 1-32 of a-z, 0-9 and _", d.Name)
		}
		if n := utf8.RuneCountInString(d.Description); n == 0 || n > maxDescriptionLen {
			return errors.Wrapf(ErrInvalidCommand, "%s: description must have 1-%d characters", d.Name, maxDescriptionLen)
		}
		return nil
	}

	if d.Name == "" || strings.ContainsRune(d.Name, '@') || strings.IndexFunc(d.Name, unicode.IsSpace) >= 0 {
		return errors.Wrapf(ErrInvalidCommand, "%q: prefix commands need a name without spaces or @", d.Name)
	}
	return nil
}

// ValidateLanguage accepts "" and two-letter ISO 639-1 codes.
func ValidateLanguage(lang string) error {
	if lang == "" {
		return nil
	}
	if len(lang) != 2 || strings.ToLower(lang) != lang {
		return errors.Errorf("language %q is not a lowercase two-letter code", lang)
	}
	if _, err := language.ParseBase(lang); err != nil {
		return errors.Wrapf(err, "language %q", lang)
	}
	return nil
}
