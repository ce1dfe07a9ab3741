// Package handlers holds the commands every kiran bot ships with.
package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"kiran/internal/commands"
	"kiran/internal/dispatch"
	"kiran/lib/helpers"
	"kiran/lib/translation"
)

// Registrar is the part of the bot the built-ins register with.
type Registrar interface {
	Command(name string) *commands.Builder[dispatch.Handler]
	Commands() []commands.Entry[dispatch.Handler]
}

// Stats reports the handled message count for /status.
type Stats func() float64

type Builtins struct {
	registrar Registrar
	stats     Stats
	started   time.Time
	now       func() time.Time
}

// Register adds the built-in commands. Descriptions are registered for
// every language that has a catalogue, plus a default menu in the
// configured language.
func Register(r Registrar, stats Stats, started time.Time) (*Builtins, error) {
	b := &Builtins{registrar: r, stats: stats, started: started, now: time.Now}

	builtins := []struct {
		name    string
		descID  string
		handler dispatch.Handler
	}{
		{"start", "start_description", b.start},
		{"help", "help_description", b.help},
		{"ping", "ping_description", b.ping},
		{"status", "status_description", b.status},
	}

	defaultLang := translation.GetLanguage()
	for _, c := range builtins {
		h := c.handler
		if err := r.Command(c.name).Describe(translation.Translate(c.descID)).Handle(h); err != nil {
			return nil, errors.Wrapf(err, "could not register /%s", c.name)
		}
		for _, lang := range translation.Languages() {
			if lang == defaultLang {
				continue
			}
			err := r.Command(c.name).
				Describe(translation.TranslateIn(lang, c.descID)).
				Language(lang).
				Handle(h)
			if err != nil {
				return nil, errors.Wrapf(err, "could not register /%s for %s", c.name, lang)
			}
		}
	}
	return b, nil
}

func (b *Builtins) start(c *dispatch.Context) error {
	name := "there"
	if u := c.Caller(); u != nil && u.FirstName != "" {
		name = u.FirstName
	}
	_, err := c.Reply(fmt.Sprintf(translation.TranslateIn(c.Language(), "start_message"), name))
	return err
}

func (b *Builtins) ping(c *dispatch.Context) error {
	_, err := c.Reply(translation.TranslateIn(c.Language(), "pong"))
	return err
}

func (b *Builtins) help(c *dispatch.Context) error {
	_, err := c.ReplyMarkdown(HelpText(b.registrar.Commands(), c.Language()))
	return err
}

func (b *Builtins) status(c *dispatch.Context) error {
	var handled float64
	if b.stats != nil {
		handled = b.stats()
	}
	lang := c.Language()
	_, err := c.Reply(fmt.Sprintf(
		translation.TranslateIn(lang, "status_message"),
		helpers.FormatUptime(b.now().Sub(b.started)),
		helpers.FormatSince(b.started),
		helpers.FormatCount(lang, int64(handled)),
	))
	return err
}

// HelpText lists the slash commands in MarkdownV2, preferring descriptions
// in lang.
func HelpText(entries []commands.Entry[dispatch.Handler], lang string) string {
	var names []string
	desc := make(map[string]string)
	for _, e := range entries {
		if !e.Surface.Has(commands.SurfaceSlash) {
			continue
		}
		name := e.Descriptor.Name
		_, seen := desc[name]
		switch {
		case lang != "" && e.Descriptor.Language == lang:
			desc[name] = e.Descriptor.Description
		case e.Descriptor.Language == "" && !seen:
			desc[name] = e.Descriptor.Description
		default:
			continue
		}
		if !seen {
			names = append(names, name)
		}
	}

	var sb strings.Builder
	sb.WriteString("*" + helpers.EscapeMarkdownV2(translation.TranslateIn(lang, "help_header")) + "*\n")
	for _, name := range names {
		sb.WriteString(helpers.EscapeMarkdownV2(fmt.Sprintf("/%s - %s", name, desc[name])))
		sb.WriteString("\n")
	}
	return sb.String()
}
