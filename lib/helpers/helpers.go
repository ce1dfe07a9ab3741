package helpers

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var markdownV2Escaper = strings.NewReplacer(
	"\\", "\\\\",
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

// EscapeMarkdownV2 escapes every character MarkdownV2 reserves.
func EscapeMarkdownV2(text string) string {
	return markdownV2Escaper.Replace(text)
}

// FormatCount prints n with the thousands separator of lang.
func FormatCount(lang string, n int64) string {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	return p.Sprintf("%d", n)
}

// FormatSince renders how long ago t was, e.g. "3 hours ago".
func FormatSince(t time.Time) string {
	return humanize.Time(t)
}

// FormatUptime renders a duration as a rounded, human readable span.
func FormatUptime(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	return strings.TrimSpace(humanize.RelTime(time.Time{}, time.Time{}.Add(d), "", ""))
}
