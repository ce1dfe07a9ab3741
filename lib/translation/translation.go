package translation

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/leonelquinteros/gotext"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

const domain = "default"

var (
	mu         sync.Mutex
	localesDir = "locales"
	locales    = map[string]*gotext.Locale{}
)

// Configure loads the default language from dir, laid out as
// dir/<lang>/default.po.
func Configure(dir, lang string) {
	mu.Lock()
	localesDir = dir
	locales = map[string]*gotext.Locale{}
	mu.Unlock()

	gotext.Configure(dir, strings.ToLower(lang), domain)
}

func GetLanguage() string {
	lang := gotext.GetLanguage()

	if lang == "und" || lang == "" {
		return "en"
	}

	return lang
}

func Translate(msgID string) string {
	return gotext.Get(msgID)
}

// TranslateIn translates into lang, falling back to the default language
// when lang is empty or has no catalogue.
func TranslateIn(lang, msgID string) string {
	if lang == "" {
		return Translate(msgID)
	}
	l := locale(lang)
	if l == nil {
		return Translate(msgID)
	}
	return l.Get(msgID)
}

// BaseLanguage reduces a locale such as "ru_RU.UTF-8" to its two-letter
// language code. It reports false for "C", "POSIX" and anything else that
// carries no such code.
func BaseLanguage(locale string) (string, bool) {
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	if i := strings.IndexAny(locale, "_-"); i >= 0 {
		locale = locale[:i]
	}
	base := strings.ToLower(locale)
	if len(base) != 2 {
		return "", false
	}
	if _, err := language.ParseBase(base); err != nil {
		return "", false
	}
	return base, true
}

// Languages lists the catalogues found in the locales directory. Only
// directories named by a two-letter language code count, since that is all
// Telegram accepts for a command menu.
func Languages() []string {
	mu.Lock()
	dir := localesDir
	mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var langs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if base, ok := BaseLanguage(e.Name()); !ok || base != e.Name() {
			log.Warnf("skipping locale %s: not a two-letter language code", e.Name())
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, e.Name(), domain+".po")); err == nil {
			langs = append(langs, e.Name())
		}
	}
	sort.Strings(langs)
	return langs
}

func locale(lang string) *gotext.Locale {
	lang = strings.ToLower(lang)

	mu.Lock()
	defer mu.Unlock()
	if l, ok := locales[lang]; ok {
		return l
	}

	var l *gotext.Locale
	if _, err := os.Stat(filepath.Join(localesDir, lang, domain+".po")); err == nil {
		l = gotext.NewLocale(localesDir, lang)
		l.AddDomain(domain)
	}
	locales[lang] = l
	return l
}
