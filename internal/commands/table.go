package commands

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"

	"kiran/internal/types"
)

// Entry is one registered command.
type Entry[H any] struct {
	Descriptor
	Surface Surface
	Handler H
}

// Table maps command descriptors to handlers. It is filled before polling
// starts and read-only after Freeze.
type Table[H any] struct {
	mu      sync.RWMutex
	entries []*Entry[H]
	byName  map[string][]*Entry[H]
	frozen  bool
}

func NewTable[H any]() *Table[H] {
	return &Table[H]{byName: make(map[string][]*Entry[H])}
}

// Register adds a command. Names are unique within a (scope, language)
// partition whatever their surface.
func (t *Table[H]) Register(d Descriptor, s Surface, h H) error {
	if err := d.validate(s); err != nil {
		return err
	}
	if isNil(h) {
		return errors.Wrapf(ErrInvalidCommand, "%s: nil handler", d.Name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return errors.Wrapf(ErrTableFrozen, "register %s", d.Name)
	}
	key := d.MenuKey()
	for _, e := range t.byName[d.Name] {
		if e.MenuKey() == key {
			return errors.Wrapf(ErrDuplicateCommand, "%s in %s", d.Name, key)
		}
	}

	e := &Entry[H]{Descriptor: d, Surface: s, Handler: h}
	t.entries = append(t.entries, e)
	t.byName[d.Name] = append(t.byName[d.Name], e)
	return nil
}

// Freeze rejects further registrations.
func (t *Table[H]) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

func (t *Table[H]) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

func (t *Table[H]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Entries returns the commands in registration order.
func (t *Table[H]) Entries() []Entry[H] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry[H], 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	return out
}

// Lookup finds the command called name that can be invoked through surface.
// Entries registered for exactly that surface win over entries serving both
// surfaces. Within a tier an entry in lang wins over a language-neutral
// one, which wins over any other; ties go to the earliest registration.
// Scope is not considered: scopes only shape the menus clients show, so two
// commands with the same name in different scopes resolve to whichever was
// registered first.
func (t *Table[H]) Lookup(name string, surface Surface, lang string) (*Entry[H], bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var (
		best     *Entry[H]
		bestRank = -1
	)
	for _, e := range t.byName[name] {
		if !e.Surface.Has(surface) {
			continue
		}
		rank := 0
		if e.Surface == surface {
			rank += 4
		}
		switch e.Language {
		case lang:
			rank += 2
		case "":
			rank++
		}
		if rank > bestRank {
			best, bestRank = e, rank
		}
	}
	if best == nil {
		return nil, false
	}
	out := *best
	return &out, true
}

// Group is the command menu of one (scope, language) pair.
type Group struct {
	Key      MenuKey
	Scope    types.BotCommandScope
	Language string
	Commands []types.BotCommand
}

// Groups collects slash commands per (scope, language), in order of first
// registration.
func (t *Table[H]) Groups() []Group {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var groups []Group
	index := make(map[MenuKey]int)
	for _, e := range t.entries {
		if !e.Surface.Has(SurfaceSlash) {
			continue
		}
		key := e.MenuKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{
				Key:      key,
				Scope:    types.ScopeOrDefault(e.Scope),
				Language: e.Language,
			})
		}
		groups[i].Commands = append(groups[i].Commands, types.BotCommand{
			Command:     e.Name,
			Description: e.Description,
		})
	}
	return groups
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Ptr, reflect.Map, reflect.Interface, reflect.Chan, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
