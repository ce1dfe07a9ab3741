package commands

import "kiran/internal/types"

// Builder registers one command. It starts as a slash command in the
// default scope for every language.
type Builder[H any] struct {
	table   *Table[H]
	desc    Descriptor
	surface Surface
}

func (t *Table[H]) Define(name string) *Builder[H] {
	return &Builder[H]{
		table:   t,
		desc:    Descriptor{Name: name},
		surface: SurfaceSlash,
	}
}

func (b *Builder[H]) Describe(description string) *Builder[H] {
	b.desc.Description = description
	return b
}

func (b *Builder[H]) Scope(scope types.BotCommandScope) *Builder[H] {
	b.desc.Scope = scope
	return b
}

func (b *Builder[H]) Language(lang string) *Builder[H] {
	b.desc.Language = lang
	return b
}

func (b *Builder[H]) Surface(s Surface) *Builder[H] {
	b.surface = s
	return b
}

// Handle registers the command with h.
func (b *Builder[H]) Handle(h H) error {
	return b.table.Register(b.desc, b.surface, h)
}
