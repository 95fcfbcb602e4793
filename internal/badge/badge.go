// Package badge stacks named status signals into the single toolbar badge.
package badge

import (
	"context"
	"log"
	"slices"

	"github.com/five82/kdebridge/internal/protocol"
)

// Signal sources.
const (
	SourceConnected = "connected"
	SourceActive    = "active"
	SourceUpdate    = "update"
)

// Color is an RGBA badge background.
type Color struct {
	R, G, B, A uint8
}

var (
	Red         = Color{255, 0, 0, 220}
	Orange      = Color{255, 129, 0, 220}
	Blue        = Color{0, 116, 255, 220}
	Transparent = Color{0, 0, 0, 0}
)

// Array returns c in the [r, g, b, a] form used on the wire.
func (c Color) Array() [4]uint8 {
	return [4]uint8{c.R, c.G, c.B, c.A}
}

// Surface is the platform badge. Reads happen before writes so redundant
// writes can be skipped.
type Surface interface {
	Text(ctx context.Context) (string, error)
	Color(ctx context.Context) (Color, error)
	SetText(ctx context.Context, text string) error
	SetColor(ctx context.Context, c Color) error
}

type signal struct {
	source string
	text   string
	color  Color
}

// Aggregator owns the signal stack. It is not safe for concurrent use; the
// event loop is its only caller.
type Aggregator struct {
	surface Surface
	logger  *log.Logger
	stack   []signal
}

// New returns an Aggregator rendering to surface.
func New(surface Surface, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{surface: surface, logger: logger}
}

// Set upserts source and moves it to the top of the stack.
func (a *Aggregator) Set(ctx context.Context, source, text string, c Color) {
	a.remove(source)
	a.stack = append(a.stack, signal{source: source, text: text, color: c})
	a.render(ctx, text, c)
}

// Clear removes source. The badge falls back to the most recently set
// remaining signal, or blank when none remain.
func (a *Aggregator) Clear(ctx context.Context, source string) {
	a.remove(source)
	text, c := a.top()
	a.render(ctx, text, c)
}

// Current returns what the badge should display.
func (a *Aggregator) Current() protocol.BadgeView {
	text, c := a.top()
	view := protocol.BadgeView{Text: text, Color: c.Array()}
	if n := len(a.stack); n > 0 {
		view.Source = a.stack[n-1].source
	}
	return view
}

// Signals returns the stack, oldest first.
func (a *Aggregator) Signals() []protocol.BadgeView {
	out := make([]protocol.BadgeView, 0, len(a.stack))
	for _, s := range a.stack {
		out = append(out, protocol.BadgeView{Source: s.source, Text: s.text, Color: s.color.Array()})
	}
	return out
}

// Has reports whether source is active.
func (a *Aggregator) Has(source string) bool {
	return slices.ContainsFunc(a.stack, func(s signal) bool { return s.source == source })
}

func (a *Aggregator) remove(source string) {
	a.stack = slices.DeleteFunc(a.stack, func(s signal) bool { return s.source == source })
}

func (a *Aggregator) top() (string, Color) {
	if len(a.stack) == 0 {
		return "", Transparent
	}
	s := a.stack[len(a.stack)-1]
	return s.text, s.color
}

// render writes text and color only when the surface shows something else.
// Color is read first; text is read only when the color already matches.
func (a *Aggregator) render(ctx context.Context, text string, c Color) {
	old, err := a.surface.Color(ctx)
	if err != nil {
		a.logger.Printf("[badge] read color: %v", err)
		return
	}
	if old == c {
		oldText, err := a.surface.Text(ctx)
		if err != nil {
			a.logger.Printf("[badge] read text: %v", err)
			return
		}
		if oldText == text {
			return
		}
	}
	if err := a.surface.SetText(ctx, text); err != nil {
		a.logger.Printf("[badge] set text: %v", err)
		return
	}
	if err := a.surface.SetColor(ctx, c); err != nil {
		a.logger.Printf("[badge] set color: %v", err)
	}
}
