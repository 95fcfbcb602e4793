package badge

import (
	"context"
	"sync"
)

// Toolbar is an in-memory Surface that counts writes.
type Toolbar struct {
	mu     sync.Mutex
	text   string
	color  Color
	writes int
}

var _ Surface = (*Toolbar)(nil)

// NewToolbar returns a blank toolbar badge.
func NewToolbar() *Toolbar {
	return &Toolbar{}
}

func (t *Toolbar) Text(context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text, nil
}

func (t *Toolbar) Color(context.Context) (Color, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.color, nil
}

func (t *Toolbar) SetText(_ context.Context, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.text = text
	t.writes++
	return nil
}

func (t *Toolbar) SetColor(_ context.Context, c Color) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.color = c
	t.writes++
	return nil
}

// Writes returns the number of SetText and SetColor calls so far.
func (t *Toolbar) Writes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes
}

// Shown returns the displayed text and color.
func (t *Toolbar) Shown() (string, Color) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text, t.color
}
