package menu

import (
	"context"
	"slices"
	"sync"

	"github.com/five82/kdebridge/internal/protocol"
)

// Tree is an in-memory Menus that keeps entries in creation order.
type Tree struct {
	mu      sync.Mutex
	entries []protocol.MenuEntry
}

var _ Menus = (*Tree)(nil)

// NewTree returns an empty menu.
func NewTree() *Tree {
	return &Tree{}
}

func (t *Tree) RemoveAll(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	return nil
}

func (t *Tree) Create(_ context.Context, entry protocol.MenuEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
	return nil
}

// Entries returns a copy of the menu.
func (t *Tree) Entries() []protocol.MenuEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.entries)
}
