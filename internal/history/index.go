// Package history maintains the catalogue of items a user has worked with.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"summarai/internal/apperr"
	"summarai/internal/conversation"
	"summarai/internal/logging"
	"summarai/internal/storage"
)

const historyKey = "summarai_history"

// Index handles history persistence. Items are stored most recently used
// first; List derives the display order on every call.
type Index struct {
	kv            storage.Store
	conversations *conversation.Store
	logger        *zap.Logger
	mu            sync.Mutex
}

// NewIndex creates an index over kv. Removing items cascades to conversations.
func NewIndex(kv storage.Store, conversations *conversation.Store, logger *zap.Logger) *Index {
	return &Index{
		kv:            kv,
		conversations: conversations,
		logger:        logging.OrNop(logger),
	}
}

// Upsert inserts item, replacing any entry with the same id, and moves it
// to the front.
func (x *Index) Upsert(ctx context.Context, item Item) {
	if item.ID == "" {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	items := x.loadUnlocked(ctx)
	updated := make([]Item, 0, len(items)+1)
	updated = append(updated, item)
	for _, it := range items {
		if it.ID != item.ID {
			updated = append(updated, it)
		}
	}
	x.saveUnlocked(ctx, updated)
}

// Touch moves an existing item to the front. It reports false, and stores
// nothing, when id is not in the index.
func (x *Index) Touch(ctx context.Context, id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	items := x.loadUnlocked(ctx)
	for i, it := range items {
		if it.ID != id {
			continue
		}
		if i > 0 {
			copy(items[1:i+1], items[:i])
			items[0] = it
			x.saveUnlocked(ctx, items)
		}
		return true
	}
	return false
}

// Get returns the item with id.
func (x *Index) Get(ctx context.Context, id string) (Item, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, it := range x.loadUnlocked(ctx) {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Remove deletes the item and its conversation.
func (x *Index) Remove(ctx context.Context, id string) {
	x.mu.Lock()
	items := x.loadUnlocked(ctx)
	updated := make([]Item, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			updated = append(updated, it)
		}
	}
	x.saveUnlocked(ctx, updated)
	x.mu.Unlock()

	x.conversations.Delete(ctx, id)
}

// Clear deletes every item and every conversation.
func (x *Index) Clear(ctx context.Context) {
	x.mu.Lock()
	x.saveUnlocked(ctx, []Item{})
	x.mu.Unlock()

	x.conversations.DeleteAll(ctx)
}

// Rename sets the title of id.
func (x *Index) Rename(ctx context.Context, id, title string) error {
	return x.mutate(ctx, id, func(it *Item) { it.Title = title })
}

// SetPinned pins or unpins id.
func (x *Index) SetPinned(ctx context.Context, id string, pinned bool) error {
	return x.mutate(ctx, id, func(it *Item) { it.Pinned = pinned })
}

// TogglePin flips the pinned flag of id and returns the new value.
func (x *Index) TogglePin(ctx context.Context, id string) (bool, error) {
	var pinned bool
	err := x.mutate(ctx, id, func(it *Item) {
		it.Pinned = !it.Pinned
		pinned = it.Pinned
	})
	return pinned, err
}

// List returns the items with pinned ones first, then newest first.
// Items that tie keep their most-recently-used order.
func (x *Index) List(ctx context.Context) []Item {
	x.mu.Lock()
	items := x.loadUnlocked(ctx)
	x.mu.Unlock()

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Pinned != items[j].Pinned {
			return items[i].Pinned
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items
}

func (x *Index) mutate(ctx context.Context, id string, fn func(*Item)) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	items := x.loadUnlocked(ctx)
	for i := range items {
		if items[i].ID == id {
			fn(&items[i])
			x.saveUnlocked(ctx, items)
			return nil
		}
	}
	return apperr.InvalidState("No history item with id " + id + ".")
}

// loadUnlocked reads the stored items (must be called with lock held)
func (x *Index) loadUnlocked(ctx context.Context) []Item {
	raw, err := x.kv.Get(ctx, historyKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			x.logger.Warn("failed to read history", zap.Error(err))
		}
		return []Item{}
	}

	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		x.logger.Warn("discarding unreadable history", zap.Error(err))
		return []Item{}
	}

	// keep the first (most recent) entry per id
	seen := make(map[string]bool, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.ID == "" || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}

// saveUnlocked writes items (must be called with lock held)
func (x *Index) saveUnlocked(ctx context.Context, items []Item) {
	data, err := json.Marshal(items)
	if err != nil {
		x.logger.Error("failed to encode history", zap.Error(err))
		return
	}
	if err := x.kv.Set(ctx, historyKey, string(data)); err != nil {
		x.logger.Warn("failed to save history", zap.Error(err))
	}
}
