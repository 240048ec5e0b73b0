package addressbook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"salonbot/internal/storage"
	logx "salonbot/pkg/logx"
)

// recentMax bounds the recent-senders list; the oldest entry is evicted
// once the bound is hit.
const recentMax = 50

type Contact struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// Book is the persisted contact map plus an in-memory list of recent
// inbound senders. Contacts are keyed by number; adding an existing number
// is a no-op (first write wins, edits are out of scope).
type Book struct {
	log  logx.Logger
	blob storage.Store

	mu       sync.Mutex
	contacts map[string]Contact
	recent   []string // oldest first
}

func Open(ctx context.Context, blob storage.Store, log logx.Logger) (*Book, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	var list []Contact
	err := blob.Load(ctx, storage.KeyContacts, &list)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	contacts := make(map[string]Contact, len(list))
	for _, c := range list {
		if c.Number != "" {
			contacts[c.Number] = c
		}
	}
	return &Book{log: log, blob: blob, contacts: contacts}, nil
}

// Add merges new contacts, skipping blanks and numbers already present,
// and persists when anything changed. Returns how many were added.
func (b *Book) Add(ctx context.Context, contacts []Contact) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	added := 0
	for _, c := range contacts {
		if c.Number == "" || c.Name == "" {
			continue
		}
		if _, exists := b.contacts[c.Number]; exists {
			continue
		}
		b.contacts[c.Number] = c
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, b.persistLocked(ctx)
}

// List returns all contacts sorted by name.
func (b *Book) List() []Contact {
	b.mu.Lock()
	out := make([]Contact, 0, len(b.contacts))
	for _, c := range b.contacts {
		out = append(out, c)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (b *Book) Get(number string) (Contact, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.contacts[number]
	return c, ok
}

// TouchRecent records an inbound sender, moving an already-known number to
// the newest position. Not persisted: the list is a convenience for the
// bulk-send UI and rebuilding it from live traffic is fine.
func (b *Book) TouchRecent(number string) {
	if number == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, n := range b.recent {
		if n == number {
			b.recent = append(b.recent[:i], b.recent[i+1:]...)
			break
		}
	}
	b.recent = append(b.recent, number)
	if len(b.recent) > recentMax {
		b.recent = b.recent[len(b.recent)-recentMax:]
	}
}

// Recent returns up to count numbers, newest first.
func (b *Book) Recent(count int) []string {
	if count <= 0 {
		count = 20
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, count)
	for i := len(b.recent) - 1; i >= 0 && len(out) < count; i-- {
		out = append(out, b.recent[i])
	}
	return out
}

func (b *Book) persistLocked(ctx context.Context) error {
	list := make([]Contact, 0, len(b.contacts))
	for _, c := range b.contacts {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Number < list[j].Number })
	if err := b.blob.Save(ctx, storage.KeyContacts, list); err != nil {
		b.log.Error("contact persist failed", logx.Err(err), logx.Int("contacts", len(list)))
		return fmt.Errorf("persist contacts: %w", err)
	}
	return nil
}
