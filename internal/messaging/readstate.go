package messaging

import (
	"context"
	"strconv"
	"sync"

	"github.com/ajbunielteam/SysGranTES/internal/kv"
	"github.com/ajbunielteam/SysGranTES/internal/model"
	"github.com/pkg/errors"
)

// ReadMapKey is where a viewer's read map lives. The admin map is shared
// by every admin view; each student has their own.
func ReadMapKey(viewer model.Participant) string {
	if viewer.IsAdmin() {
		return "adminReadMessages"
	}
	return "studentLastViewedMessages:" + strconv.Itoa(viewer.ID)
}

// ReadTracker remembers which inbound messages one viewer has seen. Keys
// come from ReadKey and never expire.
type ReadTracker struct {
	store kv.Store
	key   string

	mu   sync.Mutex
	read map[string]bool
}

func NewReadTracker(store kv.Store, viewer model.Participant) *ReadTracker {
	return &ReadTracker{
		store: store,
		key:   ReadMapKey(viewer),
		read:  make(map[string]bool),
	}
}

// Load replaces the in-memory map with the stored one. A missing or
// malformed value loads as empty.
func (t *ReadTracker) Load(ctx context.Context) error {
	stored, err := t.fetch(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.read = stored
	t.mu.Unlock()
	return nil
}

func (t *ReadTracker) fetch(ctx context.Context) (map[string]bool, error) {
	stored := make(map[string]bool)
	found, err := kv.GetJSON(ctx, t.store, t.key, &stored)
	if err != nil {
		return nil, err
	}
	if !found || stored == nil {
		stored = make(map[string]bool)
	}
	return stored, nil
}

func (t *ReadTracker) IsRead(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.read[key]
}

// MarkRead records key and writes the whole map back before returning.
func (t *ReadTracker) MarkRead(ctx context.Context, key string) error {
	return t.markAll(ctx, []string{key})
}

// MarkThreadRead marks every inbound confirmed entry of thread as read and
// returns how many were newly marked.
func (t *ReadTracker) MarkThreadRead(ctx context.Context, thread *model.Thread, viewer model.Role) (int, error) {
	if thread == nil {
		return 0, nil
	}
	var keys []string
	for _, e := range thread.Entries {
		if e.State != model.EntryConfirmed || e.From == viewer {
			continue
		}
		k := ReadKey(e.Message)
		if !t.IsRead(k) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := t.markAll(ctx, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// markAll merges with the stored map first so marks written by another
// view of the same viewer survive.
func (t *ReadTracker) markAll(ctx context.Context, keys []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	stored, err := t.fetch(ctx)
	if err != nil {
		stored = make(map[string]bool)
	}
	for k, v := range t.read {
		if v {
			stored[k] = true
		}
	}
	for _, k := range keys {
		stored[k] = true
	}
	t.read = stored
	return errors.Wrap(kv.SetJSON(ctx, t.store, t.key, stored), "flush read map")
}
