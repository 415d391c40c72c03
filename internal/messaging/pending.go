package messaging

import (
	"context"
	"strconv"
	"sync"

	"github.com/ajbunielteam/SysGranTES/internal/kv"
	"github.com/ajbunielteam/SysGranTES/internal/model"
	"github.com/pkg/errors"
)

// PendingCache keeps optimistic copies of outgoing messages per sender,
// stored as one JSON array under chatMessages:<role>:<id>.
type PendingCache struct {
	store kv.Store
	mu    sync.Mutex
}

func NewPendingCache(store kv.Store) *PendingCache {
	return &PendingCache{store: store}
}

// PendingKey is where sender's optimistic messages are cached.
func PendingKey(sender model.Participant) string {
	return "chatMessages:" + string(sender.Role) + ":" + strconv.Itoa(sender.ID)
}

func (c *PendingCache) load(ctx context.Context, sender model.Participant) ([]model.PendingMessage, error) {
	var list []model.PendingMessage
	if _, err := kv.GetJSON(ctx, c.store, PendingKey(sender), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Add appends p to its sender's cache.
func (c *PendingCache) Add(ctx context.Context, p model.PendingMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	list, err := c.load(ctx, p.Sender)
	if err != nil {
		return err
	}
	list = append(list, p)
	return errors.Wrap(kv.SetJSON(ctx, c.store, PendingKey(p.Sender), list), "save pending")
}

// List returns sender's pending messages addressed to receiver.
func (c *PendingCache) List(ctx context.Context, sender, receiver model.Participant) ([]model.PendingMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list, err := c.load(ctx, sender)
	if err != nil {
		return nil, err
	}
	out := list[:0:0]
	for _, p := range list {
		if p.Receiver == receiver {
			out = append(out, p)
		}
	}
	return out, nil
}

// Remove drops the entries with the given client keys.
func (c *PendingCache) Remove(ctx context.Context, sender model.Participant, clientKeys ...string) error {
	if len(clientKeys) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(clientKeys))
	for _, k := range clientKeys {
		drop[k] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	list, err := c.load(ctx, sender)
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, p := range list {
		if _, gone := drop[p.ClientKey]; !gone {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(list) {
		return nil
	}
	if len(kept) == 0 {
		return errors.Wrap(c.store.Delete(ctx, PendingKey(sender)), "clear pending")
	}
	return errors.Wrap(kv.SetJSON(ctx, c.store, PendingKey(sender), kept), "save pending")
}
