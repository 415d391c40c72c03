// Package kv holds the small per-viewer key/value state the portal keeps
// outside the relational store: read maps and optimistic pending messages.
package kv

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

type Store interface {
	// Get returns ok=false for a missing key.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// GetJSON decodes key into v. Missing keys and malformed values leave v
// untouched and report found=false; only transport errors are returned.
func GetJSON(ctx context.Context, s Store, key string, v interface{}) (found bool, err error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, errors.Wrapf(err, "kv get %s", key)
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, nil
	}
	return true, nil
}

func SetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "kv encode %s", key)
	}
	return errors.Wrapf(s.Set(ctx, key, string(raw)), "kv set %s", key)
}

// Memory is a process-local Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}
