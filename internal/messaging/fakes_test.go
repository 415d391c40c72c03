package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ajbunielteam/SysGranTES/internal/model"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type direction struct{ from, to model.Participant }

// memStore is an in-memory Store. Failing directions return queryErr;
// a non-nil gate blocks Save until it is closed or fed.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	now       func() time.Time
	rows      []model.Message
	extra     map[direction][]model.Message
	failing   map[direction]bool
	saveErr   error
	gate      chan struct{}
	saveCalls int
	saving    chan struct{}
}

func newMemStore() *memStore {
	return &memStore{
		now:     func() time.Time { return t0 },
		extra:   make(map[direction][]model.Message),
		failing: make(map[direction]bool),
		saving:  make(chan struct{}, 16),
	}
}

var errQuery = errors.New("connection refused")

func (s *memStore) Save(ctx context.Context, n model.NewMessage) (*model.Message, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.saveCalls++
	gate := s.gate
	s.mu.Unlock()
	select {
	case s.saving <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	if n.ClientKey != "" {
		for _, m := range s.rows {
			if m.ClientKey == n.ClientKey {
				return nil, model.ErrDuplicateMessage
			}
		}
	}
	s.nextID++
	m := model.Message{
		ID:           s.nextID,
		SenderID:     n.SenderID,
		ReceiverID:   n.ReceiverID,
		SenderType:   n.SenderType,
		ReceiverType: n.ReceiverType,
		Content:      n.Content,
		ClientKey:    n.ClientKey,
		CreatedAt:    s.now(),
	}
	s.rows = append(s.rows, m)
	return &m, nil
}

func (s *memStore) Query(_ context.Context, from, to model.Participant) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := direction{from, to}
	if s.failing[d] {
		return nil, errQuery
	}
	out := []model.Message{}
	for _, m := range s.rows {
		if m.Sender() == from && m.Receiver() == to {
			out = append(out, m)
		}
	}
	return append(out, s.extra[d]...), nil
}

func (s *memStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCalls
}

// put stores a confirmed message directly.
func (s *memStore) put(from, to model.Participant, content string, at time.Time) model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m := model.Message{
		ID:           s.nextID,
		SenderID:     from.ID,
		SenderType:   from.Role,
		ReceiverID:   to.ID,
		ReceiverType: to.Role,
		Content:      content,
		CreatedAt:    at,
	}
	s.rows = append(s.rows, m)
	return m
}

type memRoster struct {
	students []model.Student
	err      error
}

func (r *memRoster) ListStudents(context.Context) ([]model.Student, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.students, nil
}

func (r *memRoster) GetStudent(_ context.Context, id int) (*model.Student, error) {
	if r.err != nil {
		return nil, r.err
	}
	for i := range r.students {
		if r.students[i].ID == id {
			return &r.students[i], nil
		}
	}
	return nil, errors.New("not found")
}

type countingNotifier struct {
	mu   sync.Mutex
	sent []*model.Message
}

func (n *countingNotifier) MessageSent(_ context.Context, m *model.Message) {
	n.mu.Lock()
	n.sent = append(n.sent, m)
	n.mu.Unlock()
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type badgeChan chan model.Badge

func (c badgeChan) PublishBadge(_ model.Participant, b model.Badge) {
	select {
	case c <- b:
	default:
	}
}
