package messaging

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/model"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type SendStatus string

const (
	SendSent      SendStatus = "sent"
	SendDuplicate SendStatus = "duplicate"
	SendFailed    SendStatus = "failed"
	SendDropped   SendStatus = "dropped"
)

// SendResult is what the caller shows the user. On failure Restore holds
// the text to put back in the input.
type SendResult struct {
	Status  SendStatus     `json:"status"`
	Message *model.Message `json:"message,omitempty"`
	Thread  *model.Thread  `json:"thread,omitempty"`
	Restore string         `json:"restore,omitempty"`
	Error   string         `json:"error,omitempty"`
	Err     error          `json:"-"`
}

// Delivered reports whether the message is in the store, either from this
// call or an earlier one.
func (r SendResult) Delivered() bool {
	return r.Status == SendSent || r.Status == SendDuplicate
}

func failed(content string, err error) SendResult {
	return SendResult{Status: SendFailed, Restore: content, Error: err.Error(), Err: err}
}

// Sender sends at most one message at a time for one view. A send that
// arrives while another is in flight is dropped, and a hung send is
// released after the safety timeout.
type Sender struct {
	store    Store
	pending  *PendingCache
	notifier Notifier
	clock    clockwork.Clock
	timeout  time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	sending bool
	gen     uint64
	valve   clockwork.Timer
	onState func(sending bool)
}

func NewSender(store Store, pending *PendingCache, notifier Notifier, clock clockwork.Clock, timeout time.Duration) *Sender {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Sender{
		store:    store,
		pending:  pending,
		notifier: notifier,
		clock:    clock,
		timeout:  timeout,
		log:      logger.Named("sender"),
	}
}

// OnState registers fn to be told each time the guard is taken or given
// back, the safety release included. fn runs under the guard's lock and
// must not block.
func (s *Sender) OnState(fn func(sending bool)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

// Sending reports whether a send currently holds the guard.
func (s *Sender) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

func (s *Sender) acquire() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sending {
		return 0, false
	}
	s.sending = true
	s.gen++
	gen := s.gen
	s.valve = s.clock.AfterFunc(s.timeout, func() { s.release(gen, true) })
	if s.onState != nil {
		s.onState(true)
	}
	return gen, true
}

func (s *Sender) release(gen uint64, timedOut bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || !s.sending {
		return
	}
	s.sending = false
	if s.valve != nil {
		s.valve.Stop()
		s.valve = nil
	}
	if s.onState != nil {
		s.onState(false)
	}
	if timedOut {
		s.log.Warn("send still pending after timeout, re-enabling input", zap.Duration("timeout", s.timeout))
	}
}

// Send delivers content from one participant to the other.
func (s *Sender) Send(ctx context.Context, from, to model.Participant, content string) SendResult {
	if from.ID <= 0 || to.ID <= 0 {
		return failed(content, model.ErrMissingParticipant)
	}
	if !from.Role.Valid() || !to.Role.Valid() {
		return failed(content, model.ErrUnknownRole)
	}
	if from.Role == to.Role {
		return failed(content, model.ErrSameRole)
	}
	text := strings.TrimSpace(content)
	if text == "" {
		return failed(content, model.ErrEmptyContent)
	}

	gen, ok := s.acquire()
	if !ok {
		return SendResult{Status: SendDropped}
	}
	defer s.release(gen, false)

	key := uuid.NewString()
	if s.pending != nil {
		err := s.pending.Add(ctx, model.PendingMessage{
			ClientKey: key,
			Sender:    from,
			Receiver:  to,
			Content:   text,
			CreatedAt: s.clock.Now(),
		})
		if err != nil {
			s.log.Warn("write pending copy", zap.Error(err))
		}
	}

	msg, err := s.store.Save(ctx, model.NewMessage{
		SenderID:     from.ID,
		SenderType:   from.Role,
		ReceiverID:   to.ID,
		ReceiverType: to.Role,
		Content:      text,
		ClientKey:    key,
	})
	if err != nil {
		s.dropPending(ctx, from, key)
		if errors.Is(err, model.ErrDuplicateMessage) {
			return SendResult{Status: SendDuplicate}
		}
		s.log.Error("save message", zap.Stringer("from", from), zap.Stringer("to", to), zap.Error(err))
		return failed(content, err)
	}

	s.notifier.MessageSent(ctx, msg)
	return SendResult{Status: SendSent, Message: msg}
}

func (s *Sender) dropPending(ctx context.Context, from model.Participant, key string) {
	if s.pending == nil {
		return
	}
	if err := s.pending.Remove(ctx, from, key); err != nil {
		s.log.Warn("drop pending copy", zap.Error(err))
	}
}
