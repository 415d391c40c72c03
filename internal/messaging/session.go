package messaging

import (
	"context"
	"sync"

	"github.com/ajbunielteam/SysGranTES/internal/model"
	"github.com/pkg/errors"
)

// Session is one open view: who is looking, which chat is open, what they
// have read, their badge poller and their send guard.
type Session struct {
	viewer  model.Participant
	svc     *Service
	tracker *ReadTracker
	poller  *Poller
	sender  *Sender

	mu            sync.Mutex
	activeStudent int
	closed        bool
}

func (s *Session) Viewer() model.Participant { return s.viewer }

// Start begins badge polling.
func (s *Session) Start(ctx context.Context) {
	s.poller.Start(ctx)
}

// Close stops polling and detaches the session. Safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.poller.Stop()
	s.svc.drop(s)
}

func (s *Session) PollerState() PollerState { return s.poller.State() }

// Visibility reacts to the tab becoming visible or hidden.
func (s *Session) Visibility(visible bool) {
	if visible {
		s.poller.Trigger()
	}
}

func (s *Session) Focus() { s.poller.Trigger() }

func (s *Session) ActiveStudent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeStudent
}

// OpenChat makes studentID the active chat, marks its inbound messages
// read and returns the thread as it now stands.
func (s *Session) OpenChat(ctx context.Context, studentID int) (*model.Thread, error) {
	_, sid, err := s.svc.Counterpart(s.viewer, studentID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.activeStudent = sid
	s.mu.Unlock()

	t, err := s.svc.aggregator.Thread(ctx, sid)
	if err != nil {
		return nil, err
	}
	n, err := s.tracker.MarkThreadRead(ctx, t, s.viewer.Role)
	if err != nil {
		return nil, errors.Wrap(err, "mark thread read")
	}
	Annotate(t, s.viewer.Role, s.tracker)
	if n > 0 {
		s.poller.Trigger()
	}
	return t, nil
}

// Thread returns the active chat's thread, or studentID's when given.
func (s *Session) Thread(ctx context.Context, studentID int) (*model.Thread, error) {
	if studentID <= 0 {
		studentID = s.ActiveStudent()
	}
	_, sid, err := s.svc.Counterpart(s.viewer, studentID)
	if err != nil {
		return nil, err
	}
	return s.svc.threadWith(ctx, s.viewer, sid, s.tracker)
}

// Send sends into the active chat.
func (s *Session) Send(ctx context.Context, content string) SendResult {
	return s.svc.sendWith(ctx, s.sender, s.viewer, s.ActiveStudent(), content, s.tracker)
}

// OnSendState reports guard changes so the view can disable and re-enable
// its input. fn must not block.
func (s *Session) OnSendState(fn func(sending bool)) { s.sender.OnState(fn) }

// Sending reports whether this view's send guard is held.
func (s *Session) Sending() bool { return s.sender.Sending() }

func (s *Session) recompute(ctx context.Context) (model.Badge, error) {
	// Another view of the same viewer may have marked messages read.
	if err := s.tracker.Load(ctx); err != nil {
		return model.Badge{}, err
	}
	return s.svc.badgeWith(ctx, s.viewer, s.tracker)
}
