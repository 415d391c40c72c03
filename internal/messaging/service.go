package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/ajbunielteam/SysGranTES/internal/kv"
	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/model"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrThreadUnavailable means the store could not be read for a thread, so
// its unread count is unknown rather than zero.
var ErrThreadUnavailable = errors.New("thread unavailable")

// Element ids the client writes badge counts into.
var (
	AdminBadgeTargets   = []string{"adminMessageBadge", "messageNotificationCount"}
	StudentBadgeTargets = []string{"studentMessageBadge", "chatNotificationCount"}
)

type Options struct {
	AdminID          int
	PollInterval     time.Duration
	SendTimeout      time.Duration
	PendingTolerance time.Duration
	NameCacheSize    int
	Clock            clockwork.Clock
}

// Service wires the store, roster and key/value state into threads, badges
// and sends. Per-view state lives in Session.
type Service struct {
	store    Store
	roster   Roster
	kv       kv.Store
	notifier Notifier
	opts     Options

	pending    *PendingCache
	names      *NameBook
	aggregator *Aggregator
	log        *zap.Logger

	mu       sync.Mutex
	senders  map[string]*Sender
	sessions map[*Session]struct{}
}

func NewService(store Store, roster Roster, state kv.Store, notifier Notifier, opts Options) *Service {
	if opts.AdminID <= 0 {
		opts.AdminID = 1
	}
	if opts.PendingTolerance <= 0 {
		opts.PendingTolerance = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	pending := NewPendingCache(state)
	names := NewNameBook(roster, opts.NameCacheSize)
	return &Service{
		store:      store,
		roster:     roster,
		kv:         state,
		notifier:   notifier,
		opts:       opts,
		pending:    pending,
		names:      names,
		aggregator: NewAggregator(store, pending, names, opts.AdminID, opts.PendingTolerance),
		log:        logger.Named("messaging"),
		senders:    make(map[string]*Sender),
		sessions:   make(map[*Session]struct{}),
	}
}

func (s *Service) Admin() model.Participant { return model.AsAdmin(s.opts.AdminID) }

func (s *Service) Names() *NameBook { return s.names }

// Counterpart resolves the thread a viewer is asking about. Students only
// ever see their own thread; admins must name one.
func (s *Service) Counterpart(viewer model.Participant, studentID int) (model.Participant, int, error) {
	switch viewer.Role {
	case model.RoleStudent:
		if viewer.ID <= 0 {
			return model.Participant{}, 0, model.ErrMissingParticipant
		}
		return s.Admin(), viewer.ID, nil
	case model.RoleAdmin:
		if studentID <= 0 {
			return model.Participant{}, 0, model.ErrMissingParticipant
		}
		return model.AsStudent(studentID), studentID, nil
	}
	return model.Participant{}, 0, model.ErrUnknownRole
}

// self is the identity written into message rows for viewer.
func (s *Service) self(viewer model.Participant) model.Participant {
	if viewer.IsAdmin() {
		return s.Admin()
	}
	return viewer
}

func (s *Service) tracker(ctx context.Context, viewer model.Participant) *ReadTracker {
	t := NewReadTracker(s.kv, viewer)
	if err := t.Load(ctx); err != nil {
		s.log.Warn("read map unavailable", zap.Stringer("viewer", viewer), zap.Error(err))
	}
	return t
}

// Thread builds and annotates the thread viewer sees for studentID.
func (s *Service) Thread(ctx context.Context, viewer model.Participant, studentID int) (*model.Thread, error) {
	_, sid, err := s.Counterpart(viewer, studentID)
	if err != nil {
		return nil, err
	}
	return s.threadWith(ctx, viewer, sid, s.tracker(ctx, viewer))
}

func (s *Service) threadWith(ctx context.Context, viewer model.Participant, studentID int, tracker *ReadTracker) (*model.Thread, error) {
	t, err := s.aggregator.Thread(ctx, studentID)
	if err != nil {
		return nil, err
	}
	Annotate(t, viewer.Role, tracker)
	return t, nil
}

// MarkThreadRead marks everything inbound in the thread as seen by viewer.
func (s *Service) MarkThreadRead(ctx context.Context, viewer model.Participant, studentID int) (int, error) {
	_, sid, err := s.Counterpart(viewer, studentID)
	if err != nil {
		return 0, err
	}
	tracker := s.tracker(ctx, viewer)
	t, err := s.aggregator.Thread(ctx, sid)
	if err != nil {
		return 0, err
	}
	n, err := tracker.MarkThreadRead(ctx, t, viewer.Role)
	if err != nil {
		return 0, errors.Wrap(err, "mark thread read")
	}
	if n > 0 {
		s.Nudge(viewer)
	}
	return n, nil
}

// Send runs the send pipeline outside of a live session, sharing one guard
// per viewer.
func (s *Service) Send(ctx context.Context, viewer model.Participant, studentID int, content string) SendResult {
	s.mu.Lock()
	snd, ok := s.senders[viewer.Key()]
	if !ok {
		snd = s.newSender()
		s.senders[viewer.Key()] = snd
	}
	s.mu.Unlock()
	return s.sendWith(ctx, snd, viewer, studentID, content, s.tracker(ctx, viewer))
}

func (s *Service) newSender() *Sender {
	return NewSender(s.store, s.pending, s.notifier, s.opts.Clock, s.opts.SendTimeout)
}

func (s *Service) sendWith(ctx context.Context, snd *Sender, viewer model.Participant, studentID int, content string, tracker *ReadTracker) SendResult {
	to, sid, err := s.Counterpart(viewer, studentID)
	if err != nil {
		return failed(content, err)
	}
	res := snd.Send(ctx, s.self(viewer), to, content)
	if !res.Delivered() {
		return res
	}

	t, err := s.threadWith(ctx, viewer, sid, tracker)
	if err != nil {
		s.log.Warn("refresh thread after send", zap.Int("student", sid), zap.Error(err))
	} else {
		res.Thread = t
	}
	s.Nudge(viewer)
	if res.Status == SendSent {
		s.Nudge(to)
	}
	return res
}

// Badge recomputes viewer's unread badge. For the admin that is the sum
// over every student's thread; a student has exactly one thread.
func (s *Service) Badge(ctx context.Context, viewer model.Participant) (model.Badge, error) {
	return s.badgeWith(ctx, viewer, s.tracker(ctx, viewer))
}

func (s *Service) badgeWith(ctx context.Context, viewer model.Participant, tracker *ReadTracker) (model.Badge, error) {
	if viewer.IsStudent() {
		if viewer.ID <= 0 {
			return model.Badge{}, model.ErrMissingParticipant
		}
		t, err := s.countableThread(ctx, viewer.ID)
		if err != nil {
			return model.Badge{}, err
		}
		n := UnreadCount(t, viewer.Role, tracker)
		return model.Badge{Count: n, HasUnread: n > 0, Targets: StudentBadgeTargets}, nil
	}

	students, err := s.roster.ListStudents(ctx)
	if err != nil {
		return model.Badge{}, errors.Wrap(err, "list students")
	}
	b := model.Badge{PerStudent: make(map[int]int), Targets: AdminBadgeTargets}
	for _, st := range students {
		t, err := s.countableThread(ctx, st.ID)
		if err != nil {
			return model.Badge{}, err
		}
		if n := UnreadCount(t, viewer.Role, tracker); n > 0 {
			b.PerStudent[st.ID] = n
			b.Count += n
		}
	}
	b.HasUnread = b.Count > 0
	return b, nil
}

// countableThread loads a thread whose unread count can be trusted. A
// thread with a failed direction would under-count.
func (s *Service) countableThread(ctx context.Context, studentID int) (*model.Thread, error) {
	t, err := s.aggregator.Thread(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if t.Status == model.ThreadFailed || t.Partial {
		return nil, errors.Wrapf(ErrThreadUnavailable, "student %d", studentID)
	}
	return t, nil
}

// NewSession opens a view for viewer. Badges go to sink until Close.
func (s *Service) NewSession(ctx context.Context, viewer model.Participant, sink BadgeSink) (*Session, error) {
	if !viewer.Valid() {
		return nil, model.ErrMissingParticipant
	}
	sess := &Session{
		viewer:  viewer,
		svc:     s,
		tracker: NewReadTracker(s.kv, viewer),
		sender:  s.newSender(),
	}
	if err := sess.tracker.Load(ctx); err != nil {
		s.log.Warn("read map unavailable", zap.Stringer("viewer", viewer), zap.Error(err))
	}
	sess.poller = NewPoller(s.opts.Clock, s.opts.PollInterval, sess.recompute, func(b model.Badge) {
		if sink != nil {
			sink.PublishBadge(viewer, b)
		}
	})

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	return sess, nil
}

func (s *Service) drop(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

// Nudge triggers a badge refresh in every live session of p. Any admin
// session matches an admin participant.
func (s *Service) Nudge(p model.Participant) {
	s.mu.Lock()
	var targets []*Session
	for sess := range s.sessions {
		if sess.viewer.Role != p.Role {
			continue
		}
		if p.IsStudent() && sess.viewer.ID != p.ID {
			continue
		}
		targets = append(targets, sess)
	}
	s.mu.Unlock()

	for _, sess := range targets {
		sess.poller.Trigger()
	}
}

// SessionCount is the number of open views.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
