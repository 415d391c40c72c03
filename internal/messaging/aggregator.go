package messaging

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Aggregator rebuilds the admin/student thread from both query directions
// plus whatever optimistic copies are still pending.
type Aggregator struct {
	store     Store
	pending   *PendingCache
	names     *NameBook
	admin     model.Participant
	tolerance time.Duration
	log       *zap.Logger
}

func NewAggregator(store Store, pending *PendingCache, names *NameBook, adminID int, tolerance time.Duration) *Aggregator {
	return &Aggregator{
		store:     store,
		pending:   pending,
		names:     names,
		admin:     model.AsAdmin(adminID),
		tolerance: tolerance,
		log:       logger.Named("aggregator"),
	}
}

// Thread returns the thread for studentID. A failed direction is logged and
// counted as empty; only when both fail and nothing is pending does the
// thread come back with ThreadFailed.
func (a *Aggregator) Thread(ctx context.Context, studentID int) (*model.Thread, error) {
	if studentID <= 0 {
		return nil, model.ErrMissingParticipant
	}
	student := model.AsStudent(studentID)

	var toStudent, toAdmin []model.Message
	var errToStudent, errToAdmin error

	// Each goroutine swallows its own error so one direction never cancels
	// the other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		toStudent, errToStudent = a.store.Query(gctx, a.admin, student)
		return nil
	})
	g.Go(func() error {
		toAdmin, errToAdmin = a.store.Query(gctx, student, a.admin)
		return nil
	})
	_ = g.Wait()

	if errToStudent != nil {
		a.log.Warn("query failed, treating direction as empty",
			zap.String("direction", "admin>student"), zap.Int("student", studentID), zap.Error(errToStudent))
	}
	if errToAdmin != nil {
		a.log.Warn("query failed, treating direction as empty",
			zap.String("direction", "student>admin"), zap.Int("student", studentID), zap.Error(errToAdmin))
	}

	confirmed := dedup(toStudent, toAdmin)
	pending := a.reconcile(ctx, student, confirmed)

	entries := make([]model.ThreadEntry, 0, len(confirmed)+len(pending))
	for _, m := range confirmed {
		entries = append(entries, model.ThreadEntry{Message: m, State: model.EntryConfirmed, From: m.SenderType})
	}
	for _, p := range pending {
		m := p.AsMessage()
		entries = append(entries, model.ThreadEntry{Message: m, State: model.EntryPending, From: m.SenderType})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	t := &model.Thread{
		StudentID:   studentID,
		StudentName: a.names.Name(ctx, studentID),
		Entries:     entries,
		Partial:     (errToStudent != nil) != (errToAdmin != nil),
	}
	switch {
	case errToStudent != nil && errToAdmin != nil && len(pending) == 0:
		t.Status = model.ThreadFailed
	case len(entries) == 0:
		t.Status = model.ThreadEmpty
	default:
		t.Status = model.ThreadLoaded
	}
	return t, nil
}

// dedup keeps the first copy of every logical message, in arrival order.
func dedup(batches ...[]model.Message) []model.Message {
	seen := make(map[string]struct{})
	var out []model.Message
	for _, batch := range batches {
		for _, m := range batch {
			k := DedupKey(m)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// reconcile returns the pending messages that have no confirmed counterpart
// yet and evicts the ones that do.
func (a *Aggregator) reconcile(ctx context.Context, student model.Participant, confirmed []model.Message) []model.PendingMessage {
	if a.pending == nil {
		return nil
	}

	byKey := make(map[string]struct{})
	for _, m := range confirmed {
		if m.ClientKey != "" {
			byKey[m.ClientKey] = struct{}{}
		}
	}
	claimed := make(map[int]struct{})

	var open []model.PendingMessage
	for _, pair := range [][2]model.Participant{{a.admin, student}, {student, a.admin}} {
		sender, receiver := pair[0], pair[1]
		list, err := a.pending.List(ctx, sender, receiver)
		if err != nil {
			a.log.Warn("pending cache unavailable", zap.Stringer("sender", sender), zap.Error(err))
			continue
		}

		var settled []string
		for _, p := range list {
			if a.matches(p, confirmed, byKey, claimed) {
				settled = append(settled, p.ClientKey)
				continue
			}
			open = append(open, p)
		}
		if err := a.pending.Remove(ctx, sender, settled...); err != nil {
			a.log.Warn("evict settled pending", zap.Stringer("sender", sender), zap.Error(err))
		}
	}
	return open
}

// matches prefers the idempotency key. Rows stored without one fall back to
// same direction, same trimmed content, timestamps within the tolerance.
func (a *Aggregator) matches(p model.PendingMessage, confirmed []model.Message, byKey map[string]struct{}, claimed map[int]struct{}) bool {
	if p.ClientKey != "" {
		if _, ok := byKey[p.ClientKey]; ok {
			return true
		}
	}
	content := strings.TrimSpace(p.Content)
	for i, m := range confirmed {
		if m.ClientKey != "" {
			continue
		}
		if _, used := claimed[i]; used {
			continue
		}
		if m.Sender() != p.Sender || m.Receiver() != p.Receiver {
			continue
		}
		if strings.TrimSpace(m.Content) != content {
			continue
		}
		if absDuration(m.CreatedAt.Sub(p.CreatedAt)) <= a.tolerance {
			claimed[i] = struct{}{}
			return true
		}
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
