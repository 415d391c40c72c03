package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ajbunielteam/SysGranTES/internal/kv"
	"github.com/ajbunielteam/SysGranTES/internal/model"
)

var (
	admin   = model.AsAdmin(1)
	student = model.AsStudent(42)
)

func newTestAggregator(store Store, state kv.Store) *Aggregator {
	roster := &memRoster{students: []model.Student{{ID: 42, FirstName: "Ana", LastName: "Cruz"}}}
	return NewAggregator(store, NewPendingCache(state), NewNameBook(roster, 8), 1, 10*time.Second)
}

func TestThreadNewStudentIsEmptyNotFailed(t *testing.T) {
	agg := newTestAggregator(newMemStore(), kv.NewMemory())

	th, err := agg.Thread(context.Background(), 42)
	if err != nil {
		t.Fatalf("Thread: %v", err)
	}
	if th.Status != model.ThreadEmpty {
		t.Fatalf("status = %q, want %q", th.Status, model.ThreadEmpty)
	}
	if len(th.Entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(th.Entries))
	}
	if th.StudentName != "Ana Cruz" {
		t.Errorf("name = %q", th.StudentName)
	}
}

func TestThreadSingleExchangeOrdered(t *testing.T) {
	store := newMemStore()
	// Inserted out of order on purpose.
	store.put(student, admin, "Hi", t0.Add(2*time.Minute))
	store.put(admin, student, "Hello", t0.Add(time.Minute))

	th, err := newTestAggregator(store, kv.NewMemory()).Thread(context.Background(), 42)
	if err != nil {
		t.Fatalf("Thread: %v", err)
	}
	if th.Status != model.ThreadLoaded {
		t.Fatalf("status = %q", th.Status)
	}
	want := []struct {
		from    model.Role
		content string
	}{{model.RoleAdmin, "Hello"}, {model.RoleStudent, "Hi"}}
	if len(th.Entries) != len(want) {
		t.Fatalf("entries = %d, want %d", len(th.Entries), len(want))
	}
	for i, w := range want {
		if th.Entries[i].From != w.from || th.Entries[i].Content != w.content {
			t.Errorf("entry %d = %s %q, want %s %q", i, th.Entries[i].From, th.Entries[i].Content, w.from, w.content)
		}
	}
}

func TestThreadSuppressesCopiesReturnedByBothDirections(t *testing.T) {
	store := newMemStore()
	hello := store.put(admin, student, "Hello", t0)
	// A buggy join hands the same row back from the other direction too.
	store.extra[direction{student, admin}] = []model.Message{hello}
	store.extra[direction{admin, student}] = []model.Message{hello}

	th, err := newTestAggregator(store, kv.NewMemory()).Thread(context.Background(), 42)
	if err != nil {
		t.Fatalf("Thread: %v", err)
	}
	if len(th.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(th.Entries))
	}
}

func TestThreadDirectionFailure(t *testing.T) {
	tests := []struct {
		name        string
		failing     []direction
		wantStatus  model.ThreadStatus
		wantPartial bool
		wantEntries int
	}{
		{"admin side down", []direction{{admin, student}}, model.ThreadLoaded, true, 1},
		{"student side down", []direction{{student, admin}}, model.ThreadEmpty, true, 0},
		{"both down", []direction{{admin, student}, {student, admin}}, model.ThreadFailed, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.put(student, admin, "question", t0)
			for _, d := range tt.failing {
				store.failing[d] = true
			}

			th, err := newTestAggregator(store, kv.NewMemory()).Thread(context.Background(), 42)
			if err != nil {
				t.Fatalf("Thread: %v", err)
			}
			if th.Status != tt.wantStatus || th.Partial != tt.wantPartial || len(th.Entries) != tt.wantEntries {
				t.Fatalf("got status=%q partial=%v entries=%d", th.Status, th.Partial, len(th.Entries))
			}
		})
	}
}

func TestThreadBothFailedButPendingIsLoaded(t *testing.T) {
	store := newMemStore()
	store.failing[direction{admin, student}] = true
	store.failing[direction{student, admin}] = true
	state := kv.NewMemory()
	pending := NewPendingCache(state)
	_ = pending.Add(context.Background(), model.PendingMessage{ClientKey: "k1", Sender: admin, Receiver: student, Content: "hold on", CreatedAt: t0})

	th, _ := newTestAggregator(store, state).Thread(context.Background(), 42)
	if th.Status != model.ThreadLoaded {
		t.Fatalf("status = %q, want loaded", th.Status)
	}
	if th.Entries[0].State != model.EntryPending {
		t.Fatalf("state = %q, want pending", th.Entries[0].State)
	}
}

func TestThreadReplacesPendingByClientKey(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	state := kv.NewMemory()
	pending := NewPendingCache(state)
	_ = pending.Add(ctx, model.PendingMessage{ClientKey: "k1", Sender: admin, Receiver: student, Content: "Hello", CreatedAt: t0.Add(-time.Hour)})
	_ = pending.Add(ctx, model.PendingMessage{ClientKey: "k2", Sender: admin, Receiver: student, Content: "still going", CreatedAt: t0})

	store.put(admin, student, "Hello", t0)
	store.rows[0].ClientKey = "k1"

	th, err := newTestAggregator(store, state).Thread(ctx, 42)
	if err != nil {
		t.Fatalf("Thread: %v", err)
	}
	if len(th.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(th.Entries))
	}
	if th.Entries[0].State != model.EntryConfirmed || th.Entries[1].State != model.EntryPending {
		t.Fatalf("states = %q, %q", th.Entries[0].State, th.Entries[1].State)
	}

	left, _ := pending.List(ctx, admin, student)
	if len(left) != 1 || left[0].ClientKey != "k2" {
		t.Fatalf("pending after reconcile = %+v", left)
	}
}

func TestThreadPendingFallsBackToTolerance(t *testing.T) {
	tests := []struct {
		name        string
		skew        time.Duration
		wantEntries int
	}{
		{"within tolerance", 8 * time.Second, 1},
		{"outside tolerance", 30 * time.Second, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newMemStore()
			state := kv.NewMemory()
			store.put(student, admin, "Thanks", t0.Add(tt.skew))
			_ = NewPendingCache(state).Add(ctx, model.PendingMessage{ClientKey: "local", Sender: student, Receiver: admin, Content: " Thanks ", CreatedAt: t0})

			th, _ := newTestAggregator(store, state).Thread(ctx, 42)
			if len(th.Entries) != tt.wantEntries {
				t.Fatalf("entries = %d, want %d", len(th.Entries), tt.wantEntries)
			}
		})
	}
}

func TestThreadRejectsMissingStudent(t *testing.T) {
	_, err := newTestAggregator(newMemStore(), kv.NewMemory()).Thread(context.Background(), 0)
	if !errors.Is(err, model.ErrMissingParticipant) {
		t.Fatalf("err = %v, want ErrMissingParticipant", err)
	}
}

func TestNameBookDegradesToUnknown(t *testing.T) {
	names := NewNameBook(&memRoster{err: errors.New("db down")}, 4)
	if got := names.Name(context.Background(), 7); got != UnknownStudent {
		t.Fatalf("name = %q, want %q", got, UnknownStudent)
	}
}
