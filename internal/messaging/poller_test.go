package messaging

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ajbunielteam/SysGranTES/internal/model"
	"github.com/jonboulle/clockwork"
)

func nextBadge(t *testing.T, ch <-chan model.Badge) model.Badge {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("no badge published")
	}
	return model.Badge{}
}

func noBadge(t *testing.T, ch <-chan model.Badge) {
	t.Helper()
	select {
	case b := <-ch:
		t.Fatalf("unexpected badge %+v", b)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitTimers(t *testing.T, fc *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("waiting for %d timers: %v", n, err)
	}
}

func TestPollerTicksOnInterval(t *testing.T) {
	fc := clockwork.NewFakeClock()
	var calls atomic.Int32
	out := make(chan model.Badge, 8)
	p := NewPoller(fc, 5*time.Second, func(context.Context) (model.Badge, error) {
		n := int(calls.Add(1))
		return model.Badge{Count: n, HasUnread: true}, nil
	}, func(b model.Badge) { out <- b })

	if p.State() != PollerIdle {
		t.Fatalf("state before start = %v", p.State())
	}
	p.Start(context.Background())
	defer p.Stop()

	if b := nextBadge(t, out); b.Count != 1 {
		t.Fatalf("first badge = %d, want immediate recompute", b.Count)
	}
	waitTimers(t, fc, 1)
	fc.Advance(5 * time.Second)
	if b := nextBadge(t, out); b.Count != 2 {
		t.Fatalf("second badge = %d", b.Count)
	}
	if p.State() != PollerPolling {
		t.Fatalf("state = %v", p.State())
	}
}

func TestPollerRestartDoesNotLeakTicker(t *testing.T) {
	fc := clockwork.NewFakeClock()
	out := make(chan model.Badge, 8)
	p := NewPoller(fc, time.Second, func(context.Context) (model.Badge, error) {
		return model.Badge{}, nil
	}, func(b model.Badge) { out <- b })

	ctx := context.Background()
	p.Start(ctx)
	p.Start(ctx)
	nextBadge(t, out)
	waitTimers(t, fc, 1)

	p.Stop()
	if p.State() != PollerIdle {
		t.Fatalf("state after stop = %v", p.State())
	}
	waitTimers(t, fc, 0)

	// Log in again in the same process.
	p.Start(ctx)
	nextBadge(t, out)
	waitTimers(t, fc, 1)
	p.Stop()
	p.Stop()
	waitTimers(t, fc, 0)
}

func TestPollerTrigger(t *testing.T) {
	fc := clockwork.NewFakeClock()
	out := make(chan model.Badge, 8)
	p := NewPoller(fc, time.Hour, func(context.Context) (model.Badge, error) {
		return model.Badge{Count: 3}, nil
	}, func(b model.Badge) { out <- b })

	p.Trigger() // idle: ignored
	noBadge(t, out)

	p.Start(context.Background())
	defer p.Stop()
	nextBadge(t, out)

	p.Trigger()
	if b := nextBadge(t, out); b.Count != 3 {
		t.Fatalf("badge = %+v", b)
	}
}

func TestPollerFailureKeepsCachedCount(t *testing.T) {
	fc := clockwork.NewFakeClock()
	out := make(chan model.Badge, 8)
	var calls atomic.Int32
	p := NewPoller(fc, time.Second, func(context.Context) (model.Badge, error) {
		switch calls.Add(1) {
		case 1:
			return model.Badge{Count: 4, HasUnread: true}, nil
		case 2:
			return model.Badge{}, errors.New("student list unavailable")
		default:
			panic("boom")
		}
	}, func(b model.Badge) { out <- b })

	p.Start(context.Background())
	defer p.Stop()

	if b := nextBadge(t, out); b.Count != 4 || b.Stale {
		t.Fatalf("first = %+v", b)
	}
	for i := 0; i < 2; i++ {
		waitTimers(t, fc, 1)
		fc.Advance(time.Second)
		b := nextBadge(t, out)
		if b.Count != 4 || !b.HasUnread || !b.Stale {
			t.Fatalf("tick %d after failure = %+v, want cached count", i+2, b)
		}
	}
	if p.State() != PollerPolling {
		t.Fatal("a failing tick stopped the poller")
	}
}

func TestPollerFailureWithoutCachePublishesNothing(t *testing.T) {
	out := make(chan model.Badge, 8)
	p := NewPoller(clockwork.NewFakeClock(), time.Second, func(context.Context) (model.Badge, error) {
		return model.Badge{}, errors.New("down")
	}, func(b model.Badge) { out <- b })

	p.Start(context.Background())
	defer p.Stop()
	noBadge(t, out)
}
