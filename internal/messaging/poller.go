package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/model"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type PollerState int

const (
	PollerIdle PollerState = iota
	PollerPolling
)

func (s PollerState) String() string {
	if s == PollerPolling {
		return "polling"
	}
	return "idle"
}

// RecomputeFunc produces a fresh badge for the poller's viewer.
type RecomputeFunc func(ctx context.Context) (model.Badge, error)

// Poller keeps one viewer's unread badge fresh: on a fixed interval and
// whenever Trigger is called (tab visible again, window focus, new message).
type Poller struct {
	clock     clockwork.Clock
	interval  time.Duration
	recompute RecomputeFunc
	publish   func(model.Badge)
	log       *zap.Logger

	mu      sync.Mutex
	state   PollerState
	cancel  context.CancelFunc
	done    chan struct{}
	trigger chan struct{}
	last    *model.Badge
}

func NewPoller(clock clockwork.Clock, interval time.Duration, recompute RecomputeFunc, publish func(model.Badge)) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		clock:     clock,
		interval:  interval,
		recompute: recompute,
		publish:   publish,
		log:       logger.Named("poller"),
	}
}

// Start enters Polling and recomputes once right away. Calling Start while
// already polling does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == PollerPolling {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	ticker := p.clock.NewTicker(p.interval)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.trigger = make(chan struct{}, 1)
	p.state = PollerPolling

	go p.loop(ctx, ticker, p.trigger, p.done)
}

// Stop clears the timer and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state != PollerPolling {
		p.mu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.state = PollerIdle
	p.cancel, p.done, p.trigger = nil, nil, nil
	p.mu.Unlock()

	cancel()
	<-done
}

// Trigger asks for an immediate recompute. Triggers coalesce; an idle
// poller ignores them.
func (p *Poller) Trigger() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PollerPolling {
		return
	}
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

func (p *Poller) State() PollerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Last returns the most recent successfully computed badge.
func (p *Poller) Last() (model.Badge, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return model.Badge{}, false
	}
	return *p.last, true
}

func (p *Poller) loop(ctx context.Context, ticker clockwork.Ticker, trigger <-chan struct{}, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.tick(ctx)
		case <-trigger:
			p.tick(ctx)
		}
	}
}

// tick never lets a failure escape: errors and panics fall back to the
// last good badge, marked stale.
func (p *Poller) tick(ctx context.Context) {
	var (
		badge model.Badge
		err   error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("recompute panic: %v", r)
			}
		}()
		badge, err = p.recompute(ctx)
	}()

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.log.Warn("badge recompute failed, keeping cached count", zap.Error(err))
		cached, ok := p.Last()
		if !ok {
			return
		}
		cached.Stale = true
		p.emit(cached)
		return
	}

	p.mu.Lock()
	p.last = &badge
	p.mu.Unlock()
	p.emit(badge)
}

func (p *Poller) emit(b model.Badge) {
	if p.publish != nil {
		p.publish(b)
	}
}
