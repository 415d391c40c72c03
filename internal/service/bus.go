package service

import (
	"encoding/json"
	"sync"

	"github.com/ajbunielteam/SysGranTES/internal/logger"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	SubjectMessages      = "grantes.messages"
	SubjectAnnouncements = "grantes.announcements"
)

// EventBus carries events to every running instance over NATS. Without a
// connection it calls the local handlers directly.
type EventBus struct {
	nc  *nats.Conn
	log *zap.Logger

	mu       sync.RWMutex
	handlers map[string][]func([]byte)
	subs     []*nats.Subscription
}

func NewEventBus(nc *nats.Conn) *EventBus {
	return &EventBus{
		nc:       nc,
		log:      logger.Named("bus"),
		handlers: make(map[string][]func([]byte)),
	}
}

// ConnectNATS dials url, or returns nil when url is empty.
func ConnectNATS(url string) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}
	nc, err := nats.Connect(url,
		nats.Name("grantes-server"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	return nc, errors.Wrap(err, "connect nats")
}

func (b *EventBus) Handle(subject string, fn func(data []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.nc != nil {
		sub, err := b.nc.Subscribe(subject, func(m *nats.Msg) { fn(m.Data) })
		if err != nil {
			return errors.Wrapf(err, "subscribe %s", subject)
		}
		b.subs = append(b.subs, sub)
		return nil
	}
	b.handlers[subject] = append(b.handlers[subject], fn)
	return nil
}

func (b *EventBus) Publish(subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", subject)
	}
	if b.nc != nil {
		return errors.Wrapf(b.nc.Publish(subject, data), "publish %s", subject)
	}

	b.mu.RLock()
	handlers := b.handlers[subject]
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(data)
	}
	return nil
}

func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil
	if b.nc != nil {
		_ = b.nc.Drain()
	}
}
