package service

import (
	"context"
	"encoding/json"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/model"

	"go.uber.org/zap"
)

// MessageNotifier tells both ends of a delivered message, on whichever
// instance their sockets live.
type MessageNotifier struct {
	bus *EventBus
	log *zap.Logger
}

func NewMessageNotifier(bus *EventBus) *MessageNotifier {
	return &MessageNotifier{bus: bus, log: logger.Named("notify")}
}

// MessageSent implements messaging.Notifier.
func (n *MessageNotifier) MessageSent(_ context.Context, msg *model.Message) {
	if err := n.bus.Publish(SubjectMessages, msg); err != nil {
		n.log.Warn("publish message event", zap.Int64("id", msg.ID), zap.Error(err))
	}
}

// Nudger refreshes badges for a participant's open views.
type Nudger interface {
	Nudge(p model.Participant)
}

// DeliverMessages pushes message events from the bus to local sockets and
// refreshes the receiver's badges.
func DeliverMessages(bus *EventBus, hub *WSHub, nudger Nudger) error {
	return bus.Handle(SubjectMessages, func(data []byte) {
		var msg model.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("bad message event", zap.Error(err))
			return
		}
		ev := model.NewWSEvent(model.EventMessage, msg)
		hub.SendTo(msg.Receiver(), ev)
		hub.SendTo(msg.Sender(), ev)
		nudger.Nudge(msg.Receiver())
	})
}
