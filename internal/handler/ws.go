package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/messaging"
	"github.com/ajbunielteam/SysGranTES/internal/middleware"
	"github.com/ajbunielteam/SysGranTES/internal/model"
	"github.com/ajbunielteam/SysGranTES/internal/service"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const wsReadTimeout = 60 * time.Second

type WSHandler struct {
	hub  *service.WSHub
	msgs *messaging.Service
	log  *zap.Logger
}

func NewWSHandler(hub *service.WSHub, msgs *messaging.Service) *WSHandler {
	return &WSHandler{hub: hub, msgs: msgs, log: logger.Named("ws")}
}

// Upgrade must run after middleware.Auth, which reads the token query
// parameter.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	viewer := middleware.Participant(c)
	return websocket.New(func(conn *websocket.Conn) {
		h.handleConnection(conn, viewer)
	})(c)
}

// handleConnection owns one view: its badge poller runs for as long as
// the socket is open.
func (h *WSHandler) handleConnection(c *websocket.Conn, viewer model.Participant) {
	client := service.NewWSClient(c, viewer)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := h.openSession(ctx, client)
	if err != nil {
		h.log.Warn("session refused", zap.Stringer("viewer", viewer), zap.Error(err))
		return
	}
	defer sess.Close()

	// Writer goroutine
	go func() {
		defer c.Close()
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	sess.Start(ctx)

	_ = c.SetReadDeadline(time.Now().Add(wsReadTimeout))
	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			break
		}
		_ = c.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var event model.WSEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			continue
		}
		h.dispatch(ctx, client, sess, &event)
	}
}

// openSession binds a messaging session to one connection: badges and send
// state go back to that connection only.
func (h *WSHandler) openSession(ctx context.Context, client *service.WSClient) (*messaging.Session, error) {
	sess, err := h.msgs.NewSession(ctx, client.Participant, h.hub.Badges(client))
	if err != nil {
		return nil, err
	}
	sess.OnSendState(func(sending bool) {
		h.hub.Reply(client, model.NewWSEvent(model.EventSendState, model.WSSendState{Sending: sending}))
	})
	return sess, nil
}

func (h *WSHandler) dispatch(ctx context.Context, client *service.WSClient, sess *messaging.Session, event *model.WSEvent) {
	switch event.Type {
	case model.EventPing:
		h.hub.Reply(client, model.NewWSEvent(model.EventPong, nil))

	case model.EventVisibility:
		var v model.WSVisibility
		if err := json.Unmarshal(event.Data, &v); err == nil {
			sess.Visibility(v.Visible)
		}

	case model.EventFocus:
		sess.Focus()

	case model.EventOpenChat:
		var open model.WSOpenChat
		_ = json.Unmarshal(event.Data, &open)
		t, err := sess.OpenChat(ctx, open.StudentID)
		if err != nil {
			h.hub.Reply(client, model.NewWSEvent(model.EventError, fiber.Map{"error": err.Error()}))
			return
		}
		h.hub.Reply(client, model.NewWSEvent(model.EventThread, t))

	case model.EventSend:
		var send model.WSSend
		if err := json.Unmarshal(event.Data, &send); err != nil {
			return
		}
		// Off the read loop, so a frame arriving mid-send meets the guard
		// and is dropped instead of waiting its turn.
		go func() {
			res := sess.Send(ctx, send.Content)
			h.hub.Reply(client, model.NewWSEvent(model.EventSendResult, res))
		}()

	default:
		h.log.Debug("unknown event", zap.String("type", event.Type), zap.Stringer("viewer", sess.Viewer()))
	}
}
