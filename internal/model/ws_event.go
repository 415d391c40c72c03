package model

import "encoding/json"

// WebSocket event types.
const (
	EventBadge        = "badge"
	EventMessage      = "message"
	EventAnnouncement = "announcement"
	EventPing         = "ping"
	EventPong         = "pong"
	EventVisibility   = "visibility"
	EventFocus        = "focus"
	EventOpenChat     = "open_chat"
	EventThread       = "thread"
	EventSend         = "send"
	EventSendResult   = "send_result"
	EventSendState    = "send_state"
	EventError        = "error"
)

type WSEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewWSEvent marshals data into an event. Marshal errors leave Data empty.
func NewWSEvent(eventType string, data interface{}) *WSEvent {
	ev := &WSEvent{Type: eventType}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			ev.Data = raw
		}
	}
	return ev
}

type WSVisibility struct {
	Visible bool `json:"visible"`
}

type WSOpenChat struct {
	StudentID int `json:"student_id"`
}

type WSSend struct {
	Content string `json:"content"`
}

// WSSendState tells the view whether its send controls are locked.
type WSSendState struct {
	Sending bool `json:"sending"`
}
