package model

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrMissingParticipant = errors.New("participant id not found")
	ErrEmptyContent       = errors.New("message content is required")
	ErrSameRole           = errors.New("sender and receiver must have different roles")
	ErrUnknownRole        = errors.New("unknown participant type")
	ErrDuplicateMessage   = errors.New("message already delivered")
)

// Message is one persisted chat message.
type Message struct {
	ID             int64     `json:"id"`
	SenderID       int       `json:"sender_id"`
	ReceiverID     int       `json:"receiver_id"`
	SenderType     Role      `json:"sender_type"`
	ReceiverType   Role      `json:"receiver_type"`
	Content        string    `json:"content"`
	Attachment     *string   `json:"attachment,omitempty"`
	AttachmentName *string   `json:"attachment_name,omitempty"`
	ClientKey      string    `json:"client_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (m Message) Sender() Participant {
	return Participant{Role: m.SenderType, ID: m.SenderID}
}

func (m Message) Receiver() Participant {
	return Participant{Role: m.ReceiverType, ID: m.ReceiverID}
}

// StudentID returns the id of whichever side is the student, or 0.
func (m Message) StudentID() int {
	switch {
	case m.SenderType == RoleStudent:
		return m.SenderID
	case m.ReceiverType == RoleStudent:
		return m.ReceiverID
	}
	return 0
}

// NewMessage is the save request accepted by the message store.
type NewMessage struct {
	SenderID       int     `json:"sender_id"`
	ReceiverID     int     `json:"receiver_id"`
	SenderType     Role    `json:"sender_type"`
	ReceiverType   Role    `json:"receiver_type"`
	Content        string  `json:"content"`
	Attachment     *string `json:"attachment,omitempty"`
	AttachmentName *string `json:"attachment_name,omitempty"`
	ClientKey      string  `json:"client_key,omitempty"`
}

func (n NewMessage) Sender() Participant {
	return Participant{Role: n.SenderType, ID: n.SenderID}
}

func (n NewMessage) Receiver() Participant {
	return Participant{Role: n.ReceiverType, ID: n.ReceiverID}
}

// Validate normalises the content and rejects requests the store must not
// persist, including same-role messages.
func (n *NewMessage) Validate() error {
	if n.SenderID <= 0 || n.ReceiverID <= 0 {
		return ErrMissingParticipant
	}
	if !n.SenderType.Valid() || !n.ReceiverType.Valid() {
		return ErrUnknownRole
	}
	if n.SenderType == n.ReceiverType {
		return ErrSameRole
	}
	n.Content = strings.TrimSpace(n.Content)
	if n.Content == "" {
		return ErrEmptyContent
	}
	return nil
}
