package model

import "time"

// EntryState tells whether a thread entry came from the store or is still
// an optimistic local copy.
type EntryState string

const (
	EntryConfirmed EntryState = "confirmed"
	EntryPending   EntryState = "pending"
)

// ThreadStatus distinguishes "never loaded" from "loaded and empty" from
// "failed to load".
type ThreadStatus string

const (
	ThreadNotLoaded ThreadStatus = ""
	ThreadLoaded    ThreadStatus = "loaded"
	ThreadEmpty     ThreadStatus = "empty"
	ThreadFailed    ThreadStatus = "error"
)

type ThreadEntry struct {
	Message
	State EntryState `json:"state"`
	From  Role       `json:"from"`
	Read  bool       `json:"read"`
}

// Thread is the ordered conversation between one student and the admin.
// It is derived on every read and never stored.
type Thread struct {
	StudentID   int           `json:"student_id"`
	StudentName string        `json:"student_name"`
	Status      ThreadStatus  `json:"status"`
	Entries     []ThreadEntry `json:"messages"`
	Unread      int           `json:"unread"`
	Partial     bool          `json:"partial,omitempty"`
}

// PendingMessage is written before the store confirms a send.
type PendingMessage struct {
	ClientKey string      `json:"client_key"`
	Sender    Participant `json:"sender"`
	Receiver  Participant `json:"receiver"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"timestamp"`
}

func (p PendingMessage) AsMessage() Message {
	return Message{
		SenderID:     p.Sender.ID,
		SenderType:   p.Sender.Role,
		ReceiverID:   p.Receiver.ID,
		ReceiverType: p.Receiver.Role,
		Content:      p.Content,
		ClientKey:    p.ClientKey,
		CreatedAt:    p.CreatedAt,
	}
}

// Badge is the unread indicator pushed to a viewer. Targets names the
// on-screen elements the client writes the count into.
type Badge struct {
	Count      int         `json:"count"`
	HasUnread  bool        `json:"has_unread"`
	PerStudent map[int]int `json:"per_student,omitempty"`
	Targets    []string    `json:"targets"`
	Stale      bool        `json:"stale,omitempty"`
}
