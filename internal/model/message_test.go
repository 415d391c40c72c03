package model

import (
	"errors"
	"testing"
)

func TestNewMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     NewMessage
		wantErr error
	}{
		{
			name: "admin to student",
			msg:  NewMessage{SenderID: 1, SenderType: RoleAdmin, ReceiverID: 42, ReceiverType: RoleStudent, Content: " Hello "},
		},
		{
			name:    "admin to admin",
			msg:     NewMessage{SenderID: 1, SenderType: RoleAdmin, ReceiverID: 1, ReceiverType: RoleAdmin, Content: "hi"},
			wantErr: ErrSameRole,
		},
		{
			name:    "blank content",
			msg:     NewMessage{SenderID: 42, SenderType: RoleStudent, ReceiverID: 1, ReceiverType: RoleAdmin, Content: "   \n"},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "missing receiver",
			msg:     NewMessage{SenderID: 42, SenderType: RoleStudent, ReceiverType: RoleAdmin, Content: "hi"},
			wantErr: ErrMissingParticipant,
		},
		{
			name:    "unknown role",
			msg:     NewMessage{SenderID: 42, SenderType: "teacher", ReceiverID: 1, ReceiverType: RoleAdmin, Content: "hi"},
			wantErr: ErrUnknownRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			err := msg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && msg.Content != "Hello" {
				t.Fatalf("content not trimmed: %q", msg.Content)
			}
		})
	}
}

func TestMessageStudentID(t *testing.T) {
	down := Message{SenderID: 1, SenderType: RoleAdmin, ReceiverID: 42, ReceiverType: RoleStudent}
	up := Message{SenderID: 42, SenderType: RoleStudent, ReceiverID: 1, ReceiverType: RoleAdmin}
	if down.StudentID() != 42 || up.StudentID() != 42 {
		t.Fatalf("StudentID() = %d/%d, want 42/42", down.StudentID(), up.StudentID())
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole(" Student "); err != nil || r != RoleStudent {
		t.Fatalf("ParseRole = %q, %v", r, err)
	}
	if _, err := ParseRole("guest"); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if RoleAdmin.Other() != RoleStudent || RoleStudent.Other() != RoleAdmin {
		t.Fatal("Other() is not symmetric")
	}
}

func TestParseParticipant(t *testing.T) {
	p, err := ParseParticipant(AsStudent(42).Key())
	if err != nil || p != AsStudent(42) {
		t.Fatalf("ParseParticipant = %v, %v", p, err)
	}
	for _, bad := range []string{"", "student", "student:", "student:0", "guest:3", "admin:x"} {
		if _, err := ParseParticipant(bad); err == nil {
			t.Errorf("ParseParticipant(%q) succeeded", bad)
		}
	}
}
