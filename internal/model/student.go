package model

import (
	"strings"
	"time"
)

// Student is an approved applicant with portal credentials.
type Student struct {
	ID            int        `json:"id"`
	StudentID     string     `json:"student_id"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Email         string     `json:"email"`
	ContactNumber string     `json:"contact_number,omitempty"`
	AwardNumber   string     `json:"award_number"`
	PasswordHash  string     `json:"-"`
	ApplicationID *int64     `json:"application_id,omitempty"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (s Student) DisplayName() string {
	name := strings.TrimSpace(s.FirstName + " " + s.LastName)
	if name == "" {
		return s.StudentID
	}
	return name
}
