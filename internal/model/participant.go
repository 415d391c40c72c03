package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Role is the side of a conversation a participant sits on.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

// Other returns the opposite role. An unknown role has no opposite.
func (r Role) Other() Role {
	switch r {
	case RoleAdmin:
		return RoleStudent
	case RoleStudent:
		return RoleAdmin
	}
	return ""
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown participant type %q", s)
	}
	return r, nil
}

// Participant identifies one end of a message. The admin's ID is the
// configured storage id; callers decide admin-ness from Role only.
type Participant struct {
	Role Role `json:"type"`
	ID   int  `json:"id"`
}

func AsAdmin(id int) Participant   { return Participant{Role: RoleAdmin, ID: id} }
func AsStudent(id int) Participant { return Participant{Role: RoleStudent, ID: id} }

func (p Participant) IsAdmin() bool   { return p.Role == RoleAdmin }
func (p Participant) IsStudent() bool { return p.Role == RoleStudent }

// Valid reports whether the participant has a known role and a usable id.
func (p Participant) Valid() bool {
	return p.Role.Valid() && p.ID > 0
}

// Key is a stable string form, e.g. "student:42".
func (p Participant) Key() string {
	return string(p.Role) + ":" + strconv.Itoa(p.ID)
}

func (p Participant) String() string { return p.Key() }

// ParseParticipant is the inverse of Key.
func ParseParticipant(key string) (Participant, error) {
	role, id, ok := strings.Cut(key, ":")
	if !ok {
		return Participant{}, fmt.Errorf("malformed participant %q", key)
	}
	r, err := ParseRole(role)
	if err != nil {
		return Participant{}, err
	}
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return Participant{}, fmt.Errorf("malformed participant id %q", id)
	}
	return Participant{Role: r, ID: n}, nil
}
