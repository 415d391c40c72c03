package model

import "time"

// Announcement is an admin post shown to every student.
type Announcement struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	AuthorID  int       `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

type AnnouncementRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
