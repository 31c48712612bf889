package domain

import "time"

type RoomID string

// Room is the persistent half of a teaching session. Closing a room
// flips Active off; rooms are never deleted.
type Room struct {
	ID            RoomID    `json:"id"`
	Name          string    `json:"name"`
	Subject       string    `json:"subject"`
	ClassName     string    `json:"className"`
	TeacherID     UserID    `json:"teacherId"`
	Active        bool      `json:"active"`
	AllowSelfCall bool      `json:"allowSelfCall"`
	CreatedAt     time.Time `json:"createdAt"`
	ClosedAt      time.Time `json:"closedAt,omitempty"`
}
