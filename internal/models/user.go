package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an authenticated identity handed to the engine by the auth layer.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar,omitempty"`
	IsAdmin   bool      `json:"is_admin,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Participant is the public slice of a user exposed inside sessions and
// messages. It is built once at the store boundary and never re-parsed.
type Participant struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar,omitempty"`
}

// Participant returns the public view of u.
func (u *User) Participant() Participant {
	return Participant{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}
