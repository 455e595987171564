package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role is the user role claim issued at authentication time.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleAdmin       Role = "admin"
)

// User is a registered portal user. Identity lives in the users table,
// not in the document store.
type User struct {
	ID        uuid.UUID       `json:"id"`
	Email     string          `json:"email"`
	Password  string          `json:"-"` // bcrypt hash
	FullName  string          `json:"full_name"`
	Role      Role            `json:"role"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// UserPublic is the user representation safe to return to clients.
type UserPublic struct {
	ID        uuid.UUID       `json:"id"`
	Email     string          `json:"email"`
	FullName  string          `json:"full_name"`
	Role      Role            `json:"role"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ToPublic strips the password hash.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		Metadata:  u.Metadata,
		CreatedAt: u.CreatedAt,
	}
}
