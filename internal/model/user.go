package model

import (
	"time"

	"realtycrm/internal/util"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

func (s UserStatus) IsValid() bool {
	return s == UserStatusActive || s == UserStatusInactive
}

type User struct {
	ID           uuid.UUID                `json:"id"`
	LoginID      string                   `json:"login_id"`
	Name         string                   `json:"name"`
	Email        string                   `json:"email"`
	Phone        string                   `json:"phone"`
	Role         Role                     `json:"role"`
	Status       UserStatus               `json:"status"`
	Permissions  []Permission             `json:"permissions"`
	ManagerID    util.Optional[uuid.UUID] `json:"manager_id"`
	PasswordHash string                   `json:"-"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

func (u User) Actor() Actor {
	return Actor{ID: u.ID, Name: u.Name, Role: u.Role}
}

func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Grants reports whether the explicit permission set covers the action. An empty set means the
// role defaults apply unchanged.
func (u User) Grants(module Module, action Action) bool {
	if len(u.Permissions) == 0 {
		return true
	}
	for _, p := range u.Permissions {
		if p.Module == module && p.Allows(action) {
			return true
		}
	}
	return false
}
