package domain

import (
	"time"

	"github.com/aussiebroadwan/clubhouse/pkg/authsdk"
)

type User struct {
	ID           string
	Email        string // stored lowercased
	FullName     string
	Phone        string
	PasswordHash string // argon2id PHC string
	Role         authsdk.Role
	Status       authsdk.Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    *time.Time
}

// Public returns the record as exposed over the wire. The password hash
// never leaves the server.
func (u User) Public() authsdk.User {
	return authsdk.User{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Phone:     u.Phone,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}
