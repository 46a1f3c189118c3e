package domain

import (
	"time"

	"github.com/google/uuid"
)

// User types
const (
	UserTypeStudent   = "student"
	UserTypeCounselor = "counselor"
	UserTypeAdmin     = "admin"
)

// User represents a platform user (student, counselor or admin)
// Maps to CockroachDB users table
type User struct {
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FullName     string    `json:"full_name" db:"full_name"`
	UserType     string    `json:"user_type" db:"user_type"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	Country      *string   `json:"country,omitempty" db:"country"`
	Timezone     *string   `json:"timezone,omitempty" db:"timezone"`
	AvatarURL    *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// UserResponse is the user payload returned to clients (no credentials)
type UserResponse struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	UserType  string    `json:"user_type"`
	Phone     *string   `json:"phone,omitempty"`
	Country   *string   `json:"country,omitempty"`
	Timezone  *string   `json:"timezone,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	IsActive  bool      `json:"is_active"`
	IsOnline  *bool     `json:"is_online,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToResponse converts a User to its client-facing shape
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		UserID:    u.UserID,
		Email:     u.Email,
		FullName:  u.FullName,
		UserType:  u.UserType,
		Phone:     u.Phone,
		Country:   u.Country,
		Timezone:  u.Timezone,
		AvatarURL: u.AvatarURL,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}
