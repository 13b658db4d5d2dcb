package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID              uuid.UUID  `json:"id" gorm:"primaryKey;size:36"`
	Email           string     `json:"email" gorm:"type:varchar(255);not null"`
	EmailNormalized string     `json:"-" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash    string     `json:"-" gorm:"type:varchar(255);not null"`
	DisplayName     string     `json:"display_name" gorm:"type:varchar(255)"`
	Active          bool       `json:"active" gorm:"not null"`
	LastLoginAt     *time.Time `json:"last_login_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewUser builds an active user with a fresh id and creation stamps.
func NewUser(email, displayName, passwordHash string, now time.Time) *User {
	now = now.UTC()
	return &User{
		ID:              uuid.New(),
		Email:           strings.TrimSpace(email),
		EmailNormalized: NormalizeEmail(email),
		PasswordHash:    passwordHash,
		DisplayName:     displayName,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NormalizeEmail is the case-insensitive lookup key for an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Role struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"type:varchar(50);uniqueIndex;not null"` // USER, ADMIN
	Description string `json:"description" gorm:"type:varchar(255)"`
}

// UserRole links a user to a role. Rows are never updated.
type UserRole struct {
	UserID uuid.UUID `json:"user_id" gorm:"primaryKey;size:36"`
	RoleID uint      `json:"role_id" gorm:"primaryKey;autoIncrement:false"`
}
