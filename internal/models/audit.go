package models

import (
	"time"

	"github.com/google/uuid"
)

// LoginAttempt is an append-only record of one authentication attempt.
type LoginAttempt struct {
	ID        uuid.UUID  `json:"id" gorm:"primaryKey;size:36"`
	Email     string     `json:"email" gorm:"type:varchar(255);index"`
	UserID    *uuid.UUID `json:"user_id" gorm:"size:36;index"`
	Success   bool       `json:"success" gorm:"not null"`
	IP        string     `json:"ip" gorm:"type:varchar(45)"`
	UserAgent string     `json:"user_agent" gorm:"type:varchar(500)"`
	Error     *string    `json:"error" gorm:"type:varchar(500)"`
	CreatedAt time.Time  `json:"created_at" gorm:"index"`
}

func (LoginAttempt) TableName() string { return "login_attempt" }

// RequestInteraction is an append-only record of one completed request.
type RequestInteraction struct {
	ID           uuid.UUID  `json:"id" gorm:"primaryKey;size:36"`
	UserID       *uuid.UUID `json:"user_id" gorm:"size:36;index"`
	SessionID    *uuid.UUID `json:"session_id" gorm:"size:36;index"`
	Path         string     `json:"path" gorm:"type:varchar(2048)"`
	Method       string     `json:"method" gorm:"type:varchar(16)"`
	Status       int        `json:"status"`
	IP           string     `json:"ip" gorm:"type:varchar(45)"`
	UserAgent    string     `json:"user_agent" gorm:"type:varchar(500)"`
	LatencyMs    int64      `json:"latency_ms"`
	ResponseSize int64      `json:"response_size"`
	Errored      bool       `json:"errored"`
	CreatedAt    time.Time  `json:"created_at" gorm:"index"`
}

func (RequestInteraction) TableName() string { return "request_interaction" }
