package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthSession is one authenticated client session. Rows are retained after
// expiry or revocation; the only mutation is setting RevokedAt.
type AuthSession struct {
	ID         uuid.UUID  `json:"id" gorm:"primaryKey;size:36"`
	UserID     uuid.UUID  `json:"user_id" gorm:"size:36;not null;index"`
	CreatedAt  time.Time  `json:"created_at" gorm:"not null"`
	LastSeenAt *time.Time `json:"last_seen_at"`
	ExpiresAt  time.Time  `json:"expires_at" gorm:"not null;index"`
	IP         string     `json:"ip" gorm:"type:varchar(45)"`
	UserAgent  string     `json:"user_agent" gorm:"type:varchar(500)"`
	RevokedAt  *time.Time `json:"revoked_at"`
}

func (AuthSession) TableName() string { return "auth_session" }

// NewAuthSession stamps a new session expiring ttl after now.
func NewAuthSession(userID uuid.UUID, ip, userAgent string, now time.Time, ttl time.Duration) *AuthSession {
	now = now.UTC()
	return &AuthSession{
		ID:         uuid.New(),
		UserID:     userID,
		CreatedAt:  now,
		LastSeenAt: &now,
		ExpiresAt:  now.Add(ttl),
		IP:         ip,
		UserAgent:  userAgent,
	}
}

// Valid reports whether the session is usable at now.
func (s *AuthSession) Valid(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
