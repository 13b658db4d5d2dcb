package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"authtrail/internal/logging"
	"authtrail/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

// ValidationResult is the outcome of SessionManager.Validate. Session is set
// only when Valid is true.
type ValidationResult struct {
	Valid   bool
	UserID  uuid.UUID
	Session *models.AuthSession
}

// RevocationCache remembers revoked session ids so Validate can reject them
// without a database read. The database stays authoritative.
type RevocationCache interface {
	MarkRevoked(ctx context.Context, sessionID uuid.UUID, until time.Time) error
	IsRevoked(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

// SessionManager creates, validates and revokes AuthSession rows.
//
// Sessions have a fixed lifetime: expires_at is set once at creation and is
// never extended. A session is valid iff revoked_at is null and now is
// before expires_at. Expired and revoked sessions are never reactivated and
// rows are never deleted.
type SessionManager struct {
	db    *gorm.DB
	ttl   time.Duration
	now   func() time.Time
	cache RevocationCache
	log   *slog.Logger
}

func NewSessionManager(db *gorm.DB, ttl time.Duration) *SessionManager {
	return &SessionManager{
		db:  db,
		ttl: ttl,
		now: time.Now,
		log: logging.For("session"),
	}
}

// WithRevocationCache enables the optional revocation cache.
func (m *SessionManager) WithRevocationCache(cache RevocationCache) *SessionManager {
	m.cache = cache
	return m
}

func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create persists a new session for userID. Storage failures are returned.
func (m *SessionManager) Create(ctx context.Context, userID uuid.UUID, ip, userAgent string) (*models.AuthSession, error) {
	s := models.NewAuthSession(userID, ip, userAgent, m.now(), m.ttl)
	if err := m.db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// Validate never extends the session. Unknown, malformed, revoked and
// expired ids are reported as invalid with a nil error; only storage
// failures return an error.
func (m *SessionManager) Validate(ctx context.Context, sessionID string) (ValidationResult, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return ValidationResult{}, nil
	}

	if m.cache != nil {
		revoked, err := m.cache.IsRevoked(ctx, id)
		if err != nil {
			m.log.Warn("revocation cache lookup failed", "error", err)
		} else if revoked {
			return ValidationResult{}, nil
		}
	}

	var s models.AuthSession
	if err := m.db.WithContext(ctx).Where("id = ?", id).Take(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ValidationResult{}, nil
		}
		return ValidationResult{}, fmt.Errorf("load session: %w", err)
	}

	if !s.Valid(m.now()) {
		return ValidationResult{}, nil
	}

	return ValidationResult{Valid: true, UserID: s.UserID, Session: &s}, nil
}

// Revoke sets revoked_at once. Unknown, malformed and already revoked ids
// are a no-op, so concurrent or repeated logouts never fail.
func (m *SessionManager) Revoke(ctx context.Context, sessionID string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil
	}
	_, err = m.revoke(ctx, m.db.WithContext(ctx).Where("id = ?", id), id)
	return err
}

// RevokeForUser revokes one of userID's own sessions. It returns
// ErrSessionNotFound when the session does not belong to userID.
func (m *SessionManager) RevokeForUser(ctx context.Context, userID uuid.UUID, sessionID string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return ErrSessionNotFound
	}

	var count int64
	if err := m.db.WithContext(ctx).Model(&models.AuthSession{}).
		Where("id = ? AND user_id = ?", id, userID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if count == 0 {
		return ErrSessionNotFound
	}

	_, err = m.revoke(ctx, m.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID), id)
	return err
}

func (m *SessionManager) revoke(ctx context.Context, scope *gorm.DB, id uuid.UUID) (bool, error) {
	now := m.now().UTC()
	res := scope.Model(&models.AuthSession{}).
		Where("revoked_at IS NULL").
		Update("revoked_at", now)
	if res.Error != nil {
		return false, fmt.Errorf("revoke session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if m.cache != nil {
		// no session outlives now+ttl
		if err := m.cache.MarkRevoked(ctx, id, now.Add(m.ttl)); err != nil {
			m.log.Warn("revocation cache update failed", "error", err)
		}
	}
	return true, nil
}

// ListForUser returns userID's sessions, newest first.
func (m *SessionManager) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.AuthSession, error) {
	var sessions []models.AuthSession
	if err := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}
