package audit

import (
	"context"
	"strings"

	"authtrail/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store appends audit rows. Implementations only ever insert.
type Store interface {
	InsertLoginAttempts(ctx context.Context, rows []*models.LoginAttempt) error
	InsertInteractions(ctx context.Context, rows []*models.RequestInteraction) error
}

// GormStore persists audit rows through gorm.
type GormStore struct {
	db        *gorm.DB
	batchSize int
}

func NewGormStore(db *gorm.DB, batchSize int) *GormStore {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &GormStore{db: db, batchSize: batchSize}
}

func (s *GormStore) InsertLoginAttempts(ctx context.Context, rows []*models.LoginAttempt) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(rows, s.batchSize).Error
}

func (s *GormStore) InsertInteractions(ctx context.Context, rows []*models.RequestInteraction) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(rows, s.batchSize).Error
}

// LoginAttemptFilter narrows ListLoginAttempts. Zero values mean "any".
type LoginAttemptFilter struct {
	Email   string
	Success *bool
	Limit   int
	Offset  int
}

// ListLoginAttempts returns the most recent login attempts first.
func (s *GormStore) ListLoginAttempts(ctx context.Context, f LoginAttemptFilter) ([]models.LoginAttempt, error) {
	query := s.db.WithContext(ctx)
	if email := strings.TrimSpace(f.Email); email != "" {
		query = query.Where("LOWER(email) = ?", models.NormalizeEmail(email))
	}
	if f.Success != nil {
		query = query.Where("success = ?", *f.Success)
	}

	var rows []models.LoginAttempt
	if err := query.Order("created_at DESC").Limit(clampLimit(f.Limit)).Offset(f.Offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// InteractionFilter narrows ListInteractions.
type InteractionFilter struct {
	UserID *uuid.UUID
	Limit  int
	Offset int
}

// ListInteractions returns the most recent request interactions first.
func (s *GormStore) ListInteractions(ctx context.Context, f InteractionFilter) ([]models.RequestInteraction, error) {
	query := s.db.WithContext(ctx)
	if f.UserID != nil {
		query = query.Where("user_id = ?", *f.UserID)
	}

	var rows []models.RequestInteraction
	if err := query.Order("created_at DESC").Limit(clampLimit(f.Limit)).Offset(f.Offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 500:
		return 500
	default:
		return limit
	}
}
