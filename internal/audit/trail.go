// Package audit keeps the two append-only audit streams: login attempts and
// request interactions.
//
// Recording is best-effort. Record never returns an error and never panics
// into the caller; a failed write is logged and dropped so the request that
// produced it continues unaffected.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"authtrail/internal/config"
	"authtrail/internal/logging"
	"authtrail/internal/models"

	"github.com/google/uuid"
)

// LoginAttemptEntry describes one authentication attempt.
type LoginAttemptEntry struct {
	Email     string
	UserID    *uuid.UUID
	Success   bool
	IP        string
	UserAgent string
	Error     string
}

// RequestInteractionEntry describes one completed request.
type RequestInteractionEntry struct {
	UserID       *uuid.UUID
	SessionID    *uuid.UUID
	Path         string
	Method       string
	Status       int
	IP           string
	UserAgent    string
	LatencyMs    int64
	ResponseSize int64
	Errored      bool
}

// LoginAttemptRecorder is implemented by LoginAttemptLog.
type LoginAttemptRecorder interface {
	Record(ctx context.Context, e LoginAttemptEntry)
}

// InteractionRecorder is implemented by RequestInteractionLog.
type InteractionRecorder interface {
	Record(ctx context.Context, e RequestInteractionEntry)
}

// LoginAttemptLog writes the login_attempts stream.
type LoginAttemptLog struct {
	store Store
	queue *batcher[*models.LoginAttempt]
	now   func() time.Time
	log   *slog.Logger
}

// Record appends one login attempt.
func (l *LoginAttemptLog) Record(ctx context.Context, e LoginAttemptEntry) {
	defer recoverRecord(l.log, "login_attempt")

	row := &models.LoginAttempt{
		ID:        uuid.New(),
		Email:     e.Email,
		UserID:    e.UserID,
		Success:   e.Success,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Error:     optional(e.Error),
		CreatedAt: l.now().UTC(),
	}

	if l.queue != nil {
		l.queue.enqueue(row)
		return
	}
	if err := l.store.InsertLoginAttempts(context.WithoutCancel(ctx), []*models.LoginAttempt{row}); err != nil {
		l.log.Error("failed to record login attempt", "email", e.Email, "success", e.Success, "error", err)
	}
}

// RequestInteractionLog writes the request_interactions stream.
type RequestInteractionLog struct {
	store Store
	queue *batcher[*models.RequestInteraction]
	now   func() time.Time
	log   *slog.Logger
}

// Record appends one request interaction.
func (l *RequestInteractionLog) Record(ctx context.Context, e RequestInteractionEntry) {
	defer recoverRecord(l.log, "request_interaction")

	row := &models.RequestInteraction{
		ID:           uuid.New(),
		UserID:       e.UserID,
		SessionID:    e.SessionID,
		Path:         e.Path,
		Method:       e.Method,
		Status:       e.Status,
		IP:           e.IP,
		UserAgent:    e.UserAgent,
		LatencyMs:    max(e.LatencyMs, 0),
		ResponseSize: max(e.ResponseSize, 0),
		Errored:      e.Errored,
		CreatedAt:    l.now().UTC(),
	}

	if l.queue != nil {
		l.queue.enqueue(row)
		return
	}
	if err := l.store.InsertInteractions(context.WithoutCancel(ctx), []*models.RequestInteraction{row}); err != nil {
		l.log.Error("failed to record request interaction", "path", e.Path, "status", e.Status, "error", err)
	}
}

// Trail bundles both audit streams.
type Trail struct {
	LoginAttempts *LoginAttemptLog
	Interactions  *RequestInteractionLog
}

// New wires both streams to store. With cfg.Async each stream gets its own
// background batcher; otherwise every Record is a synchronous insert.
// A nil now defaults to time.Now.
func New(store Store, cfg config.AuditConfig, now func() time.Time) *Trail {
	if now == nil {
		now = time.Now
	}
	log := logging.For("audit")

	attempts := &LoginAttemptLog{store: store, now: now, log: log}
	interactions := &RequestInteractionLog{store: store, now: now, log: log}

	if cfg.Async {
		size := max(cfg.BatchSize, 1)
		buffer := max(cfg.BufferSize, size)
		interval := cfg.FlushInterval
		if interval <= 0 {
			interval = config.DefaultFlushInterval
		}
		attempts.queue = newBatcher("login_attempt", buffer, size, interval, log, store.InsertLoginAttempts)
		interactions.queue = newBatcher("request_interaction", buffer, size, interval, log, store.InsertInteractions)
	}

	return &Trail{LoginAttempts: attempts, Interactions: interactions}
}

// Close flushes queued rows. It is a no-op for synchronous trails.
func (t *Trail) Close(ctx context.Context) error {
	var errs []error
	if q := t.LoginAttempts.queue; q != nil {
		if err := q.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("login_attempt: %w", err))
		}
	}
	if q := t.Interactions.queue; q != nil {
		if err := q.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("request_interaction: %w", err))
		}
	}
	return errors.Join(errs...)
}

func recoverRecord(log *slog.Logger, stream string) {
	if rec := recover(); rec != nil {
		log.Error("audit record panicked", "stream", stream, "panic", fmt.Sprint(rec))
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
