package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"authtrail/internal/config"
	"authtrail/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memoryStore is an in-memory Store for tests.
type memoryStore struct {
	mu           sync.Mutex
	attempts     []*models.LoginAttempt
	interactions []*models.RequestInteraction
	err          error
	panicMsg     string
}

func (m *memoryStore) InsertLoginAttempts(ctx context.Context, rows []*models.LoginAttempt) error {
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.attempts = append(m.attempts, rows...)
	return nil
}

func (m *memoryStore) InsertInteractions(ctx context.Context, rows []*models.RequestInteraction) error {
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.interactions = append(m.interactions, rows...)
	return nil
}

func (m *memoryStore) attemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestLoginAttemptLog_SyncRecord(t *testing.T) {
	store := &memoryStore{}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	trail := New(store, config.AuditConfig{}, fixedClock(now))

	userID := uuid.New()
	trail.LoginAttempts.Record(context.Background(), LoginAttemptEntry{
		Email:     "a@example.com",
		UserID:    &userID,
		Success:   true,
		IP:        "203.0.113.5",
		UserAgent: "curl/8",
	})
	trail.LoginAttempts.Record(context.Background(), LoginAttemptEntry{
		Email: "nobody@x.com",
		Error: "user not found",
	})

	require.Len(t, store.attempts, 2)
	ok := store.attempts[0]
	assert.True(t, ok.Success)
	assert.Equal(t, &userID, ok.UserID)
	assert.Nil(t, ok.Error)
	assert.Equal(t, now, ok.CreatedAt)

	failed := store.attempts[1]
	assert.False(t, failed.Success)
	assert.Nil(t, failed.UserID)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "user not found", *failed.Error)
}

func TestRecord_NeverRaises(t *testing.T) {
	t.Run("store error", func(t *testing.T) {
		store := &memoryStore{err: errors.New("db down")}
		trail := New(store, config.AuditConfig{}, nil)

		assert.NotPanics(t, func() {
			trail.LoginAttempts.Record(context.Background(), LoginAttemptEntry{Email: "x"})
			trail.Interactions.Record(context.Background(), RequestInteractionEntry{Path: "/"})
		})
		assert.Empty(t, store.attempts)
	})

	t.Run("store panic", func(t *testing.T) {
		store := &memoryStore{panicMsg: "boom"}
		trail := New(store, config.AuditConfig{}, nil)

		assert.NotPanics(t, func() {
			trail.LoginAttempts.Record(context.Background(), LoginAttemptEntry{Email: "x"})
			trail.Interactions.Record(context.Background(), RequestInteractionEntry{Path: "/"})
		})
	})

	t.Run("cancelled request context", func(t *testing.T) {
		store := &memoryStore{}
		trail := New(store, config.AuditConfig{}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		trail.LoginAttempts.Record(ctx, LoginAttemptEntry{Email: "x"})
		assert.Len(t, store.attempts, 1)
	})
}

func TestRequestInteractionLog_FloorsNegativeValues(t *testing.T) {
	store := &memoryStore{}
	trail := New(store, config.AuditConfig{}, nil)

	trail.Interactions.Record(context.Background(), RequestInteractionEntry{
		Path:         "/dashboard",
		Method:       "GET",
		Status:       200,
		LatencyMs:    -3,
		ResponseSize: -1,
	})

	require.Len(t, store.interactions, 1)
	assert.Equal(t, int64(0), store.interactions[0].LatencyMs)
	assert.Equal(t, int64(0), store.interactions[0].ResponseSize)
}

func TestTrail_AsyncPreservesOrderAndDrainsOnClose(t *testing.T) {
	store := &memoryStore{}
	trail := New(store, config.AuditConfig{
		Async:         true,
		BufferSize:    256,
		BatchSize:     7,
		FlushInterval: time.Hour,
	}, nil)

	for i := 0; i < 50; i++ {
		trail.Interactions.Record(context.Background(), RequestInteractionEntry{
			Path:   "/p",
			Status: i,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, trail.Close(ctx))

	require.Len(t, store.interactions, 50)
	for i, row := range store.interactions {
		assert.Equal(t, i, row.Status)
	}

	// closed trails drop silently
	assert.NotPanics(t, func() {
		trail.Interactions.Record(context.Background(), RequestInteractionEntry{Path: "/late"})
	})
	assert.Len(t, store.interactions, 50)
}

func TestTrail_AsyncFlushesOnInterval(t *testing.T) {
	store := &memoryStore{}
	trail := New(store, config.AuditConfig{
		Async:         true,
		BufferSize:    16,
		BatchSize:     100,
		FlushInterval: 10 * time.Millisecond,
	}, nil)
	defer trail.Close(context.Background())

	trail.LoginAttempts.Record(context.Background(), LoginAttemptEntry{Email: "tick@example.com"})

	assert.Eventually(t, func() bool { return store.attemptCount() == 1 }, 2*time.Second, 5*time.Millisecond)
}

type blockingWriter struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingWriter) write(ctx context.Context, batch []int) error {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return nil
}

func TestBatcher_DropsWhenFull(t *testing.T) {
	w := &blockingWriter{entered: make(chan struct{}), release: make(chan struct{})}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := newBatcher("test", 1, 1, time.Hour, log, w.write)

	require.True(t, b.enqueue(1))
	select {
	case <-w.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("writer never started")
	}

	assert.True(t, b.enqueue(2), "buffer has room for one row")
	assert.False(t, b.enqueue(3), "full buffer drops instead of blocking")

	close(w.release)
	require.NoError(t, b.close(context.Background()))
	assert.False(t, b.enqueue(4))
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Mode = "test"
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "audit_test.db")
	db, err := models.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = models.Close(db) })
	return db
}

func TestGormStore_InsertAndList(t *testing.T) {
	db := setupTestDB(t)
	store := NewGormStore(db, 10)
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	clock := base
	trail := New(store, config.AuditConfig{}, func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})

	userID := uuid.New()
	trail.LoginAttempts.Record(context.Background(), LoginAttemptEntry{Email: "Dana@Example.com", UserID: &userID, Success: false, Error: "bad credentials"})
	trail.LoginAttempts.Record(context.Background(), LoginAttemptEntry{Email: "dana@example.com", UserID: &userID, Success: true})
	trail.LoginAttempts.Record(context.Background(), LoginAttemptEntry{Email: "other@example.com", Error: "user not found"})

	all, err := store.ListLoginAttempts(context.Background(), LoginAttemptFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "other@example.com", all[0].Email, "newest first")

	dana, err := store.ListLoginAttempts(context.Background(), LoginAttemptFilter{Email: "DANA@example.com"})
	require.NoError(t, err)
	assert.Len(t, dana, 2)

	failed := false
	onlyFailed, err := store.ListLoginAttempts(context.Background(), LoginAttemptFilter{Success: &failed})
	require.NoError(t, err)
	assert.Len(t, onlyFailed, 2)

	sessionID := uuid.New()
	trail.Interactions.Record(context.Background(), RequestInteractionEntry{UserID: &userID, SessionID: &sessionID, Path: "/dashboard", Method: "GET", Status: 200})
	trail.Interactions.Record(context.Background(), RequestInteractionEntry{Path: "/", Method: "GET", Status: 200})

	mine, err := store.ListInteractions(context.Background(), InteractionFilter{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, &sessionID, mine[0].SessionID)
}
