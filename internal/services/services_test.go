package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"authtrail/internal/audit"
	"authtrail/internal/config"
	"authtrail/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testEnv struct {
	db        *gorm.DB
	verifier  *BcryptVerifier
	directory *UserDirectory
	sessions  *SessionManager
	store     *audit.GormStore
	trail     *audit.Trail
	gate      *AuthenticationGate
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Mode = "test"
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "services_test.db")

	db, err := models.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = models.Close(db) })
	return db
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)

	verifier, err := NewBcryptVerifier(bcrypt.MinCost)
	require.NoError(t, err)

	store := audit.NewGormStore(db, config.DefaultAuditBatch)
	trail := audit.New(store, config.AuditConfig{}, time.Now)

	directory := NewUserDirectory(db, verifier)
	require.NoError(t, directory.EnsureRoles(context.Background(), DefaultRole, "ADMIN"))

	return &testEnv{
		db:        db,
		verifier:  verifier,
		directory: directory,
		sessions:  NewSessionManager(db, config.DefaultSessionTTL),
		store:     store,
		trail:     trail,
		gate:      NewAuthenticationGate(directory, verifier, trail.LoginAttempts),
	}
}

func (e *testEnv) register(t *testing.T, email, password string) *models.User {
	t.Helper()
	user, err := e.directory.Register(context.Background(), RegisterInput{Email: email, Password: password})
	require.NoError(t, err)
	return user
}

func (e *testEnv) loginAttempts(t *testing.T) []models.LoginAttempt {
	t.Helper()
	var rows []models.LoginAttempt
	require.NoError(t, e.db.Order("created_at").Find(&rows).Error)
	return rows
}

// recordingAttempts captures login attempt entries without touching storage.
type recordingAttempts struct {
	mu      sync.Mutex
	entries []audit.LoginAttemptEntry
}

func (r *recordingAttempts) Record(ctx context.Context, e audit.LoginAttemptEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// memoryRevocations is an in-memory RevocationCache.
type memoryRevocations struct {
	mu      sync.Mutex
	revoked map[uuid.UUID]time.Time
	err     error
}

func newMemoryRevocations() *memoryRevocations {
	return &memoryRevocations{revoked: make(map[uuid.UUID]time.Time)}
}

func (m *memoryRevocations) MarkRevoked(ctx context.Context, id uuid.UUID, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.revoked[id] = until
	return nil
}

func (m *memoryRevocations) IsRevoked(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.revoked[id]
	return ok, nil
}
