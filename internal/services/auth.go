package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"authtrail/internal/audit"
	"authtrail/internal/logging"
	"authtrail/internal/models"
)

// Failure reasons recorded in the login_attempt stream. Callers facing the
// client should use Outcome.PublicReason instead.
const (
	ReasonUserNotFound   = "user not found"
	ReasonUserInactive   = "user inactive"
	ReasonBadCredentials = "bad credentials"

	publicFailureReason = "invalid credentials"
)

// RequestInfo is the client context of an authentication attempt.
type RequestInfo struct {
	IP        string
	UserAgent string
}

// Outcome is the result of one authentication attempt. User is set only on
// success.
type Outcome struct {
	Success       bool
	User          *models.User
	FailureReason string
}

// PublicReason is the same for every failure so clients cannot tell unknown
// accounts from wrong passwords.
func (o Outcome) PublicReason() string {
	if o.Success {
		return ""
	}
	return publicFailureReason
}

// AuthenticationGate checks credentials and records exactly one login
// attempt per call. It never creates sessions.
type AuthenticationGate struct {
	directory *UserDirectory
	verifier  CredentialVerifier
	attempts  audit.LoginAttemptRecorder
	now       func() time.Time
	log       *slog.Logger
}

func NewAuthenticationGate(directory *UserDirectory, verifier CredentialVerifier, attempts audit.LoginAttemptRecorder) *AuthenticationGate {
	return &AuthenticationGate{
		directory: directory,
		verifier:  verifier,
		attempts:  attempts,
		now:       time.Now,
		log:       logging.For("auth"),
	}
}

// Attempt authenticates email and password. A directory failure is returned
// as an error after being recorded as a failed attempt.
func (g *AuthenticationGate) Attempt(ctx context.Context, email, password string, info RequestInfo) (Outcome, error) {
	entry := audit.LoginAttemptEntry{
		Email:     email,
		IP:        info.IP,
		UserAgent: info.UserAgent,
	}

	user, err := g.directory.FindByEmail(ctx, email)
	if err != nil {
		entry.Error = err.Error()
		g.attempts.Record(ctx, entry)
		return Outcome{}, fmt.Errorf("authenticate: %w", err)
	}

	if user == nil {
		g.verifier.VerifyDummy(password)
		return g.fail(ctx, entry, ReasonUserNotFound), nil
	}

	entry.UserID = &user.ID

	if !user.Active {
		// keep timing in line with the other failure paths
		_ = g.verifier.Verify(user.PasswordHash, password)
		return g.fail(ctx, entry, ReasonUserInactive), nil
	}

	if !g.verifier.Verify(user.PasswordHash, password) {
		return g.fail(ctx, entry, ReasonBadCredentials), nil
	}

	entry.Success = true
	g.attempts.Record(ctx, entry)

	now := g.now().UTC()
	if err := g.directory.MarkLogin(ctx, user.ID, now); err != nil {
		g.log.Warn("failed to stamp last login", "user_id", user.ID, "error", err)
	} else {
		user.LastLoginAt = &now
	}

	return Outcome{Success: true, User: user}, nil
}

func (g *AuthenticationGate) fail(ctx context.Context, entry audit.LoginAttemptEntry, reason string) Outcome {
	entry.Error = reason
	g.attempts.Record(ctx, entry)
	g.log.Info("login rejected", "reason", reason, "ip", entry.IP)
	return Outcome{FailureReason: reason}
}
