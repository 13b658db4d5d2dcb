package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"authtrail/internal/logging"
	"authtrail/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const principalKey = "principal"

// Principal is the authenticated caller of the current request.
type Principal struct {
	UserID    uuid.UUID
	Email     string
	SessionID uuid.UUID
}

// PrincipalFrom returns the principal stored by RequireSession.
func PrincipalFrom(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

// Authenticator resolves the carrier cookie into a Principal.
type Authenticator struct {
	sessions  *services.SessionManager
	carrier   *services.SessionCarrier
	directory *services.UserDirectory
	log       *slog.Logger
}

func NewAuthenticator(sessions *services.SessionManager, carrier *services.SessionCarrier, directory *services.UserDirectory) *Authenticator {
	return &Authenticator{
		sessions:  sessions,
		carrier:   carrier,
		directory: directory,
		log:       logging.For("auth"),
	}
}

// RequireSession rejects API requests without a valid session with 401.
func (a *Authenticator) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := a.resolve(c)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate session"})
			return
		}
		if p == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// RequirePageSession redirects page requests without a valid session to
// the login page.
func (a *Authenticator) RequirePageSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := a.resolve(c)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate session"})
			return
		}
		if p == nil {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func (a *Authenticator) resolve(c *gin.Context) (*Principal, error) {
	sessionID, err := a.carrier.SessionID(c.Request)
	if err != nil {
		return nil, nil
	}

	ctx := c.Request.Context()
	res, err := a.sessions.Validate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, nil
	}

	user, err := a.directory.GetByID(ctx, res.UserID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !user.Active {
		a.log.Info("session of inactive user rejected", "user_id", user.ID)
		return nil, nil
	}

	return &Principal{UserID: user.ID, Email: user.Email, SessionID: res.Session.ID}, nil
}

// RequireRole allows the request when the principal holds any of roles.
func RequireRole(directory *services.UserDirectory, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		held, err := directory.RoleNames(c.Request.Context(), p.UserID)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load roles"})
			return
		}

		for _, role := range roles {
			if slices.Contains(held, role) {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: insufficient permissions"})
	}
}
