package services

import (
	"errors"
	"net/http"
	"time"

	"authtrail/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SessionCookieName is the cookie that carries the session id to the client.
const SessionCookieName = "AUTH_SESSION_ID"

var ErrInvalidCarrier = errors.New("invalid session carrier")

// SessionCarrier wraps a session id in a signed token stored in a cookie.
// The signature only makes the value tamper-evident. Whether the session is
// still usable is always decided by SessionManager.Validate.
type SessionCarrier struct {
	secret []byte
	issuer string
	secure bool
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionCarrier(cfg config.SessionConfig) *SessionCarrier {
	return &SessionCarrier{
		secret: []byte(cfg.CookieSecret),
		issuer: cfg.Issuer,
		secure: cfg.CookieSecure,
		ttl:    cfg.TTL,
		now:    time.Now,
	}
}

// Encode signs a token whose jti is sessionID.
func (c *SessionCarrier) Encode(sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sessionID,
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(c.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Decode checks the signature and returns the session id. Expiry claims are
// not checked here.
func (c *SessionCarrier) Decode(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidCarrier
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil || !token.Valid || claims.ID == "" {
		return "", ErrInvalidCarrier
	}
	return claims.ID, nil
}

// SessionID reads and decodes the carrier cookie from the request.
func (c *SessionCarrier) SessionID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrInvalidCarrier
	}
	return c.Decode(cookie.Value)
}

// SetCookie writes the carrier cookie for a freshly created session.
func (c *SessionCarrier) SetCookie(ctx *gin.Context, sessionID string, expiresAt time.Time) error {
	value, err := c.Encode(sessionID, expiresAt)
	if err != nil {
		return err
	}
	maxAge := int(expiresAt.Sub(c.now()).Seconds())
	if maxAge <= 0 {
		maxAge = int(c.ttl.Seconds())
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(SessionCookieName, value, maxAge, "/", "", c.secure, true)
	return nil
}

func (c *SessionCarrier) ClearCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(SessionCookieName, "", -1, "/", "", c.secure, true)
}
