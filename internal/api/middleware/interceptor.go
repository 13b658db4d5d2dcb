package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"authtrail/internal/audit"
	"authtrail/internal/logging"

	"github.com/gin-gonic/gin"
)

const startKey = "reqStart"

// RequestInterceptor records one interaction row for every request that
// reaches the engine. It must be the first middleware registered so that it
// also sees requests rejected by later middleware and recovers their panics.
type RequestInterceptor struct {
	interactions audit.InteractionRecorder
	auth         *Authenticator
	now          func() time.Time
	log          *slog.Logger
}

// NewRequestInterceptor records through interactions. auth resolves the
// caller on routes that do not require a session; nil records no identity
// for them.
func NewRequestInterceptor(interactions audit.InteractionRecorder, auth *Authenticator) *RequestInterceptor {
	return &RequestInterceptor{
		interactions: interactions,
		auth:         auth,
		now:          time.Now,
		log:          logging.For("interceptor"),
	}
}

func (i *RequestInterceptor) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(startKey, i.now())

		defer func() {
			rec := recover()
			switch {
			case rec == nil:
			case rec == http.ErrAbortHandler:
				// net/http aborts the connection; let it through once recorded
				c.Abort()
			default:
				i.log.Error("panic while handling request",
					"panic", rec,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
				)
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				} else {
					c.Abort()
				}
			}

			i.complete(c, rec != nil || len(c.Errors) > 0)

			if rec == http.ErrAbortHandler {
				panic(rec)
			}
		}()

		c.Next()
	}
}

func (i *RequestInterceptor) complete(c *gin.Context, errored bool) {
	defer func() {
		if rec := recover(); rec != nil {
			i.log.Error("failed to record interaction", "panic", rec)
		}
	}()

	var latency int64
	if v, ok := c.Get(startKey); ok {
		if start, ok := v.(time.Time); ok {
			latency = max(i.now().Sub(start).Milliseconds(), 0)
		}
	}

	entry := audit.RequestInteractionEntry{
		Path:         c.Request.URL.Path,
		Method:       c.Request.Method,
		Status:       c.Writer.Status(),
		IP:           ClientIP(c.Request),
		UserAgent:    c.Request.UserAgent(),
		LatencyMs:    latency,
		ResponseSize: max(int64(c.Writer.Size()), 0),
		Errored:      errored,
	}

	if p := i.principal(c); p != nil {
		userID, sessionID := p.UserID, p.SessionID
		entry.UserID = &userID
		entry.SessionID = &sessionID
	}

	i.interactions.Record(c.Request.Context(), entry)
}

// principal returns the caller resolved by the route's guard, or resolves
// the session cookie itself. Only a currently valid session yields one.
func (i *RequestInterceptor) principal(c *gin.Context) *Principal {
	if p, ok := PrincipalFrom(c); ok {
		return p
	}
	if i.auth == nil {
		return nil
	}
	p, err := i.auth.resolve(c)
	if err != nil {
		i.log.Warn("failed to resolve session for interaction", "error", err)
		return nil
	}
	return p
}
