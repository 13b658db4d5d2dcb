package middleware

import (
	"net/http"
	"time"

	"authtrail/internal/logging"

	"github.com/gin-gonic/gin"
)

// RequestLogger writes one structured access log line per request, panics
// included. A recovered panic is rethrown for the interceptor to handle.
func RequestLogger() gin.HandlerFunc {
	log := logging.For("http")
	return func(c *gin.Context) {
		start := time.Now()

		defer func() {
			rec := recover()

			status := c.Writer.Status()
			if rec != nil && !c.Writer.Written() {
				status = http.StatusInternalServerError
			}
			attrs := []any{
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"ip", ClientIP(c.Request),
			}

			switch {
			case rec != nil:
				log.Error("request panicked", append(attrs, "panic", rec)...)
				panic(rec)
			case len(c.Errors) > 0:
				log.Error("request failed", append(attrs, "error", c.Errors.String())...)
			default:
				log.Info("request completed", attrs...)
			}
		}()

		c.Next()
	}
}
