// README: Request logging middleware; also feeds HTTP latency metrics.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HTTPObserver records handled requests, e.g. observability.Metrics.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

func Logging(log zerolog.Logger, obs HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		if obs != nil {
			obs.ObserveHTTP(c.Request.Method, route, status, elapsed)
		}

		ev := log.Debug()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("http request")
	}
}
