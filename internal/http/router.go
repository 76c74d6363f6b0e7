// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ridesim/internal/http/handlers"
	"ridesim/internal/http/middleware"
	"ridesim/internal/observability"
)

// NewRouter builds the gin engine. metrics may be nil, in which case neither
// request metrics nor GET /metrics are served.
func NewRouter(sim handlers.Simulator, metrics *observability.Metrics, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(log))
	if metrics != nil {
		r.Use(middleware.Logging(log, metrics))
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	} else {
		r.Use(middleware.Logging(log, nil))
	}

	simHandler := handlers.NewSimHandler(sim)
	api := r.Group("/api/sim")
	api.GET("/snapshot", simHandler.Snapshot)
	api.GET("/metrics", simHandler.Metrics)
	api.GET("/series", simHandler.Series)
	api.GET("/summary", simHandler.Summary)
	api.GET("/mutations", simHandler.Mutations)
	api.GET("/leaderboard", simHandler.Leaderboard)
	api.GET("/offers", simHandler.Offers)
	api.GET("/legacy", simHandler.Legacy)
	api.POST("/step", simHandler.Step)
	api.POST("/generator", simHandler.Generator)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
