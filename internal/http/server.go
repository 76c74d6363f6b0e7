// README: API gateway; owns the simulation HTTP surface and its middleware.
package http

import (
	"net/http"

	"github.com/rs/zerolog"

	"ridesim/internal/http/handlers"
	"ridesim/internal/observability"
)

type ServerDeps struct {
	Sim     handlers.Simulator
	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

type Server struct {
	sim     handlers.Simulator
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		sim:     deps.Sim,
		metrics: deps.Metrics,
		log:     deps.Logger,
	}
}

func (s *Server) Routes() http.Handler {
	return NewRouter(s.sim, s.metrics, s.log)
}
