// README: Simulation handlers (state reads, stepping, generator control).
package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridesim/internal/modules/engine"
	"ridesim/internal/modules/mutation"
)

// MaxStepsPerCall bounds how many ticks one POST /step may run.
const MaxStepsPerCall = 10000

// Simulator is the subset of engine.Controller the handlers rely on.
type Simulator interface {
	RunID() string
	Snapshot() (engine.Snapshot, error)
	Metrics() (engine.TickMetrics, error)
	Series(since int) ([]engine.TickMetrics, error)
	Summary() (engine.Summary, error)
	Mutations() ([]mutation.Record, error)
	Leaderboard(n int) ([]engine.DriverView, error)
	OfferLog() ([]engine.OfferRecord, error)
	Legacy() (map[string]any, error)
	ConfigureGenerator(enabled *bool, perTick *float64) error
	Step(ctx context.Context, n int) ([]engine.TickReport, error)
}

type SimHandler struct {
	sim Simulator
}

func NewSimHandler(sim Simulator) *SimHandler {
	return &SimHandler{sim: sim}
}

func (h *SimHandler) Snapshot(c *gin.Context) {
	snap, err := h.sim.Snapshot()
	if err != nil {
		writeSimError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"run_id": h.sim.RunID(), "snapshot": snap})
}

func (h *SimHandler) Metrics(c *gin.Context) {
	m, err := h.sim.Metrics()
	if err != nil {
		writeSimError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, m)
}

// Series returns the per-tick metric samples recorded after ?since=.
func (h *SimHandler) Series(c *gin.Context) {
	since, ok := queryInt(c, "since", 0)
	if !ok {
		writeError(c, http.StatusBadRequest, "since must be a non-negative integer")
		return
	}
	samples, err := h.sim.Series(since)
	if err != nil {
		writeSimError(c, err)
		return
	}
	if samples == nil {
		samples = []engine.TickMetrics{}
	}
	writeJSON(c, http.StatusOK, gin.H{"since": since, "samples": samples})
}

func (h *SimHandler) Summary(c *gin.Context) {
	s, err := h.sim.Summary()
	if err != nil {
		writeSimError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, s)
}

func (h *SimHandler) Mutations(c *gin.Context) {
	recs, err := h.sim.Mutations()
	if err != nil {
		writeSimError(c, err)
		return
	}
	if recs == nil {
		recs = []mutation.Record{}
	}
	writeJSON(c, http.StatusOK, gin.H{"mutations": recs})
}

func (h *SimHandler) Leaderboard(c *gin.Context) {
	n, ok := queryInt(c, "n", 10)
	if !ok {
		writeError(c, http.StatusBadRequest, "n must be a non-negative integer")
		return
	}
	leaders, err := h.sim.Leaderboard(n)
	if err != nil {
		writeSimError(c, err)
		return
	}
	if leaders == nil {
		leaders = []engine.DriverView{}
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": leaders})
}

func (h *SimHandler) Offers(c *gin.Context) {
	log, err := h.sim.OfferLog()
	if err != nil {
		writeSimError(c, err)
		return
	}
	if log == nil {
		log = []engine.OfferRecord{}
	}
	writeJSON(c, http.StatusOK, gin.H{"offers": log})
}

// Legacy serves the flat key/value state older dashboards consume.
func (h *SimHandler) Legacy(c *gin.Context) {
	flat, err := h.sim.Legacy()
	if err != nil {
		writeSimError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, flat)
}

type stepReq struct {
	N *int `json:"n"`
}

func (h *SimHandler) Step(c *gin.Context) {
	var req stepReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	n := 1
	if req.N != nil {
		n = *req.N
	}
	if n > MaxStepsPerCall {
		writeError(c, http.StatusBadRequest, fmt.Sprintf("n must be at most %d", MaxStepsPerCall))
		return
	}
	reports, err := h.sim.Step(c.Request.Context(), n)
	if err != nil {
		writeSimError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ticks": reports})
}

type generatorReq struct {
	Enabled *bool    `json:"enabled"`
	Rate    *float64 `json:"rate"`
}

func (h *SimHandler) Generator(c *gin.Context) {
	var req generatorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Enabled == nil && req.Rate == nil {
		writeError(c, http.StatusBadRequest, "missing fields")
		return
	}
	if err := h.sim.ConfigureGenerator(req.Enabled, req.Rate); err != nil {
		writeSimError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}
