// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ridesim/internal/modules/engine"
	"ridesim/internal/modules/request"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeSimError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrNotInitialized):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, engine.ErrInvalidConfig), errors.Is(err, request.ErrInvalidConfig):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrGeneratorNotTunable):
		writeError(c, http.StatusConflict, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// queryInt reads a non-negative integer query parameter, falling back to def
// when it is absent.
func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
