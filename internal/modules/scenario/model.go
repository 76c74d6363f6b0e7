// README: Scenario records for drivers and scheduled requests, plus loader errors.
package scenario

import (
	"errors"
	"fmt"

	"ridesim/internal/modules/driver"
)

var (
	ErrMissingColumn = errors.New("missing column")
	ErrInvalidValue  = errors.New("invalid value")
	ErrOutOfBounds   = errors.New("value outside map bounds")
	ErrNegativeTime  = errors.New("negative time")
)

// DriverRecord is one row of a driver roster. Zero Speed and empty Behavior
// fall back to the configured defaults.
type DriverRecord struct {
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Speed    float64     `json:"speed,omitempty"`
	Behavior driver.Kind `json:"behavior,omitempty"`
}

// RequestRecord is one scheduled request.
type RequestRecord struct {
	Time int     `json:"t"`
	PX   float64 `json:"px"`
	PY   float64 `json:"py"`
	DX   float64 `json:"dx"`
	DY   float64 `json:"dy"`
}

// ParseError names the line and field that made a load fail.
type ParseError struct {
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d, field %s: %v", e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
