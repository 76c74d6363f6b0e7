// README: Translation between the flat map state used by older callers and the engine model.
package engine

import (
	"fmt"

	"ridesim/internal/modules/driver"
	"ridesim/internal/modules/request"
	"ridesim/internal/types"
)

// FlatState renders the simulation as plain maps and slices. Nothing in the
// result aliases engine state.
func FlatState(s *Simulation) map[string]any {
	drivers := make([]map[string]any, 0, len(s.drivers))
	for _, d := range s.drivers {
		m := map[string]any{
			"id":       int(d.ID),
			"x":        d.Position.X,
			"y":        d.Position.Y,
			"speed":    d.Speed,
			"status":   string(d.Status),
			"behavior": string(d.Behavior.Kind()),
			"earnings": d.Earnings,
			"points":   d.Points,
		}
		if id, ok := d.CurrentRequestID(); ok {
			m["request_id"] = int(id)
		}
		drivers = append(drivers, m)
	}
	pending := make([]map[string]any, 0, len(s.active))
	for _, r := range s.active {
		m := map[string]any{
			"id":     int(r.ID),
			"t":      r.CreationTime,
			"px":     r.Pickup.X,
			"py":     r.Pickup.Y,
			"dx":     r.Dropoff.X,
			"dy":     r.Dropoff.Y,
			"status": string(r.Status),
			"wait":   r.WaitTime,
		}
		if r.AssignedDriverID != nil {
			m["driver_id"] = int(*r.AssignedDriverID)
		}
		pending = append(pending, m)
	}
	return map[string]any{
		"t":        s.time,
		"drivers":  drivers,
		"pending":  pending,
		"served":   s.stats.Served,
		"expired":  s.stats.Expired,
		"avg_wait": s.AvgWait(),
	}
}

// DriversFromFlat builds idle drivers from a flat state's "drivers" list. Each
// entry needs x and y; id, speed and behavior are optional.
func DriversFromFlat(flat map[string]any, params driver.BehaviorParams, fallback driver.Kind, defaultSpeed float64) ([]*driver.Driver, error) {
	entries, err := entriesOf(flat, "drivers")
	if err != nil {
		return nil, err
	}
	now, _ := intOf(flat["t"])
	out := make([]*driver.Driver, 0, len(entries))
	for i, e := range entries {
		x, okX := floatOf(e["x"])
		y, okY := floatOf(e["y"])
		if !okX || !okY {
			return nil, fmt.Errorf("%w: drivers[%d] needs numeric x and y", ErrInvalidConfig, i)
		}
		id := i + 1
		if v, ok := intOf(e["id"]); ok {
			id = v
		}
		speed := defaultSpeed
		if v, ok := floatOf(e["speed"]); ok {
			speed = v
		}
		kind := fallback
		if v, ok := e["behavior"].(string); ok && v != "" {
			kind = driver.Kind(v)
		}
		b, err := driver.NewBehavior(kind, params)
		if err != nil {
			return nil, fmt.Errorf("drivers[%d]: %w", i, err)
		}
		d, err := driver.New(types.ID(id), types.Point{X: x, Y: y}, speed, b, now)
		if err != nil {
			return nil, fmt.Errorf("drivers[%d]: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// RequestsFromFlat builds waiting requests from a flat state's "pending" list.
// Entries without an id are numbered from startID.
func RequestsFromFlat(flat map[string]any, startID types.ID) ([]*request.Request, error) {
	entries, err := entriesOf(flat, "pending")
	if err != nil {
		return nil, err
	}
	out := make([]*request.Request, 0, len(entries))
	next := startID
	for i, e := range entries {
		var coords [4]float64
		for j, k := range []string{"px", "py", "dx", "dy"} {
			v, ok := floatOf(e[k])
			if !ok {
				return nil, fmt.Errorf("%w: pending[%d] field %s is not numeric", ErrInvalidConfig, i, k)
			}
			coords[j] = v
		}
		t, _ := intOf(e["t"])
		id := next
		if v, ok := intOf(e["id"]); ok {
			id = types.ID(v)
		} else {
			next++
		}
		out = append(out, request.New(id, types.Point{X: coords[0], Y: coords[1]}, types.Point{X: coords[2], Y: coords[3]}, t))
	}
	return out, nil
}

func entriesOf(flat map[string]any, key string) ([]map[string]any, error) {
	raw, ok := flat[key]
	if !ok {
		return nil, nil
	}
	switch v := raw.(type) {
	case []map[string]any:
		return v, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] is not an object", ErrInvalidConfig, key, i)
			}
			out = append(out, m)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s is not a list", ErrInvalidConfig, key)
}

func floatOf(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func intOf(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}
