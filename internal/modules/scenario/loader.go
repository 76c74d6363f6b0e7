// README: CSV loaders for driver rosters and scheduled requests.
package scenario

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"ridesim/internal/modules/driver"
	"ridesim/internal/types"
)

// LoadDrivers reads a roster with header x,y and optional speed and behavior
// columns. Any bad row aborts the whole load.
func LoadDrivers(r io.Reader, bounds types.Bounds) ([]DriverRecord, error) {
	rows, err := readTable(r, []string{"x", "y"}, nil)
	if err != nil {
		return nil, err
	}
	out := make([]DriverRecord, 0, len(rows))
	for _, row := range rows {
		var rec DriverRecord
		if rec.X, err = row.coord("x", bounds.Width); err != nil {
			return nil, err
		}
		if rec.Y, err = row.coord("y", bounds.Height); err != nil {
			return nil, err
		}
		if v, ok := row.get("speed"); ok && v != "" {
			s, err := strconv.ParseFloat(v, 64)
			if err != nil || !(s > 0) || math.IsInf(s, 0) {
				return nil, row.fail("speed", fmt.Errorf("%w: %q must be a positive number", ErrInvalidValue, v))
			}
			rec.Speed = s
		}
		if v, ok := row.get("behavior"); ok && v != "" {
			kind := driver.Kind(strings.ToLower(v))
			if !knownKind(kind) {
				return nil, row.fail("behavior", fmt.Errorf("%w: unknown behavior %q", ErrInvalidValue, v))
			}
			rec.Behavior = kind
		}
		out = append(out, rec)
	}
	return out, nil
}

// LoadRequests reads scheduled requests with header t (or creation_time), px, py, dx, dy.
func LoadRequests(r io.Reader, bounds types.Bounds) ([]RequestRecord, error) {
	aliases := map[string]string{"creation_time": "t"}
	rows, err := readTable(r, []string{"t", "px", "py", "dx", "dy"}, aliases)
	if err != nil {
		return nil, err
	}
	out := make([]RequestRecord, 0, len(rows))
	for _, row := range rows {
		var rec RequestRecord
		v, _ := row.get("t")
		t, err := strconv.Atoi(v)
		if err != nil {
			return nil, row.fail("t", fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, v))
		}
		if t < 0 {
			return nil, row.fail("t", fmt.Errorf("%w: %d", ErrNegativeTime, t))
		}
		rec.Time = t
		if rec.PX, err = row.coord("px", bounds.Width); err != nil {
			return nil, err
		}
		if rec.PY, err = row.coord("py", bounds.Height); err != nil {
			return nil, err
		}
		if rec.DX, err = row.coord("dx", bounds.Width); err != nil {
			return nil, err
		}
		if rec.DY, err = row.coord("dy", bounds.Height); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func LoadDriversFile(path string, bounds types.Bounds) ([]DriverRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadDrivers(f, bounds)
}

func LoadRequestsFile(path string, bounds types.Bounds) ([]RequestRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadRequests(f, bounds)
}

type row struct {
	line   int
	fields []string
	cols   map[string]int
}

func (r row) get(name string) (string, bool) {
	i, ok := r.cols[name]
	if !ok || i >= len(r.fields) {
		return "", false
	}
	return strings.TrimSpace(r.fields[i]), true
}

func (r row) fail(field string, err error) error {
	return &ParseError{Line: r.line, Field: field, Err: err}
}

func (r row) coord(name string, max float64) (float64, error) {
	v, _ := r.get(name)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, r.fail(name, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, v))
	}
	if f < 0 || f > max {
		return 0, r.fail(name, fmt.Errorf("%w: %v not in [0, %v]", ErrOutOfBounds, f, max))
	}
	return f, nil
}

// readTable parses a CSV with a header line. Column names are case-insensitive
// and aliases map alternative names onto canonical ones.
func readTable(r io.Reader, required []string, aliases map[string]string) ([]row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Line: 1, Err: fmt.Errorf("%w: empty input, header expected", ErrMissingColumn)}
	}
	if err != nil {
		return nil, csvError(err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if canon, ok := aliases[name]; ok {
			name = canon
		}
		cols[name] = i
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, &ParseError{Line: 1, Field: c, Err: ErrMissingColumn}
		}
	}

	var rows []row
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		line, _ := cr.FieldPos(0)
		rw := row{line: line, fields: fields, cols: cols}
		for _, c := range required {
			if v, ok := rw.get(c); !ok || v == "" {
				return nil, rw.fail(c, fmt.Errorf("%w: value is empty", ErrMissingColumn))
			}
		}
		rows = append(rows, rw)
	}
	return rows, nil
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Err: fmt.Errorf("%w: %v", ErrInvalidValue, pe.Err)}
	}
	return err
}

func knownKind(k driver.Kind) bool {
	for _, kind := range driver.Kinds {
		if kind == k {
			return true
		}
	}
	return false
}
