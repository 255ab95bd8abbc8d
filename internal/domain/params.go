package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Params carries free-form command parameters, usually decoded from JSON.
type Params map[string]any

// String returns the value for key rendered as text, or def when the key is
// missing or nil.
func (p Params) String(key, def string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the value for key as an integer, or def when the key is missing.
// Floats are truncated toward zero and numeric strings are parsed; values
// beyond the int range saturate. Any other value fails with ErrValidation.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}

	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float32:
		return truncate(key, float64(n))
	case float64:
		return truncate(key, n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s %q is not a number", ErrValidation, key, n.String())
		}
		return truncate(key, f)
	case string:
		s := strings.TrimSpace(n)
		i, err := strconv.Atoi(s)
		if err == nil {
			return i, nil
		}
		if errors.Is(err, strconv.ErrRange) {
			if strings.HasPrefix(s, "-") {
				return math.MinInt, nil
			}
			return math.MaxInt, nil
		}
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrValidation, key, n)
	default:
		return 0, fmt.Errorf("%w: %s has type %T, want a number", ErrValidation, key, v)
	}
}

func truncate(key string, f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s %v is not a finite number", ErrValidation, key, f)
	}
	switch {
	case f >= float64(math.MaxInt):
		return math.MaxInt, nil
	case f <= float64(math.MinInt):
		return math.MinInt, nil
	}
	return int(math.Trunc(f)), nil
}

// Clone returns a shallow copy that is safe to hand to another goroutine.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
