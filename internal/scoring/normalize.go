package scoring

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// percentScaleThreshold separates 0–1 inputs from 0–100 inputs. Stored fixtures depend on it.
const percentScaleThreshold = 1.5

// ParseFloat converts a loosely-typed raw value into a float64.
// Strings may use a comma as the decimal separator. ok is false for nil,
// empty, unparsable or non-finite input.
func ParseFloat(raw any) (float64, bool) {
	var v float64
	switch x := raw.(type) {
	case nil:
		return 0, false
	case float64:
		v = x
	case *float64:
		if x == nil {
			return 0, false
		}
		v = *x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int32:
		v = float64(x)
	case int64:
		v = float64(x)
	case *int64:
		if x == nil {
			return 0, false
		}
		v = float64(*x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", "."))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// To01 normalizes raw into [0, 1]. Values above 1.5 are read as a 0–100 scale.
// Unparsable input falls back to def, which goes through the same rule.
func To01(raw any, def float64) float64 {
	v, ok := ParseFloat(raw)
	if !ok {
		v = def
	}
	if v > percentScaleThreshold {
		v /= 100.0
	}
	return clamp(v, 0, 1)
}

// FloatPtr parses raw and returns nil when it is missing or unparsable.
func FloatPtr(raw any) *float64 {
	v, ok := ParseFloat(raw)
	if !ok {
		return nil
	}
	return &v
}

func clamp(v, min, max float64) float64 {
	if math.IsNaN(v) {
		return min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
