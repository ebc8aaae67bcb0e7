// internal/rules/normalize.go
package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/shelfkeeper/internal/types"
)

/*
 * Value normalization for rule literals.
 *
 * Converts the raw JSON literal of a rule into the typed form its field's
 * category needs. Failure is types.ErrUnparsableValue, never a panic; the
 * compiler turns it into a match-all leaf.
 *
 * Category modes:
 *   - DATE: RFC3339 date-time, then zone-less date-time, then date-only at
 *     midnight. All results are UTC.
 *   - NUMBER: float64; numeric strings are accepted after trimming
 *   - IDENTIFIER: int64; fractional numbers are rejected
 *   - STRING / RELATION: lower-cased text, numbers formatted without exponent
 *   - ENUM: text kept as provided; "UNSET" is interpreted by the compiler
 *
 * Lists normalize element by element. A scalar where a list is expected is
 * a one-element list. An empty list has nothing to compare and is unparsable.
 */

// Date layouts tried in order.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Normalize converts value to the representation required by cat.
func Normalize(value any, cat Category) (any, error) {
	if value == nil {
		return nil, types.ErrUnparsableValue
	}

	switch cat {
	case CategoryDate:
		return normalizeDate(value)
	case CategoryNumber:
		return normalizeNumber(value)
	case CategoryIdentifier:
		return normalizeIdentifier(value)
	case CategoryString, CategoryRelation:
		s, err := normalizeText(value)
		if err != nil {
			return nil, err
		}
		return strings.ToLower(s), nil
	case CategoryEnum:
		s, ok := value.(string)
		if !ok {
			return nil, types.ErrUnparsableValue
		}
		return strings.TrimSpace(s), nil
	default:
		return nil, types.ErrUnparsableValue
	}
}

// NormalizeList normalizes every element of a list literal.
// Any element failing normalization fails the list.
func NormalizeList(value any, cat Category) ([]any, error) {
	var elems []any
	switch v := value.(type) {
	case nil:
		return nil, types.ErrUnparsableValue
	case []any:
		elems = v
	case []string:
		elems = make([]any, len(v))
		for i, s := range v {
			elems[i] = s
		}
	default:
		elems = []any{v}
	}

	if len(elems) == 0 {
		return nil, types.ErrUnparsableValue
	}

	out := make([]any, 0, len(elems))
	for _, elem := range elems {
		n, err := Normalize(elem, cat)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// normalizeDate parses a date literal into a UTC instant.
func normalizeDate(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		v = strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, types.ErrUnparsableValue
	default:
		return time.Time{}, types.ErrUnparsableValue
	}
}

// normalizeNumber converts numeric literals to float64.
// Booleans are rejected; NaN and infinities are not comparable.
func normalizeNumber(value any) (float64, error) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, types.ErrUnparsableValue
		}
		f = parsed
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, types.ErrUnparsableValue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, types.ErrUnparsableValue
		}
		f = parsed
	default:
		return 0, types.ErrUnparsableValue
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, types.ErrUnparsableValue
	}
	return f, nil
}

// normalizeIdentifier converts an integral literal to int64.
func normalizeIdentifier(value any) (int64, error) {
	switch v := value.(type) {
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, types.ErrUnparsableValue
		}
		return id, nil
	default:
		f, err := normalizeNumber(v)
		if err != nil {
			return 0, err
		}
		if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return 0, types.ErrUnparsableValue
		}
		return int64(f), nil
	}
}

// normalizeText renders a scalar literal as text.
// Lists and objects are not text.
func normalizeText(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case []any, map[string]any:
		return "", types.ErrUnparsableValue
	default:
		return fmt.Sprintf("%v", v), nil
	}
}
