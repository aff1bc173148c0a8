package action

import (
	"encoding/json"
	"strconv"
)

// ExtractScalar pulls the event-relevant scalar out of an inbound MQTT
// payload: a JSON object's "event" field, else its "ext" field, else
// the entire decoded JSON value stringified, else the raw payload as
// a string.
func ExtractScalar(payload []byte) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err == nil {
		if v, ok := obj["event"]; ok {
			if s, ok := stringifyRaw(v); ok {
				return s
			}
		}
		if v, ok := obj["ext"]; ok {
			if s, ok := stringifyRaw(v); ok {
				return s
			}
		}
	}

	var anyVal any
	if err := json.Unmarshal(payload, &anyVal); err == nil {
		if s, ok := stringifyAny(anyVal); ok {
			return s
		}
	}

	return string(payload)
}

func stringifyRaw(raw json.RawMessage) (string, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return stringifyAny(v)
}

func stringifyAny(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	case nil:
		return "", true
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

// Compare applies cmp to observed against match. Both sides are
// compared numerically if they both parse as decimal numbers,
// otherwise as strings.
func Compare(observed string, match string, cmp Comparator) bool {
	obsNum, obsErr := strconv.ParseFloat(observed, 64)
	matchNum, matchErr := strconv.ParseFloat(match, 64)

	if obsErr == nil && matchErr == nil {
		return compareFloats(obsNum, matchNum, cmp)
	}
	return compareStrings(observed, match, cmp)
}

func compareFloats(a, b float64, cmp Comparator) bool {
	switch cmp {
	case CmpEqual:
		return a == b
	case CmpNotEqual:
		return a != b
	case CmpLessThan:
		return a < b
	case CmpLessEqual:
		return a <= b
	case CmpGreaterThan:
		return a > b
	case CmpGreaterEqual:
		return a >= b
	default:
		return false
	}
}

func compareStrings(a, b string, cmp Comparator) bool {
	switch cmp {
	case CmpEqual:
		return a == b
	case CmpNotEqual:
		return a != b
	case CmpLessThan:
		return a < b
	case CmpLessEqual:
		return a <= b
	case CmpGreaterThan:
		return a > b
	case CmpGreaterEqual:
		return a >= b
	default:
		return false
	}
}
