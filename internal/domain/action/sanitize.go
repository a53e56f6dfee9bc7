package action

import "strings"

// MaxPayloadStringLength caps any single payload string (1MB). Longer
// strings are truncated before analysis to prevent memory exhaustion.
const MaxPayloadStringLength = 1048576

// SanitizePayload returns a copy of the payload with null bytes removed
// from strings and oversized strings truncated. Maps and slices are
// copied element by element; other values pass through unchanged. The
// input is never mutated.
func SanitizePayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	sanitized, _ := sanitizeValue(payload).(map[string]any)
	return sanitized
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return sanitizeString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			out[k] = sanitizeValue(nested)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, nested := range val {
			out[i] = sanitizeValue(nested)
		}
		return out
	default:
		return v
	}
}

func sanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if len(s) > MaxPayloadStringLength {
		s = s[:MaxPayloadStringLength]
	}
	return s
}
