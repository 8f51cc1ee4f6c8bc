package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases where
// generation models return numbers or booleans instead of strings. Returns empty
// string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	// Try string first
	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	// Try number
	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	// Try boolean
	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	// Fallback: return raw string representation
	return string(raw)
}

// FlexibleField returns the first of the named fields present in obj, as a
// trimmed flexible string. Names are tried in order with exact matches
// first, then case-insensitively, so a model that answers {"Title": ...}
// when asked for "idea" still resolves. Returns empty string when none of
// the names are present.
func FlexibleField(obj map[string]json.RawMessage, names ...string) string {
	for _, name := range names {
		if raw, ok := obj[name]; ok {
			return strings.TrimSpace(FlexibleStringValue(raw))
		}
	}
	for _, name := range names {
		for key, raw := range obj {
			if strings.EqualFold(key, name) {
				return strings.TrimSpace(FlexibleStringValue(raw))
			}
		}
	}
	return ""
}
