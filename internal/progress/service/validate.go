package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	dErrors "dials/pkg/domain-errors"
)

// MaxProgressBytes is the ceiling on a compacted progress document.
const MaxProgressBytes = 250 * 1024

var steps = []string{"user", "spouse", "financial", "review"}

var arrayLimits = []struct {
	field string
	max   int
}{
	{"spouses", 50},
	{"children", 50},
	{"allFinancialData", 100},
}

// ValidateShape checks a progress document before it is stored. It returns
// a CodeValidation error whose message is shown to the client as is, or a
// CodePayloadTooLarge error for oversized documents.
func ValidateShape(raw json.RawMessage) error {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return invalid("Progress must be an object")
	}

	if v, ok := doc["lastStep"]; ok && truthy(v) {
		step, isString := v.(string)
		if !isString || !slices.Contains(steps, step) {
			return invalid("Invalid lastStep")
		}
	}

	snapshot, ok := doc["stateSnapshot"].(map[string]any)
	if !ok {
		return invalid("stateSnapshot missing")
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err == nil && compact.Len() > MaxProgressBytes {
		return dErrors.New(dErrors.CodePayloadTooLarge, "Progress payload too large")
	}

	if v, ok := snapshot["userData"]; ok && truthy(v) {
		if _, isObject := v.(map[string]any); !isObject {
			return invalid("userData must be object")
		}
	}

	for _, lim := range arrayLimits {
		v, ok := snapshot[lim.field]
		if !ok || !truthy(v) {
			continue
		}
		arr, isArray := v.([]any)
		if !isArray || len(arr) > lim.max {
			return invalid(fmt.Sprintf("%s invalid or exceeds limit", lim.field))
		}
	}

	if items, ok := snapshot["allFinancialData"].([]any); ok {
		for _, item := range items {
			obj, isObject := item.(map[string]any)
			if !isObject {
				return invalid("Invalid financial item")
			}
			if data, ok := obj["data"]; ok && truthy(data) {
				if _, isObject := data.(map[string]any); !isObject {
					return invalid("Invalid financial item data")
				}
			}
		}
	}

	if v, ok := snapshot["review"]; ok && truthy(v) {
		if _, isObject := v.(map[string]any); !isObject {
			return invalid("review must be object")
		}
	}
	return nil
}

func invalid(msg string) error {
	return dErrors.New(dErrors.CodeValidation, msg)
}

// truthy mirrors how the portal treats optional fields: null, false, zero and
// the empty string mean "not provided".
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}
