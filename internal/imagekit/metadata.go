package imagekit

import (
	"encoding/json"
	"fmt"
)

// NormalizeCustomMetadata flattens user-supplied custom metadata into the
// string map ImageKit accepts: nil values and nested objects/arrays are
// dropped, remaining primitives are stringified. Returns nil when nothing
// survives filtering so the field can be omitted entirely.
func NormalizeCustomMetadata(input map[string]any) map[string]string {
	if len(input) == 0 {
		return nil
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		if value == nil {
			continue
		}
		switch value.(type) {
		case map[string]any, []any:
			// ImageKit rejects nested values with "Invalid custom metadata".
			continue
		case string:
			out[key] = value.(string)
		case bool:
			out[key] = fmt.Sprintf("%t", value)
		case float64:
			// JSON numbers decode as float64; render integers without a dot.
			f := value.(float64)
			if f == float64(int64(f)) {
				out[key] = fmt.Sprintf("%d", int64(f))
			} else {
				out[key] = fmt.Sprintf("%v", f)
			}
		default:
			out[key] = fmt.Sprintf("%v", value)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// EncodeCustomMetadata serializes normalized metadata as the JSON string the
// upload API expects. Empty input yields "" so the form field is omitted.
// Output is deterministic: encoding/json sorts map keys.
func EncodeCustomMetadata(input map[string]any) string {
	normalized := NormalizeCustomMetadata(input)
	if normalized == nil {
		return ""
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return ""
	}
	return string(raw)
}
