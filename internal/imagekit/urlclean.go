package imagekit

import "net/url"

// cacheBustParam is the query parameter ImageKit appends to delivered URLs.
// It must never reach a persisted asset document.
const cacheBustParam = "updatedAt"

// CleanURL removes the updatedAt query parameter from an ImageKit URL while
// preserving every other parameter (transformations, signatures, tags).
// Unparseable input is returned unchanged. Idempotent.
func CleanURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if _, ok := q[cacheBustParam]; !ok {
		return raw
	}
	q.Del(cacheBustParam)
	u.RawQuery = q.Encode()
	return u.String()
}

// CleanURLsInMap walks a decoded vendor payload and cleans every url and
// thumbnailUrl value, recursing into nested objects and arrays.
func CleanURLsInMap(obj map[string]any) map[string]any {
	if obj == nil {
		return nil
	}
	cleaned := make(map[string]any, len(obj))
	for key, value := range obj {
		cleaned[key] = cleanValue(key, value)
	}
	return cleaned
}

func cleanValue(key string, value any) any {
	switch v := value.(type) {
	case string:
		if key == "url" || key == "thumbnailUrl" {
			return CleanURL(v)
		}
		return v
	case map[string]any:
		return CleanURLsInMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cleanValue("", item)
		}
		return out
	default:
		return value
	}
}
