package imagekit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCustomMetadata_FiltersAndStringifies(t *testing.T) {
	input := map[string]any{
		"title":    "My Video",
		"views":    float64(42),
		"rating":   4.5,
		"featured": true,
		"missing":  nil,
		"nested":   map[string]any{"x": 1},
		"list":     []any{"a", "b"},
	}

	got := NormalizeCustomMetadata(input)

	require.Equal(t, map[string]string{
		"title":    "My Video",
		"views":    "42",
		"rating":   "4.5",
		"featured": "true",
	}, got)
}

func TestNormalizeCustomMetadata_EmptyAfterFiltering(t *testing.T) {
	require.Nil(t, NormalizeCustomMetadata(nil))
	require.Nil(t, NormalizeCustomMetadata(map[string]any{}))
	require.Nil(t, NormalizeCustomMetadata(map[string]any{
		"a": nil,
		"b": map[string]any{"x": 1},
	}))
}

func TestEncodeCustomMetadata(t *testing.T) {
	got := EncodeCustomMetadata(map[string]any{"b": "two", "a": float64(1)})
	require.JSONEq(t, `{"a":"1","b":"two"}`, got)

	require.Equal(t, "", EncodeCustomMetadata(nil))
	require.Equal(t, "", EncodeCustomMetadata(map[string]any{"only": nil}))
}
