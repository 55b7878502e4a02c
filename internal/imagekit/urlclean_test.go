package imagekit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanURL_StripsCacheBustParamOnly(t *testing.T) {
	got := CleanURL("https://ik.imagekit.io/demo/video.mp4?updatedAt=1700000000&tr=w-300")
	require.Equal(t, "https://ik.imagekit.io/demo/video.mp4?tr=w-300", got)
}

func TestCleanURL_NoParamsUnchanged(t *testing.T) {
	raw := "https://ik.imagekit.io/demo/video.mp4"
	require.Equal(t, raw, CleanURL(raw))
}

func TestCleanURL_OnlyCacheBustParam(t *testing.T) {
	got := CleanURL("https://ik.imagekit.io/demo/video.mp4?updatedAt=5")
	require.Equal(t, "https://ik.imagekit.io/demo/video.mp4", got)
}

func TestCleanURL_Idempotent(t *testing.T) {
	raw := "https://ik.imagekit.io/demo/v.mp4?updatedAt=5&sig=abc"
	once := CleanURL(raw)
	require.Equal(t, once, CleanURL(once))
}

func TestCleanURL_EmptyAndUnparseable(t *testing.T) {
	require.Equal(t, "", CleanURL(""))
	require.Equal(t, "://bad url", CleanURL("://bad url"))
}

func TestCleanURLsInMap_Recursive(t *testing.T) {
	input := map[string]any{
		"url":          "https://ik.imagekit.io/a.mp4?updatedAt=1",
		"thumbnailUrl": "https://ik.imagekit.io/a.jpg?updatedAt=2&tr=n-thumb",
		"name":         "a.mp4?updatedAt=3", // not a url key, untouched
		"nested": map[string]any{
			"url": "https://ik.imagekit.io/b.mp4?updatedAt=4",
		},
		"versions": []any{
			map[string]any{"thumbnailUrl": "https://ik.imagekit.io/c.jpg?updatedAt=5"},
		},
		"size": float64(1024),
	}

	got := CleanURLsInMap(input)

	require.Equal(t, "https://ik.imagekit.io/a.mp4", got["url"])
	require.Equal(t, "https://ik.imagekit.io/a.jpg?tr=n-thumb", got["thumbnailUrl"])
	require.Equal(t, "a.mp4?updatedAt=3", got["name"])
	nested := got["nested"].(map[string]any)
	require.Equal(t, "https://ik.imagekit.io/b.mp4", nested["url"])
	versions := got["versions"].([]any)
	first := versions[0].(map[string]any)
	require.Equal(t, "https://ik.imagekit.io/c.jpg", first["thumbnailUrl"])
	require.Equal(t, float64(1024), got["size"])
}

func TestCleanURLsInMap_Nil(t *testing.T) {
	require.Nil(t, CleanURLsInMap(nil))
}
