package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsVideoAssetType(t *testing.T) {
	require.True(t, IsVideoAssetType(TypeVideoAsset))
	require.True(t, IsVideoAssetType(TypeVideoLegacy))
	require.False(t, IsVideoAssetType("imagekit.image"))
	require.False(t, IsVideoAssetType(""))
}
