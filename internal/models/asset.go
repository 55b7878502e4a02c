package models

import (
	"time"

	"github.com/google/uuid"
)

// Asset document type discriminators. The legacy alias is accepted on reads
// from older datasets only; new documents are always written with TypeVideoAsset.
const (
	TypeVideoAsset  = "imagekit.videoAsset"
	TypeVideoLegacy = "imagekit.video"
)

// AssetStatus is the lifecycle status of a video asset document.
type AssetStatus string

const (
	AssetStatusPreparing        AssetStatus = "preparing"
	AssetStatusWaitingForUpload AssetStatus = "waiting_for_upload"
	AssetStatusWaiting          AssetStatus = "waiting"
	AssetStatusReady            AssetStatus = "ready"
	AssetStatusErrored          AssetStatus = "errored"
)

// IsVideoAssetType reports whether t names a video asset document, including
// the legacy alias.
func IsVideoAssetType(t string) bool {
	return t == TypeVideoAsset || t == TypeVideoLegacy
}

// VideoAsset is the persisted record for one uploaded media file. The url
// field and any url/thumbnailUrl values nested in Data never carry the
// vendor's updatedAt cache-busting query parameter.
type VideoAsset struct {
	ID            uuid.UUID      `json:"id"`
	Type          string         `json:"_type"`
	FileID        string         `json:"fileId"`
	Status        AssetStatus    `json:"status"`
	URL           string         `json:"url"`
	Filename      string         `json:"filename"`
	ThumbnailTime float64        `json:"thumbnailTime"`
	Data          map[string]any `json:"data"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// EffectiveStatus treats records with no status (legacy imports) as ready.
func (a *VideoAsset) EffectiveStatus() AssetStatus {
	if a.Status == "" {
		return AssetStatusReady
	}
	return a.Status
}
