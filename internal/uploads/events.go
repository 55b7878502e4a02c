package uploads

import "github.com/google/uuid"

// EventType identifies a discrete orchestration event.
type EventType string

const (
	// EventFile is the initial descriptor for a staged file upload.
	EventFile EventType = "file"
	// EventURL is the initial descriptor for a staged remote-url upload.
	EventURL EventType = "url"
	// EventProgress carries a monotonically non-decreasing percentage.
	EventProgress EventType = "progress"
	// EventSuccess carries the id of the materialized asset document.
	EventSuccess EventType = "success"
	// EventError carries the terminal human-readable failure message.
	EventError EventType = "error"
)

// Event is one discrete upload orchestration event pushed to subscribers.
type Event struct {
	Type      EventType `json:"type"`
	SessionID uuid.UUID `json:"sessionId"`
	Filename  string    `json:"filename,omitempty"`
	URL       string    `json:"url,omitempty"`
	Percent   int       `json:"percent,omitempty"`
	AssetID   string    `json:"assetId,omitempty"`
	Message   string    `json:"message,omitempty"`
}
