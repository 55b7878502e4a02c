package imagekit

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCredentialsMissing means no (or incomplete) secrets are configured.
	ErrCredentialsMissing = errors.New("ImageKit credentials not configured")
	// ErrCredentialsInvalid means secrets were supplied but rejected on re-validation.
	ErrCredentialsInvalid = errors.New("ImageKit credentials were rejected")
	// ErrInvalidURL means a remote upload source is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("URL must begin with http:// or https://")
)

// User-facing messages for HTTP-status-derived upload failures.
const (
	msgUnauthorized     = "Invalid ImageKit credentials. Please check your API keys."
	msgQuotaExceeded    = "ImageKit monthly usage limit exceeded. Please upgrade your plan or wait for the next billing cycle."
	msgPayloadTooLarge  = "File size exceeds the maximum allowed limit."
	msgUnsupportedMedia = "File format is not supported. Please use a supported video format."
)

// UploadError is a terminal transport failure carrying the vendor HTTP status
// and a human-readable message. It is never retried automatically.
type UploadError struct {
	StatusCode int
	Message    string
}

func (e *UploadError) Error() string { return e.Message }

// NewUploadError maps a vendor HTTP status to its user-facing message.
// Statuses without a dedicated message produce a generic failure wrapping detail.
func NewUploadError(status int, detail string) *UploadError {
	switch status {
	case http.StatusUnauthorized:
		return &UploadError{StatusCode: status, Message: msgUnauthorized}
	case http.StatusPaymentRequired:
		return &UploadError{StatusCode: status, Message: msgQuotaExceeded}
	case http.StatusRequestEntityTooLarge:
		return &UploadError{StatusCode: status, Message: msgPayloadTooLarge}
	case http.StatusUnsupportedMediaType:
		return &UploadError{StatusCode: status, Message: msgUnsupportedMedia}
	default:
		return &UploadError{StatusCode: status, Message: fmt.Sprintf("Upload failed: %s", detail)}
	}
}

// WrapUploadError turns an arbitrary transport error into an UploadError,
// preserving an existing one unchanged.
func WrapUploadError(err error) *UploadError {
	var ue *UploadError
	if errors.As(err, &ue) {
		return ue
	}
	return &UploadError{Message: fmt.Sprintf("Upload failed: %s", err.Error())}
}
