package models

import "time"

// SecretsDocumentID is the fixed identifier of the singleton credentials record.
const SecretsDocumentID = "secrets.imagekit"

// Secrets holds the ImageKit credentials configured for the studio. Missing
// fields are represented as empty strings; the record is only ever written
// wholesale (create-or-replace).
type Secrets struct {
	PublicKey           string    `json:"publicKey"`
	PrivateKey          string    `json:"privateKey"`
	URLEndpoint         string    `json:"urlEndpoint"`
	EnablePrivateImages bool      `json:"enablePrivateImages"`
	UpdatedAt           time.Time `json:"-"`
}

// Valid reports whether all three required keys are present and non-empty.
func (s Secrets) Valid() bool {
	return s.PublicKey != "" && s.PrivateKey != "" && s.URLEndpoint != ""
}

// SecretsView is the secrets shape returned by the API, carrying the computed
// validity flag. The private key is never echoed back in full.
type SecretsView struct {
	PublicKey           string `json:"publicKey"`
	PrivateKeySet       bool   `json:"privateKeySet"`
	URLEndpoint         string `json:"urlEndpoint"`
	EnablePrivateImages bool   `json:"enablePrivateImages"`
	Valid               bool   `json:"valid"`
}

// View returns the API-safe view of the secrets.
func (s Secrets) View() SecretsView {
	return SecretsView{
		PublicKey:           s.PublicKey,
		PrivateKeySet:       s.PrivateKey != "",
		URLEndpoint:         s.URLEndpoint,
		EnablePrivateImages: s.EnablePrivateImages,
		Valid:               s.Valid(),
	}
}
