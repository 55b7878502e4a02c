package imagekit

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/studiokit/imagekit-backend/internal/models"
)

// AuthParams are the short-lived signature parameters a browser needs for a
// direct upload to ImageKit without ever seeing the private key.
type AuthParams struct {
	Token     string `json:"token"`
	Expire    int64  `json:"expire"`
	Signature string `json:"signature"`
	PublicKey string `json:"publicKey"`
}

// GenerateAuthParams produces upload auth parameters per the ImageKit
// client-side upload protocol: signature = HMAC-SHA1(token + expire, privateKey).
func GenerateAuthParams(secrets models.Secrets, ttl time.Duration) (AuthParams, error) {
	if secrets.PublicKey == "" || secrets.PrivateKey == "" {
		return AuthParams{}, ErrCredentialsMissing
	}
	token := uuid.New().String()
	expire := time.Now().Add(ttl).Unix()

	mac := hmac.New(sha1.New, []byte(secrets.PrivateKey))
	mac.Write([]byte(token + strconv.FormatInt(expire, 10)))
	signature := hex.EncodeToString(mac.Sum(nil))

	return AuthParams{
		Token:     token,
		Expire:    expire,
		Signature: signature,
		PublicKey: secrets.PublicKey,
	}, nil
}

// Valid reports whether the params carry everything a signed upload needs.
func (p AuthParams) Valid() bool {
	return p.Token != "" && p.Signature != "" && p.Expire > 0
}
