package uploads

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/studiokit/imagekit-backend/internal/imagekit"
	"github.com/studiokit/imagekit-backend/internal/models"
)

// Transport performs one upload attempt against the vendor.
type Transport interface {
	Name() string
	Upload(ctx context.Context, file imagekit.UploadFile, secrets models.Secrets, params imagekit.UploadParams, onProgress func(percent int)) (*imagekit.UploadResponse, error)
}

// AuthSource issues short-lived signed upload parameters.
type AuthSource interface {
	AuthParams(ctx context.Context, secrets models.Secrets) (imagekit.AuthParams, error)
}

// LocalAuthSource signs upload parameters in-process; this service holds the
// private key, so no round-trip to a separate auth endpoint is needed.
type LocalAuthSource struct {
	TTL time.Duration
}

// AuthParams implements AuthSource.
func (s LocalAuthSource) AuthParams(_ context.Context, secrets models.Secrets) (imagekit.AuthParams, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return imagekit.GenerateAuthParams(secrets, ttl)
}

// SignedTransport is the primary path: obtain a short-lived signature, then
// upload without exposing the private key to the upload call.
type SignedTransport struct {
	client *imagekit.Client
	auth   AuthSource
}

// NewSignedTransport creates the signature-authenticated transport.
func NewSignedTransport(client *imagekit.Client, auth AuthSource) *SignedTransport {
	return &SignedTransport{client: client, auth: auth}
}

func (t *SignedTransport) Name() string { return "signed" }

// Upload implements Transport.
func (t *SignedTransport) Upload(ctx context.Context, file imagekit.UploadFile, secrets models.Secrets, params imagekit.UploadParams, onProgress func(int)) (*imagekit.UploadResponse, error) {
	auth, err := t.auth.AuthParams(ctx, secrets)
	if err != nil {
		return nil, err
	}
	return t.client.UploadSigned(ctx, file, secrets.PublicKey, auth, params, onProgress)
}

// PrivateKeyTransport is the fallback path: a server-side upload holding the
// private key directly, payload base64-encoded.
type PrivateKeyTransport struct {
	client *imagekit.Client
}

// NewPrivateKeyTransport creates the private-key fallback transport.
func NewPrivateKeyTransport(client *imagekit.Client) *PrivateKeyTransport {
	return &PrivateKeyTransport{client: client}
}

func (t *PrivateKeyTransport) Name() string { return "private-key" }

// Upload implements Transport.
func (t *PrivateKeyTransport) Upload(ctx context.Context, file imagekit.UploadFile, secrets models.Secrets, params imagekit.UploadParams, onProgress func(int)) (*imagekit.UploadResponse, error) {
	return t.client.UploadPrivate(ctx, file, secrets, params, onProgress)
}

// Chain tries each transport in order until one succeeds. Intermediate
// failures are logged, never surfaced; only the last error reaches the caller.
type Chain struct {
	transports []Transport
	logger     *zap.Logger
}

// NewChain creates a transport chain.
func NewChain(logger *zap.Logger, transports ...Transport) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{transports: transports, logger: logger}
}

func (c *Chain) Name() string { return "chain" }

// Upload implements Transport.
func (c *Chain) Upload(ctx context.Context, file imagekit.UploadFile, secrets models.Secrets, params imagekit.UploadParams, onProgress func(int)) (*imagekit.UploadResponse, error) {
	var lastErr error
	for i, transport := range c.transports {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result, err := transport.Upload(ctx, file, secrets, params, onProgress)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i < len(c.transports)-1 {
			c.logger.Warn("transport failed, falling back",
				zap.String("transport", transport.Name()), zap.Error(err))
		}
	}
	return nil, lastErr
}
