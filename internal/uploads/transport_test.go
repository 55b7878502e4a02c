package uploads

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/studiokit/imagekit-backend/internal/imagekit"
	"github.com/studiokit/imagekit-backend/internal/models"
)

type stubTransport struct {
	name   string
	result *imagekit.UploadResponse
	err    error
	calls  int
}

func (s *stubTransport) Name() string { return s.name }

func (s *stubTransport) Upload(_ context.Context, _ imagekit.UploadFile, _ models.Secrets, _ imagekit.UploadParams, _ func(int)) (*imagekit.UploadResponse, error) {
	s.calls++
	return s.result, s.err
}

func TestChain_FirstTransportWins(t *testing.T) {
	primary := &stubTransport{name: "signed", result: &imagekit.UploadResponse{FileID: "f1"}}
	fallback := &stubTransport{name: "private-key"}
	chain := NewChain(nil, primary, fallback)

	result, err := chain.Upload(context.Background(), imagekit.UploadFile{}, models.Secrets{}, imagekit.UploadParams{}, nil)
	require.NoError(t, err)
	require.Equal(t, "f1", result.FileID)
	require.Equal(t, 1, primary.calls)
	require.Zero(t, fallback.calls)
}

func TestChain_FallsBackOnFailure(t *testing.T) {
	primary := &stubTransport{name: "signed", err: imagekit.NewUploadError(500, "boom")}
	fallback := &stubTransport{name: "private-key", result: &imagekit.UploadResponse{FileID: "f2"}}
	chain := NewChain(nil, primary, fallback)

	result, err := chain.Upload(context.Background(), imagekit.UploadFile{}, models.Secrets{}, imagekit.UploadParams{}, nil)
	require.NoError(t, err)
	require.Equal(t, "f2", result.FileID)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, fallback.calls)
}

func TestChain_LastErrorSurfaces(t *testing.T) {
	primary := &stubTransport{name: "signed", err: imagekit.NewUploadError(500, "first")}
	fallback := &stubTransport{name: "private-key", err: imagekit.NewUploadError(402, "")}
	chain := NewChain(nil, primary, fallback)

	_, err := chain.Upload(context.Background(), imagekit.UploadFile{}, models.Secrets{}, imagekit.UploadParams{}, nil)
	require.Error(t, err)
	var ue *imagekit.UploadError
	require.ErrorAs(t, err, &ue)
	require.Equal(t, 402, ue.StatusCode)
}

func TestChain_StopsOnCancelledContext(t *testing.T) {
	primary := &stubTransport{name: "signed"}
	chain := NewChain(nil, primary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := chain.Upload(ctx, imagekit.UploadFile{}, models.Secrets{}, imagekit.UploadParams{}, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, primary.calls)
}
