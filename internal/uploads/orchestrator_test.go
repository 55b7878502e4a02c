package uploads

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/studiokit/imagekit-backend/internal/imagekit"
	"github.com/studiokit/imagekit-backend/internal/models"
)

type fakeSecrets struct{ creds models.Secrets }

func (f fakeSecrets) Resolve(_ context.Context) models.Secrets { return f.creds }

var validCreds = models.Secrets{PublicKey: "pk", PrivateKey: "sk", URLEndpoint: "https://ik.imagekit.io/demo"}

type fakeWriter struct {
	mu   sync.Mutex
	err  error
	last uuid.UUID
}

func (f *fakeWriter) Materialize(_ context.Context, sessionID uuid.UUID, result *imagekit.UploadResponse) (*models.VideoAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.last = sessionID
	return &models.VideoAsset{ID: sessionID, FileID: result.FileID, Status: models.AssetStatusReady}, nil
}

type fakeCleanup struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeCleanup) DeleteFile(_ context.Context, _ models.Secrets, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, fileID)
	return nil
}

func (f *fakeCleanup) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// scriptedTransport blocks until released, then returns its scripted outcome.
// Progress percentages in script are reported before returning.
type scriptedTransport struct {
	mu       sync.Mutex
	release  chan struct{}
	started  chan struct{}
	once     sync.Once
	script   []int
	result   *imagekit.UploadResponse
	err      error
	calls    int
	honorCtx bool
}

func newScriptedTransport(result *imagekit.UploadResponse, err error) *scriptedTransport {
	return &scriptedTransport{
		release: make(chan struct{}),
		started: make(chan struct{}),
		result:  result,
		err:     err,
	}
}

func (s *scriptedTransport) Name() string { return "scripted" }

func (s *scriptedTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedTransport) Upload(ctx context.Context, _ imagekit.UploadFile, _ models.Secrets, _ imagekit.UploadParams, onProgress func(int)) (*imagekit.UploadResponse, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	s.once.Do(func() { close(s.started) })

	if s.honorCtx {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.release:
		}
	} else {
		<-s.release
	}
	if onProgress != nil {
		for _, p := range s.script {
			onProgress(p)
		}
	}
	return s.result, s.err
}

func newTestOrchestrator(t *testing.T, transport Transport, cleanup Cleanup, fetch URLFetcher) (*Orchestrator, <-chan Event, func()) {
	t.Helper()
	events := NewBroadcaster()
	orch := NewOrchestrator(transport, fakeSecrets{creds: validCreds}, &fakeWriter{}, cleanup, fetch, events, nil)
	ch, unsub := events.Subscribe()
	return orch, ch, unsub
}

func waitEvent(t *testing.T, ch <-chan Event, want EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", want)
		}
	}
}

func requireNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %q", ev.Type)
	case <-time.After(150 * time.Millisecond):
	}
}

func stagedFile(name string) StagedUpload {
	return StagedUpload{
		Kind: KindFile,
		File: &imagekit.UploadFile{Name: name, ContentType: "video/mp4", Data: []byte("bytes")},
	}
}

func TestOrchestrator_FileUploadLifecycle(t *testing.T) {
	transport := newScriptedTransport(&imagekit.UploadResponse{FileID: "f1", URL: "https://ik.imagekit.io/demo/a.mp4"}, nil)
	transport.script = []int{40, 30, 80} // 30 after 40 must be suppressed
	orch, events, unsub := newTestOrchestrator(t, transport, &fakeCleanup{}, nil)
	defer unsub()

	require.True(t, orch.Stage(stagedFile("a.mp4")))
	require.Equal(t, "staged", orch.Status().State)

	require.NoError(t, orch.Commit(context.Background(), Settings{Folder: "/videos"}))
	descriptor := waitEvent(t, events, EventFile)
	require.Equal(t, "a.mp4", descriptor.Filename)
	require.NotEqual(t, uuid.Nil, descriptor.SessionID)

	close(transport.release)

	first := waitEvent(t, events, EventProgress)
	require.Equal(t, 40, first.Percent)
	success := waitEvent(t, events, EventSuccess)
	require.Equal(t, descriptor.SessionID, success.SessionID)
	require.Equal(t, descriptor.SessionID.String(), success.AssetID)

	status := orch.Status()
	require.Equal(t, "success", status.State)
	require.Equal(t, 100, status.Session.Progress)
}

func TestOrchestrator_CommitWhileUploadingIsNoOp(t *testing.T) {
	transport := newScriptedTransport(&imagekit.UploadResponse{FileID: "f1"}, nil)
	orch, events, unsub := newTestOrchestrator(t, transport, &fakeCleanup{}, nil)
	defer unsub()

	require.True(t, orch.Stage(stagedFile("a.mp4")))
	require.NoError(t, orch.Commit(context.Background(), Settings{}))
	descriptor := waitEvent(t, events, EventFile)
	<-transport.started

	// Second commit: accepted silently, session identity preserved.
	require.NoError(t, orch.Commit(context.Background(), Settings{}))
	require.Equal(t, 1, transport.callCount())
	require.Equal(t, descriptor.SessionID, orch.Status().Session.ID)

	// New staging attempts are ignored while uploading.
	require.False(t, orch.Stage(stagedFile("b.mp4")))

	close(transport.release)
	waitEvent(t, events, EventSuccess)
}

func TestOrchestrator_CommitWithoutStaged(t *testing.T) {
	orch, _, unsub := newTestOrchestrator(t, newScriptedTransport(nil, nil), &fakeCleanup{}, nil)
	defer unsub()
	require.ErrorIs(t, orch.Commit(context.Background(), Settings{}), ErrNoStagedUpload)
}

func TestOrchestrator_InvalidURLRejectedBeforeTransport(t *testing.T) {
	transport := newScriptedTransport(nil, nil)
	orch, _, unsub := newTestOrchestrator(t, transport, &fakeCleanup{}, nil)
	defer unsub()

	require.True(t, orch.Stage(StagedUpload{Kind: KindURL, URL: "ftp://example.com/a.mp4"}))
	require.ErrorIs(t, orch.Commit(context.Background(), Settings{}), imagekit.ErrInvalidURL)
	require.Zero(t, transport.callCount())
	require.Equal(t, "staged", orch.Status().State)
}

func TestOrchestrator_MissingCredentials(t *testing.T) {
	transport := newScriptedTransport(nil, nil)
	orch := NewOrchestrator(transport, fakeSecrets{}, &fakeWriter{}, &fakeCleanup{}, nil, NewBroadcaster(), nil)

	require.True(t, orch.Stage(stagedFile("a.mp4")))
	require.ErrorIs(t, orch.Commit(context.Background(), Settings{}), imagekit.ErrCredentialsMissing)
	require.Zero(t, transport.callCount())
}

func TestOrchestrator_QuotaErrorMessage(t *testing.T) {
	transport := newScriptedTransport(nil, imagekit.NewUploadError(402, ""))
	orch, events, unsub := newTestOrchestrator(t, transport, &fakeCleanup{}, nil)
	defer unsub()

	require.True(t, orch.Stage(stagedFile("a.mp4")))
	require.NoError(t, orch.Commit(context.Background(), Settings{}))
	close(transport.release)

	failure := waitEvent(t, events, EventError)
	require.Equal(t, imagekit.NewUploadError(402, "").Message, failure.Message)
	require.Equal(t, "errored", orch.Status().State)
}

func TestOrchestrator_CancelSilencesSessionAndCleansUp(t *testing.T) {
	transport := newScriptedTransport(&imagekit.UploadResponse{FileID: "orphan"}, nil)
	cleanup := &fakeCleanup{}
	orch, events, unsub := newTestOrchestrator(t, transport, cleanup, nil)
	defer unsub()

	require.True(t, orch.Stage(stagedFile("a.mp4")))
	require.NoError(t, orch.Commit(context.Background(), Settings{}))
	waitEvent(t, events, EventFile)
	<-transport.started

	require.True(t, orch.Cancel())
	require.Equal(t, "idle", orch.Status().State)

	// Transport finishes after cancellation: the vendor file it produced must
	// be deleted and no events emitted for the dead session.
	close(transport.release)
	require.Eventually(t, func() bool {
		ids := cleanup.deletedIDs()
		return len(ids) == 1 && ids[0] == "orphan"
	}, 2*time.Second, 10*time.Millisecond)
	requireNoEvent(t, events)
}

func TestOrchestrator_CancelOnlyAppliesToFileUploads(t *testing.T) {
	transport := newScriptedTransport(&imagekit.UploadResponse{FileID: "f1"}, nil)
	fetch := func(_ context.Context, _ string) (imagekit.UploadFile, error) {
		return imagekit.UploadFile{Name: "remote.mp4", Data: []byte("x")}, nil
	}
	orch, events, unsub := newTestOrchestrator(t, transport, &fakeCleanup{}, fetch)
	defer unsub()

	require.True(t, orch.Stage(StagedUpload{Kind: KindURL, URL: "https://example.com/remote.mp4"}))
	require.NoError(t, orch.Commit(context.Background(), Settings{}))
	waitEvent(t, events, EventURL)
	<-transport.started

	require.False(t, orch.Cancel())
	close(transport.release)
	waitEvent(t, events, EventSuccess)
}

func TestOrchestrator_URLUploadFetchProgress(t *testing.T) {
	transport := newScriptedTransport(&imagekit.UploadResponse{FileID: "f1"}, nil)
	var fetchedURL string
	fetch := func(_ context.Context, rawURL string) (imagekit.UploadFile, error) {
		fetchedURL = rawURL
		return imagekit.UploadFile{Name: "remote.mp4", ContentType: "video/mp4", Data: []byte("x")}, nil
	}
	orch, events, unsub := newTestOrchestrator(t, transport, &fakeCleanup{}, fetch)
	defer unsub()

	require.True(t, orch.Stage(StagedUpload{Kind: KindURL, URL: "https://example.com/remote.mp4"}))
	require.NoError(t, orch.Commit(context.Background(), Settings{}))

	descriptor := waitEvent(t, events, EventURL)
	require.Equal(t, "https://example.com/remote.mp4", descriptor.URL)

	// Remote fetch completion is reported as 25 percent.
	progress := waitEvent(t, events, EventProgress)
	require.Equal(t, 25, progress.Percent)
	require.Equal(t, "https://example.com/remote.mp4", fetchedURL)

	close(transport.release)
	waitEvent(t, events, EventSuccess)
}

func TestOrchestrator_ResetFromTerminalState(t *testing.T) {
	transport := newScriptedTransport(nil, imagekit.NewUploadError(500, "boom"))
	orch, events, unsub := newTestOrchestrator(t, transport, &fakeCleanup{}, nil)
	defer unsub()

	require.True(t, orch.Stage(stagedFile("a.mp4")))
	require.NoError(t, orch.Commit(context.Background(), Settings{}))
	close(transport.release)
	waitEvent(t, events, EventError)

	// Terminal state blocks staging until reset.
	require.False(t, orch.Stage(stagedFile("b.mp4")))
	orch.Reset()
	require.Equal(t, "idle", orch.Status().State)
	require.True(t, orch.Stage(stagedFile("b.mp4")))
}

func TestValidHTTPURL(t *testing.T) {
	require.True(t, validHTTPURL("https://example.com/a.mp4"))
	require.True(t, validHTTPURL("http://example.com/a.mp4"))
	require.False(t, validHTTPURL("ftp://example.com/a.mp4"))
	require.False(t, validHTTPURL("/relative/path.mp4"))
	require.False(t, validHTTPURL("not a url"))
}
