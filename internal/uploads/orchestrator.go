package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studiokit/imagekit-backend/internal/imagekit"
	"github.com/studiokit/imagekit-backend/internal/models"
)

// State is the orchestrator's finite-state-machine state.
type State int

const (
	StateIdle State = iota
	StateStaged
	StateUploading
	StateSuccess
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStaged:
		return "staged"
	case StateUploading:
		return "uploading"
	case StateSuccess:
		return "success"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// StagedKind discriminates the staged upload union.
type StagedKind string

const (
	KindFile StagedKind = "file"
	KindURL  StagedKind = "url"
)

// StagedUpload is a transient user-selected input awaiting configuration.
// Consumed exactly once by commit; discarded on reset, completion or error.
type StagedUpload struct {
	Kind StagedKind
	File *imagekit.UploadFile
	URL  string
}

// Settings are the user-adjustable upload configuration, immutable once
// submitted to the orchestrator.
type Settings struct {
	Folder            string         `json:"folder"`
	IsPrivate         bool           `json:"isPrivate"`
	Tags              []string       `json:"tags"`
	UseUniqueFileName bool           `json:"useUniqueFileName"`
	CustomMetadata    map[string]any `json:"customMetadata"`
}

// ErrNoStagedUpload is returned by commit when nothing is staged.
var ErrNoStagedUpload = errors.New("no staged upload to commit")

// SecretsSource resolves credentials at orchestration start.
type SecretsSource interface {
	Resolve(ctx context.Context) models.Secrets
}

// Materializer persists an asset document from a vendor upload result.
type Materializer interface {
	Materialize(ctx context.Context, sessionID uuid.UUID, result *imagekit.UploadResponse) (*models.VideoAsset, error)
}

// Cleanup deletes a vendor file, used for best-effort cancellation cleanup.
type Cleanup interface {
	DeleteFile(ctx context.Context, secrets models.Secrets, fileID string) error
}

// URLFetcher stages a remote URL as an in-memory file payload.
type URLFetcher func(ctx context.Context, rawURL string) (imagekit.UploadFile, error)

// session is the runtime state of one in-flight upload. At most one exists
// per orchestrator.
type session struct {
	id        uuid.UUID
	kind      StagedKind
	filename  string
	sourceURL string
	progress  int
	canceled  bool
	cancel    context.CancelFunc
}

// Orchestrator drives a single upload through staging, configuration,
// transport and completion, emitting discrete events along the way.
type Orchestrator struct {
	mu      sync.Mutex
	state   State
	staged  *StagedUpload
	current *session

	transport Transport
	secrets   SecretsSource
	writer    Materializer
	cleanup   Cleanup
	fetch     URLFetcher
	events    *Broadcaster
	logger    *zap.Logger
}

// NewOrchestrator creates an upload orchestrator. All collaborators are
// explicit so the state machine is drivable with fakes.
func NewOrchestrator(transport Transport, secrets SecretsSource, writer Materializer, cleanup Cleanup, fetch URLFetcher, events *Broadcaster, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = NewBroadcaster()
	}
	return &Orchestrator{
		state:     StateIdle,
		transport: transport,
		secrets:   secrets,
		writer:    writer,
		cleanup:   cleanup,
		fetch:     fetch,
		events:    events,
		logger:    logger,
	}
}

// Events exposes the broadcaster for subscribers.
func (o *Orchestrator) Events() *Broadcaster { return o.events }

// Stage records a selected file or url. Returns false when the input is
// rejected: an upload is in flight (at most one session; the request is
// ignored, not queued) or a terminal state awaits reset.
func (o *Orchestrator) Stage(input StagedUpload) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateUploading || o.state == StateSuccess || o.state == StateErrored {
		return false
	}
	switch input.Kind {
	case KindFile:
		if input.File == nil || len(input.File.Data) == 0 {
			return false
		}
	case KindURL:
		if input.URL == "" {
			return false
		}
	default:
		return false
	}
	o.staged = &input
	o.state = StateStaged
	return true
}

// Commit validates the staged input, emits the descriptor event and starts
// the transport. Committing while an upload is in flight is a no-op that
// preserves the session and its progress.
func (o *Orchestrator) Commit(ctx context.Context, cfg Settings) error {
	o.mu.Lock()

	if o.state == StateUploading {
		o.mu.Unlock()
		return nil
	}
	if o.state != StateStaged || o.staged == nil {
		o.mu.Unlock()
		return ErrNoStagedUpload
	}
	staged := o.staged

	// Validation happens before any network activity.
	if staged.Kind == KindURL && !validHTTPURL(staged.URL) {
		o.mu.Unlock()
		return imagekit.ErrInvalidURL
	}

	creds := o.secrets.Resolve(ctx)
	if !creds.Valid() {
		o.mu.Unlock()
		return imagekit.ErrCredentialsMissing
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:     uuid.New(),
		kind:   staged.Kind,
		cancel: cancel,
	}
	var descriptor Event
	if staged.Kind == KindFile {
		sess.filename = staged.File.Name
		descriptor = Event{Type: EventFile, SessionID: sess.id, Filename: sess.filename}
	} else {
		sess.sourceURL = staged.URL
		descriptor = Event{Type: EventURL, SessionID: sess.id, URL: sess.sourceURL}
	}
	o.current = sess
	o.staged = nil
	o.state = StateUploading
	o.mu.Unlock()

	o.events.Publish(descriptor)
	o.logger.Info("upload committed",
		zap.String("session_id", sess.id.String()),
		zap.String("kind", string(sess.kind)),
	)

	go o.run(runCtx, sess, staged, cfg, creds)
	return nil
}

func (o *Orchestrator) run(ctx context.Context, sess *session, staged *StagedUpload, cfg Settings, creds models.Secrets) {
	file := staged.File
	if staged.Kind == KindURL {
		fetched, err := o.fetch(ctx, staged.URL)
		if err != nil {
			if o.abandoned(sess) {
				return
			}
			o.fail(sess, imagekit.WrapUploadError(fmt.Errorf("URL upload failed: %s", err.Error())))
			return
		}
		file = &fetched
		o.setFilename(sess, fetched.Name)
		// The remote fetch is roughly the first quarter of the work.
		o.emitProgress(sess, 25)
	}

	params := imagekit.UploadParams{
		FileName:          file.Name,
		Folder:            cfg.Folder,
		IsPrivate:         cfg.IsPrivate,
		Tags:              cfg.Tags,
		UseUniqueFileName: cfg.UseUniqueFileName,
		CustomMetadata:    cfg.CustomMetadata,
	}

	result, err := o.transport.Upload(ctx, *file, creds, params, func(percent int) {
		o.emitProgress(sess, percent)
	})

	if o.abandoned(sess) {
		// Cancellation acknowledged: no further events for this session.
		// Best-effort cleanup of a vendor file assigned before the abort.
		if result != nil && result.FileID != "" && o.cleanup != nil {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := o.cleanup.DeleteFile(cleanupCtx, creds, result.FileID); err != nil {
				o.logger.Warn("cancel cleanup failed", zap.Error(err), zap.String("file_id", result.FileID))
			}
		}
		return
	}
	if err != nil {
		o.fail(sess, imagekit.WrapUploadError(err))
		return
	}

	asset, err := o.writer.Materialize(ctx, sess.id, result)
	if err != nil {
		o.fail(sess, imagekit.WrapUploadError(err))
		return
	}
	o.succeed(sess, asset.ID)
}

// Cancel aborts the in-flight file upload and returns the machine to idle.
// URL uploads are not cancellable. Returns false when nothing was cancelled.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateUploading || o.current == nil || o.current.kind != KindFile {
		return false
	}
	o.current.canceled = true
	o.current.cancel()
	o.logger.Info("upload cancelled", zap.String("session_id", o.current.id.String()))
	o.current = nil
	o.state = StateIdle
	return true
}

// CancelSession cancels only when id names the active session (legacy
// session-scoped cancel endpoint).
func (o *Orchestrator) CancelSession(id uuid.UUID) bool {
	o.mu.Lock()
	match := o.current != nil && o.current.id == id
	o.mu.Unlock()
	if !match {
		return false
	}
	return o.Cancel()
}

// Reset discards all session state from any state, aborting an in-flight
// upload if there is one.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil && o.current.cancel != nil {
		o.current.canceled = true
		o.current.cancel()
	}
	o.current = nil
	o.staged = nil
	o.state = StateIdle
}

// SessionInfo is a point-in-time view of the active or last session.
type SessionInfo struct {
	ID        uuid.UUID  `json:"id"`
	Kind      StagedKind `json:"kind"`
	Filename  string     `json:"filename,omitempty"`
	SourceURL string     `json:"sourceUrl,omitempty"`
	Progress  int        `json:"progress"`
}

// StatusInfo is the orchestrator snapshot returned by the status endpoint.
type StatusInfo struct {
	State   string       `json:"state"`
	Staged  *SessionInfo `json:"staged,omitempty"`
	Session *SessionInfo `json:"session,omitempty"`
}

// Status returns a snapshot of the machine.
func (o *Orchestrator) Status() StatusInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	info := StatusInfo{State: o.state.String()}
	if o.staged != nil {
		staged := &SessionInfo{Kind: o.staged.Kind, SourceURL: o.staged.URL}
		if o.staged.File != nil {
			staged.Filename = o.staged.File.Name
		}
		info.Staged = staged
	}
	if o.current != nil {
		info.Session = &SessionInfo{
			ID:        o.current.id,
			Kind:      o.current.kind,
			Filename:  o.current.filename,
			SourceURL: o.current.sourceURL,
			Progress:  o.current.progress,
		}
	}
	return info
}

// abandoned reports whether sess was cancelled or superseded; abandoned
// sessions must not emit any further events.
func (o *Orchestrator) abandoned(sess *session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return sess.canceled || o.current != sess
}

func (o *Orchestrator) setFilename(sess *session, name string) {
	o.mu.Lock()
	if o.current == sess {
		sess.filename = name
	}
	o.mu.Unlock()
}

// emitProgress publishes a progress event, enforcing monotonicity and
// dropping events for abandoned sessions.
func (o *Orchestrator) emitProgress(sess *session, percent int) {
	o.mu.Lock()
	if sess.canceled || o.current != sess || percent <= sess.progress {
		o.mu.Unlock()
		return
	}
	if percent > 100 {
		percent = 100
	}
	sess.progress = percent
	o.mu.Unlock()
	o.events.Publish(Event{Type: EventProgress, SessionID: sess.id, Percent: percent})
}

func (o *Orchestrator) fail(sess *session, uploadErr *imagekit.UploadError) {
	o.mu.Lock()
	if sess.canceled || o.current != sess {
		o.mu.Unlock()
		return
	}
	o.state = StateErrored
	o.mu.Unlock()

	o.logger.Warn("upload failed",
		zap.String("session_id", sess.id.String()),
		zap.Int("vendor_status", uploadErr.StatusCode),
		zap.String("message", uploadErr.Message),
	)
	o.events.Publish(Event{Type: EventError, SessionID: sess.id, Message: uploadErr.Message})
}

func (o *Orchestrator) succeed(sess *session, assetID uuid.UUID) {
	o.mu.Lock()
	if sess.canceled || o.current != sess {
		o.mu.Unlock()
		return
	}
	sess.progress = 100
	o.state = StateSuccess
	o.mu.Unlock()

	o.logger.Info("upload succeeded",
		zap.String("session_id", sess.id.String()),
		zap.String("asset_id", assetID.String()),
	)
	o.events.Publish(Event{Type: EventSuccess, SessionID: sess.id, AssetID: assetID.String()})
}

// validHTTPURL reports whether raw parses as an absolute http(s) URL.
func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// NewURLFetcher returns the default remote fetcher used for url uploads.
func NewURLFetcher(timeout time.Duration, maxBytes int64) URLFetcher {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context, rawURL string) (imagekit.UploadFile, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return imagekit.UploadFile{}, fmt.Errorf("create request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return imagekit.UploadFile{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return imagekit.UploadFile{}, fmt.Errorf("failed to fetch URL: %d %s", resp.StatusCode, resp.Status)
		}

		var reader io.Reader = resp.Body
		if maxBytes > 0 {
			reader = io.LimitReader(resp.Body, maxBytes+1)
		}
		data, err := io.ReadAll(reader)
		if err != nil {
			return imagekit.UploadFile{}, fmt.Errorf("read body: %w", err)
		}
		if maxBytes > 0 && int64(len(data)) > maxBytes {
			return imagekit.UploadFile{}, fmt.Errorf("remote file exceeds %d bytes", maxBytes)
		}

		name := "video.mp4"
		if u, err := url.Parse(rawURL); err == nil {
			if segments := strings.Split(strings.Trim(u.Path, "/"), "/"); len(segments) > 0 && segments[len(segments)-1] != "" {
				name = segments[len(segments)-1]
			}
		}
		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "video/mp4"
		}
		return imagekit.UploadFile{Name: name, ContentType: contentType, Data: data}, nil
	}
}
