package imagekit

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studiokit/imagekit-backend/internal/models"
)

const uploadPath = "/api/v1/files/upload"

// Client is a thin wrapper around the ImageKit REST API. Credentials are
// passed per call so the client itself holds no secret state.
type Client struct {
	httpClient *http.Client
	apiBase    string
	uploadBase string
	logger     *zap.Logger
}

// NewClient creates an ImageKit API client.
func NewClient(apiBase, uploadBase string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		uploadBase: strings.TrimSuffix(uploadBase, "/"),
		logger:     logger,
	}
}

// UploadFile is an in-memory file payload staged for upload.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadParams are the user-adjustable settings for one upload.
type UploadParams struct {
	FileName          string
	Folder            string
	IsPrivate         bool
	Tags              []string
	UseUniqueFileName bool
	CustomMetadata    map[string]any
}

// UploadResponse is the normalized vendor upload result. URL fields are
// cleaned of the cache-busting parameter before the response is returned.
type UploadResponse struct {
	FileID        string         `json:"fileId"`
	Name          string         `json:"name"`
	URL           string         `json:"url"`
	ThumbnailURL  string         `json:"thumbnailUrl"`
	FilePath      string         `json:"filePath"`
	Size          int64          `json:"size"`
	Height        int            `json:"height"`
	Width         int            `json:"width"`
	FileType      string         `json:"fileType"`
	Mime          string         `json:"mime"`
	IsPrivateFile bool           `json:"isPrivateFile"`
	Tags          []string       `json:"tags"`
	Raw           map[string]any `json:"-"`
}

// FileDetails describes one remote file from listing or detail calls.
type FileDetails struct {
	FileID        string         `json:"fileId"`
	Name          string         `json:"name"`
	URL           string         `json:"url"`
	ThumbnailURL  string         `json:"thumbnailUrl"`
	FilePath      string         `json:"filePath"`
	Size          int64          `json:"size"`
	Height        int            `json:"height"`
	Width         int            `json:"width"`
	FileType      string         `json:"fileType"`
	Mime          string         `json:"mime"`
	IsPrivateFile bool           `json:"isPrivateFile"`
	Tags          []string       `json:"tags"`
	CreatedAt     string         `json:"createdAt"`
	UpdatedAt     string         `json:"updatedAt"`
	Raw           map[string]any `json:"-"`
}

// UploadSigned performs a direct upload authenticated by short-lived signature
// parameters, the path a browser takes so the private key stays server-side.
func (c *Client) UploadSigned(ctx context.Context, file UploadFile, publicKey string, auth AuthParams, params UploadParams, onProgress func(percent int)) (*UploadResponse, error) {
	if publicKey == "" {
		return nil, ErrCredentialsMissing
	}
	if !auth.Valid() {
		return nil, fmt.Errorf("invalid authentication parameters")
	}

	fields := c.uploadFields(params)
	fields["publicKey"] = publicKey
	fields["token"] = auth.Token
	fields["signature"] = auth.Signature
	fields["expire"] = strconv.FormatInt(auth.Expire, 10)

	return c.doUpload(ctx, file, fields, "", onProgress)
}

// UploadPrivate performs a server-side upload authenticated with the private
// key directly, passing the file payload base64-encoded.
func (c *Client) UploadPrivate(ctx context.Context, file UploadFile, secrets models.Secrets, params UploadParams, onProgress func(percent int)) (*UploadResponse, error) {
	if secrets.PrivateKey == "" {
		return nil, ErrCredentialsMissing
	}

	fields := c.uploadFields(params)
	fields["file"] = base64.StdEncoding.EncodeToString(file.Data)

	return c.doUpload(ctx, UploadFile{Name: file.Name}, fields, basicAuth(secrets.PrivateKey), onProgress)
}

func (c *Client) uploadFields(params UploadParams) map[string]string {
	folder := params.Folder
	if folder == "" {
		folder = "/"
	}
	fields := map[string]string{
		"fileName":          params.FileName,
		"folder":            folder,
		"isPrivateFile":     strconv.FormatBool(params.IsPrivate),
		"useUniqueFileName": strconv.FormatBool(params.UseUniqueFileName),
	}
	if len(params.Tags) > 0 {
		fields["tags"] = strings.Join(params.Tags, ",")
	}
	if meta := EncodeCustomMetadata(params.CustomMetadata); meta != "" {
		fields["customMetadata"] = meta
	}
	return fields
}

// doUpload builds the multipart body and posts it. When file.Data is non-nil
// the payload goes as a binary part; otherwise the caller already placed a
// base64 "file" form field.
func (c *Client) doUpload(ctx context.Context, file UploadFile, fields map[string]string, authorization string, onProgress func(percent int)) (*UploadResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", key, err)
		}
	}
	if file.Data != nil {
		part, err := writer.CreateFormFile("file", file.Name)
		if err != nil {
			return nil, fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, fmt.Errorf("write file part: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	reader := newProgressReader(bytes.NewReader(body.Bytes()), int64(body.Len()), onProgress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadBase+uploadPath, reader)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.ContentLength = int64(body.Len())
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewUploadError(resp.StatusCode, apiMessage(raw))
	}

	var result UploadResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	var rawMap map[string]any
	if err := json.Unmarshal(raw, &rawMap); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	result.Raw = CleanURLsInMap(rawMap)
	result.URL = CleanURL(result.URL)
	result.ThumbnailURL = CleanURL(result.ThumbnailURL)

	if onProgress != nil {
		onProgress(100)
	}
	return &result, nil
}

// ListOptions narrows a remote file listing.
type ListOptions struct {
	FileType string // e.g. "non-image"
	Path     string
	Limit    int
	Skip     int
}

// ListFiles returns remote files from the media library.
func (c *Client) ListFiles(ctx context.Context, secrets models.Secrets, opts ListOptions) ([]FileDetails, error) {
	endpoint := c.apiBase + "/v1/files"
	query := make([]string, 0, 4)
	if opts.FileType != "" {
		query = append(query, "fileType="+opts.FileType)
	}
	if opts.Path != "" {
		query = append(query, "path="+opts.Path)
	}
	if opts.Limit > 0 {
		query = append(query, "limit="+strconv.Itoa(opts.Limit))
	}
	if opts.Skip > 0 {
		query = append(query, "skip="+strconv.Itoa(opts.Skip))
	}
	if len(query) > 0 {
		endpoint += "?" + strings.Join(query, "&")
	}

	raw, err := c.doAPI(ctx, http.MethodGet, endpoint, secrets)
	if err != nil {
		return nil, err
	}

	var files []FileDetails
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, fmt.Errorf("decode file list: %w", err)
	}
	var rawList []map[string]any
	if err := json.Unmarshal(raw, &rawList); err != nil {
		return nil, fmt.Errorf("decode file list: %w", err)
	}
	for i := range files {
		if i < len(rawList) {
			files[i].Raw = CleanURLsInMap(rawList[i])
		}
		files[i].URL = CleanURL(files[i].URL)
		files[i].ThumbnailURL = CleanURL(files[i].ThumbnailURL)
	}
	return files, nil
}

// GetFileDetails returns detail for a single remote file.
func (c *Client) GetFileDetails(ctx context.Context, secrets models.Secrets, fileID string) (*FileDetails, error) {
	raw, err := c.doAPI(ctx, http.MethodGet, c.apiBase+"/v1/files/"+fileID+"/details", secrets)
	if err != nil {
		return nil, err
	}
	var detail FileDetails
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, fmt.Errorf("decode file details: %w", err)
	}
	var rawMap map[string]any
	if err := json.Unmarshal(raw, &rawMap); err != nil {
		return nil, fmt.Errorf("decode file details: %w", err)
	}
	detail.Raw = CleanURLsInMap(rawMap)
	detail.URL = CleanURL(detail.URL)
	detail.ThumbnailURL = CleanURL(detail.ThumbnailURL)
	return &detail, nil
}

// DeleteFile removes a remote file. A vendor not-found is treated as already
// deleted and reported as success.
func (c *Client) DeleteFile(ctx context.Context, secrets models.Secrets, fileID string) error {
	if secrets.PrivateKey == "" {
		return ErrCredentialsMissing
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.apiBase+"/v1/files/"+fileID, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	req.Header.Set("Authorization", basicAuth(secrets.PrivateKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Debug("vendor file already deleted", zap.String("file_id", fileID))
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete file %s: status %d: %s", fileID, resp.StatusCode, apiMessage(raw))
	}
	return nil
}

// ListFolders returns the folder paths of the media library.
func (c *Client) ListFolders(ctx context.Context, secrets models.Secrets) ([]string, error) {
	raw, err := c.doAPI(ctx, http.MethodGet, c.apiBase+"/v1/folder", secrets)
	if err != nil {
		return nil, err
	}
	var folders []struct {
		FolderPath string `json:"folderPath"`
	}
	if err := json.Unmarshal(raw, &folders); err != nil {
		return nil, fmt.Errorf("decode folder list: %w", err)
	}
	paths := make([]string, 0, len(folders))
	for _, f := range folders {
		if f.FolderPath != "" {
			paths = append(paths, f.FolderPath)
		}
	}
	return paths, nil
}

// TestCredentials verifies the secrets against the vendor by listing one file.
func (c *Client) TestCredentials(ctx context.Context, secrets models.Secrets) error {
	if !secrets.Valid() {
		return ErrCredentialsMissing
	}
	_, err := c.ListFiles(ctx, secrets, ListOptions{Limit: 1})
	return err
}

func (c *Client) doAPI(ctx context.Context, method, endpoint string, secrets models.Secrets) ([]byte, error) {
	if secrets.PrivateKey == "" {
		return nil, ErrCredentialsMissing
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", basicAuth(secrets.PrivateKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read api response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status %d", ErrCredentialsInvalid, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("imagekit api: status %d: %s", resp.StatusCode, apiMessage(raw))
	}
	return raw, nil
}

// basicAuth builds the "private key with trailing colon" Basic header ImageKit uses.
func basicAuth(privateKey string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(privateKey+":"))
}

func apiMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(raw))
}

// progressReader reports read progress as a 0..100 percentage.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	callback func(percent int)
}

func newProgressReader(r io.Reader, total int64, callback func(percent int)) io.Reader {
	if callback == nil || total <= 0 {
		return r
	}
	return &progressReader{r: r, total: total, callback: callback}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		percent := int(p.read * 100 / p.total)
		if percent > 100 {
			percent = 100
		}
		p.callback(percent)
	}
	return n, err
}
