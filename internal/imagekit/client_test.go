package imagekit

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studiokit/imagekit-backend/internal/models"
)

var testSecrets = models.Secrets{
	PublicKey:   "public_test",
	PrivateKey:  "private_test",
	URLEndpoint: "https://ik.imagekit.io/demo",
}

func testAuth(t *testing.T) AuthParams {
	t.Helper()
	params, err := GenerateAuthParams(testSecrets, time.Minute)
	require.NoError(t, err)
	return params
}

func TestUploadSigned(t *testing.T) {
	var gotAuth AuthParams
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/files/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		gotAuth = AuthParams{
			Token:     r.FormValue("token"),
			Signature: r.FormValue("signature"),
			PublicKey: r.FormValue("publicKey"),
		}
		require.Equal(t, "clip.mp4", r.FormValue("fileName"))
		require.Equal(t, "/videos", r.FormValue("folder"))
		require.Equal(t, "false", r.FormValue("isPrivateFile"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "clip.mp4", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"fileId":"f1","name":"clip.mp4","url":"https://ik.imagekit.io/demo/clip.mp4?updatedAt=9","fileType":"non-image","mime":"video/mp4"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, nil)
	auth := testAuth(t)

	var lastPercent int
	result, err := client.UploadSigned(context.Background(),
		UploadFile{Name: "clip.mp4", ContentType: "video/mp4", Data: []byte("fake-video-bytes")},
		testSecrets.PublicKey, auth,
		UploadParams{FileName: "clip.mp4", Folder: "/videos"},
		func(p int) { lastPercent = p },
	)
	require.NoError(t, err)
	require.Equal(t, "f1", result.FileID)
	require.Equal(t, "https://ik.imagekit.io/demo/clip.mp4", result.URL)
	require.Equal(t, "https://ik.imagekit.io/demo/clip.mp4", result.Raw["url"])
	require.Equal(t, auth.Token, gotAuth.Token)
	require.Equal(t, auth.Signature, gotAuth.Signature)
	require.Equal(t, 100, lastPercent)
}

func TestUploadPrivate_Base64AndBasicAuth(t *testing.T) {
	payload := []byte("fallback-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte(testSecrets.PrivateKey+":"))
		require.Equal(t, wantAuth, r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		decoded, err := base64.StdEncoding.DecodeString(r.FormValue("file"))
		require.NoError(t, err)
		require.Equal(t, payload, decoded)

		w.Write([]byte(`{"fileId":"f2","url":"https://ik.imagekit.io/demo/b.mp4"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, nil)
	result, err := client.UploadPrivate(context.Background(),
		UploadFile{Name: "b.mp4", Data: payload}, testSecrets,
		UploadParams{FileName: "b.mp4"}, nil)
	require.NoError(t, err)
	require.Equal(t, "f2", result.FileID)
}

func TestUpload_StatusErrorMapping(t *testing.T) {
	for _, status := range []int{401, 402, 413, 415, 500} {
		status := status
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte(`{"message":"vendor detail"}`))
		}))

		client := NewClient(srv.URL, srv.URL, nil)
		_, err := client.UploadPrivate(context.Background(),
			UploadFile{Name: "x.mp4", Data: []byte("x")}, testSecrets, UploadParams{}, nil)
		srv.Close()

		require.Error(t, err)
		var ue *UploadError
		require.ErrorAs(t, err, &ue)
		require.Equal(t, status, ue.StatusCode)
		require.Equal(t, NewUploadError(status, "vendor detail").Message, ue.Message)
	}
}

func TestDeleteFile_NotFoundIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, nil)
	require.NoError(t, client.DeleteFile(context.Background(), testSecrets, "gone"))
}

func TestDeleteFile_OtherErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, nil)
	require.Error(t, client.DeleteFile(context.Background(), testSecrets, "f1"))
}

func TestListFiles_CleansURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/files", r.URL.Path)
		require.Equal(t, "non-image", r.URL.Query().Get("fileType"))
		w.Write([]byte(`[{"fileId":"a","url":"https://ik.imagekit.io/demo/a.mp4?updatedAt=1","fileType":"non-image","mime":"video/mp4"}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, nil)
	files, err := client.ListFiles(context.Background(), testSecrets, ListOptions{FileType: "non-image"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "https://ik.imagekit.io/demo/a.mp4", files[0].URL)
	require.Equal(t, "https://ik.imagekit.io/demo/a.mp4", files[0].Raw["url"])
}

func TestDoAPI_UnauthorizedMapsToInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, nil)
	_, err := client.ListFiles(context.Background(), testSecrets, ListOptions{})
	require.ErrorIs(t, err, ErrCredentialsInvalid)
}

func TestAPICalls_RequireCredentials(t *testing.T) {
	client := NewClient("https://api.example.invalid", "https://upload.example.invalid", nil)

	_, err := client.ListFiles(context.Background(), models.Secrets{}, ListOptions{})
	require.ErrorIs(t, err, ErrCredentialsMissing)

	err = client.DeleteFile(context.Background(), models.Secrets{}, "f1")
	require.ErrorIs(t, err, ErrCredentialsMissing)
}

func TestListFolders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/folder", r.URL.Path)
		w.Write([]byte(`[{"folderPath":"/videos"},{"folderPath":"/archive"},{"folderPath":""}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, nil)
	folders, err := client.ListFolders(context.Background(), testSecrets)
	require.NoError(t, err)
	require.Equal(t, []string{"/videos", "/archive"}, folders)
}
