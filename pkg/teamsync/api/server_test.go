package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/teamsync/pkg/teamsync"
	"github.com/tendant/teamsync/pkg/teamsync/metrics"
	memorystorage "github.com/tendant/teamsync/pkg/teamsync/storage/memory"
)

// setupServerTest creates a router backed by an in-memory registry and blob store
func setupServerTest(t *testing.T, opts ...ServerOption) (http.Handler, *teamsync.PositionRegistry) {
	t.Helper()

	registry := teamsync.NewPositionRegistry()
	assets, err := teamsync.NewAssetStore(
		teamsync.WithBlobStore(memorystorage.New()),
		teamsync.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)

	opts = append([]ServerOption{WithRequestLogging(false)}, opts...)
	return NewServer(registry, assets, opts...).Routes(), registry
}

type filePart struct {
	field       string
	filename    string
	contentType string
	body        string
}

func multipartBody(t *testing.T, parts ...filePart) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, p.field, p.filename))
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		pw, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write([]byte(p.body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(router http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestServer_GreetingAndHealth(t *testing.T) {
	router, registry := setupServerTest(t)

	w := do(router, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, greeting, w.Body.String())

	_, err := registry.Upsert(teamsync.PositionInput{
		ClientID:    "c-1",
		DisplayName: "Ada",
		Position:    json.RawMessage(`{"easting":1,"northing":2}`),
		ReportedAt:  "2025-03-27T10:30:00Z",
	})
	require.NoError(t, err)

	w = do(router, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","tracked_clients":1}`, w.Body.String())
}

func TestServer_ReportPosition(t *testing.T) {
	router, _ := setupServerTest(t)

	body := `{"uuid":"u-1","name":"Ada","position":{"easting":674000.0,"northing":6580000.0},"timestamp":"2025-03-27T10:30:00Z"}`
	w := do(router, http.MethodPost, "/position", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","message":"Position updated for u-1"}`, w.Body.String())

	w = do(router, http.MethodGet, "/positions", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"uuid":"u-1","name":"Ada","position":{"easting":674000,"northing":6580000},"timestamp":"2025-03-27T10:30:00Z"}]`, w.Body.String())
}

func TestServer_ReportPosition_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{"invalid json", `{"uuid":`, "Invalid JSON payload"},
		{"empty body", ``, "Invalid JSON payload"},
		{"missing timestamp", `{"uuid":"u","name":"n","position":{"easting":1,"northing":2}}`, "timestamp"},
		{"missing position", `{"uuid":"u","name":"n","timestamp":"t"}`, "position"},
		{"malformed position", `{"uuid":"u","name":"n","position":[1,2],"timestamp":"t"}`, "position"},
		{"non-string uuid", `{"uuid":42,"name":"n","position":{"easting":1,"northing":2},"timestamp":"t"}`, "uuid"},
		{"non-string timestamp", `{"uuid":"u","name":"n","position":{"easting":1,"northing":2},"timestamp":1711535400}`, "timestamp"},
		{"non-numeric easting", `{"uuid":"u","name":"n","position":{"easting":"x","northing":1},"timestamp":"t"}`, "position.easting"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, registry := setupServerTest(t)

			w := do(router, http.MethodPost, "/position", strings.NewReader(tt.body), "application/json")
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, tt.wantError)
			assert.Equal(t, 0, registry.Len())
		})
	}
}

func TestServer_UploadAndDownload(t *testing.T) {
	router, _ := setupServerTest(t)

	body, contentType := multipartBody(t,
		filePart{field: "photo.JPG", filename: "photo.JPG", contentType: "image/jpeg", body: "jpeg-bytes"},
		filePart{field: "survey.json", filename: "blob", contentType: "application/json", body: `{"a":1}`},
	)
	w := do(router, http.MethodPost, "/upload", body, contentType)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	w = do(router, http.MethodGet, "/images", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["photo.JPG"]`, w.Body.String())

	w = do(router, http.MethodGet, "/files", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["survey.json"]`, w.Body.String())

	w = do(router, http.MethodGet, "/images/photo.JPG", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg-bytes", w.Body.String())
	assert.Equal(t, `attachment; filename=photo.JPG`, w.Header().Get("Content-Disposition"))

	w = do(router, http.MethodGet, "/files/survey.json", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"a":1}`, w.Body.String())
}

func TestServer_Upload_FallsBackToFileName(t *testing.T) {
	router, _ := setupServerTest(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; filename="map.png"`)
	h.Set("Content-Type", "image/png")
	pw, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = pw.Write([]byte("png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := do(router, http.MethodPost, "/upload", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodGet, "/images", nil, "")
	assert.JSONEq(t, `["map.png"]`, w.Body.String())
}

func TestServer_Upload_DisallowedStopsBatch(t *testing.T) {
	router, _ := setupServerTest(t)

	body, contentType := multipartBody(t,
		filePart{field: "first.png", filename: "first.png", contentType: "image/png", body: "1"},
		filePart{field: "notes.txt", filename: "notes.txt", contentType: "text/plain", body: "2"},
		filePart{field: "last.png", filename: "last.png", contentType: "image/png", body: "3"},
	)
	w := do(router, http.MethodPost, "/upload", body, contentType)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "filename notes.txt is not allowed", strings.TrimSpace(w.Body.String()))

	w = do(router, http.MethodGet, "/images", nil, "")
	assert.JSONEq(t, `["first.png"]`, w.Body.String())
	w = do(router, http.MethodGet, "/files", nil, "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestServer_Upload_BadRequests(t *testing.T) {
	t.Run("not multipart", func(t *testing.T) {
		router, _ := setupServerTest(t)
		w := do(router, http.MethodPost, "/upload", strings.NewReader("{}"), "application/json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("traversal name", func(t *testing.T) {
		router, _ := setupServerTest(t)
		body, contentType := multipartBody(t,
			filePart{field: "../escape.png", filename: "escape.png", contentType: "image/png", body: "x"},
		)
		w := do(router, http.MethodPost, "/upload", body, contentType)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = do(router, http.MethodGet, "/images", nil, "")
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("body too large", func(t *testing.T) {
		router, _ := setupServerTest(t, WithMaxUploadBytes(512))
		body, contentType := multipartBody(t,
			filePart{field: "big.png", filename: "big.png", contentType: "image/png", body: strings.Repeat("x", 8<<10)},
		)
		w := do(router, http.MethodPost, "/upload", body, contentType)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

		w = do(router, http.MethodGet, "/images", nil, "")
		assert.JSONEq(t, `[]`, w.Body.String())
	})
}

func TestServer_Upload_TruncatedBody(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	router, _ := setupServerTest(t, WithMetrics(m))

	body, contentType := multipartBody(t,
		filePart{field: "cut.png", filename: "cut.png", contentType: "image/png", body: strings.Repeat("p", 256)},
	)
	truncated := body.Bytes()[:body.Len()-60]

	w := do(router, http.MethodPost, "/upload", bytes.NewReader(truncated), contentType)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, "/images", nil, "")
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(router, http.MethodGet, "/metrics", nil, "")
	out := w.Body.String()
	assert.Contains(t, out, `teamsync_assets_uploads_rejected_total{reason="bad_request"} 1`)
	assert.NotContains(t, out, `reason="storage_failure"`)
}

func TestServer_ListEmptyAndDownloadMissing(t *testing.T) {
	router, _ := setupServerTest(t)

	for _, path := range []string{"/images", "/files"} {
		w := do(router, http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	}

	w := do(router, http.MethodGet, "/images/missing.png", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, "/files/readme.txt", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_ClearNamespace(t *testing.T) {
	router, _ := setupServerTest(t)

	body, contentType := multipartBody(t,
		filePart{field: "a.png", filename: "a.png", contentType: "image/png", body: "a"},
		filePart{field: "b.jpg", filename: "b.jpg", contentType: "image/jpeg", body: "b"},
		filePart{field: "c.json", filename: "c.json", contentType: "application/json", body: "{}"},
	)
	w := do(router, http.MethodPost, "/upload", body, contentType)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodDelete, "/images", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":2}`, w.Body.String())

	w = do(router, http.MethodGet, "/images", nil, "")
	assert.JSONEq(t, `[]`, w.Body.String())
	w = do(router, http.MethodGet, "/files", nil, "")
	assert.JSONEq(t, `["c.json"]`, w.Body.String())

	w = do(router, http.MethodDelete, "/images", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":0}`, w.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	router, _ := setupServerTest(t, WithMetrics(m))

	body, contentType := multipartBody(t,
		filePart{field: "a.png", filename: "a.png", contentType: "image/png", body: "a"},
	)
	require.Equal(t, http.StatusOK, do(router, http.MethodPost, "/upload", body, contentType).Code)
	do(router, http.MethodPost, "/position", strings.NewReader(`{}`), "application/json")

	w := do(router, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	out := w.Body.String()
	assert.Contains(t, out, `teamsync_assets_stored_total{namespace="image"} 1`)
	assert.Contains(t, out, `teamsync_positions_reports_total{result="rejected"} 1`)
	assert.Contains(t, out, `teamsync_http_requests_total{method="POST",route="/upload",status="200"} 1`)
}
