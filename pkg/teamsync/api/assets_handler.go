package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/teamsync/pkg/teamsync"
	"github.com/tendant/teamsync/pkg/teamsync/metrics"
)

// ClearResponse reports how many assets a clear removed
type ClearResponse struct {
	Removed int `json:"removed"`
}

// AssetsHandler handles upload, listing, download and clear of shared assets
type AssetsHandler struct {
	store          *teamsync.AssetStore
	metrics        *metrics.Metrics
	maxUploadBytes int64
}

// NewAssetsHandler creates a new assets handler. maxUploadBytes caps one upload request body.
func NewAssetsHandler(store *teamsync.AssetStore, m *metrics.Metrics, maxUploadBytes int64) *AssetsHandler {
	return &AssetsHandler{
		store:          store,
		metrics:        m,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes adds the asset endpoints to r
func (h *AssetsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/upload", h.Upload)

	r.Get("/images", h.List(teamsync.NamespaceImage))
	r.Get("/images/{name}", h.Download(teamsync.NamespaceImage))
	r.Delete("/images", h.Clear(teamsync.NamespaceImage))

	r.Get("/files", h.List(teamsync.NamespaceFile))
	r.Get("/files/{name}", h.Download(teamsync.NamespaceFile))
	r.Delete("/files", h.Clear(teamsync.NamespaceFile))
}

// Upload stores every file part of a multipart request, in order, and stops at the first rejected file
func (h *AssetsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		slog.Warn("Invalid upload request", "error", err)
		h.metrics.RecordUploadRejected("bad_request")
		http.Error(w, "expected a multipart/form-data body", http.StatusBadRequest)
		return
	}

	result, err := h.store.StoreBatch(r.Context(), newMultipartSource(mr))
	for _, ack := range result.Stored {
		h.metrics.RecordAssetStored(string(ack.Namespace))
	}
	if err != nil {
		status := statusFor(err)
		h.metrics.RecordUploadRejected(rejectReason(err))
		slog.Error("Upload failed", "batch_id", result.BatchID, "stored", len(result.Stored), "status", status, "error", err)

		var be *teamsync.BatchError
		switch {
		case errors.Is(err, teamsync.ErrDisallowedExtension) && errors.As(err, &be):
			http.Error(w, fmt.Sprintf("filename %s is not allowed", be.Name), status)
		case status == http.StatusInternalServerError:
			http.Error(w, "failed to store upload", status)
		default:
			http.Error(w, err.Error(), status)
		}
		return
	}

	slog.Info("Upload complete", "batch_id", result.BatchID, "stored", len(result.Stored))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// List returns the names stored in a namespace
func (h *AssetsHandler) List(ns teamsync.Namespace) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := h.store.List(r.Context(), ns)
		if err != nil {
			slog.Error("Failed to list assets", "namespace", ns, "error", err)
			http.Error(w, "failed to list assets", statusFor(err))
			return
		}
		render.JSON(w, r, names)
	}
}

// Download serves one asset as an attachment
func (h *AssetsHandler) Download(ns teamsync.Namespace) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		rc, err := h.store.Retrieve(r.Context(), ns, name)
		if err != nil {
			status := statusFor(err)
			if status == http.StatusNotFound {
				http.Error(w, "Not Found", status)
				return
			}
			slog.Error("Failed to retrieve asset", "namespace", ns, "name", name, "error", err)
			http.Error(w, "failed to retrieve asset", status)
			return
		}
		defer rc.Close()

		contentType := mime.TypeByExtension(filepath.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))

		if _, err := io.Copy(w, rc); err != nil {
			slog.Error("Failed to stream asset", "namespace", ns, "name", name, "error", err)
		}
	}
}

// Clear removes every asset in a namespace
func (h *AssetsHandler) Clear(ns teamsync.Namespace) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := h.store.ClearNamespace(r.Context(), ns)
		if err != nil {
			slog.Error("Failed to clear namespace", "namespace", ns, "error", err)
			writeJSONError(w, r, http.StatusInternalServerError, "failed to clear namespace")
			return
		}
		h.metrics.RecordCleared(string(ns), removed)
		render.JSON(w, r, ClearResponse{Removed: removed})
	}
}
