package api

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/garnizeh/jobmarket/internal/files"
	"github.com/garnizeh/jobmarket/internal/marketplace"
	"github.com/gorilla/mux"
)

type FilesHandler struct {
	store  files.Store
	access *marketplace.FileAccess
}

func NewFilesHandler(store files.Store, access *marketplace.FileAccess) *FilesHandler {
	return &FilesHandler{store: store, access: access}
}

// Serve streams a stored upload to its owner or an admin.
func (h *FilesHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.access.Authorize(r.Context(), auth.FromContext(r.Context()), name); err != nil {
		writeError(w, r, err)
		return
	}

	rc, err := h.store.Open(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logger.Warn("stream upload", slog.String("name", name), slog.Any("err", err))
	}
}
