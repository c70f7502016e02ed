package api

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/garnizeh/jobmarket/internal/files"
)

// maxMultipartMemory is kept in memory while parsing; the rest spills to disk.
const maxMultipartMemory = 8 << 20

// parseMultipart bounds the whole request to limit bytes and parses it.
func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return badRequest("body", "request is too large")
		}
		return badRequest("body", "expected multipart form data")
	}
	return nil
}

// saveUpload stores one multipart file under policy p.
func saveUpload(ctx context.Context, store files.Store, p files.Policy, field string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", badRequest(field, "file could not be read")
	}
	defer f.Close()

	ref, err := store.Save(ctx, p, files.Upload{Filename: fh.Filename, Size: fh.Size, Content: f})
	if err != nil {
		return "", fileError(field, err)
	}
	return ref, nil
}

// discard removes stored files after the request that produced them failed.
func discard(ctx context.Context, store files.Store, refs ...string) {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := store.Remove(ctx, ref); err != nil {
			logger.Warn("remove orphaned upload", slog.String("ref", ref), slog.Any("err", err))
		}
	}
}

func firstFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	if fhs := r.MultipartForm.File[field]; len(fhs) > 0 {
		return fhs[0]
	}
	return nil
}
