package files_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/garnizeh/jobmarket/internal/files"
)

func newStore(t *testing.T) (*files.LocalStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := files.NewLocalStore(dir, "/v1/files/")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return s, dir
}

func TestPolicy_Check(t *testing.T) {
	doc := files.DocumentPolicy(10)
	tests := []struct {
		name     string
		filename string
		size     int64
		want     error
	}{
		{"pdf ok", "reg.pdf", 5, nil},
		{"upper-case extension", "ID.JPG", 5, nil},
		{"unsupported", "script.exe", 5, files.ErrUnsupportedType},
		{"no extension", "README", 5, files.ErrUnsupportedType},
		{"empty", "reg.pdf", 0, files.ErrEmpty},
		{"too large", "reg.pdf", 11, files.ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := doc.Check(tt.filename, tt.size); !errors.Is(err, tt.want) {
				t.Fatalf("got %v want %v", err, tt.want)
			}
		})
	}

	if err := files.ResumePolicy(0).Check("cv.docx", files.DefaultMaxBytes); err != nil {
		t.Fatalf("resume at the default limit must pass: %v", err)
	}
	if err := files.ResumePolicy(0).Check("cv.png", 1); !errors.Is(err, files.ErrUnsupportedType) {
		t.Fatalf("images are not resumes: %v", err)
	}
}

func TestLocalStore_SaveOpenRemove(t *testing.T) {
	ctx := context.Background()
	s, dir := newStore(t)

	ref, err := s.Save(ctx, files.ResumePolicy(1024), files.Upload{Filename: "cv.PDF", Size: 5, Content: strings.NewReader("hello")})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(ref, "/v1/files/") || !strings.HasSuffix(ref, ".pdf") {
		t.Fatalf("unexpected ref %q", ref)
	}

	name := path.Base(ref)
	rc, err := s.Open(ctx, name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	b, _ := io.ReadAll(rc)
	rc.Close()
	if string(b) != "hello" {
		t.Fatalf("unexpected content %q", b)
	}

	if err := s.Remove(ctx, ref); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Open(ctx, name); !errors.Is(err, files.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	if err := s.Remove(ctx, ref); err != nil {
		t.Fatalf("removing twice must be a no-op: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no leftover files, got %d", len(entries))
	}
}

func TestLocalStore_ContentLargerThanDeclared(t *testing.T) {
	ctx := context.Background()
	s, dir := newStore(t)

	_, err := s.Save(ctx, files.DocumentPolicy(4), files.Upload{Filename: "a.png", Size: 1, Content: strings.NewReader("too many bytes")})
	if !errors.Is(err, files.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	_, err = s.Save(ctx, files.DocumentPolicy(4), files.Upload{Filename: "a.png", Size: -1, Content: strings.NewReader("")})
	if !errors.Is(err, files.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("rejected uploads must not leave files behind, got %d", len(entries))
	}
}

func TestLocalStore_OpenRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	for _, name := range []string{"", "../secret.pdf", "a/b.pdf", ".hidden", ".."} {
		if _, err := s.Open(ctx, name); !errors.Is(err, files.ErrNotFound) {
			t.Fatalf("Open(%q): expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestLocalStore_CanceledContext(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Save(ctx, files.ResumePolicy(0), files.Upload{Filename: "cv.pdf", Size: 1, Content: strings.NewReader("x")}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
