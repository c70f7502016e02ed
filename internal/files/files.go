// Package files stores uploaded documents and hands back opaque references.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmpty           = errors.New("file is empty")
	ErrNotFound        = errors.New("file not found")
)

// DefaultMaxBytes is the per-file upload limit.
const DefaultMaxBytes = 5 << 20

// Policy constrains what an upload slot accepts.
type Policy struct {
	MaxBytes   int64
	Extensions []string
}

// DocumentPolicy applies to provider verification documents.
func DocumentPolicy(maxBytes int64) Policy {
	return Policy{MaxBytes: orDefault(maxBytes), Extensions: []string{".pdf", ".png", ".jpg", ".jpeg"}}
}

// ResumePolicy applies to application resumes.
func ResumePolicy(maxBytes int64) Policy {
	return Policy{MaxBytes: orDefault(maxBytes), Extensions: []string{".pdf", ".doc", ".docx"}}
}

func orDefault(n int64) int64 {
	if n <= 0 {
		return DefaultMaxBytes
	}
	return n
}

// Check validates the declared name and size of an upload.
func (p Policy) Check(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(p.Extensions, ext) {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	if size == 0 {
		return ErrEmpty
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	return nil
}

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// Store persists uploads and resolves their references.
type Store interface {
	Save(ctx context.Context, p Policy, u Upload) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Remove(ctx context.Context, ref string) error
}

// LocalStore keeps files in a directory on disk. References are
// baseURL + "/" + generated name.
type LocalStore struct {
	dir     string
	baseURL string
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save checks the upload against p and writes it under a generated name.
// The declared size is not trusted: copying stops at p.MaxBytes.
func (s *LocalStore) Save(ctx context.Context, p Policy, u Upload) (string, error) {
	if err := p.Check(u.Filename, u.Size); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(u.Filename))
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(u.Content, p.MaxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if n > p.MaxBytes {
		return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, p.MaxBytes)
	}
	if n == 0 {
		return "", ErrEmpty
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}

	return s.baseURL + "/" + name, nil
}

func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	clean, ok := cleanName(name)
	if !ok {
		return nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, clean))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open upload: %w", err)
	}
	return f, nil
}

// Remove deletes the file behind ref. Unknown references are ignored.
func (s *LocalStore) Remove(_ context.Context, ref string) error {
	clean, ok := cleanName(path.Base(ref))
	if !ok {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, clean))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// cleanName rejects anything that is not a bare generated file name.
func cleanName(name string) (string, bool) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", false
	}
	return name, true
}
