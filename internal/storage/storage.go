package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DefaultMaxUploadSize applies when the configuration leaves the limit unset (5 MiB).
const DefaultMaxUploadSize int64 = 5 << 20

// DefaultAllowedExtensions lists the document and image formats accepted for uploads.
var DefaultAllowedExtensions = []string{"pdf", "jpg", "jpeg", "png"}

var (
	// ErrFileRequired is returned when no file content was supplied.
	ErrFileRequired = errors.New("storage: file is required")
	// ErrFileTooLarge is returned when the upload exceeds the configured size.
	ErrFileTooLarge = errors.New("storage: file exceeds the maximum upload size")
	// ErrUnsupportedType is returned when the extension or sniffed content is not allowed.
	ErrUnsupportedType = errors.New("storage: unsupported file type")
)

// extension -> accepted sniffed MIME types
var contentTypes = map[string][]string{
	"pdf":  {"application/pdf"},
	"jpg":  {"image/jpeg"},
	"jpeg": {"image/jpeg"},
	"png":  {"image/png"},
}

const sniffLen = 3072

// Backend persists opaque objects under a key.
type Backend interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Config controls upload validation and the backing store.
type Config struct {
	Backend           string // local or s3
	Root              string
	PublicBaseURL     string
	MaxUploadSize     int64
	AllowedExtensions []string
	S3                S3Config
}

// Store validates uploads and hands them to a Backend. The returned path is
// the only reference callers keep.
type Store struct {
	backend Backend
	baseURL string
	maxSize int64
	allowed map[string]struct{}
}

// New builds a Store from configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "local":
		backend, err = NewLocalBackend(cfg.Root)
	case "s3":
		backend, err = NewS3Backend(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewWithBackend(backend, cfg)
}

// NewWithBackend builds a Store over an existing backend.
func NewWithBackend(backend Backend, cfg Config) (*Store, error) {
	if backend == nil {
		return nil, errors.New("storage: backend is required")
	}

	maxSize := cfg.MaxUploadSize
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}

	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = DefaultAllowedExtensions
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = normalizeExt(ext)
		if _, known := contentTypes[ext]; !known {
			return nil, fmt.Errorf("storage: extension %q has no known content type", ext)
		}
		allowed[ext] = struct{}{}
	}

	return &Store{
		backend: backend,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		maxSize: maxSize,
		allowed: allowed,
	}, nil
}

// MaxUploadSize reports the enforced size limit in bytes.
func (s *Store) MaxUploadSize() int64 {
	return s.maxSize
}

// Put validates and stores content under dir with a generated name, returning its path.
// size may be -1 when unknown; the limit is then enforced while streaming.
func (s *Store) Put(ctx context.Context, dir, filename string, size int64, r io.Reader) (string, error) {
	if r == nil || size == 0 {
		return "", ErrFileRequired
	}
	if size > s.maxSize {
		return "", ErrFileTooLarge
	}

	ext := normalizeExt(path.Ext(filename))
	if _, ok := s.allowed[ext]; !ok {
		return "", fmt.Errorf("%w: .%s", ErrUnsupportedType, ext)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("storage: read upload: %w", err)
	}
	if n == 0 {
		return "", ErrFileRequired
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	if !matchesExtension(detected, ext) {
		return "", fmt.Errorf("%w: content is %s", ErrUnsupportedType, detected.String())
	}

	key := path.Join(sanitizeDir(dir), uuid.NewString()+"."+ext)
	body := &limitedReader{r: io.MultiReader(bytes.NewReader(head), r), remaining: s.maxSize}
	if err := s.backend.Save(ctx, key, body, contentTypes[ext][0]); err != nil {
		if body.exceeded {
			_ = s.backend.Delete(ctx, key)
			return "", ErrFileTooLarge
		}
		return "", fmt.Errorf("storage: save %s: %w", key, err)
	}
	if body.exceeded {
		_ = s.backend.Delete(ctx, key)
		return "", ErrFileTooLarge
	}

	return key, nil
}

// PutMultipart stores an uploaded form file.
func (s *Store) PutMultipart(ctx context.Context, dir string, fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", ErrFileRequired
	}
	if fh.Size > s.maxSize {
		return "", ErrFileTooLarge
	}

	file, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("storage: open upload: %w", err)
	}
	defer file.Close()

	return s.Put(ctx, dir, fh.Filename, fh.Size, file)
}

// Delete removes a stored object; missing objects are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	return s.backend.Delete(ctx, key)
}

// URL renders a public link for a stored path, or the bare path when no base URL is configured.
func (s *Store) URL(key string) string {
	if key == "" {
		return ""
	}
	if s.baseURL == "" {
		return key
	}
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}

func matchesExtension(detected *mimetype.MIME, ext string) bool {
	for _, want := range contentTypes[ext] {
		for m := detected; m != nil; m = m.Parent() {
			if m.Is(want) {
				return true
			}
		}
	}
	return false
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func sanitizeDir(dir string) string {
	cleaned := path.Clean("/" + strings.TrimSpace(dir))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "uploads"
	}
	return cleaned
}

// limitedReader stops with an error once more than remaining bytes were read.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		l.exceeded = true
		return 0, ErrFileTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		l.exceeded = true
		return n, ErrFileTooLarge
	}
	return n, err
}
