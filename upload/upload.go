// Package upload stores uploaded image files on disk under per-kind buckets
// and binds them to the web paths persisted in records.
//
// A request first plans every file it received (size and content checks,
// generated names) so that nothing touches the disk until the record built
// from those names has been validated. Written files are later discarded if
// the record cannot be persisted.
package upload

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Bucket is a storage subdirectory for one content kind.
type Bucket string

const (
	BucketSlider Bucket = "slider"
	BucketPress  Bucket = "press"
	BucketPhotos Bucket = "photos"
)

const (
	// DefaultMaxSize is the per-file limit when none is configured.
	DefaultMaxSize int64 = 10 << 20 // 10MB
	// DefaultURLBase is the web prefix uploaded files are served under.
	DefaultURLBase = "/uploads"

	sniffLen = 512
)

var (
	// ErrFileTooLarge is returned for files over the configured size limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrUnsupportedType is returned for files that are not a known image type.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrOutsideRoot is returned by Remove for paths that do not resolve
	// inside the upload directory.
	ErrOutsideRoot = errors.New("path outside upload directory")
)

var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// FileError describes an uploaded file rejected before it was written.
type FileError struct {
	Field    string
	Filename string
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Filename, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Storage writes uploaded files below a root directory.
type Storage struct {
	root    string
	urlBase string
	maxSize int64

	now  func() time.Time
	rand func() int64
}

// Option configures a Storage.
type Option func(*Storage)

// WithMaxSize sets the per-file size limit in bytes.
func WithMaxSize(n int64) Option {
	return func(s *Storage) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithURLBase sets the web prefix stored references start with.
func WithURLBase(base string) Option {
	return func(s *Storage) {
		if base != "" {
			s.urlBase = "/" + strings.Trim(base, "/")
		}
	}
}

// New returns a Storage rooted at dir.
func New(dir string, opts ...Option) *Storage {
	s := &Storage{
		root:    filepath.Clean(dir),
		urlBase: DefaultURLBase,
		maxSize: DefaultMaxSize,
		now:     time.Now,
		rand:    func() int64 { return rand.Int64N(1e9) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the directory files are written under.
func (s *Storage) Root() string { return s.root }

// URLBase returns the web prefix of stored references.
func (s *Storage) URLBase() string { return s.urlBase }

// MaxSize returns the per-file size limit in bytes.
func (s *Storage) MaxSize() int64 { return s.maxSize }

// File is an upload with its generated name, pending or written.
type File struct {
	Field   string
	Name    string
	Path    string
	WebPath string
	Type    string

	header  *multipart.FileHeader
	dir     string
	written bool
}

// Plan checks an uploaded file and assigns it a unique name in bucket.
// Nothing is written to disk.
func (s *Storage) Plan(bucket Bucket, field string, fh *multipart.FileHeader) (*File, error) {
	if fh.Size > s.maxSize {
		return nil, &FileError{Field: field, Filename: fh.Filename, Err: ErrFileTooLarge}
	}
	ctype, err := sniff(fh)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	defExt, ok := imageTypes[ctype]
	if !ok {
		return nil, &FileError{Field: field, Filename: fh.Filename, Err: ErrUnsupportedType}
	}
	ext := cleanExt(fh.Filename)
	if !imageExts[ext] {
		ext = defExt
	}
	name := fmt.Sprintf("%s-%d-%d%s", cleanField(field), s.now().UnixMilli(), s.rand(), ext)
	dir := filepath.Join(s.root, string(bucket))
	return &File{
		Field:   field,
		Name:    name,
		Path:    filepath.Join(dir, name),
		WebPath: path.Join(s.urlBase, string(bucket), name),
		Type:    ctype,
		header:  fh,
		dir:     dir,
	}, nil
}

// PlanAll plans every file in order, stopping at the first rejection.
func (s *Storage) PlanAll(bucket Bucket, field string, fhs []*multipart.FileHeader) ([]*File, error) {
	files := make([]*File, 0, len(fhs))
	for _, fh := range fhs {
		f, err := s.Plan(bucket, field, fh)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// Write copies planned files to disk. On failure, files already written by
// this call are removed again.
func (s *Storage) Write(files ...*File) error {
	var done []*File
	for _, f := range files {
		if f == nil || f.written {
			continue
		}
		if err := os.MkdirAll(f.dir, 0o755); err != nil {
			s.Discard(done...)
			return fmt.Errorf("create upload dir: %w", err)
		}
		if err := writeFile(f); err != nil {
			s.Discard(done...)
			return fmt.Errorf("write upload %s: %w", f.Name, err)
		}
		f.written = true
		done = append(done, f)
	}
	return nil
}

// Discard removes written files. Errors are ignored.
func (s *Storage) Discard(files ...*File) {
	for _, f := range files {
		if f == nil || !f.written {
			continue
		}
		_ = os.Remove(f.Path)
		f.written = false
	}
}

// Remove deletes the file a stored web path refers to.
func (s *Storage) Remove(webPath string) error {
	p, err := s.resolve(webPath)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

// resolve maps a web path below the URL base to a file below the root.
func (s *Storage) resolve(webPath string) (string, error) {
	prefix := s.urlBase + "/"
	if !strings.HasPrefix(webPath, prefix) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, webPath)
	}
	rel := path.Clean(strings.TrimPrefix(webPath, prefix))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, webPath)
	}
	p := filepath.Join(s.root, filepath.FromSlash(rel))
	if r, err := filepath.Rel(s.root, p); err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, webPath)
	}
	return p, nil
}

func writeFile(f *File) error {
	src, err := f.header.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(f.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(f.Path)
		return err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(f.Path)
		return err
	}
	return nil
}

func sniff(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(src, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	ctype := http.DetectContentType(buf[:n])
	if i := strings.IndexByte(ctype, ';'); i >= 0 {
		ctype = ctype[:i]
	}
	return ctype, nil
}

// cleanExt returns the lowercased extension of name if it is short and
// purely alphanumeric.
func cleanExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}

func cleanField(field string) string {
	var b strings.Builder
	for _, r := range field {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
