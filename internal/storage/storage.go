package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrTooLarge is returned when a download exceeds the configured size limit.
var ErrTooLarge = errors.New("file exceeds size limit")

const (
	namePrefix = "automark_generated_"
	defaultExt = "jpg"
)

// Storage saves generated images on the local machine.
type Storage interface {
	// StoreFromURL downloads an image and returns the saved path.
	StoreFromURL(ctx context.Context, url string) (string, error)

	// StoreFromBytes saves data with the given extension.
	StoreFromBytes(ctx context.Context, ext string, data []byte) (string, error)

	// Delete removes a previously saved file.
	Delete(ctx context.Context, path string) error
}

// LocalStorage implements Storage on the local filesystem.
type LocalStorage struct {
	dir     string
	maxSize int64
	client  *http.Client
	now     func() time.Time
}

type Option func(*LocalStorage)

func WithHTTPClient(c *http.Client) Option {
	return func(s *LocalStorage) { s.client = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *LocalStorage) { s.now = now }
}

// NewLocalStorage creates dir if needed. maxSize <= 0 disables the limit.
func NewLocalStorage(dir string, maxSize int64, opts ...Option) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve download directory: %w", err)
	}
	s := &LocalStorage{
		dir:     abs,
		maxSize: maxSize,
		client:  http.DefaultClient,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *LocalStorage) Dir() string {
	return s.dir
}

func (s *LocalStorage) StoreFromURL(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if s.maxSize > 0 {
		body = io.LimitReader(resp.Body, s.maxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return s.StoreFromBytes(ctx, ExtFromURL(rawURL), data)
}

func (s *LocalStorage) StoreFromBytes(ctx context.Context, ext string, data []byte) (string, error) {
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	ext = cleanExt(ext)

	f, err := s.create(ext)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		s.Delete(ctx, f.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return f.Name(), nil
}

// create opens a new file named after the current time in milliseconds,
// adding a counter if that name is taken.
func (s *LocalStorage) create(ext string) (*os.File, error) {
	base := fmt.Sprintf("%s%d", namePrefix, s.now().UnixMilli())
	for i := 0; i < 100; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		f, err := os.OpenFile(filepath.Join(s.dir, name+"."+ext), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create file: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to create file: too many downloads named %s", base)
}

func (s *LocalStorage) Delete(ctx context.Context, p string) error {
	abs, err := filepath.Abs(p)
	if err != nil {
		return fmt.Errorf("invalid file path: %w", err)
	}
	if filepath.Dir(abs) != s.dir {
		return fmt.Errorf("invalid file path: must be within download directory")
	}
	return os.Remove(abs)
}

// ExtFromURL returns the file extension of the URL path without the dot,
// or "jpg" when there is none.
func ExtFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultExt
	}
	return cleanExt(path.Ext(u.Path))
}

func cleanExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" || len(ext) > 5 {
		return defaultExt
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return defaultExt
		}
	}
	return ext
}
