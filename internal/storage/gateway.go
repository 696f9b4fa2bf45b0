package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jaevor/go-nanoid"
)

const (
	modelsPrefix = "models"
	// URLPrefix is where stored model files are served from.
	URLPrefix = "/uploads/models/"

	DefaultMaxUploadBytes int64 = 100 << 20
)

var AllowedFormats = []string{"gltf", "glb", "fbx", "obj", "3ds", "dae", "blend"}

var (
	ErrInvalidFormat = errors.New("unsupported file format")
	ErrTooLarge      = errors.New("file exceeds the maximum upload size")
	ErrNotFound      = errors.New("stored file not found")
	ErrInvalidName   = errors.New("invalid stored file name")
	ErrNoFile        = errors.New("no file uploaded")
)

// Backend is where the gateway puts the bytes.
type Backend interface {
	Save(ctx context.Context, name string, data io.Reader, size int64) error
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, name string) error
}

// Upload describes a file the gateway accepted.
type Upload struct {
	Name         string
	URL          string
	OriginalName string
	Size         int64
	Format       string
}

type Gateway struct {
	backend  Backend
	maxBytes int64
	newID    func() string
	now      func() time.Time
}

func NewGateway(backend Backend, maxBytes int64) (*Gateway, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}

	generateID, err := nanoid.Standard(10)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}

	return &Gateway{
		backend:  backend,
		maxBytes: maxBytes,
		newID:    generateID,
		now:      time.Now,
	}, nil
}

func (g *Gateway) MaxBytes() int64 {
	return g.maxBytes
}

// FormatOf returns the lower-cased extension of fileName without the dot.
func FormatOf(fileName string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
}

func IsAllowedFormat(format string) bool {
	return slices.Contains(AllowedFormats, format)
}

// validName accepts a single path element with no separators.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

// NameFromURL returns the stored name behind a public file URL.
func NameFromURL(url string) (string, error) {
	name, ok := strings.CutPrefix(url, URLPrefix)
	if !ok || !validName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, url)
	}
	return name, nil
}

type countingReader struct {
	r        io.Reader
	n        int64
	max      int64
	exceeded bool
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.n > c.max {
		c.exceeded = true
		return n, ErrTooLarge
	}
	return n, err
}

// Accept checks the original name and size, then stores data under a fresh
// unique name. declaredSize may be -1 when unknown.
func (g *Gateway) Accept(ctx context.Context, originalName string, declaredSize int64, data io.Reader) (*Upload, error) {
	if data == nil || originalName == "" {
		return nil, ErrNoFile
	}

	format := FormatOf(originalName)
	if !IsAllowedFormat(format) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, filepath.Ext(originalName))
	}
	if declaredSize > g.maxBytes {
		return nil, ErrTooLarge
	}

	name := fmt.Sprintf("%d-%s.%s", g.now().UnixNano(), g.newID(), format)
	counter := &countingReader{r: data, max: g.maxBytes}

	if err := g.backend.Save(ctx, name, counter, declaredSize); err != nil {
		if counter.exceeded {
			_ = g.backend.Delete(ctx, name)
			return nil, ErrTooLarge
		}
		return nil, fmt.Errorf("save %s: %w", name, err)
	}

	return &Upload{
		Name:         name,
		URL:          URLPrefix + name,
		OriginalName: filepath.Base(originalName),
		Size:         counter.n,
		Format:       format,
	}, nil
}

// Open streams a stored file by its public URL.
func (g *Gateway) Open(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	name, err := NameFromURL(url)
	if err != nil {
		return nil, 0, err
	}
	return g.OpenName(ctx, name)
}

func (g *Gateway) OpenName(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	if !validName(name) {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return g.backend.Open(ctx, name)
}

// Remove deletes a stored file by its public URL. Removing a file that is
// already gone succeeds.
func (g *Gateway) Remove(ctx context.Context, url string) error {
	name, err := NameFromURL(url)
	if err != nil {
		return err
	}
	return g.backend.Delete(ctx, name)
}
