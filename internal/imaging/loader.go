package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ErrDecode is wrapped by every error returned when bytes cannot be
// interpreted as an image.
var ErrDecode = errors.New("cannot decode image")

// Decode interprets data as a JPEG, PNG, GIF, BMP or WebP image and returns
// it as a RasterImage. SourceSize is set to len(data) and SourceFormat to the
// detected container format.
func Decode(data []byte) (*RasterImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return NewRasterImage(img, int64(len(data)), format), nil
}

// Source is an image read from disk: the decoded pixels plus the file name
// it came from.
type Source struct {
	Path    string
	Image   *RasterImage
	ModTime time.Time
}

// Name returns the base file name of the source.
func (s *Source) Name() string { return filepath.Base(s.Path) }

// MIMEType returns "image/<format>" for the decoded container format.
func (s *Source) MIMEType() string {
	if s.Image.SourceFormat == "" {
		return ""
	}
	return "image/" + s.Image.SourceFormat
}

// ImageCache provides thread-safe caching of decoded source images to avoid
// redundant disk reads.
//
// Cached RasterImages are immutable, so the same entry can be handed to
// concurrent pipeline runs. An entry is reused only while the file's size
// and modification time are unchanged; Evict drops it immediately.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]*Source
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]*Source),
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// The image is cached under the exact path string provided.
func (c *ImageCache) Load(path string) (*Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	c.mu.RLock()
	src, ok := c.images[path]
	c.mu.RUnlock()
	if ok && src.ModTime.Equal(fi.ModTime()) && src.Image.SourceSize == fi.Size() {
		return src, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", filepath.Base(path), err)
	}

	src = &Source{Path: path, Image: img, ModTime: fi.ModTime()}
	c.mu.Lock()
	c.images[path] = src
	c.mu.Unlock()

	return src, nil
}

// Evict removes a specific image from the cache by its path.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// ImageInfo contains metadata about a loaded image.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the detected container format, e.g. "png" or "jpeg".
	Format string `json:"format"`

	// MimeType is "image/<format>".
	MimeType string `json:"mime_type"`

	// HasAlpha reports whether any pixel is not fully opaque.
	HasAlpha bool `json:"has_alpha"`

	// FileSizeBytes is the size of the encoded source in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`

	// Dimensions is "{width}x{height}".
	Dimensions string `json:"dimensions"`
}

// Info describes a loaded source.
func Info(src *Source) *ImageInfo {
	img := src.Image
	return &ImageInfo{
		Width:         img.Width(),
		Height:        img.Height(),
		Format:        img.SourceFormat,
		MimeType:      src.MIMEType(),
		HasAlpha:      !img.Opaque(),
		FileSizeBytes: img.SourceSize,
		Dimensions:    fmt.Sprintf("%dx%d", img.Width(), img.Height()),
	}
}
