// Package imageio loads images for decoding. JPEG orientation tags are
// applied on load so symbols are decoded the way the photo is displayed.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedExtensions lists the file extensions Load accepts.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// ErrUnsupportedFormat is returned for files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Error records which operation failed on an image.
type Error struct {
	Operation string
	Path      string
	Err       error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("image %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("image %s %s: %v", e.Operation, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsSupported reports whether the path has a supported image extension.
func IsSupported(path string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path)))
}

// Metadata captures lightweight file and pixel information.
type Metadata struct {
	Path      string `json:"path,omitempty"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"size_bytes"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Load opens and decodes an image file.
func Load(path string) (image.Image, Metadata, error) {
	if path == "" {
		return nil, Metadata{}, &Error{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupported(path) {
		return nil, Metadata{}, &Error{Operation: "load", Path: path, Err: fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))}
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		return nil, Metadata{}, &Error{Operation: "load", Path: path, Err: err}
	}
	img, meta, err := Decode(data)
	if err != nil {
		var ie *Error
		if errors.As(err, &ie) {
			ie.Path = path
		}
		return nil, Metadata{}, err
	}
	meta.Path = path
	return img, meta, nil
}

// Decode decodes an in-memory image of any registered format.
func Decode(data []byte) (image.Image, Metadata, error) {
	if len(data) == 0 {
		return nil, Metadata{}, &Error{Operation: "decode", Err: errors.New("empty image data")}
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, Metadata{}, &Error{Operation: "decode", Err: err}
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, Metadata{}, &Error{Operation: "decode", Err: err}
	}
	b := img.Bounds()
	return img, Metadata{
		Format:    format,
		SizeBytes: int64(len(data)),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}, nil
}

// Read decodes an image from r, reading at most limit bytes. A limit of
// zero or less reads everything.
func Read(r io.Reader, limit int64) (image.Image, Metadata, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Metadata{}, &Error{Operation: "read", Err: err}
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, Metadata{}, &Error{Operation: "read", Err: fmt.Errorf("image exceeds %d bytes", limit)}
	}
	return Decode(data)
}

// Constraints bounds acceptable image dimensions.
type Constraints struct {
	MinWidth  int
	MinHeight int
	// MaxPixels rejects very large images; 0 disables the check.
	MaxPixels int
}

// DefaultConstraints accepts anything that can hold a version 1 symbol with
// one pixel per module, up to 64 megapixels.
func DefaultConstraints() Constraints {
	return Constraints{MinWidth: 21, MinHeight: 21, MaxPixels: 64 << 20}
}

// Validate checks img against c.
func Validate(img image.Image, c Constraints) error {
	if img == nil {
		return &Error{Operation: "validate", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < c.MinWidth || h < c.MinHeight {
		return &Error{Operation: "validate", Err: fmt.Errorf("image too small: %dx%d < %dx%d", w, h, c.MinWidth, c.MinHeight)}
	}
	if c.MaxPixels > 0 && w*h > c.MaxPixels {
		return &Error{Operation: "validate", Err: fmt.Errorf("image too large: %dx%d exceeds %d pixels", w, h, c.MaxPixels)}
	}
	return nil
}

// Result pairs a loaded image with its load error.
type Result struct {
	Path  string
	Image image.Image
	Meta  Metadata
	Err   error
}

// LoadAll loads multiple images and returns results in order. A failed
// load is reported in its entry and does not stop the others.
func LoadAll(paths []string) []Result {
	results := make([]Result, 0, len(paths))
	for _, p := range paths {
		img, meta, err := Load(p)
		results = append(results, Result{Path: p, Image: img, Meta: meta, Err: err})
	}
	return results
}
