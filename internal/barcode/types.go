package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"strings"

	"github.com/MeKo-Tech/qrlens/internal/decoder"
)

// Backend names.
const (
	BackendNative  = "native"
	BackendGozxing = "gozxing"
)

// ErrUnknownBackend is returned for backend names other than the ones above.
var ErrUnknownBackend = errors.New("barcode: unknown backend")

// Options controls backend decoding behavior.
type Options struct {
	// TryHarder enables the more exhaustive search of each backend: the
	// transposed retry for the native decoder, the TRY_HARDER hint for
	// gozxing.
	TryHarder bool

	// ROI optionally restricts decoding to a sub-rectangle of the image.
	// If zero-sized or out of bounds, backends ignore it.
	ROI image.Rectangle
}

// Backend is a pluggable QR decoder implementation.
type Backend interface {
	Name() string
	Decode(ctx context.Context, img image.Image, opts Options) ([]decoder.Result, error)
}

// Names lists the available backends.
func Names() []string { return []string{BackendNative, BackendGozxing} }

// NewBackend returns the named backend. The native backend decodes with cfg;
// an empty name selects it.
func NewBackend(name string, cfg decoder.Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendNative:
		return &nativeBackend{cfg: cfg}, nil
	case BackendGozxing:
		return &gozxingBackend{}, nil
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownBackend, name, strings.Join(Names(), ", "))
}

// nativeBackend runs the internal decoder.
type nativeBackend struct {
	cfg decoder.Config
}

func (b *nativeBackend) Name() string { return BackendNative }

func (b *nativeBackend) Decode(ctx context.Context, img image.Image, opts Options) ([]decoder.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var origin image.Point
	if !opts.ROI.Empty() {
		if roi, at, ok := subImage(img, opts.ROI); ok {
			img, origin = roi, at
		}
	}
	cfg := b.cfg
	if opts.TryHarder {
		cfg.TryMirrored = true
	}
	results := decoder.New(cfg).Decode(ctx, img)
	// Corners come back relative to the ROI's origin.
	if origin != (image.Point{}) {
		shiftCorners(results, origin)
	}
	return results, nil
}

// shiftCorners moves corners from sub-image pixel space, which starts at
// (0, 0), to the coordinates of the original image.
func shiftCorners(results []decoder.Result, origin image.Point) {
	for i := range results {
		for j := range results[i].Corners {
			results[i].Corners[j].X += float64(origin.X)
			results[i].Corners[j].Y += float64(origin.Y)
		}
	}
}

// subImage crops img to r and returns the crop with its offset from the
// image's origin.
func subImage(img image.Image, r image.Rectangle) (image.Image, image.Point, bool) {
	rb := r.Intersect(img.Bounds())
	if rb.Empty() {
		return nil, image.Point{}, false
	}
	at := rb.Min.Sub(img.Bounds().Min)
	type subImager interface{ SubImage(r image.Rectangle) image.Image }
	if s, ok := img.(subImager); ok {
		return s.SubImage(rb), at, true
	}
	// Fallback: copy into new RGBA
	dst := image.NewRGBA(image.Rect(0, 0, rb.Dx(), rb.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rb.Min, draw.Src)
	return dst, at, true
}
