// Package pipeline runs a decoding backend over single images, batches of
// images and PDF documents, and formats the results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/qrlens/internal/barcode"
)

// Pipeline decodes images with one backend.
type Pipeline struct {
	backend barcode.Backend
	opts    barcode.Options
}

// New returns a pipeline over backend.
func New(backend barcode.Backend, opts barcode.Options) (*Pipeline, error) {
	if backend == nil {
		return nil, errors.New("pipeline: nil backend")
	}
	return &Pipeline{backend: backend, opts: opts}, nil
}

// Backend returns the pipeline's backend.
func (p *Pipeline) Backend() barcode.Backend { return p.backend }

// ProcessImage decodes every symbol in img.
func (p *Pipeline) ProcessImage(ctx context.Context, img image.Image) (*ImageResult, error) {
	if p == nil || p.backend == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if img == nil {
		return nil, errors.New("nil image")
	}
	start := time.Now()
	results, err := p.backend.Decode(ctx, img, p.opts)
	if err != nil {
		return nil, fmt.Errorf("%s decode: %w", p.backend.Name(), err)
	}

	b := img.Bounds()
	res := &ImageResult{
		Width:   b.Dx(),
		Height:  b.Dy(),
		Backend: p.backend.Name(),
		Results: results,
	}
	res.Processing.TotalNs = time.Since(start).Nanoseconds()

	for _, r := range results {
		if !r.OK() {
			slog.Debug("Candidate not decoded", "kind", r.Err.Kind, "stage", r.Err.Stage, "error", r.Err)
		}
	}
	slog.Debug("Image decoded", "backend", res.Backend, "candidates", len(results),
		"decoded", len(res.Texts()), "duration", time.Duration(res.Processing.TotalNs))
	return res, nil
}

// ProcessImages decodes images one after another. It stops at the first
// error.
func (p *Pipeline) ProcessImages(ctx context.Context, images []image.Image) ([]*ImageResult, error) {
	out := make([]*ImageResult, 0, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := p.ProcessImage(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		res.Index = i
		out = append(out, res)
	}
	return out, nil
}
