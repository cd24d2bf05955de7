// Package batch decodes every image found under a set of files and
// directories.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"time"

	"github.com/MeKo-Tech/qrlens/internal/imageio"
	"github.com/MeKo-Tech/qrlens/internal/pipeline"
)

// ErrNoImages is returned when discovery or loading leaves nothing to decode.
var ErrNoImages = errors.New("no image files found")

// Process discovers the images under paths, decodes them in parallel and
// optionally writes overlays. Files that fail to load are skipped and
// reported in the result.
func Process(ctx context.Context, p *pipeline.Pipeline, paths []string, config *Config) (*Result, error) {
	if config == nil {
		config = &Config{}
	}
	files, err := discoverImageFiles(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}

	res := &Result{WorkerCount: config.Workers}
	if res.WorkerCount <= 0 {
		res.WorkerCount = runtime.NumCPU()
	}
	images := make([]image.Image, 0, len(files))
	for _, path := range files {
		img, _, err := imageio.Load(path)
		if err != nil {
			slog.Warn("Skipping image", "path", path, "error", err)
			res.Skipped = append(res.Skipped, Skipped{Path: path, Error: err.Error()})
			continue
		}
		images = append(images, img)
		res.ImagePaths = append(res.ImagePaths, path)
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	res.WorkerCount = min(res.WorkerCount, len(images))

	var progress pipeline.ProgressCallback
	if config.ShowProgress && !config.Quiet {
		progress = pipeline.NewConsoleProgressCallback(config.Progress, "Decoding: ")
	}

	start := time.Now()
	results, err := p.ProcessImagesParallel(ctx, images, pipeline.ParallelConfig{
		MaxWorkers:       res.WorkerCount,
		ProgressCallback: progress,
		ErrorHandler: func(i int, _ image.Image, err error) {
			slog.Warn("Image failed", "path", res.ImagePaths[i], "error", err)
		},
	})
	res.Duration = time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}
	for i, r := range results {
		r.Source = res.ImagePaths[i]
	}
	res.Results = results

	if config.OverlayDir != "" {
		for i, r := range results {
			out, err := SaveOverlay(images[i], r, config.OverlayDir)
			if err != nil {
				return nil, err
			}
			res.Overlays = append(res.Overlays, out)
		}
	}

	slog.Debug("Batch finished", "images", len(results), "skipped", len(res.Skipped),
		"workers", res.WorkerCount, "duration", res.Duration)
	return res, nil
}
