package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
)

// ParallelConfig holds configuration for parallel processing.
type ParallelConfig struct {
	MaxWorkers       int                           // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback              // Optional progress reporting
	ErrorHandler     func(int, image.Image, error) // Optional per-image error handler
}

// DefaultParallelConfig returns sensible defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type imageJob struct {
	index int
	image image.Image
}

type imageOutcome struct {
	index  int
	result *ImageResult
	err    error
}

// ProcessImagesParallel decodes images with a worker pool. Results are in
// input order; failed images leave a nil entry and the first failure is
// returned alongside the partial results.
func (p *Pipeline) ProcessImagesParallel(ctx context.Context, images []image.Image, config ParallelConfig) ([]*ImageResult, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	if p == nil || p.backend == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	config.MaxWorkers = min(config.MaxWorkers, len(images))

	if config.ProgressCallback != nil {
		config.ProgressCallback.OnStart(len(images))
		defer config.ProgressCallback.OnComplete()
	}

	jobs := make(chan imageJob, len(images))
	outcomes := make(chan imageOutcome, len(images))

	var wg sync.WaitGroup
	for range config.MaxWorkers {
		wg.Add(1)
		go p.worker(ctx, jobs, outcomes, &wg)
	}

	go func() {
		defer close(jobs)
		for i, img := range images {
			select {
			case jobs <- imageJob{index: i, image: img}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	ordered := make([]*ImageResult, len(images))
	errs := make([]error, len(images))
	processed := 0
	for o := range outcomes {
		ordered[o.index] = o.result
		errs[o.index] = o.err
		processed++
		if config.ProgressCallback != nil {
			if o.err != nil {
				config.ProgressCallback.OnError(o.index, o.err)
			}
			config.ProgressCallback.OnProgress(processed, len(images))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstError error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if firstError == nil {
			firstError = fmt.Errorf("image %d: %w", i, err)
		}
		if config.ErrorHandler != nil {
			config.ErrorHandler(i, images[i], err)
		}
	}
	return ordered, firstError
}

func (p *Pipeline) worker(ctx context.Context, jobs <-chan imageJob, outcomes chan<- imageOutcome, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			res, err := p.ProcessImage(ctx, job.image)
			if res != nil {
				res.Index = job.index
			}
			select {
			case outcomes <- imageOutcome{index: job.index, result: res, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
