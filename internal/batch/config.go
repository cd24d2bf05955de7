package batch

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/qrlens/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Workers bounds parallel decodes; 0 uses every CPU.
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress bool
	Quiet        bool
	// Progress receives the progress bar; nil means stderr.
	Progress io.Writer

	// OverlayDir, when set, receives one annotated copy of every image.
	OverlayDir string
}

// Skipped is an input that could not be loaded.
type Skipped struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Result holds the result of batch processing.
type Result struct {
	Results     []*pipeline.ImageResult
	ImagePaths  []string
	Skipped     []Skipped
	Overlays    []string
	Duration    time.Duration
	WorkerCount int
}

// Stats summarizes a batch run.
type Stats struct {
	Images           int           `json:"images"`
	Decoded          int           `json:"decoded"`
	Symbols          int           `json:"symbols"`
	FailedCandidates int           `json:"failed_candidates"`
	Skipped          int           `json:"skipped"`
	Workers          int           `json:"workers"`
	Duration         time.Duration `json:"duration_ns"`
	AveragePerImage  time.Duration `json:"average_per_image_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// Stats computes the run summary.
func (r *Result) Stats() Stats {
	s := Stats{
		Images:   len(r.Results),
		Skipped:  len(r.Skipped),
		Workers:  r.WorkerCount,
		Duration: r.Duration,
	}
	for _, res := range r.Results {
		if res == nil {
			continue
		}
		texts := res.Texts()
		if len(texts) > 0 {
			s.Decoded++
		}
		s.Symbols += len(texts)
		for _, c := range res.Results {
			if !c.OK() {
				s.FailedCandidates++
			}
		}
	}
	if s.Images > 0 {
		s.AveragePerImage = r.Duration / time.Duration(s.Images)
		if secs := r.Duration.Seconds(); secs > 0 {
			s.ThroughputPerSec = float64(s.Images) / secs
		}
	}
	return s
}

// FormatResults formats the batch results as text, json or csv.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r, format)
}

// SaveResults writes the formatted results to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return nil
	}
	_, err = fmt.Fprint(w, output)
	return err
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	stats := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", stats.Images)
	_, _ = fmt.Fprintf(w, "  Decoded: %d\n", stats.Decoded)
	_, _ = fmt.Fprintf(w, "  Symbols: %d\n", stats.Symbols)
	_, _ = fmt.Fprintf(w, "  Failed candidates: %d\n", stats.FailedCandidates)
	_, _ = fmt.Fprintf(w, "  Skipped: %d\n", stats.Skipped)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", stats.Workers)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", stats.AveragePerImage.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", stats.ThroughputPerSec)
}
