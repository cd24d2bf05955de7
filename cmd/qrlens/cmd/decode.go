package cmd

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrlens/internal/barcode"
	"github.com/MeKo-Tech/qrlens/internal/config"
	"github.com/MeKo-Tech/qrlens/internal/imageio"
	"github.com/MeKo-Tech/qrlens/internal/pipeline"
)

const (
	outputFormatText = "text"
	outputFormatJSON = "json"
	outputFormatCSV  = "csv"
)

// addOutputFlags registers the flags shared by decode and pdf.
func addOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("format", "f", outputFormatText, "output format (text, json, csv)")
	f.StringP("output-file", "o", "", "write results to a file instead of stdout")
	f.String("backend", barcode.BackendNative, "decoder backend ("+strings.Join(barcode.Names(), ", ")+")")
	f.Bool("all", false, "print every decoded text instead of the first (text format)")
	f.Bool("fail-on-empty", false, "exit with status 2 when no code is decoded")
	f.Bool("try-harder", false, "spend more effort per image (gozxing backend)")
	f.Bool("no-mirror", false, "do not retry failed candidates as mirrored symbols")
}

// applyOutputFlags overrides cfg with the flags the user set.
func applyOutputFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("format") {
		cfg.Output.Format, _ = f.GetString("format")
	}
	if f.Changed("output-file") {
		cfg.Output.File, _ = f.GetString("output-file")
	}
	if f.Changed("backend") {
		cfg.Decoder.Backend, _ = f.GetString("backend")
	}
	if f.Changed("no-mirror") {
		noMirror, _ := f.GetBool("no-mirror")
		cfg.Decoder.TryMirrored = !noMirror
	}
	if f.Lookup("workers") != nil && f.Changed("workers") {
		cfg.Decoder.Workers, _ = f.GetInt("workers")
	}
	validFormats := []string{outputFormatText, outputFormatJSON, outputFormatCSV}
	if !slices.Contains(validFormats, cfg.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", cfg.Output.Format, strings.Join(validFormats, ", "))
	}
	return nil
}

// newPipeline builds a pipeline from the effective configuration.
func newPipeline(cmd *cobra.Command, cfg *config.Config) (*pipeline.Pipeline, error) {
	backend, err := cfg.Backend()
	if err != nil {
		return nil, err
	}
	var opts barcode.Options
	opts.TryHarder, _ = cmd.Flags().GetBool("try-harder")
	if roi, _ := cmd.Flags().GetString("roi"); roi != "" {
		if opts.ROI, err = parseROI(roi); err != nil {
			return nil, err
		}
	}
	return pipeline.New(backend, opts)
}

// parseROI reads "x0,y0,x1,y1".
func parseROI(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("invalid roi %q: want x0,y0,x1,y1", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("invalid roi %q: %w", s, err)
		}
		v[i] = n
	}
	r := image.Rect(v[0], v[1], v[2], v[3])
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("invalid roi %q: empty rectangle", s)
	}
	return r, nil
}

func newDecodeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <image>...",
		Short: "Decode the QR codes in one or more images",
		Long: `Decode every QR code found in the given images.

Supported formats: ` + strings.Join(imageio.SupportedExtensions, " ") + `

The text format prints the first decoded text, or "no code detected".
JSON and CSV carry every candidate with its error details.

Examples:
  qrlens decode photo.jpg
  qrlens decode *.png --format json --output-file results.json
  qrlens decode scan.png --all --backend gozxing`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.cfg
			if err := applyOutputFlags(cmd, &cfg); err != nil {
				return err
			}
			results, err := decodeFiles(cmd, &cfg, args)
			if err != nil {
				return err
			}
			return emit(cmd, &cfg, results, results)
		},
	}
	addOutputFlags(cmd)
	cmd.Flags().Int("workers", 0, "images decoded in parallel (default from config)")
	cmd.Flags().String("roi", "", "only search this region, as x0,y0,x1,y1")
	return cmd
}

func decodeFiles(cmd *cobra.Command, cfg *config.Config, paths []string) ([]*pipeline.ImageResult, error) {
	loaded := imageio.LoadAll(paths)
	images := make([]image.Image, 0, len(loaded))
	for _, l := range loaded {
		if l.Err != nil {
			return nil, l.Err
		}
		images = append(images, l.Image)
	}

	p, err := newPipeline(cmd, cfg)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var results []*pipeline.ImageResult
	if len(images) == 1 || cfg.Decoder.Workers == 1 {
		results, err = p.ProcessImages(ctx, images)
	} else {
		results, err = p.ProcessImagesParallel(ctx, images, pipeline.ParallelConfig{
			MaxWorkers:       cfg.Decoder.Workers,
			ProgressCallback: pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug, 10),
		})
	}
	if err != nil {
		return nil, err
	}
	for i, r := range results {
		r.Source = loaded[i].Path
	}
	return results, nil
}

// emit renders results in the configured format. structured is what JSON
// output encodes.
func emit(cmd *cobra.Command, cfg *config.Config, structured any, results []*pipeline.ImageResult) error {
	all, _ := cmd.Flags().GetBool("all")

	var out string
	switch cfg.Output.Format {
	case outputFormatJSON:
		s, err := pipeline.ToJSON(structured)
		if err != nil {
			return err
		}
		out = s
	case outputFormatCSV:
		s, err := pipeline.ToCSV(results)
		if err != nil {
			return err
		}
		out = s
	default:
		out = pipeline.ToPlainText(results, all)
	}
	if err := writeOutput(cmd.OutOrStdout(), cfg.Output.File, out); err != nil {
		return err
	}

	failOnEmpty, _ := cmd.Flags().GetBool("fail-on-empty")
	if failOnEmpty && !anyDecoded(results) {
		return ErrNoCodeDetected
	}
	return nil
}

func anyDecoded(results []*pipeline.ImageResult) bool {
	return slices.ContainsFunc(results, (*pipeline.ImageResult).Decoded)
}
