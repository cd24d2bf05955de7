package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrlens/internal/barcode"
	"github.com/MeKo-Tech/qrlens/internal/batch"
)

func newBatchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file|dir>...",
		Short: "Decode every image under files and directories",
		Long: `Decode all images found in the given files and directories in parallel.

Each image gets a "# path" heading followed by all of its decoded texts.
Files that fail to load are reported as skipped instead of aborting the run.

Examples:
  qrlens batch scans/ --recursive
  qrlens batch scans/ --include '*.png' --exclude 'thumb_*' --format csv
  qrlens batch scans/ --overlay-dir overlays --stats`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.cfg
			if err := applyOutputFlags(cmd, &cfg); err != nil {
				return err
			}
			p, err := newPipeline(cmd, &cfg)
			if err != nil {
				return err
			}

			f := cmd.Flags()
			bc := &batch.Config{Workers: cfg.Decoder.Workers, Progress: cmd.ErrOrStderr()}
			bc.Recursive, _ = f.GetBool("recursive")
			bc.IncludePatterns, _ = f.GetStringSlice("include")
			bc.ExcludePatterns, _ = f.GetStringSlice("exclude")
			bc.ShowProgress, _ = f.GetBool("progress")
			bc.Quiet, _ = f.GetBool("quiet")
			bc.OverlayDir, _ = f.GetString("overlay-dir")

			res, err := batch.Process(contextOf(cmd), p, args, bc)
			if err != nil {
				return err
			}
			if err := res.SaveResults(cmd.OutOrStdout(), cfg.Output.Format, cfg.Output.File); err != nil {
				return err
			}
			if stats, _ := f.GetBool("stats"); stats && !bc.Quiet {
				res.PrintStats(cmd.ErrOrStderr())
			}

			failOnEmpty, _ := f.GetBool("fail-on-empty")
			if failOnEmpty && !anyDecoded(res.Results) {
				return ErrNoCodeDetected
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringP("format", "f", outputFormatText, "output format (text, json, csv)")
	f.StringP("output-file", "o", "", "write results to a file instead of stdout")
	f.String("backend", barcode.BackendNative, "decoder backend ("+strings.Join(barcode.Names(), ", ")+")")
	f.Bool("try-harder", false, "spend more effort per image (gozxing backend)")
	f.Bool("no-mirror", false, "do not retry failed candidates as mirrored symbols")
	f.Bool("fail-on-empty", false, "exit with status 2 when no code is decoded")
	f.Int("workers", 0, "images decoded in parallel (default from config)")
	f.BoolP("recursive", "r", false, "descend into subdirectories")
	f.StringSlice("include", nil, "only take files whose name matches these globs")
	f.StringSlice("exclude", nil, "skip files whose name matches these globs")
	f.Bool("progress", false, "draw a progress bar on stderr")
	f.BoolP("quiet", "q", false, "suppress progress and statistics")
	f.Bool("stats", false, "print processing statistics to stderr")
	f.String("overlay-dir", "", "write annotated copies of every image to this directory")
	return cmd
}
