// Package cmd implements the qrlens command line.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/qrlens/internal/config"
	"github.com/MeKo-Tech/qrlens/internal/engines"
	"github.com/MeKo-Tech/qrlens/internal/version"
)

// ErrNoCodeDetected is returned with --fail-on-empty when nothing decoded.
var ErrNoCodeDetected = errors.New("no code detected")

// Exit codes.
const (
	ExitOK     = 0
	ExitError  = 1
	ExitNoCode = 2
)

// app carries the state shared by one command tree.
type app struct {
	loader  *config.Loader
	cfg     *config.Config
	cfgFile string
	fs      afero.Fs
}

// NewRootCommand builds a fresh command tree with its own configuration
// state, so repeated executions do not share flag values.
func NewRootCommand() *cobra.Command {
	a := &app{
		loader: config.NewLoaderWithViper(viper.New()),
		fs:     afero.NewOsFs(),
	}

	root := &cobra.Command{
		Use:   "qrlens",
		Short: "Locate and decode QR codes in images and PDFs",
		Long: `qrlens finds every QR code in an image, corrects errors and decodes the
payload. It also scans the images of PDF documents, keeps a registry of
reverse image search engines and serves everything over HTTP.

Examples:
  qrlens decode photo.jpg
  qrlens decode *.png --format json
  qrlens pdf scan.pdf --pages 1-3
  qrlens batch scans/ --recursive
  qrlens search https://example.com/image.png
  qrlens serve --port 8080`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is qrlens.yaml in "+strings.Join(config.SearchPaths(), ", ")+")")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("engines-file", "", "search engine registry file")

	v := a.loader.Viper()
	_ = v.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = v.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("engines.file", pf.Lookup("engines-file"))

	root.AddCommand(
		newDecodeCommand(a),
		newPDFCommand(a),
		newBatchCommand(a),
		newEnginesCommand(a),
		newSearchCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return Run(os.Args[1:], os.Stdout, os.Stderr)
}

// Run executes a fresh command tree with args and returns the exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrNoCodeDetected):
		return ExitNoCode
	default:
		fmt.Fprintln(stderr, "Error:", err)
		return ExitError
	}
}

// init loads the configuration and installs the logger.
func (a *app) init(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	// Commands that inspect or rewrite the configuration tolerate an
	// invalid file.
	if cmd.Annotations["config"] == "lenient" {
		cfg, err = a.loader.LoadWithoutValidation(a.cfgFile)
	} else {
		cfg, err = a.loader.LoadWithFile(a.cfgFile)
	}
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	a.cfg = cfg

	level := parseLevel(cfg.Logging.Level)
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	slog.Debug("Configuration loaded", "file", a.loader.ConfigFileUsed())
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// store opens the configured engine registry.
func (a *app) store() *engines.Store {
	return engines.NewStore(a.fs, a.cfg.Engines.File)
}

// writeOutput writes s to path, or to w when path is empty.
func writeOutput(w io.Writer, path, s string) error {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	if path == "" {
		_, err := io.WriteString(w, s)
		return err
	}
	if err := os.WriteFile(path, []byte(s), 0o644); err != nil { //nolint:gosec // output files are world-readable
		return fmt.Errorf("writing %s: %w", path, err)
	}
	slog.Info("Results written", "file", path)
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}
