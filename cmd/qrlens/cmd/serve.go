package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrlens/internal/barcode"
	"github.com/MeKo-Tech/qrlens/internal/config"
	"github.com/MeKo-Tech/qrlens/internal/server"
	"github.com/MeKo-Tech/qrlens/internal/version"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server for the decode API",
		Long: `Start an HTTP server that decodes uploaded images and PDFs and manages the
search engine registry.

The server provides the following endpoints:
  POST /decode        - Decode an uploaded image (multipart "image" or raw body)
  POST /decode/pdf    - Decode the images of an uploaded PDF
  GET  /ws/decode     - Decode images sent over a WebSocket
  GET  /engines       - List search engines (POST, PUT, DELETE to manage)
  GET  /search?url=   - Reverse image search links
  GET  /health        - Health check
  GET  /metrics       - Prometheus metrics

Examples:
  qrlens serve
  qrlens serve --port 8080
  qrlens serve --host 0.0.0.0 --rate-limit-enabled --requests-per-minute 30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *a.cfg
			if err := applyServeFlags(cmd, &cfg); err != nil {
				return err
			}
			p, err := newPipeline(cmd, &cfg)
			if err != nil {
				return err
			}

			srv, err := server.NewServer(serverConfig(&cfg), p, a.store())
			if err != nil {
				return fmt.Errorf("failed to initialize server: %w", err)
			}

			ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}

	f := cmd.Flags()
	f.String("host", "localhost", "host to bind to")
	f.IntP("port", "p", 8080, "port to listen on")
	f.String("cors-origin", "*", "allowed CORS origin")
	f.Int("max-upload-mb", 50, "maximum upload size in MB")
	f.Int("timeout", 30, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "graceful shutdown timeout in seconds")
	f.String("backend", barcode.BackendNative, "decoder backend")
	f.Bool("try-harder", false, "spend more effort per image (gozxing backend)")
	f.Bool("rate-limit-enabled", false, "enable per-client rate limiting")
	f.Int("requests-per-minute", 60, "requests per minute per client")
	f.Int("requests-per-hour", 1000, "requests per hour per client")
	f.Int("max-requests-per-day", 10000, "requests per day per client")
	f.Int64("max-data-per-day", 1<<30, "uploaded bytes per day per client")
	return cmd
}

// applyServeFlags overrides the server settings with the flags the user set.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Server.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		cfg.Server.Port, _ = f.GetInt("port")
	}
	if f.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = f.GetString("cors-origin")
	}
	if f.Changed("max-upload-mb") {
		cfg.Server.MaxUploadMB, _ = f.GetInt("max-upload-mb")
	}
	if f.Changed("timeout") {
		cfg.Server.TimeoutSec, _ = f.GetInt("timeout")
	}
	if f.Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = f.GetInt("shutdown-timeout")
	}
	if f.Changed("backend") {
		cfg.Decoder.Backend, _ = f.GetString("backend")
	}

	rl := &cfg.Server.RateLimit
	if f.Changed("rate-limit-enabled") {
		rl.Enabled, _ = f.GetBool("rate-limit-enabled")
	}
	if f.Changed("requests-per-minute") {
		rl.RequestsPerMinute, _ = f.GetInt("requests-per-minute")
	}
	if f.Changed("requests-per-hour") {
		rl.RequestsPerHour, _ = f.GetInt("requests-per-hour")
	}
	if f.Changed("max-requests-per-day") {
		rl.MaxRequestsPerDay, _ = f.GetInt("max-requests-per-day")
	}
	if f.Changed("max-data-per-day") {
		rl.MaxDataPerDay, _ = f.GetInt64("max-data-per-day")
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", cfg.Server.Port)
	}
	return cfg.Validate()
}

func serverConfig(cfg *config.Config) server.Config {
	rl := cfg.Server.RateLimit
	return server.Config{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		CORSOrigin:         cfg.Server.CORSOrigin,
		MaxUploadMB:        int64(cfg.Server.MaxUploadMB),
		TimeoutSec:         cfg.Server.TimeoutSec,
		ShutdownTimeoutSec: cfg.Server.ShutdownTimeout,
		Version:            version.Version,
		RateLimit: server.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			MaxRequestsPerDay: rl.MaxRequestsPerDay,
			MaxDataPerDay:     rl.MaxDataPerDay,
		},
	}
}

// contextOf returns the command context, which is nil outside ExecuteContext.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
