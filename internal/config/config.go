package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/MeKo-Tech/qrlens/internal/barcode"
	"github.com/MeKo-Tech/qrlens/internal/binarize"
	"github.com/MeKo-Tech/qrlens/internal/decoder"
	"github.com/MeKo-Tech/qrlens/internal/finder"
)

const infoLevel = "info"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	dec := decoder.DefaultConfig()
	return Config{
		Decoder: DecoderConfig{
			Backend:         barcode.BackendNative,
			MinBlockSize:    dec.Binarize.MinBlockSize,
			BlockDivisor:    dec.Binarize.BlockDivisor,
			MinDynamicRange: dec.Binarize.MinDynamicRange,
			FinderTolerance: dec.Finder.Tolerance,
			MaxConcurrency:  dec.MaxConcurrency,
			TryMirrored:     dec.TryMirrored,
			Workers:         runtime.NumCPU(),
		},
		Output: OutputConfig{Format: "text"},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 10000,
				MaxDataPerDay:     1 << 30,
			},
		},
		Engines: EnginesConfig{File: DefaultEnginesFile()},
		Logging: LoggingConfig{Level: infoLevel},
	}
}

// DefaultEnginesFile returns the per-user engine registry path.
func DefaultEnginesFile() string {
	if dir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && dir != "" {
		return filepath.Join(dir, "qrlens", "engines.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "qrlens", "engines.yaml")
	}
	return "engines.yaml"
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if c.Decoder.Backend != "" && !slices.Contains(barcode.Names(), c.Decoder.Backend) {
		return fmt.Errorf("invalid decoder backend: %s (must be one of: %s)", c.Decoder.Backend, strings.Join(barcode.Names(), ", "))
	}
	if c.Decoder.MinBlockSize <= 0 {
		return fmt.Errorf("invalid decoder.min_block_size: %d (must be positive)", c.Decoder.MinBlockSize)
	}
	if c.Decoder.BlockDivisor < 0 {
		return fmt.Errorf("invalid decoder.block_divisor: %d (must not be negative)", c.Decoder.BlockDivisor)
	}
	if c.Decoder.MinDynamicRange < 0 || c.Decoder.MinDynamicRange > 255 {
		return fmt.Errorf("invalid decoder.min_dynamic_range: %d (must be between 0 and 255)", c.Decoder.MinDynamicRange)
	}
	if c.Decoder.FinderTolerance <= 0 || c.Decoder.FinderTolerance >= 1 {
		return fmt.Errorf("invalid decoder.finder_tolerance: %.2f (must be between 0.0 and 1.0, exclusive)", c.Decoder.FinderTolerance)
	}
	if c.Decoder.MaxConcurrency < 0 {
		return fmt.Errorf("invalid decoder.max_concurrency: %d (must not be negative)", c.Decoder.MaxConcurrency)
	}
	if c.Decoder.Workers < 0 {
		return fmt.Errorf("invalid decoder.workers: %d (must not be negative)", c.Decoder.Workers)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	rl := c.Server.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDay < 0 {
		return fmt.Errorf("invalid rate limit: limits must not be negative")
	}

	if strings.TrimSpace(c.Engines.File) == "" {
		return fmt.Errorf("invalid engines.file: must not be empty")
	}
	return nil
}

// ToDecoderConfig converts to the decoder's settings.
func (c *Config) ToDecoderConfig() decoder.Config {
	cfg := decoder.DefaultConfig()
	cfg.Binarize = binarize.Config{
		MinBlockSize:    c.Decoder.MinBlockSize,
		BlockDivisor:    c.Decoder.BlockDivisor,
		MinDynamicRange: c.Decoder.MinDynamicRange,
	}
	cfg.Finder = finder.Config{
		Tolerance:        c.Decoder.FinderTolerance,
		MinConfirmations: cfg.Finder.MinConfirmations,
	}
	cfg.MaxConcurrency = c.Decoder.MaxConcurrency
	cfg.TryMirrored = c.Decoder.TryMirrored
	return cfg
}

// Backend builds the configured decoding backend.
func (c *Config) Backend() (barcode.Backend, error) {
	return barcode.NewBackend(c.Decoder.Backend, c.ToDecoderConfig())
}
