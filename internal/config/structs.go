//nolint:lll
package config

// Config represents the complete configuration for qrlens. It covers every
// command (decode, pdf, engines, search, serve) and is loaded from
// configuration files, environment variables and command-line flags.
type Config struct {
	Verbose bool `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Decoder DecoderConfig `mapstructure:"decoder" yaml:"decoder" json:"decoder"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output" json:"output"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
	Engines EnginesConfig `mapstructure:"engines" yaml:"engines" json:"engines"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`
}

// DecoderConfig contains QR decoding settings.
type DecoderConfig struct {
	Backend         string  `mapstructure:"backend" yaml:"backend" json:"backend"`
	MinBlockSize    int     `mapstructure:"min_block_size" yaml:"min_block_size" json:"min_block_size"`
	BlockDivisor    int     `mapstructure:"block_divisor" yaml:"block_divisor" json:"block_divisor"`
	MinDynamicRange int     `mapstructure:"min_dynamic_range" yaml:"min_dynamic_range" json:"min_dynamic_range"`
	FinderTolerance float64 `mapstructure:"finder_tolerance" yaml:"finder_tolerance" json:"finder_tolerance"`
	MaxConcurrency  int     `mapstructure:"max_concurrency" yaml:"max_concurrency" json:"max_concurrency"`
	TryMirrored     bool    `mapstructure:"try_mirrored" yaml:"try_mirrored" json:"try_mirrored"`
	// Workers is how many images decode in parallel.
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// EnginesConfig locates the search engine registry.
type EnginesConfig struct {
	File string `mapstructure:"file" yaml:"file" json:"file"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level" json:"level"`
}
