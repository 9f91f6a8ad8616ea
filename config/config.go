package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	AppStore  AppStoreConfig
	Play      PlayConfig
	Pipeline  PipelineConfig
	Output    OutputConfig
	Transform TransformConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AppStoreConfig holds Apple App Store client configuration
type AppStoreConfig struct {
	APIBaseURL string `mapstructure:"api_base_url"`
	WebBaseURL string `mapstructure:"web_base_url"`
}

// PlayConfig holds Google Play client configuration
type PlayConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// PipelineConfig holds enrichment pipeline configuration
type PipelineConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	ReviewLimit    int           `mapstructure:"review_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	DetailCacheTTL time.Duration `mapstructure:"detail_cache_ttl"`
}

// OutputConfig holds local artifact output configuration
type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	Delimiter string `mapstructure:"delimiter"`
	Quote     string `mapstructure:"quote"`
	Escape    string `mapstructure:"escape"`
	QueueSize int    `mapstructure:"queue_size"`
}

// TransformConfig holds external cleaning process configuration
type TransformConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interpreter string        `mapstructure:"interpreter"`
	Script      string        `mapstructure:"script"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds object store upload configuration
type StorageConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Endpoint     string `mapstructure:"endpoint"`
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// RateLimitConfig holds per-store upstream rate limits (requests per second)
type RateLimitConfig struct {
	AppStore float64 `mapstructure:"appstore"`
	Play     float64 `mapstructure:"play"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/storepulse/")

	// Environment variable settings
	v.SetEnvPrefix("STOREPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Store client defaults
	v.SetDefault("appstore.api_base_url", "https://itunes.apple.com")
	v.SetDefault("appstore.web_base_url", "https://apps.apple.com")
	v.SetDefault("play.base_url", "https://play.google.com")

	// Pipeline defaults
	v.SetDefault("pipeline.concurrency", 8)
	v.SetDefault("pipeline.review_limit", 200)
	v.SetDefault("pipeline.request_timeout", "60s")
	v.SetDefault("pipeline.detail_cache_ttl", "1h")

	// Output defaults
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.delimiter", ",")
	v.SetDefault("output.quote", `"`)
	v.SetDefault("output.escape", `"`)
	v.SetDefault("output.queue_size", 16)

	// Transform defaults
	v.SetDefault("transform.enabled", false)
	v.SetDefault("transform.interpreter", "python3")
	v.SetDefault("transform.script", "")
	v.SetDefault("transform.timeout", "120s")

	// Storage defaults. Empty-string defaults register the keys with viper;
	// AutomaticEnv only resolves keys it knows about, so without these the
	// corresponding STOREPULSE_* variables would never bind.
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_path_style", true)

	// Rate limit defaults (requests per second against each store)
	v.SetDefault("ratelimit.appstore", 5.0)
	v.SetDefault("ratelimit.play", 2.0)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline concurrency must be at least 1, got: %d", config.Pipeline.Concurrency)
	}

	switch config.Output.Delimiter {
	case ",", ";", "\t":
	default:
		return fmt.Errorf("output delimiter must be one of ',' ';' or tab, got: %q", config.Output.Delimiter)
	}
	if len(config.Output.Quote) != 1 || len(config.Output.Escape) != 1 {
		return fmt.Errorf("output quote and escape must be single characters")
	}

	if config.Transform.Enabled && config.Transform.Script == "" {
		return fmt.Errorf("transform script is required when transform is enabled (set STOREPULSE_TRANSFORM_SCRIPT)")
	}

	if config.Storage.Enabled {
		if config.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required when storage is enabled (set STOREPULSE_STORAGE_BUCKET)")
		}
		if config.Storage.AccessKey == "" || config.Storage.SecretKey == "" {
			return fmt.Errorf("storage credentials are required when storage is enabled")
		}
	}

	return nil
}
