// Package config provides configuration management for the staged-upload portal.
//
// Configuration is loaded from:
// 1. .env file (optional, loaded into the process environment)
// 2. config.yaml file (optional)
// 3. Environment variables (API_BASE_URL, POLL_INTERVAL, SESSION_COOKIE, ...)
// 4. Default values
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Auth sources accepted in auth.source.
const (
	AuthSourceStatic         = "static"
	AuthSourceForward        = "forward"
	AuthSourceSecretsManager = "secretsmanager"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	API       APIConfig       `mapstructure:"api"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Poll      PollConfig      `mapstructure:"poll"`
	Session   SessionConfig   `mapstructure:"session"`
	Auth      AuthConfig      `mapstructure:"auth"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

// ServerConfig contains HTTP server settings for the BFF.
type ServerConfig struct {
	Port                  int           `mapstructure:"port"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	WriteTimeout          time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout       time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins        []string      `mapstructure:"allowed_origins"`
	AllowCredentials      bool          `mapstructure:"allow_credentials"`
	UnsafeAllowAllOrigins bool          `mapstructure:"unsafe_allow_all_origins"`
}

// APIConfig locates the registration API.
// BaseURL wins over the per-environment table.
type APIConfig struct {
	Environment    string            `mapstructure:"environment"`
	BaseURL        string            `mapstructure:"base_url"`
	Environments   map[string]string `mapstructure:"environments"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
}

// ResolveBaseURL returns the API base URL without a trailing slash.
func (c APIConfig) ResolveBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	env := c.Environment
	if env == "" {
		env = "local"
	}
	return strings.TrimRight(c.Environments[env], "/")
}

// UploadConfig bounds the upload request.
type UploadConfig struct {
	// Timeout is the threshold after which the upload outcome is unknown.
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxBytes  int64         `mapstructure:"max_bytes"`
	FieldName string        `mapstructure:"field_name"`
}

// PollConfig is the staging poll retry policy.
type PollConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	// MaxNotReady caps "too early" answers; 0 leaves them unbounded.
	MaxNotReady int `mapstructure:"max_not_ready"`
}

// SessionConfig describes the stage pointer persistence.
type SessionConfig struct {
	Cookie    string `mapstructure:"cookie"`
	Path      string `mapstructure:"path"`
	Secure    bool   `mapstructure:"secure"`
	HttpOnly  bool   `mapstructure:"http_only"`
	StateFile string `mapstructure:"state_file"`
	// GuardTTL bounds how long a commit/discard lock may be held.
	GuardTTL time.Duration `mapstructure:"guard_ttl"`
}

// AuthConfig selects how the bearer credential is obtained.
type AuthConfig struct {
	Source        string        `mapstructure:"source"`
	Token         string        `mapstructure:"token"`
	SecretName    string        `mapstructure:"secret_name"`
	RefreshSkew   time.Duration `mapstructure:"refresh_skew"`
	OperatorGroup string        `mapstructure:"operator_group"`
	ReadOnlyGroup string        `mapstructure:"read_only_group"`
	// AdminGroup may change the runtime log level.
	AdminGroup string `mapstructure:"admin_group"`
}

// AWSConfig is used by the Secrets Manager token source.
type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// RedisConfig enables the shared commit/discard guard when URL is set.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// RateLimitConfig limits mutating upload routes per client IP.
type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	WorkflowPoolSize   int `mapstructure:"workflow_pool_size"`
	BackgroundPoolSize int `mapstructure:"background_pool_size"`
}

// Options tweak Load for a specific binary.
type Options struct {
	// ConfigFile is an explicit config path; empty searches the default locations.
	ConfigFile string
	// EnvFile is loaded with godotenv when present.
	EnvFile string
}

// Load reads configuration with default options.
func Load() (*Config, error) {
	return LoadWithOptions(Options{EnvFile: ".env"})
}

// LoadWithOptions reads configuration from file and environment variables.
// Standard environment variables without prefix: API_BASE_URL, POLL_INTERVAL, LOG_LEVEL.
func LoadWithOptions(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		// Missing .env is normal; the environment is used as-is.
		_ = godotenv.Load(opts.EnvFile)
	}

	v := viper.New()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/bsr-stager")
	}

	// Maps nested config: poll.max_attempts → POLL_MAX_ATTEMPTS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || opts.ConfigFile != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if c.API.ResolveBaseURL() == "" {
		return fmt.Errorf("api.base_url must be set or api.environment must name a configured environment")
	}
	if c.Poll.MaxAttempts <= 0 {
		return fmt.Errorf("poll.max_attempts must be positive")
	}
	if c.Poll.Interval < 0 {
		return fmt.Errorf("poll.interval must not be negative")
	}
	if c.Upload.Timeout <= 0 {
		return fmt.Errorf("upload.timeout must be positive")
	}
	if c.RateLimit.PerMinute > 0 && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.burst must be positive when rate_limit.per_minute is set")
	}
	switch c.Auth.Source {
	case AuthSourceStatic, AuthSourceForward:
	case AuthSourceSecretsManager:
		if c.Auth.SecretName == "" {
			return fmt.Errorf("auth.secret_name is required for the secretsmanager source")
		}
	default:
		return fmt.Errorf("auth.source %q is not one of static, forward, secretsmanager", c.Auth.Source)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	// Workflows poll for minutes; the write timeout must outlive them.
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("server.allow_credentials", true)
	v.SetDefault("server.unsafe_allow_all_origins", false)

	// Registration API
	v.SetDefault("api.environment", "local")
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.environments", map[string]string{
		"local":       "http://localhost:8000",
		"development": "https://d2miy41rsrgmw7.cloudfront.net",
		"test":        "https://dxq1b6otcjq86.cloudfront.net",
		"uat":         "https://uat.api.dft.gov.uk",
		"production":  "https://api.dft.gov.uk",
	})
	v.SetDefault("api.request_timeout", "60s")

	// Upload
	v.SetDefault("upload.timeout", "30s")
	v.SetDefault("upload.max_bytes", 10<<20)
	v.SetDefault("upload.field_name", "file")

	// Poll
	v.SetDefault("poll.interval", "30s")
	v.SetDefault("poll.max_attempts", 4)
	v.SetDefault("poll.max_not_ready", 0)

	// Session
	v.SetDefault("session.cookie", "stage_id")
	v.SetDefault("session.path", "/")
	v.SetDefault("session.secure", true)
	v.SetDefault("session.http_only", true)
	v.SetDefault("session.state_file", ".bsrctl/state.yaml")
	v.SetDefault("session.guard_ttl", "2m")

	// Auth
	v.SetDefault("auth.source", AuthSourceForward)
	v.SetDefault("auth.token", "")
	v.SetDefault("auth.secret_name", "")
	v.SetDefault("auth.refresh_skew", "1m")
	v.SetDefault("auth.operator_group", "users-group")
	v.SetDefault("auth.read_only_group", "read-only")
	v.SetDefault("auth.admin_group", "admin-group")

	// AWS
	v.SetDefault("aws.region", "eu-west-2")
	v.SetDefault("aws.endpoint", "")

	// Redis
	v.SetDefault("redis.url", "")

	// Rate limit
	v.SetDefault("rate_limit.per_minute", 30)
	v.SetDefault("rate_limit.burst", 10)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Worker pools
	v.SetDefault("worker.workflow_pool_size", 64)
	v.SetDefault("worker.background_pool_size", 4)
}
