package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/telemetrykit/lokibuf/internal/logging"
	"github.com/telemetrykit/lokibuf/internal/logging/retrypolicy"
)

type Config struct {
	Endpoint    string `mapstructure:"endpoint"`
	App         string `mapstructure:"app"`
	Environment string `mapstructure:"environment"`

	BatchSize            int `mapstructure:"batch_size"`
	FlushIntervalSeconds int `mapstructure:"flush_interval_seconds"`
	MaxBufferSize        int `mapstructure:"max_buffer_size"`

	ExtraLabels map[string]string `mapstructure:"extra_labels"`
	Compression bool              `mapstructure:"compression"`

	Auth        AuthConfig    `mapstructure:"auth"`
	Persistence PersistConfig `mapstructure:"persistence"`
	Retry       RetryConfig   `mapstructure:"retry"`

	// MaxRetries is the legacy scalar retry knob. It is collapsed into the
	// structured retry block at load time and never read afterwards.
	MaxRetries int `mapstructure:"max_retries"`

	Tail TailConfig `mapstructure:"tail"`
}

type AuthConfig struct {
	// Method is one of none, basic, bearer, custom.
	Method   string            `mapstructure:"method"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Token    string            `mapstructure:"token"`
	Headers  map[string]string `mapstructure:"headers"`
}

type PersistConfig struct {
	// Backend is one of none, file, sqlite.
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type RetryConfig struct {
	MaxRetries   int     `mapstructure:"max_retries"`
	BaseDelayMS  int     `mapstructure:"base_delay_ms"`
	MaxDelayMS   int     `mapstructure:"max_delay_ms"`
	JitterFactor float64 `mapstructure:"jitter_factor"`
}

type TailConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	LogRootPath         string `mapstructure:"log_root_path"`
	ScanIntervalSeconds int    `mapstructure:"scan_interval_seconds"`
	Workers             int    `mapstructure:"workers"`
	QueueSize           int    `mapstructure:"queue_size"`
	DefaultLevel        string `mapstructure:"default_level"`
	IdleTimeoutSeconds  int    `mapstructure:"idle_timeout_seconds"`
}

const defaultMaxRetries = 3

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("lokibuf")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// Legacy collapse: an old-style top-level max_retries wins only when
	// the structured block does not set its own value. No viper default is
	// registered for retry.max_retries, because IsSet treats defaults as
	// set values.
	if !v.IsSet("retry.max_retries") {
		if v.IsSet("max_retries") {
			cfg.Retry.MaxRetries = cfg.MaxRetries
		} else {
			cfg.Retry.MaxRetries = defaultMaxRetries
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app", "app")
	v.SetDefault("environment", "production")
	v.SetDefault("batch_size", 100)
	v.SetDefault("flush_interval_seconds", 5)
	v.SetDefault("max_buffer_size", 10000)
	v.SetDefault("compression", false)
	v.SetDefault("auth.method", "none")
	v.SetDefault("persistence.backend", "none")
	v.SetDefault("retry.base_delay_ms", 500)
	v.SetDefault("retry.max_delay_ms", 30000)
	v.SetDefault("retry.jitter_factor", 0.2)
	v.SetDefault("tail.enabled", false)
	v.SetDefault("tail.scan_interval_seconds", 30)
	v.SetDefault("tail.workers", 4)
	v.SetDefault("tail.queue_size", 50)
	v.SetDefault("tail.default_level", "info")
	v.SetDefault("tail.idle_timeout_seconds", 300)
}

func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", c.BatchSize)
	}
	if c.FlushIntervalSeconds <= 0 {
		return fmt.Errorf("flush_interval_seconds must be positive, got %d", c.FlushIntervalSeconds)
	}
	if c.MaxBufferSize < c.BatchSize {
		return fmt.Errorf("max_buffer_size %d must be at least batch_size %d", c.MaxBufferSize, c.BatchSize)
	}
	switch c.Auth.Method {
	case "none", "basic", "bearer", "custom":
	default:
		return fmt.Errorf("unknown auth method %q", c.Auth.Method)
	}
	switch c.Persistence.Backend {
	case "none", "file", "sqlite":
	default:
		return fmt.Errorf("unknown persistence backend %q", c.Persistence.Backend)
	}
	if c.Persistence.Backend != "none" && c.Persistence.Path == "" {
		return fmt.Errorf("persistence.path is required for backend %q", c.Persistence.Backend)
	}
	if c.Tail.Enabled {
		if c.Tail.LogRootPath == "" {
			return fmt.Errorf("tail.log_root_path is required when tailing is enabled")
		}
		if _, err := logging.ParseLevel(c.Tail.DefaultLevel); err != nil {
			return fmt.Errorf("tail.default_level: %w", err)
		}
	}
	return nil
}

func (c Config) authMethod() logging.AuthMethod {
	switch c.Auth.Method {
	case "basic":
		return logging.AuthBasic(c.Auth.Username, c.Auth.Password)
	case "bearer":
		return logging.AuthBearer(c.Auth.Token)
	case "custom":
		return logging.AuthCustom(c.Auth.Headers)
	default:
		return logging.AuthNone()
	}
}

// EngineConfig assembles the engine's immutable configuration. The store and
// device provider are built by the caller because their lifecycles outlive
// this value.
func (c Config) EngineConfig(store logging.Store, device logging.DeviceInfoProvider) logging.Config {
	return logging.Config{
		Endpoint:           c.Endpoint,
		App:                c.App,
		Environment:        c.Environment,
		BatchSize:          c.BatchSize,
		FlushInterval:      time.Duration(c.FlushIntervalSeconds) * time.Second,
		MaxBufferSize:      c.MaxBufferSize,
		ExtraLabels:        c.ExtraLabels,
		Auth:               c.authMethod(),
		CompressionEnabled: c.Compression,
		DeviceInfo:         device,
		Persistence:        store,
		Retry: retrypolicy.New(
			c.Retry.MaxRetries,
			time.Duration(c.Retry.BaseDelayMS)*time.Millisecond,
			time.Duration(c.Retry.MaxDelayMS)*time.Millisecond,
			c.Retry.JitterFactor,
		),
	}
}
