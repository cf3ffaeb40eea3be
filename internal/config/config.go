package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"licman/internal/security"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	License LicenseConfig `yaml:"license" envconfig:"LICENSE"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
}

// ServerConfig contains the embedded HTTP API configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// LicenseConfig contains the license engine configuration
type LicenseConfig struct {
	// ServerURL is the pull endpoint template. {{key}} and {{instance}}
	// are substituted literally before the request is made.
	ServerURL string `yaml:"server_url" envconfig:"SERVER_URL"`
	// Key is the environment-configured license key; persisted to the KV
	// store on first use so later pulls work without it.
	Key string `yaml:"key" envconfig:"KEY"`
	// Instance identifies this installation for instance-pinned licenses.
	Instance string `yaml:"instance" envconfig:"INSTANCE"`
	// Host is the domain this installation serves, checked against the
	// license domain allow-list.
	Host string `yaml:"host" envconfig:"HOST"`

	HTTPTimeout      time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT" validate:"gt=0"`
	PullInterval     time.Duration `yaml:"pull_interval" envconfig:"PULL_INTERVAL" validate:"gt=0"`
	ResponseCacheTTL time.Duration `yaml:"response_cache_ttl" envconfig:"RESPONSE_CACHE_TTL" validate:"gt=0"`
	GraceLimit       int           `yaml:"grace_limit" envconfig:"GRACE_LIMIT" validate:"gt=0"`
	OCSPGraceLimit   int           `yaml:"ocsp_grace_limit" envconfig:"OCSP_GRACE_LIMIT" validate:"gt=0"`

	// RateRPS/RateBurst bound outbound license-server calls.
	RateRPS   float64 `yaml:"rate_rps" envconfig:"RATE_RPS"`
	RateBurst int     `yaml:"rate_burst" envconfig:"RATE_BURST"`

	// StorePath is where the file-backed KV collaborator persists state.
	StorePath string `yaml:"store_path" envconfig:"STORE_PATH"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// Load loads configuration from environment variables and an optional
// YAML config file. Environment variables take precedence.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom loads configuration using the given config file path.
func LoadFrom(configFile string) (*Config, error) {
	var cfg Config

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileCfg, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg = *fileCfg
		}
	}

	// Environment overrides file values; envconfig fills defaults for
	// anything still zero.
	if err := envconfig.Process("LICMAN", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills zero values that envconfig leaves untouched when a
// config file provided a partial struct.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.License.Instance == "" {
		cfg.License.Instance = security.InstanceFingerprint()
	}
	if cfg.License.HTTPTimeout == 0 {
		cfg.License.HTTPTimeout = 15 * time.Second
	}
	if cfg.License.PullInterval == 0 {
		cfg.License.PullInterval = 15 * time.Minute
	}
	if cfg.License.ResponseCacheTTL == 0 {
		cfg.License.ResponseCacheTTL = 30 * time.Minute
	}
	if cfg.License.GraceLimit == 0 {
		cfg.License.GraceLimit = 10
	}
	if cfg.License.OCSPGraceLimit == 0 {
		cfg.License.OCSPGraceLimit = 3
	}
	if cfg.License.RateRPS == 0 {
		cfg.License.RateRPS = 1
	}
	if cfg.License.RateBurst == 0 {
		cfg.License.RateBurst = 3
	}
	if cfg.License.StorePath == "" {
		cfg.License.StorePath = "licman.json"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "console"
	}
	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = "logs/licman.log"
	}
}

// validate checks configuration invariants
func (c *Config) validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}

// getConfigFilePath returns the config file location, honoring the
// LICMAN_CONFIG_FILE override.
func getConfigFilePath() string {
	if path := os.Getenv("LICMAN_CONFIG_FILE"); path != "" {
		return path
	}
	return "licman.yaml"
}
