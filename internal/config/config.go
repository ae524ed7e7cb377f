package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Dataset   DatasetConfig   `yaml:"dataset" mapstructure:"dataset"`
	Model     ModelConfig     `yaml:"model" mapstructure:"model"`
	Optimizer OptimizerConfig `yaml:"optimizer" mapstructure:"optimizer"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DatasetConfig locates the reference dataset.
type DatasetConfig struct {
	Path   string `yaml:"path" mapstructure:"path"`
	Format string `yaml:"format" mapstructure:"format"`
	Table  string `yaml:"table" mapstructure:"table"`
	Sheet  string `yaml:"sheet" mapstructure:"sheet"`
}

// ModelConfig configures estimator training.
type ModelConfig struct {
	Trees           int     `yaml:"trees" mapstructure:"trees"`
	Seed            uint64  `yaml:"seed" mapstructure:"seed"`
	TestFraction    float64 `yaml:"test_fraction" mapstructure:"test_fraction"`
	MinSamplesSplit int     `yaml:"min_samples_split" mapstructure:"min_samples_split"`
	MaxFeatures     int     `yaml:"max_features" mapstructure:"max_features"`
	Workers         int     `yaml:"workers" mapstructure:"workers"`
}

// OptimizerConfig configures the price search.
type OptimizerConfig struct {
	GridPoints     int    `yaml:"grid_points" mapstructure:"grid_points"`
	NegativeDemand string `yaml:"negative_demand" mapstructure:"negative_demand"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	RateLimitRPS       float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst     int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// RequestTimeout returns the per-request deadline.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSecs) * time.Second
}

// StoreConfig configures the evaluation history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// ConnectAttempts and ConnectBackoffMs bound retries when the store or a
	// database-backed dataset is unreachable.
	ConnectAttempts  int `yaml:"connect_attempts" mapstructure:"connect_attempts"`
	ConnectBackoffMs int `yaml:"connect_backoff_ms" mapstructure:"connect_backoff_ms"`
	// MaxConns and MinConns size the postgres pool. Zero keeps the pool defaults.
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// MetricsConfig configures OTLP metric export.
type MetricsConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint     string `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure     bool   `yaml:"insecure" mapstructure:"insecure"`
	IntervalSecs int    `yaml:"interval_secs" mapstructure:"interval_secs"`
}

// CatalogConfig points at an optional product catalog file.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// BatchConfig configures batch scenario evaluation.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml (optional) and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path, which must exist, then applies
// environment overrides. An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("PRICER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dataset.path", "extended_retail_data.csv")
	v.SetDefault("dataset.format", "")
	v.SetDefault("dataset.table", "observations")
	v.SetDefault("dataset.sheet", "")
	v.SetDefault("model.trees", 50)
	v.SetDefault("model.seed", 42)
	v.SetDefault("model.test_fraction", 0.2)
	v.SetDefault("model.min_samples_split", 2)
	v.SetDefault("model.max_features", 0)
	v.SetDefault("model.workers", 4)
	v.SetDefault("optimizer.grid_points", 50)
	v.SetDefault("optimizer.negative_demand", "keep")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.request_timeout_secs", 30)
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pricer.db")
	v.SetDefault("store.connect_attempts", 3)
	v.SetDefault("store.connect_backoff_ms", 500)
	v.SetDefault("store.max_conns", 0)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.endpoint", "")
	v.SetDefault("metrics.insecure", false)
	v.SetDefault("metrics.interval_secs", 60)
	v.SetDefault("catalog.path", "")
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on and reports every
// problem at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	needModel := func() {
		if c.Dataset.Path == "" {
			errs = append(errs, "dataset.path is required")
		}
		switch strings.ToLower(c.Dataset.Format) {
		case "", "csv", "xlsx", "sqlite", "postgres":
		default:
			errs = append(errs, fmt.Sprintf("dataset.format %q is not one of csv, xlsx, sqlite, postgres", c.Dataset.Format))
		}
		if c.Model.Trees < 1 {
			errs = append(errs, "model.trees must be >= 1")
		}
		if c.Model.TestFraction < 0 || c.Model.TestFraction >= 1 {
			errs = append(errs, "model.test_fraction must be in [0, 1)")
		}
		if c.Model.MinSamplesSplit < 2 {
			errs = append(errs, "model.min_samples_split must be >= 2")
		}
		if c.Model.MaxFeatures < 0 {
			errs = append(errs, "model.max_features must be >= 0")
		}
		if c.Model.Workers < 1 {
			errs = append(errs, "model.workers must be >= 1")
		}
	}
	needOptimizer := func() {
		if c.Optimizer.GridPoints < 2 {
			errs = append(errs, "optimizer.grid_points must be >= 2")
		}
		switch strings.ToLower(strings.TrimSpace(c.Optimizer.NegativeDemand)) {
		case "", "keep", "clamp":
		default:
			errs = append(errs, fmt.Sprintf("optimizer.negative_demand %q is not one of keep, clamp", c.Optimizer.NegativeDemand))
		}
	}
	needStore := func(required bool) {
		switch c.Store.Driver {
		case "sqlite", "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required")
			}
		case "", "none":
			if required {
				errs = append(errs, "store.driver must be sqlite or postgres")
			}
		default:
			errs = append(errs, fmt.Sprintf("store.driver %q is not one of sqlite, postgres, none", c.Store.Driver))
		}
		if c.Store.MaxConns < 0 || c.Store.MinConns < 0 {
			errs = append(errs, "store.max_conns and store.min_conns must be >= 0")
		} else if c.Store.MaxConns > 0 && c.Store.MinConns > c.Store.MaxConns {
			errs = append(errs, "store.min_conns must not exceed store.max_conns")
		}
	}

	switch mode {
	case "serve":
		needModel()
		needOptimizer()
		needStore(false)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RequestTimeoutSecs <= 0 {
			errs = append(errs, "server.request_timeout_secs must be > 0")
		}
		if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
			errs = append(errs, "server.rate_limit_rps and server.rate_limit_burst must be >= 0")
		}
		if c.Metrics.Enabled && c.Metrics.Endpoint == "" {
			errs = append(errs, "metrics.endpoint is required when metrics are enabled")
		}
	case "train":
		needModel()
	case "optimize", "bands":
		needModel()
		needOptimizer()
	case "batch":
		needModel()
		needOptimizer()
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 256 {
			errs = append(errs, "batch.concurrency must be between 1 and 256")
		}
	case "history":
		needStore(true)
	case "import":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
