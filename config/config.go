// Package config loads the settings of the go-aggregate tool and examples.
//
// Values are layered, later sources winning: built-in defaults, an optional
// YAML file, an optional .env file and finally the process environment.
// Environment variables use the AGGREGATE_ prefix with dots replaced by
// underscores, so store.sqlite.path is read from AGGREGATE_STORE_SQLITE_PATH.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/asaidimu/go-aggregate/core/aggregation"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AGGREGATE"

// Config is the root configuration.
type Config struct {
	Name        string         `mapstructure:"name" validate:"required"`
	Environment string         `mapstructure:"environment" validate:"oneof=development staging production"`
	Log         LogConfig      `mapstructure:"log"`
	Store       StoreConfig    `mapstructure:"store"`
	Pipeline    PipelineConfig `mapstructure:"pipeline"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Driver string       `mapstructure:"driver" validate:"oneof=memory sqlite mongo"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	Path        string `mapstructure:"path"`
	TablePrefix string `mapstructure:"table_prefix" validate:"max=32"`
}

// MongoConfig configures the MongoDB backend.
type MongoConfig struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// PipelineConfig configures aggregation and map/reduce evaluation.
type PipelineConfig struct {
	Parallelism  int    `mapstructure:"parallelism" validate:"gte=0"`
	TypeMismatch string `mapstructure:"type_mismatch" validate:"oneof=fail null"`
}

// Policy returns the aggregation policy named by TypeMismatch.
func (p PipelineConfig) Policy() aggregation.TypeMismatchPolicy {
	if p.TypeMismatch == "null" {
		return aggregation.TypeMismatchNull
	}
	return aggregation.TypeMismatchFail
}

var defaults = map[string]any{
	"name":                      "go-aggregate",
	"environment":               "development",
	"log.level":                 "info",
	"log.format":                "console",
	"store.driver":              "memory",
	"store.sqlite.path":         "aggregate.db",
	"store.sqlite.table_prefix": "coll_",
	"store.mongo.uri":           "",
	"store.mongo.database":      "aggregate",
	"store.mongo.timeout":       "10s",
	"pipeline.parallelism":      0,
	"pipeline.type_mismatch":    "fail",
}

type loaderConfig struct {
	configFile string
	envFile    string
}

// Option customises Load.
type Option func(*loaderConfig)

// WithConfigFile reads a YAML file on top of the defaults.
func WithConfigFile(path string) Option {
	return func(lc *loaderConfig) { lc.configFile = path }
}

// WithEnvFile loads a .env file into the environment before it is read.
// Variables already set in the environment are not overridden.
func WithEnvFile(path string) Option {
	return func(lc *loaderConfig) { lc.envFile = path }
}

// Load builds and validates the configuration.
func Load(opts ...Option) (*Config, error) {
	var lc loaderConfig
	for _, opt := range opts {
		opt(&lc)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if lc.configFile != "" {
		v.SetConfigFile(lc.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", lc.configFile, err)
		}
	}

	if lc.envFile != "" {
		if err := godotenv.Load(lc.envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", lc.envFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the settings the selected store
// driver needs.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("invalid config: store.sqlite.path is required for the sqlite driver")
		}
	case "mongo":
		if c.Store.Mongo.URI == "" || c.Store.Mongo.Database == "" {
			return fmt.Errorf("invalid config: store.mongo.uri and store.mongo.database are required for the mongo driver")
		}
	}
	return nil
}
