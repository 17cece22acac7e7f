package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"swapledger/internal/amount"
)

const envPrefix = "SWAPLEDGER"

// Config holds the settings of the run command.
type Config struct {
	SourceURL      string        `validate:"required,url"`
	ModuleID       string        `validate:"required"`
	RequestTimeout time.Duration `validate:"gt=0"`

	PgDSN         string
	CheckpointDir string `validate:"required_without=PgDSN"`
	RedisAddr     string `validate:"omitempty,hostname_port"`
	RedisChannel  string

	InsertHeightNum            uint32
	EventPageSize              int   `validate:"min=1,max=10000"`
	SnapshotCheckpointInterval int64 `validate:"min=1"`
	SwapFeeRate                string

	TickInterval time.Duration `validate:"gt=0"`
	MetricsAddr  string
	MaxRetries   int           `validate:"min=0"`
	RetryBackoff time.Duration `validate:"gte=0"`
	LogLevel     string        `validate:"oneof=debug info warn error"`
}

// FeeOverride returns the configured swap fee in thousandths, if any.
func (c Config) FeeOverride() (uint64, bool, error) {
	if c.SwapFeeRate == "" {
		return 0, false, nil
	}
	rate, err := amount.ParseFeeRate(c.SwapFeeRate)
	if err != nil {
		return 0, false, err
	}
	return rate, true, nil
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"request-timeout":              10 * time.Second,
		"checkpoint-dir":               "./data/checkpoints",
		"insert-height-num":            uint32(6),
		"event-page-size":              500,
		"snapshot-checkpoint-interval": int64(1000),
		"tick-interval":                5 * time.Second,
		"metrics-addr":                 ":9090",
		"max-retries":                  3,
		"retry-backoff":                500 * time.Millisecond,
		"log-level":                    "info",
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		SourceURL:                  v.GetString("source-url"),
		ModuleID:                   v.GetString("module-id"),
		RequestTimeout:             v.GetDuration("request-timeout"),
		PgDSN:                      v.GetString("pg-dsn"),
		CheckpointDir:              v.GetString("checkpoint-dir"),
		RedisAddr:                  v.GetString("redis-addr"),
		RedisChannel:               v.GetString("redis-channel"),
		InsertHeightNum:            v.GetUint32("insert-height-num"),
		EventPageSize:              v.GetInt("event-page-size"),
		SnapshotCheckpointInterval: v.GetInt64("snapshot-checkpoint-interval"),
		SwapFeeRate:                v.GetString("swap-fee-rate"),
		TickInterval:               v.GetDuration("tick-interval"),
		MetricsAddr:                v.GetString("metrics-addr"),
		MaxRetries:                 v.GetInt("max-retries"),
		RetryBackoff:               v.GetDuration("retry-backoff"),
		LogLevel:                   v.GetString("log-level"),
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	if _, _, err := cfg.FeeOverride(); err != nil {
		return Config{}, fmt.Errorf("swap-fee-rate: %w", err)
	}
	return cfg, nil
}

var structValidator = validator.New()

func validate(cfg interface{}) error {
	if err := structValidator.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}
