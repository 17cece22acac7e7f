package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ExportConfig holds configuration for the export command.
type ExportConfig struct {
	SourceURL      string        `validate:"required,url"`
	ModuleID       string        `validate:"required"`
	RequestTimeout time.Duration `validate:"gt=0"`
	From           uint64
	Count          int64  `validate:"min=1"`
	PageSize       int    `validate:"min=1,max=10000"`
	Out            string `validate:"required"`
	LogLevel       string `validate:"oneof=debug info warn error"`
}

// LoadExport merges config file, environment variables, and flags into ExportConfig.
func LoadExport(cfgFile string, flags *pflag.FlagSet) (ExportConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"request-timeout": 10 * time.Second,
		"page-size":       500,
		"out":             "./data/events.jsonl",
		"log-level":       "info",
	})
	if err != nil {
		return ExportConfig{}, err
	}

	cfg := ExportConfig{
		SourceURL:      v.GetString("source-url"),
		ModuleID:       v.GetString("module-id"),
		RequestTimeout: v.GetDuration("request-timeout"),
		From:           v.GetUint64("from"),
		Count:          v.GetInt64("count"),
		PageSize:       v.GetInt("page-size"),
		Out:            v.GetString("out"),
		LogLevel:       v.GetString("log-level"),
	}
	if err := validate(cfg); err != nil {
		return ExportConfig{}, err
	}
	return cfg, nil
}

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	In          string `validate:"required"`
	Out         string
	SwapFeeRate string
	LogLevel    string `validate:"oneof=debug info warn error"`
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"log-level": "info",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	cfg := ReplayConfig{
		In:          v.GetString("in"),
		Out:         v.GetString("out"),
		SwapFeeRate: v.GetString("swap-fee-rate"),
		LogLevel:    v.GetString("log-level"),
	}
	if err := validate(cfg); err != nil {
		return ReplayConfig{}, err
	}
	return cfg, nil
}
