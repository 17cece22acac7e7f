package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "swapledger",
		Short:        "Swap module ledger replay service",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Replay module events into the snapshot, confirmed and mempool ledgers",
		RunE:  runService,
	}

	runCmd.Flags().String("source-url", "", "event source base URL")
	runCmd.Flags().String("module-id", "", "swap module id")
	runCmd.Flags().Duration("request-timeout", 10*time.Second, "event source request timeout")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for checkpoints (file store when empty)")
	runCmd.Flags().String("checkpoint-dir", "./data/checkpoints", "checkpoint directory for the file store")
	runCmd.Flags().String("redis-addr", "", "Redis address for reset notifications")
	runCmd.Flags().String("redis-channel", "", "Redis channel for reset notifications")
	runCmd.Flags().Uint32("insert-height-num", 6, "confirmations required before an event enters the snapshot tier")
	runCmd.Flags().Int("event-page-size", 500, "events per source request")
	runCmd.Flags().Int64("snapshot-checkpoint-interval", 1000, "events between snapshot checkpoints")
	runCmd.Flags().String("swap-fee-rate", "", "override the deployed swap fee rate (e.g. 0.003)")
	runCmd.Flags().Duration("tick-interval", 5*time.Second, "interval between ticks")
	runCmd.Flags().String("metrics-addr", ":9090", "address for /metrics, /healthz and /status")
	runCmd.Flags().Int("max-retries", 3, "maximum retry attempts per source request")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay an exported event file into a ledger and print its state",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input events JSONL")
	replayCmd.Flags().String("out", "", "output state JSON (stdout when empty)")
	replayCmd.Flags().String("swap-fee-rate", "", "override the deployed swap fee rate")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export a cursor range of module events and print its content hash",
		RunE:  runExport,
	}

	exportCmd.Flags().String("source-url", "", "event source base URL")
	exportCmd.Flags().String("module-id", "", "swap module id")
	exportCmd.Flags().Duration("request-timeout", 10*time.Second, "event source request timeout")
	exportCmd.Flags().Uint64("from", 0, "first cursor")
	exportCmd.Flags().Int64("count", 0, "number of cursors")
	exportCmd.Flags().Int("page-size", 500, "events per source request")
	exportCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	exportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(exportCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
