package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapledger/internal/chain"
	"swapledger/internal/config"
	"swapledger/internal/indexer"
	"swapledger/internal/ledger"
	"swapledger/internal/metrics"
	"swapledger/internal/notify"
	"swapledger/internal/storage"
	"swapledger/internal/storage/postgres"
)

func runService(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(cfg.SourceURL, cfg.ModuleID, cfg.RequestTimeout)
	if err != nil {
		return err
	}
	defer client.Close()

	var store indexer.CheckpointStore
	if cfg.PgDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		store = pg
	} else {
		store = storage.NewFileStore(cfg.CheckpointDir)
	}

	var notifier indexer.ResetNotifier
	if cfg.RedisAddr != "" {
		pub, err := notify.NewPublisher(ctx, cfg.RedisAddr, cfg.RedisChannel, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		notifier = pub
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var ledgerOpts []ledger.Option
	if rate, ok, err := cfg.FeeOverride(); err != nil {
		return err
	} else if ok {
		ledgerOpts = append(ledgerOpts, ledger.WithSwapFeeRate(rate))
	}

	coord, err := indexer.NewCoordinator(indexer.Config{
		InsertHeightNum:            cfg.InsertHeightNum,
		PageSize:                   cfg.EventPageSize,
		SnapshotCheckpointInterval: cfg.SnapshotCheckpointInterval,
		MaxRetries:                 cfg.MaxRetries,
		RetryBackoff:               cfg.RetryBackoff,
		LedgerOptions:              ledgerOpts,
	}, indexer.Dependencies{
		Source:   client,
		Store:    store,
		Decimals: chain.NewDecimalsCache(client),
		Notifier: notifier,
		Metrics:  metrics.New(reg),
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}

	svc := newService(coord, logger)

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: svc.routes(reg)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", zap.Error(err))
		}
	}()

	cl := cronLogger{log: logger.Sugar()}
	scheduler := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	scheduler.Schedule(cron.Every(cfg.TickInterval), cron.FuncJob(func() {
		svc.tick(ctx)
	}))
	scheduler.Start()

	logger.Info("swapledger start",
		zap.String("source", cfg.SourceURL),
		zap.String("module", cfg.ModuleID),
		zap.Uint32("insert_height_num", cfg.InsertHeightNum),
		zap.Int("event_page_size", cfg.EventPageSize),
		zap.Int64("snapshot_checkpoint_interval", cfg.SnapshotCheckpointInterval),
		zap.Duration("tick_interval", cfg.TickInterval),
		zap.Bool("postgres", cfg.PgDSN != ""),
		zap.Bool("redis", cfg.RedisAddr != ""),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	<-scheduler.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
