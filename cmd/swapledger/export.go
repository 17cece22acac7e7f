package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapledger/internal/chain"
	"swapledger/internal/config"
	"swapledger/internal/indexer"
	"swapledger/internal/storage"
)

func runExport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadExport(cfgFile, cmd.Flags())
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

	sink := storage.NewJsonlStorage(cfg.Out)
	hash, written, err := exportEvents(ctx, client, sink, cfg.From, cfg.Count, cfg.PageSize)
	if err != nil {
		return err
	}

	logger.Info("export complete",
		zap.Uint64("from", cfg.From),
		zap.Int64("count", cfg.Count),
		zap.Int("events", written),
		zap.String("out", cfg.Out),
		zap.String("content_hash", hash.Hex()))
	_, err = fmt.Fprintln(cmd.OutOrStdout(), hash.Hex())
	return err
}

// teeSource writes every page it serves to a sink.
type teeSource struct {
	indexer.EventSource
	sink    *storage.JsonlStorage
	written int
}

func (s *teeSource) FetchEvents(ctx context.Context, cursor uint64, size int) (*chain.EventPage, error) {
	page, err := s.EventSource.FetchEvents(ctx, cursor, size)
	if err != nil {
		return nil, err
	}
	if err := s.sink.PutEventBatch(page.Events); err != nil {
		return nil, fmt.Errorf("store events: %w", err)
	}
	s.written += len(page.Events)
	return page, nil
}

// exportEvents writes count events from cursor from to sink and returns the
// content hash of the range.
func exportEvents(ctx context.Context, source indexer.EventSource, sink *storage.JsonlStorage, from uint64, count int64, pageSize int) (common.Hash, int, error) {
	tee := &teeSource{EventSource: source, sink: sink}
	hash, err := indexer.ContentHash(ctx, tee, from, count, pageSize)
	if err != nil {
		return common.Hash{}, tee.written, err
	}
	return hash, tee.written, nil
}
