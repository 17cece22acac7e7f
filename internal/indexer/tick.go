package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"swapledger/internal/chain"
)

// resetFrom rebuilds every tier downstream of src from a clone of src's
// ledger. The rebuilt tiers rewrite their durable rows on the next flush.
func (c *Coordinator) resetFrom(src Tier, kind ResetKind) ResetEvent {
	source := c.tiers[src].ledger
	for t := src + 1; t <= Mempool; t++ {
		c.tiers[t] = &tierState{
			ledger:      source.Clone(),
			collector:   newCollector(source.Cursor()),
			fullRewrite: true,
		}
	}
	if src == Snapshot {
		c.hashSC, c.prevSizeReorg, c.dirtySC = EmptyHash, 0, false
	}
	c.hashCM, c.prevSizeDiscord, c.dirtyCM = EmptyHash, 0, false

	c.metrics.Resets.WithLabelValues(string(kind)).Inc()
	c.observeTiers()
	c.logger.Info("tiers reset",
		zap.String("kind", string(kind)),
		zap.String("source", src.String()),
		zap.Int64("cursor", source.Cursor()),
		zap.Uint32("height", source.Height()))

	return ResetEvent{
		Kind:   kind,
		Source: src.String(),
		Cursor: source.Cursor(),
		Height: source.Height(),
		At:     time.Now().UTC(),
	}
}

// advance runs a phase of moves for set starting after from's cursor until
// the phase reports no further page.
func (c *Coordinator) advance(ctx context.Context, set tierSet, from Tier) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, err := c.move(ctx, set, uint64(c.tiers[from].ledger.Cursor()+1))
		if err != nil {
			return err
		}
		if !next {
			return nil
		}
	}
}

func (c *Coordinator) updateAll(ctx context.Context) error {
	var best uint32
	err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		best, err = c.source.BestHeight(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("best height: %w", err)
	}
	c.bestHeight = best
	c.metrics.BestHeight.Set(float64(best))

	var resets []ResetEvent
	if c.forceReset {
		resets = append(resets, c.resetFrom(Snapshot, ResetForced))
	} else {
		if best != c.lastHandledBestHeight {
			reorg, err := c.hasReorg(ctx)
			if err != nil {
				return fmt.Errorf("reorg check: %w", err)
			}
			if reorg {
				resets = append(resets, c.resetFrom(Snapshot, ResetReorg))
			}
		}
		discord, err := c.hasUnconfirmedDiscord(ctx)
		if err != nil {
			return fmt.Errorf("discord check: %w", err)
		}
		if discord {
			resets = append(resets, c.resetFrom(Confirmed, ResetDiscord))
		}
	}
	c.lastHandledBestHeight = best

	if err := c.advance(ctx, tiersOf(Snapshot, Confirmed, Mempool), Snapshot); err != nil {
		return err
	}
	if err := c.advance(ctx, tiersOf(Confirmed, Mempool), Confirmed); err != nil {
		return err
	}
	if err := c.advance(ctx, tiersOf(Mempool), Mempool); err != nil {
		return err
	}

	for _, t := range allTiers {
		if c.tiers[t].fullRewrite {
			_ = c.flush(ctx, t)
		}
	}

	if err := c.refreshHashes(ctx); err != nil {
		return fmt.Errorf("refresh window hashes: %w", err)
	}

	if len(resets) > 0 && c.notifier != nil {
		c.notifier.NotifyReset(ctx, resets[len(resets)-1])
	}
	return nil
}

// Tick runs one update of all tiers. It never returns an error: failures
// are logged and recorded in the retry state, and fatal errors halt every
// later tick until ClearFatal.
func (c *Coordinator) Tick(ctx context.Context) {
	if c.fatal != nil {
		return
	}
	start := time.Now()
	defer func() {
		c.metrics.TickDuration.Observe(time.Since(start).Seconds())
		c.metrics.RetryCount.Set(float64(c.retryCount))
	}()

	err := c.safeUpdateAll(ctx)
	c.lastErr = err
	switch {
	case err == nil:
		c.forceReset = false
		c.retryCount = 0
	case IsFatal(err):
		c.fatal = err
		c.metrics.Fatal.Set(1)
		c.metrics.TickErrors.WithLabelValues("fatal").Inc()
		c.logger.Error("ledger advancement halted", zap.Error(err))
	case chain.IsFetchError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		c.metrics.TickErrors.WithLabelValues("fetch").Inc()
		c.logger.Warn("tick aborted", zap.Error(err))
	default:
		c.forceReset = true
		c.retryCount++
		c.metrics.TickErrors.WithLabelValues("other").Inc()
		c.logger.Error("tick failed",
			zap.Int("retry_count", c.retryCount),
			zap.Error(err))
	}
}

func (c *Coordinator) safeUpdateAll(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in tick: %v", r)
		}
	}()
	return c.updateAll(ctx)
}
