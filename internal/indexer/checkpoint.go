package indexer

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"swapledger/internal/amount"
	"swapledger/internal/ledger"
	"swapledger/internal/model"
	"swapledger/internal/storage"
)

// flush persists the tier's touched rows and cursor in one checkpoint. On
// failure the collector keeps its items for the next attempt.
func (c *Coordinator) flush(ctx context.Context, t Tier) error {
	ts := c.tiers[t]
	cp, err := c.buildCheckpoint(ctx, t)
	if err != nil {
		c.metrics.CheckpointFailures.WithLabelValues(t.String()).Inc()
		c.logger.Warn("build checkpoint", zap.String("tier", t.String()), zap.Error(err))
		return err
	}

	if err := c.store.SaveCheckpoint(ctx, cp); err != nil {
		c.metrics.CheckpointFailures.WithLabelValues(t.String()).Inc()
		c.logger.Warn("save checkpoint",
			zap.String("tier", t.String()),
			zap.Int64("cursor", cp.Status.Cursor),
			zap.Int("rows", cp.Rows()),
			zap.Error(err))
		return err
	}

	mode := "incremental"
	if cp.FullRewrite {
		mode = "full"
	}
	c.metrics.CheckpointFlushes.WithLabelValues(t.String(), mode).Inc()
	c.metrics.CheckpointRows.WithLabelValues(t.String()).Observe(float64(cp.Rows()))
	c.logger.Debug("checkpoint saved",
		zap.String("tier", t.String()),
		zap.String("mode", mode),
		zap.Int64("cursor", cp.Status.Cursor),
		zap.Int("rows", cp.Rows()))

	ts.collector.reset(ts.ledger.Cursor())
	ts.fullRewrite = false
	return nil
}

func (c *Coordinator) buildCheckpoint(ctx context.Context, t Tier) (*storage.Checkpoint, error) {
	ts := c.tiers[t]
	l := ts.ledger
	cp := &storage.Checkpoint{
		Tier:        t.String(),
		FullRewrite: ts.fullRewrite,
		Status: storage.TierStatus{
			Cursor:        l.Cursor(),
			Height:        l.Height(),
			CommitID:      l.LastCommitID(),
			ModuleAddress: l.ModuleAddress(),
		},
	}

	items := ts.collector.items
	if ts.fullRewrite {
		items = allItems(l, ts.collector.items)
	}
	fallback := storage.Annotation{Cursor: l.Cursor(), Height: l.Height()}

	for _, item := range sortedItems(items) {
		ann, ok := ts.collector.items[item]
		if !ok {
			ann = fallback
		}
		switch item.Kind {
		case ledger.TouchBalance:
			v := l.Balance(item.Class, item.Tick, item.Address)
			dec, err := c.resolveDecimals(ctx, item.Tick)
			if err != nil {
				return nil, fmt.Errorf("decimals of %s: %w", item.Tick, err)
			}
			cp.Balances = append(cp.Balances, storage.BalanceRow{
				Class:      string(item.Class),
				Tick:       item.Tick,
				Address:    item.Address,
				Amount:     amount.String(v),
				Display:    amount.Format(v, dec),
				Annotation: ann,
			})
		case ledger.TouchKLast:
			v, exists := l.KLast(item.Tick)
			if !exists {
				continue
			}
			cp.KLast = append(cp.KLast, storage.KLastRow{Pair: item.Tick, KLast: amount.String(v), Annotation: ann})
		case ledger.TouchSupply:
			cp.Supply = append(cp.Supply, storage.SupplyRow{
				Pair:       item.Tick,
				Supply:     amount.String(l.Supply(item.Tick)),
				Annotation: ann,
			})
		case ledger.TouchRewardPool:
			acc, exists := l.RewardPool(item.Tick)
			if !exists {
				continue
			}
			cp.RewardPools = append(cp.RewardPools, storage.RewardPoolRow{
				Pair:             item.Tick,
				AccPerShare:      amount.String(acc.AccPerShare),
				LastRewardHeight: acc.LastRewardHeight,
				TotalLocked:      amount.String(acc.TotalLocked),
				Annotation:       ann,
			})
		case ledger.TouchRewardUser:
			debt, exists := l.RewardUser(item.Tick, item.Address)
			if !exists {
				continue
			}
			cp.RewardUsers = append(cp.RewardUsers, storage.RewardUserRow{
				Pair:       item.Tick,
				Address:    item.Address,
				Amount:     amount.String(debt.Amount),
				RewardDebt: amount.String(debt.RewardDebt),
				Unclaimed:  amount.String(debt.Unclaimed),
				Annotation: ann,
			})
		}
	}
	return cp, nil
}

func (c *Coordinator) resolveDecimals(ctx context.Context, tick string) (uint8, error) {
	if c.decimals == nil {
		if ledger.IsLpTick(tick) {
			return ledger.LpDecimals, nil
		}
		return 0, nil
	}
	return c.decimals.Decimals(ctx, tick)
}

// allItems returns every item held by l plus the touched items, so a full
// rewrite also writes zeroed balances.
func allItems(l *ledger.Ledger, touched map[ledger.TouchedItem]storage.Annotation) map[ledger.TouchedItem]storage.Annotation {
	st := l.Dump()
	out := make(map[ledger.TouchedItem]storage.Annotation, len(touched)+len(st.Balances))
	for item, ann := range touched {
		out[item] = ann
	}
	for k := range st.Balances {
		out[ledger.TouchedItem{Kind: ledger.TouchBalance, Class: k.Class, Tick: k.Tick, Address: k.Address}] = storage.Annotation{}
	}
	for pair := range st.KLast {
		out[ledger.TouchedItem{Kind: ledger.TouchKLast, Tick: pair}] = storage.Annotation{}
	}
	for pair := range st.Supply {
		out[ledger.TouchedItem{Kind: ledger.TouchSupply, Tick: pair}] = storage.Annotation{}
	}
	for pair := range st.RewardPools {
		out[ledger.TouchedItem{Kind: ledger.TouchRewardPool, Tick: pair}] = storage.Annotation{}
	}
	for k := range st.RewardUsers {
		out[ledger.TouchedItem{Kind: ledger.TouchRewardUser, Tick: k.Pair, Address: k.Address}] = storage.Annotation{}
	}
	return out
}

func sortedItems(items map[ledger.TouchedItem]storage.Annotation) []ledger.TouchedItem {
	out := make([]ledger.TouchedItem, 0, len(items))
	for item := range items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Tick != b.Tick {
			return a.Tick < b.Tick
		}
		if a.Class != b.Class {
			return a.Class < b.Class
		}
		return a.Address < b.Address
	})
	return out
}

// checkpointState rebuilds a ledger state from a durable checkpoint. The
// deploy operation is not persisted and comes from the module's first event.
func checkpointState(cp *storage.Checkpoint, module *model.DeployOp, moduleAddr string) (*ledger.State, error) {
	st := ledger.NewState()
	st.Module = module
	st.ModuleAddress = moduleAddr
	if cp.Status.ModuleAddress != "" {
		st.ModuleAddress = cp.Status.ModuleAddress
	}
	st.LastCommitID = cp.Status.CommitID
	st.Cursor = cp.Status.Cursor
	st.Height = cp.Status.Height

	for _, r := range cp.Balances {
		v, err := amount.Parse(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("balance %s/%s/%s: %w", r.Class, r.Tick, r.Address, err)
		}
		if v.IsZero() {
			continue
		}
		st.Balances[ledger.BalanceKey{Class: ledger.AssetClass(r.Class), Tick: r.Tick, Address: r.Address}] = v
	}
	for _, r := range cp.KLast {
		v, err := amount.Parse(r.KLast)
		if err != nil {
			return nil, fmt.Errorf("klast %s: %w", r.Pair, err)
		}
		st.KLast[r.Pair] = v
	}
	for _, r := range cp.Supply {
		v, err := amount.Parse(r.Supply)
		if err != nil {
			return nil, fmt.Errorf("supply %s: %w", r.Pair, err)
		}
		st.Supply[r.Pair] = v
	}
	for _, r := range cp.RewardPools {
		acc, err := amount.Parse(r.AccPerShare)
		if err != nil {
			return nil, fmt.Errorf("reward pool %s: %w", r.Pair, err)
		}
		locked, err := amount.Parse(r.TotalLocked)
		if err != nil {
			return nil, fmt.Errorf("reward pool %s: %w", r.Pair, err)
		}
		st.RewardPools[r.Pair] = ledger.RewardAcc{AccPerShare: acc, LastRewardHeight: r.LastRewardHeight, TotalLocked: locked}
	}
	for _, r := range cp.RewardUsers {
		var debt ledger.RewardDebt
		var err error
		if debt.Amount, err = amount.Parse(r.Amount); err != nil {
			return nil, fmt.Errorf("reward user %s/%s: %w", r.Pair, r.Address, err)
		}
		if debt.RewardDebt, err = amount.Parse(r.RewardDebt); err != nil {
			return nil, fmt.Errorf("reward user %s/%s: %w", r.Pair, r.Address, err)
		}
		if debt.Unclaimed, err = amount.Parse(r.Unclaimed); err != nil {
			return nil, fmt.Errorf("reward user %s/%s: %w", r.Pair, r.Address, err)
		}
		st.RewardUsers[ledger.RewardUserKey{Pair: r.Pair, Address: r.Address}] = debt
	}
	return st, nil
}
