package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapledger/internal/amount"
	"swapledger/internal/config"
	"swapledger/internal/ledger"
	"swapledger/internal/model"
	"swapledger/internal/storage"
)

type replayBalance struct {
	Class   string `json:"class"`
	Tick    string `json:"tick"`
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type replayPool struct {
	Pair     string `json:"pair"`
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`
	LpSupply string `json:"lp_supply"`
	KLast    string `json:"k_last"`
}

type replayReport struct {
	Cursor       int64           `json:"cursor"`
	Height       uint32          `json:"height"`
	LastCommitID string          `json:"last_commit_id"`
	Applied      int             `json:"applied"`
	Rejected     int             `json:"rejected"`
	Balances     []replayBalance `json:"balances"`
	Pools        []replayPool    `json:"pools"`
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var opts []ledger.Option
	if cfg.SwapFeeRate != "" {
		rate, err := amount.ParseFeeRate(cfg.SwapFeeRate)
		if err != nil {
			return fmt.Errorf("swap-fee-rate: %w", err)
		}
		opts = append(opts, ledger.WithSwapFeeRate(rate))
	}

	events, err := storage.ReadEvents(cfg.In)
	if err != nil {
		return err
	}

	report, err := replayEvents(events, logger, opts...)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if cfg.Out == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	if err := os.WriteFile(cfg.Out, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logger.Info("replay complete",
		zap.Int("events", len(events)),
		zap.Int("applied", report.Applied),
		zap.Int("rejected", report.Rejected),
		zap.String("out", cfg.Out))
	return nil
}

func replayEvents(events []*model.OpEvent, logger *zap.Logger, opts ...ledger.Option) (*replayReport, error) {
	l := ledger.New(opts...)
	report := &replayReport{}
	for _, ev := range events {
		_, err := l.Apply(ev, nil)
		switch {
		case err == nil:
			report.Applied++
		case ledger.IsFatal(err):
			return nil, fmt.Errorf("replay halted at cursor %d: %w", ev.Cursor, err)
		default:
			report.Rejected++
			logger.Debug("event rejected", zap.Uint64("cursor", ev.Cursor), zap.Error(err))
		}
	}

	st := l.Dump()
	report.Cursor = st.Cursor
	report.Height = st.Height
	report.LastCommitID = st.LastCommitID
	for k, v := range st.Balances {
		report.Balances = append(report.Balances, replayBalance{
			Class:   string(k.Class),
			Tick:    k.Tick,
			Address: k.Address,
			Amount:  amount.String(v),
		})
	}
	sort.Slice(report.Balances, func(i, j int) bool {
		a, b := report.Balances[i], report.Balances[j]
		if a.Tick != b.Tick {
			return a.Tick < b.Tick
		}
		if a.Class != b.Class {
			return a.Class < b.Class
		}
		return a.Address < b.Address
	})
	for pair, k := range st.KLast {
		ps, _ := l.PoolState(pair)
		report.Pools = append(report.Pools, replayPool{
			Pair:     pair,
			Reserve0: ps.Reserve0,
			Reserve1: ps.Reserve1,
			LpSupply: ps.LpSupply,
			KLast:    amount.String(k),
		})
	}
	sort.Slice(report.Pools, func(i, j int) bool { return report.Pools[i].Pair < report.Pools[j].Pair })
	return report, nil
}
