package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapledger/internal/chain"
	"swapledger/internal/ledger"
	"swapledger/internal/metrics"
	"swapledger/internal/model"
	"swapledger/internal/storage"
)

// EventSource is the paginated, replayable module event feed.
type EventSource interface {
	FetchEvents(ctx context.Context, cursor uint64, size int) (*chain.EventPage, error)
	BestHeight(ctx context.Context) (uint32, error)
}

// DecimalsResolver returns the display decimals of a tick.
type DecimalsResolver interface {
	Decimals(ctx context.Context, tick string) (uint8, error)
}

// CheckpointStore persists tier checkpoints atomically.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, cp *storage.Checkpoint) error
	LoadCheckpoint(ctx context.Context, tier string) (*storage.Checkpoint, error)
}

// ResetKind names the cause of a tier rebuild.
type ResetKind string

const (
	ResetForced  ResetKind = "forced"
	ResetReorg   ResetKind = "reorg"
	ResetDiscord ResetKind = "discord"
)

// ResetEvent tells the pending-state consumer that tiers were rebuilt and
// its view must be reloaded from the mempool tier.
type ResetEvent struct {
	Kind   ResetKind `json:"kind"`
	Source string    `json:"source"`
	Cursor int64     `json:"cursor"`
	Height uint32    `json:"height"`
	At     time.Time `json:"at"`
}

// ResetNotifier receives reset events. Delivery is best effort.
type ResetNotifier interface {
	NotifyReset(ctx context.Context, ev ResetEvent)
}

// Config holds the coordinator settings.
type Config struct {
	InsertHeightNum            uint32
	PageSize                   int
	SnapshotCheckpointInterval int64
	MaxRetries                 int
	RetryBackoff               time.Duration
	LedgerOptions              []ledger.Option
}

// Dependencies are the collaborators of a Coordinator. Source and Store are
// required.
type Dependencies struct {
	Source   EventSource
	Store    CheckpointStore
	Decimals DecimalsResolver
	Notifier ResetNotifier
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type tierState struct {
	ledger      *ledger.Ledger
	collector   *collector
	fullRewrite bool
}

// Coordinator keeps the snapshot, confirmed and mempool ledgers in step with
// the event source. It is driven by Tick and is not safe for concurrent use.
type Coordinator struct {
	cfg      Config
	source   EventSource
	store    CheckpointStore
	decimals DecimalsResolver
	notifier ResetNotifier
	metrics  *metrics.Metrics
	logger   *zap.Logger

	tiers [3]*tierState

	bestHeight            uint32
	lastHandledBestHeight uint32

	hashSC, hashCM                common.Hash
	prevSizeReorg, prevSizeDiscord int64
	dirtySC, dirtyCM              bool

	forceReset bool
	retryCount int
	lastErr    error
	fatal      error
}

// NewCoordinator builds a Coordinator whose tiers are empty until Start.
func NewCoordinator(cfg Config, deps Dependencies) (*Coordinator, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("event source is nil")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("checkpoint store is nil")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be greater than zero")
	}
	if cfg.SnapshotCheckpointInterval <= 0 {
		cfg.SnapshotCheckpointInterval = 1
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(nil)
	}

	c := &Coordinator{
		cfg:        cfg,
		source:     deps.Source,
		store:      deps.Store,
		decimals:   deps.Decimals,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		forceReset: true,
	}
	c.install(ledger.New(cfg.LedgerOptions...))
	return c, nil
}

// install makes l the snapshot ledger and derives the other tiers from it.
func (c *Coordinator) install(l *ledger.Ledger) {
	c.tiers[Snapshot] = &tierState{ledger: l, collector: newCollector(l.Cursor())}
	for _, t := range []Tier{Confirmed, Mempool} {
		c.tiers[t] = &tierState{ledger: l.Clone(), collector: newCollector(l.Cursor()), fullRewrite: true}
	}
	c.hashSC, c.hashCM = EmptyHash, EmptyHash
	c.prevSizeReorg, c.prevSizeDiscord = 0, 0
	c.observeTiers()
}

// Start restores the snapshot tier from its checkpoint. The confirmed and
// mempool tiers are rebuilt from it on the first tick.
func (c *Coordinator) Start(ctx context.Context) error {
	cp, err := c.store.LoadCheckpoint(ctx, storage.TierSnapshot)
	if err != nil {
		return fmt.Errorf("load snapshot checkpoint: %w", err)
	}

	var deployEv *model.OpEvent
	err = withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		page, err := c.source.FetchEvents(ctx, 0, 1)
		if err != nil {
			return err
		}
		if len(page.Events) > 0 {
			deployEv = page.Events[0]
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("fetch module deploy event: %w", err)
	}

	if cp == nil || cp.Status.Cursor < 0 {
		c.install(ledger.New(c.cfg.LedgerOptions...))
		c.forceReset = true
		c.logger.Info("start without snapshot checkpoint")
		return nil
	}

	module, ok := deployOp(deployEv)
	if !ok {
		return &ConsistencyError{Cursor: 0, Reason: "snapshot checkpoint exists but the first event is not a deploy"}
	}
	st, err := checkpointState(cp, module, deployEv.To)
	if err != nil {
		return fmt.Errorf("restore snapshot checkpoint: %w", err)
	}
	l, err := ledger.FromState(st, c.cfg.LedgerOptions...)
	if err != nil {
		return fmt.Errorf("restore snapshot checkpoint: %w", err)
	}

	c.install(l)
	c.forceReset = true
	c.logger.Info("restored snapshot checkpoint",
		zap.Int64("cursor", l.Cursor()),
		zap.Uint32("height", l.Height()),
		zap.Int("rows", cp.Rows()))
	return nil
}

func deployOp(ev *model.OpEvent) (*model.DeployOp, bool) {
	if ev == nil || !ev.Valid || ev.Cursor != 0 {
		return nil, false
	}
	op, ok := ev.Op.(*model.DeployOp)
	return op, ok
}

// Ledger returns the ledger of tier t. The mempool tier is the latest
// best-effort view. Callers must not mutate it.
func (c *Coordinator) Ledger(t Tier) *ledger.Ledger {
	return c.tiers[t].ledger
}

func (c *Coordinator) Cursor(t Tier) int64 {
	return c.tiers[t].ledger.Cursor()
}

func (c *Coordinator) Height(t Tier) uint32 {
	return c.tiers[t].ledger.Height()
}

func (c *Coordinator) RetryCount() int {
	return c.retryCount
}

// Fatal returns the error that halted advancement, if any.
func (c *Coordinator) Fatal() error {
	return c.fatal
}

// ClearFatal resumes advancement after an operator resolved a fatal error.
// The next tick rebuilds the confirmed and mempool tiers.
func (c *Coordinator) ClearFatal() {
	if c.fatal == nil {
		return
	}
	c.logger.Warn("fatal state cleared", zap.Error(c.fatal))
	c.fatal = nil
	c.forceReset = true
	c.metrics.Fatal.Set(0)
}

// TierStatus describes one tier for observability.
type TierStatus struct {
	Tier        string `json:"tier"`
	Cursor      int64  `json:"cursor"`
	Height      uint32 `json:"height"`
	Pending     int    `json:"pending"`
	FullRewrite bool   `json:"full_rewrite"`
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	Tiers      []TierStatus `json:"tiers"`
	BestHeight uint32       `json:"best_height"`
	ForceReset bool         `json:"force_reset"`
	RetryCount int          `json:"retry_count"`
	LastError  string       `json:"last_error,omitempty"`
	Fatal      string       `json:"fatal,omitempty"`
}

func (c *Coordinator) Status() Status {
	st := Status{
		BestHeight: c.bestHeight,
		ForceReset: c.forceReset,
		RetryCount: c.retryCount,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	if c.fatal != nil {
		st.Fatal = c.fatal.Error()
	}
	for _, t := range allTiers {
		ts := c.tiers[t]
		st.Tiers = append(st.Tiers, TierStatus{
			Tier:        t.String(),
			Cursor:      ts.ledger.Cursor(),
			Height:      ts.ledger.Height(),
			Pending:     ts.collector.len(),
			FullRewrite: ts.fullRewrite,
		})
	}
	return st
}

func (c *Coordinator) observeTiers() {
	for _, t := range allTiers {
		l := c.tiers[t].ledger
		c.metrics.TierCursor.WithLabelValues(t.String()).Set(float64(l.Cursor()))
		c.metrics.TierHeight.WithLabelValues(t.String()).Set(float64(l.Height()))
	}
}
