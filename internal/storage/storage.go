package storage

import (
	"errors"
	"fmt"
)

// Tier names used as the natural key of durable rows.
const (
	TierSnapshot  = "snapshot"
	TierConfirmed = "confirmed"
	TierMempool   = "mempool"
)

// Annotation describes the event that last touched a row.
type Annotation struct {
	Cursor       int64  `json:"cursor"`
	Height       uint32 `json:"height"`
	CommitParent string `json:"commit_parent,omitempty"`
	OpType       string `json:"op_type,omitempty"`
}

type BalanceRow struct {
	Class   string `json:"class"`
	Tick    string `json:"tick"`
	Address string `json:"address"`
	Amount  string `json:"amount"`
	Display string `json:"display"`
	Annotation
}

type KLastRow struct {
	Pair  string `json:"pair"`
	KLast string `json:"k_last"`
	Annotation
}

type SupplyRow struct {
	Pair   string `json:"pair"`
	Supply string `json:"supply"`
	Annotation
}

type RewardPoolRow struct {
	Pair             string `json:"pair"`
	AccPerShare      string `json:"acc_per_share"`
	LastRewardHeight uint32 `json:"last_reward_height"`
	TotalLocked      string `json:"total_locked"`
	Annotation
}

type RewardUserRow struct {
	Pair       string `json:"pair"`
	Address    string `json:"address"`
	Amount     string `json:"amount"`
	RewardDebt string `json:"reward_debt"`
	Unclaimed  string `json:"unclaimed"`
	Annotation
}

// TierStatus is the durable cursor marker of one tier.
type TierStatus struct {
	Cursor        int64  `json:"cursor"`
	Height        uint32 `json:"height"`
	CommitID      string `json:"commit_id"`
	ModuleAddress string `json:"module_address,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// Checkpoint is one atomic write of a tier's touched rows and its cursor.
// With FullRewrite set, every existing row of the tier is replaced.
type Checkpoint struct {
	Tier        string
	Status      TierStatus
	FullRewrite bool

	Balances    []BalanceRow
	KLast       []KLastRow
	Supply      []SupplyRow
	RewardPools []RewardPoolRow
	RewardUsers []RewardUserRow
}

// Rows returns the number of data rows carried by the checkpoint.
func (c *Checkpoint) Rows() int {
	return len(c.Balances) + len(c.KLast) + len(c.Supply) + len(c.RewardPools) + len(c.RewardUsers)
}

// PersistenceError reports a checkpoint write that was rolled back.
type PersistenceError struct {
	Tier string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s checkpoint: %v", e.Tier, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err is a rolled-back checkpoint write.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func validTier(tier string) error {
	switch tier {
	case TierSnapshot, TierConfirmed, TierMempool:
		return nil
	default:
		return fmt.Errorf("unknown tier %q", tier)
	}
}
