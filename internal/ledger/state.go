package ledger

import (
	"fmt"

	"swapledger/internal/amount"
	"swapledger/internal/model"
)

// State is a plain copy of a ledger, used for checkpoints and comparisons.
type State struct {
	Module        *model.DeployOp
	ModuleAddress string
	LastCommitID  string
	Cursor        int64
	Height        uint32

	Balances    map[BalanceKey]amount.Amount
	KLast       map[string]amount.Amount
	Supply      map[string]amount.Amount
	RewardPools map[string]RewardAcc
	RewardUsers map[RewardUserKey]RewardDebt
}

// NewState returns an empty state that has handled no event.
func NewState() *State {
	return &State{
		Cursor:      -1,
		Balances:    make(map[BalanceKey]amount.Amount),
		KLast:       make(map[string]amount.Amount),
		Supply:      make(map[string]amount.Amount),
		RewardPools: make(map[string]RewardAcc),
		RewardUsers: make(map[RewardUserKey]RewardDebt),
	}
}

// Dump copies the full ledger state. Zero balances are omitted.
func (l *Ledger) Dump() *State {
	st := NewState()
	st.ModuleAddress = l.moduleAddr
	st.LastCommitID = l.lastCommitID
	st.Cursor = l.cursor
	st.Height = l.height
	if l.module != nil {
		m := *l.module
		st.Module = &m
	}
	l.balances.Range(func(k BalanceKey, v amount.Amount) bool {
		if !v.IsZero() {
			st.Balances[k] = v
		}
		return true
	})
	l.kLast.Range(func(k string, v amount.Amount) bool {
		st.KLast[k] = v
		return true
	})
	l.supply.Range(func(k string, v amount.Amount) bool {
		st.Supply[k] = v
		return true
	})
	l.rewardPools.Range(func(k string, v RewardAcc) bool {
		st.RewardPools[k] = v
		return true
	})
	l.rewardUsers.Range(func(k RewardUserKey, v RewardDebt) bool {
		st.RewardUsers[k] = v
		return true
	})
	return st
}

// FromState builds a ledger holding st.
func FromState(st *State, opts ...Option) (*Ledger, error) {
	l := New(opts...)
	if st == nil {
		return l, nil
	}
	if st.Module != nil {
		m := *st.Module
		l.module = &m
		if l.feeOverride == nil {
			rate, err := amount.ParseFeeRate(m.SwapFeeRate)
			if err != nil {
				return nil, fmt.Errorf("module fee rate: %w", err)
			}
			l.feeRate = rate
		}
	} else if st.Cursor >= 0 {
		return nil, fmt.Errorf("state at cursor %d has no module", st.Cursor)
	}
	l.moduleAddr = st.ModuleAddress
	l.lastCommitID = st.LastCommitID
	l.cursor = st.Cursor
	l.height = st.Height

	for k, v := range st.Balances {
		if !v.IsZero() {
			l.balances.Set(k, v)
		}
	}
	for k, v := range st.KLast {
		l.kLast.Set(k, v)
	}
	for k, v := range st.Supply {
		l.supply.Set(k, v)
	}
	for k, v := range st.RewardPools {
		l.rewardPools.Set(k, v)
	}
	for k, v := range st.RewardUsers {
		l.rewardUsers.Set(k, v)
	}
	return l, nil
}
