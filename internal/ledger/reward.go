package ledger

import (
	"swapledger/internal/amount"
	"swapledger/internal/model"
)

// rewardScale is the fixed-point scale of AccPerShare.
var rewardScale = amount.MustParse("1000000000000000000")

func (l *Ledger) rewardEnabled() bool {
	m := l.module
	return m != nil && m.RewardTick != "" && !m.RewardPerBlock.IsZero()
}

// updateRewardPool accrues emission for pair up to height. Unconfirmed
// heights never accrue.
func (l *Ledger) updateRewardPool(pair string, height uint32) error {
	if !l.rewardEnabled() || height == model.UnconfirmedHeight {
		return nil
	}
	acc, _ := l.rewardPools.Get(pair)
	if acc.LastRewardHeight != 0 && height <= acc.LastRewardHeight {
		return nil
	}
	if acc.LastRewardHeight != 0 && !acc.TotalLocked.IsZero() {
		blocks := amount.FromUint64(uint64(height - acc.LastRewardHeight))
		emitted, err := amount.Mul(l.module.RewardPerBlock, blocks)
		if err != nil {
			return arith(err, "reward emission")
		}
		inc, err := amount.MulDiv(emitted, rewardScale, acc.TotalLocked)
		if err != nil {
			return arith(err, "reward per share")
		}
		acc.AccPerShare, err = amount.Add(acc.AccPerShare, inc)
		if err != nil {
			return arith(err, "reward per share")
		}
	}
	acc.LastRewardHeight = height
	l.setRewardPool(pair, acc)
	return nil
}

// Settle moves the pending reward of address in pair into its unclaimed
// bucket and resets its reward debt to the current accumulator.
func (l *Ledger) Settle(pair, address string) error {
	key := RewardUserKey{Pair: pair, Address: address}
	user, ok := l.rewardUsers.Get(key)
	if !ok {
		return nil
	}
	acc, _ := l.rewardPools.Get(pair)
	accrued, err := amount.MulDiv(user.Amount, acc.AccPerShare, rewardScale)
	if err != nil {
		return arith(err, "accrued reward")
	}
	pending, err := amount.Sub(accrued, user.RewardDebt)
	if err != nil {
		return invalidf(CodeNegativeReward, "pending reward of %s in %s is negative", address, pair)
	}
	if pending.IsZero() {
		return nil
	}
	user.Unclaimed, err = amount.Add(user.Unclaimed, pending)
	if err != nil {
		return arith(err, "unclaimed reward")
	}
	user.RewardDebt = accrued
	l.setRewardUser(key, user)
	return nil
}

func (l *Ledger) settleReward(pair, address string, height uint32) error {
	if err := l.updateRewardPool(pair, height); err != nil {
		return err
	}
	return l.Settle(pair, address)
}

// restake records a new staked amount and resets the reward debt.
func (l *Ledger) restake(pair, address string, user RewardDebt) error {
	acc, _ := l.rewardPools.Get(pair)
	debt, err := amount.MulDiv(user.Amount, acc.AccPerShare, rewardScale)
	if err != nil {
		return arith(err, "reward debt")
	}
	user.RewardDebt = debt
	l.setRewardUser(RewardUserKey{Pair: pair, Address: address}, user)
	return nil
}

func (l *Ledger) lock(c model.LockCall, height uint32, res *model.CallResult) error {
	if c.Amount.IsZero() {
		return invalidf(CodeInvalidAmount, "lock amount must be positive")
	}
	pair, err := l.existingPair(c.Tick0, c.Tick1)
	if err != nil {
		return err
	}
	if err := l.settleReward(pair, c.Address, height); err != nil {
		return err
	}
	if err := l.debit(Swap, pair, c.Address, c.Amount); err != nil {
		return err
	}
	if err := l.credit(Lock, pair, c.Address, c.Amount); err != nil {
		return err
	}

	acc, _ := l.rewardPools.Get(pair)
	acc.TotalLocked, err = amount.Add(acc.TotalLocked, c.Amount)
	if err != nil {
		return arith(err, "total locked")
	}
	l.setRewardPool(pair, acc)

	user, _ := l.rewardUsers.Get(RewardUserKey{Pair: pair, Address: c.Address})
	user.Amount, err = amount.Add(user.Amount, c.Amount)
	if err != nil {
		return arith(err, "locked amount")
	}
	if err := l.restake(pair, c.Address, user); err != nil {
		return err
	}
	res.Output = map[string]string{"locked": amount.String(user.Amount)}
	return nil
}

func (l *Ledger) unlock(c model.UnlockCall, height uint32, res *model.CallResult) error {
	if c.Amount.IsZero() {
		return invalidf(CodeInvalidAmount, "unlock amount must be positive")
	}
	pair, err := l.existingPair(c.Tick0, c.Tick1)
	if err != nil {
		return err
	}
	if err := l.settleReward(pair, c.Address, height); err != nil {
		return err
	}
	if err := l.debit(Lock, pair, c.Address, c.Amount); err != nil {
		return err
	}
	if err := l.credit(Swap, pair, c.Address, c.Amount); err != nil {
		return err
	}

	acc, _ := l.rewardPools.Get(pair)
	acc.TotalLocked, err = amount.Sub(acc.TotalLocked, c.Amount)
	if err != nil {
		return arith(err, "total locked")
	}
	l.setRewardPool(pair, acc)

	user, _ := l.rewardUsers.Get(RewardUserKey{Pair: pair, Address: c.Address})
	user.Amount, err = amount.Sub(user.Amount, c.Amount)
	if err != nil {
		return arith(err, "locked amount")
	}
	if err := l.restake(pair, c.Address, user); err != nil {
		return err
	}
	res.Output = map[string]string{"locked": amount.String(user.Amount)}
	return nil
}

func (l *Ledger) claim(c model.ClaimCall, height uint32, res *model.CallResult) error {
	if !l.rewardEnabled() {
		return invalidf(CodeRewardDisabled, "module has no staking reward")
	}
	pair, err := l.existingPair(c.Tick0, c.Tick1)
	if err != nil {
		return err
	}
	if err := l.settleReward(pair, c.Address, height); err != nil {
		return err
	}
	key := RewardUserKey{Pair: pair, Address: c.Address}
	user, _ := l.rewardUsers.Get(key)
	if user.Unclaimed.IsZero() {
		return invalidf(CodeNothingToClaim, "%s has no reward in %s", c.Address, pair)
	}
	if err := l.credit(Swap, l.module.RewardTick, c.Address, user.Unclaimed); err != nil {
		return err
	}
	res.Output = map[string]string{"amount": amount.String(user.Unclaimed)}
	user.Unclaimed = amount.Zero()
	l.setRewardUser(key, user)
	return nil
}
