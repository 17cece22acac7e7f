package ledger

import (
	"swapledger/internal/amount"
	"swapledger/internal/model"
)

// RewardAcc is the staking accumulator of one pair.
type RewardAcc struct {
	AccPerShare      amount.Amount
	LastRewardHeight uint32
	TotalLocked      amount.Amount
}

// RewardUserKey addresses one staker in one pair.
type RewardUserKey struct {
	Pair    string
	Address string
}

// RewardDebt is the staking position of one address in one pair.
type RewardDebt struct {
	Amount     amount.Amount
	RewardDebt amount.Amount
	Unclaimed  amount.Amount
}

// Ledger is the in-memory balance state machine. It performs no I/O and is
// not safe for concurrent mutation.
type Ledger struct {
	balances    *cowMap[BalanceKey, amount.Amount]
	kLast       *cowMap[string, amount.Amount]
	supply      *cowMap[string, amount.Amount]
	rewardPools *cowMap[string, RewardAcc]
	rewardUsers *cowMap[RewardUserKey, RewardDebt]

	module       *model.DeployOp
	moduleAddr   string
	feeRate      uint64
	feeOverride  *uint64
	lastCommitID string
	cursor       int64
	height       uint32

	journal *journal
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithSwapFeeRate overrides the deploy fee rate, in thousandths.
func WithSwapFeeRate(thousandths uint64) Option {
	return func(l *Ledger) {
		v := thousandths
		l.feeOverride = &v
		l.feeRate = v
	}
}

// New returns an empty ledger that has handled no event.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		balances:    newCOWMap[BalanceKey, amount.Amount](),
		kLast:       newCOWMap[string, amount.Amount](),
		supply:      newCOWMap[string, amount.Amount](),
		rewardPools: newCOWMap[string, RewardAcc](),
		rewardUsers: newCOWMap[RewardUserKey, RewardDebt](),
		cursor:      -1,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Clone returns an independent ledger with the same state. Both ledgers share
// the state present at the time of the call.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{
		balances:     l.balances.Fork(),
		kLast:        l.kLast.Fork(),
		supply:       l.supply.Fork(),
		rewardPools:  l.rewardPools.Fork(),
		rewardUsers:  l.rewardUsers.Fork(),
		moduleAddr:   l.moduleAddr,
		feeRate:      l.feeRate,
		lastCommitID: l.lastCommitID,
		cursor:       l.cursor,
		height:       l.height,
	}
	if l.module != nil {
		m := *l.module
		out.module = &m
	}
	if l.feeOverride != nil {
		v := *l.feeOverride
		out.feeOverride = &v
	}
	return out
}

// Cursor returns the cursor of the last handled event, or -1.
func (l *Ledger) Cursor() int64 { return l.cursor }

// Height returns the height of the last handled event.
func (l *Ledger) Height() uint32 { return l.height }

func (l *Ledger) LastCommitID() string { return l.lastCommitID }

// ModuleAddress is the deposit address set by the deploy event.
func (l *Ledger) ModuleAddress() string { return l.moduleAddr }

// Module returns the deploy operation, or nil before deployment.
func (l *Ledger) Module() *model.DeployOp { return l.module }

// FeeRate returns the swap fee rate in thousandths.
func (l *Ledger) FeeRate() uint64 { return l.feeRate }

func (l *Ledger) Balance(class AssetClass, tick, address string) amount.Amount {
	v, _ := l.balances.Get(BalanceKey{Class: class, Tick: tick, Address: address})
	return v
}

// KLast returns the last reserve product of pair and whether the pool exists.
func (l *Ledger) KLast(pair string) (amount.Amount, bool) {
	return l.kLast.Get(pair)
}

func (l *Ledger) PoolExists(pair string) bool {
	_, ok := l.kLast.Get(pair)
	return ok
}

func (l *Ledger) Supply(pair string) amount.Amount {
	v, _ := l.supply.Get(pair)
	return v
}

// Reserves returns the reserves of pair in sorted tick order.
func (l *Ledger) Reserves(pair string) (amount.Amount, amount.Amount) {
	t0, t1, ok := DecodePair(pair)
	if !ok {
		return amount.Zero(), amount.Zero()
	}
	return l.Balance(Swap, t0, pair), l.Balance(Swap, t1, pair)
}

// PoolState reports reserves and LP supply of pair.
func (l *Ledger) PoolState(pair string) (*model.PoolState, bool) {
	if !l.PoolExists(pair) {
		return nil, false
	}
	r0, r1 := l.Reserves(pair)
	s := l.Supply(pair)
	return &model.PoolState{
		Reserve0: amount.String(r0),
		Reserve1: amount.String(r1),
		LpSupply: amount.String(s),
	}, true
}

func (l *Ledger) RewardPool(pair string) (RewardAcc, bool) {
	return l.rewardPools.Get(pair)
}

func (l *Ledger) RewardUser(pair, address string) (RewardDebt, bool) {
	return l.rewardUsers.Get(RewardUserKey{Pair: pair, Address: address})
}

// Apply applies one event. Each event is atomic: a rejected event leaves the
// state unchanged, although its cursor is still consumed. Fatal errors leave
// both state and cursor unchanged. notify receives the touched items of a
// successfully applied event.
func (l *Ledger) Apply(ev *model.OpEvent, notify TouchFunc) ([]model.CallResult, error) {
	if int64(ev.Cursor) <= l.cursor {
		return nil, fatalf(CodeCursorRegression, "event cursor %d not after %d", ev.Cursor, l.cursor)
	}

	l.journal = &journal{}
	defer func() { l.journal = nil }()

	results, err := l.dispatch(ev)
	if err != nil {
		l.journal.rollback(savepoint{})
		if IsFatal(err) {
			return nil, err
		}
		l.advance(ev)
		return nil, err
	}

	l.advance(ev)
	if notify != nil {
		for _, item := range l.journal.touched {
			notify(item)
		}
	}
	return results, nil
}

func (l *Ledger) advance(ev *model.OpEvent) {
	l.cursor = int64(ev.Cursor)
	l.height = ev.Height
}

func (l *Ledger) dispatch(ev *model.OpEvent) ([]model.CallResult, error) {
	if !ev.Valid {
		return nil, nil
	}
	if ev.DecodeErr != nil {
		return nil, invalidf(CodeMalformed, "%s", ev.DecodeErr.Reason)
	}
	if op, ok := ev.Op.(*model.DeployOp); ok {
		return nil, l.deploy(ev, op)
	}
	if l.module == nil {
		return nil, fatalf(CodeNotDeployed, "event %d (%s) before module deploy", ev.Cursor, ev.OpName)
	}

	switch op := ev.Op.(type) {
	case *model.CommitOp:
		return l.commit(ev, op)
	case *model.TransferOp:
		return nil, l.transfer(ev, op)
	case *model.ApproveOp:
		return nil, l.approve(ev, op)
	case *model.ConditionalApproveOp:
		return nil, l.conditionalApprove(ev, op)
	case *model.WithdrawOp:
		return nil, l.withdraw(ev, op)
	default:
		return nil, invalidf(CodeUnknownOperation, "op %q", ev.OpName)
	}
}

func (l *Ledger) touch(item TouchedItem) {
	if l.journal != nil {
		l.journal.touched = append(l.journal.touched, item)
	}
}

func (l *Ledger) recordUndo(fn func()) {
	if l.journal != nil {
		l.journal.undo = append(l.journal.undo, fn)
	}
}

func (l *Ledger) setBalance(key BalanceKey, v amount.Amount) {
	prev, had := l.balances.Get(key)
	l.recordUndo(func() {
		if had {
			l.balances.Set(key, prev)
		} else {
			l.balances.Delete(key)
		}
	})
	if v.IsZero() {
		l.balances.Delete(key)
	} else {
		l.balances.Set(key, v)
	}
	l.touch(TouchedItem{Kind: TouchBalance, Class: key.Class, Tick: key.Tick, Address: key.Address})
}

func (l *Ledger) setKLast(pair string, v amount.Amount) {
	prev, had := l.kLast.Get(pair)
	l.recordUndo(func() {
		if had {
			l.kLast.Set(pair, prev)
		} else {
			l.kLast.Delete(pair)
		}
	})
	l.kLast.Set(pair, v)
	l.touch(TouchedItem{Kind: TouchKLast, Tick: pair})
}

func (l *Ledger) setSupply(pair string, v amount.Amount) {
	prev, had := l.supply.Get(pair)
	l.recordUndo(func() {
		if had {
			l.supply.Set(pair, prev)
		} else {
			l.supply.Delete(pair)
		}
	})
	l.supply.Set(pair, v)
	l.touch(TouchedItem{Kind: TouchSupply, Tick: pair})
}

func (l *Ledger) setRewardPool(pair string, acc RewardAcc) {
	prev, had := l.rewardPools.Get(pair)
	l.recordUndo(func() {
		if had {
			l.rewardPools.Set(pair, prev)
		} else {
			l.rewardPools.Delete(pair)
		}
	})
	l.rewardPools.Set(pair, acc)
	l.touch(TouchedItem{Kind: TouchRewardPool, Tick: pair})
}

func (l *Ledger) setRewardUser(key RewardUserKey, debt RewardDebt) {
	prev, had := l.rewardUsers.Get(key)
	l.recordUndo(func() {
		if had {
			l.rewardUsers.Set(key, prev)
		} else {
			l.rewardUsers.Delete(key)
		}
	})
	l.rewardUsers.Set(key, debt)
	l.touch(TouchedItem{Kind: TouchRewardUser, Tick: key.Pair, Address: key.Address})
}

func (l *Ledger) credit(class AssetClass, tick, address string, v amount.Amount) error {
	key := BalanceKey{Class: class, Tick: tick, Address: address}
	cur, _ := l.balances.Get(key)
	next, err := amount.Add(cur, v)
	if err != nil {
		return arith(err, "credit "+string(class)+" "+tick)
	}
	l.setBalance(key, next)
	return nil
}

func (l *Ledger) debit(class AssetClass, tick, address string, v amount.Amount) error {
	key := BalanceKey{Class: class, Tick: tick, Address: address}
	cur, _ := l.balances.Get(key)
	next, err := amount.Sub(cur, v)
	if err != nil {
		return invalidf(CodeInsufficientBalance, "%s %s of %s: have %s, need %s",
			class, tick, address, amount.String(cur), amount.String(v))
	}
	l.setBalance(key, next)
	return nil
}

func (l *Ledger) transferBalance(class AssetClass, tick, from, to string, v amount.Amount) error {
	if err := l.debit(class, tick, from, v); err != nil {
		return err
	}
	return l.credit(class, tick, to, v)
}
