package ledger

import (
	"swapledger/internal/amount"
	"swapledger/internal/model"
)

var (
	feeDenominator = amount.FromUint64(amount.FeeDenominator)
	five           = amount.FromUint64(5)
	one            = amount.FromUint64(1)
)

func (l *Ledger) existingPair(tick0, tick1 string) (string, error) {
	if tick0 == "" || tick1 == "" || tick0 == tick1 {
		return "", invalidf(CodeInvalidPair, "ticks %q and %q do not form a pair", tick0, tick1)
	}
	pair := EncodePair(tick0, tick1)
	if !l.PoolExists(pair) {
		return "", invalidf(CodePoolNotFound, "pool %s", pair)
	}
	return pair, nil
}

func (l *Ledger) poolState(pair string) *model.PoolState {
	st, _ := l.PoolState(pair)
	return st
}

// getAmountOut is the constant-product output for an exact input.
func getAmountOut(in, rIn, rOut amount.Amount, fee uint64) (amount.Amount, error) {
	inWithFee, err := amount.Mul(in, amount.FromUint64(amount.FeeDenominator-fee))
	if err != nil {
		return amount.Zero(), arith(err, "swap input")
	}
	scaled, err := amount.Mul(rIn, feeDenominator)
	if err != nil {
		return amount.Zero(), arith(err, "swap reserve")
	}
	den, err := amount.Add(scaled, inWithFee)
	if err != nil {
		return amount.Zero(), arith(err, "swap denominator")
	}
	out, err := amount.MulDiv(inWithFee, rOut, den)
	return out, arith(err, "swap output")
}

// getAmountIn is the constant-product input for an exact output.
func getAmountIn(out, rIn, rOut amount.Amount, fee uint64) (amount.Amount, error) {
	if !out.Lt(&rOut) {
		return amount.Zero(), invalidf(CodeInsufficientLiquidity, "output %s exceeds reserve %s",
			amount.String(out), amount.String(rOut))
	}
	num, err := amount.Mul(rIn, out)
	if err != nil {
		return amount.Zero(), arith(err, "swap numerator")
	}
	left, _ := amount.Sub(rOut, out)
	den, err := amount.Mul(left, amount.FromUint64(amount.FeeDenominator-fee))
	if err != nil {
		return amount.Zero(), arith(err, "swap denominator")
	}
	in, err := amount.MulDiv(num, feeDenominator, den)
	if err != nil {
		return amount.Zero(), arith(err, "swap input")
	}
	in, err = amount.Add(in, one)
	return in, arith(err, "swap input")
}

func (l *Ledger) swap(c model.SwapCall, res *model.CallResult) error {
	if c.Amount.IsZero() {
		return invalidf(CodeInvalidAmount, "swap amount must be positive")
	}
	pair, err := l.existingPair(c.TickIn, c.TickOut)
	if err != nil {
		return err
	}
	rIn := l.Balance(Swap, c.TickIn, pair)
	rOut := l.Balance(Swap, c.TickOut, pair)
	if rIn.IsZero() || rOut.IsZero() {
		return invalidf(CodeInsufficientLiquidity, "pool %s has no liquidity", pair)
	}
	pre := l.poolState(pair)

	var in, out amount.Amount
	switch c.ExactType {
	case model.ExactIn:
		in = c.Amount
		out, err = getAmountOut(in, rIn, rOut, l.feeRate)
	case model.ExactOut:
		out = c.Amount
		in, err = getAmountIn(out, rIn, rOut, l.feeRate)
	default:
		return invalidf(CodeMalformed, "exact type %q", c.ExactType)
	}
	if err != nil {
		return err
	}
	if out.IsZero() {
		return invalidf(CodeInsufficientOutput, "swap of %s %s yields nothing", amount.String(in), c.TickIn)
	}

	if err := l.transferBalance(Swap, c.TickIn, c.Address, pair, in); err != nil {
		return err
	}
	if err := l.transferBalance(Swap, c.TickOut, pair, c.Address, out); err != nil {
		return err
	}

	res.Output = map[string]string{
		"amount_in":  amount.String(in),
		"amount_out": amount.String(out),
	}
	res.PreState = pre
	res.PostState = l.poolState(pair)
	return nil
}

// mintFee mints protocol-fee LP to FeeTo from the reserve growth since kLast,
// using the reserves before the calling operation changes them. It returns
// the resulting LP supply.
func (l *Ledger) mintFee(pair string, r0, r1, supply amount.Amount) (amount.Amount, error) {
	feeTo := l.module.FeeTo
	kLast, _ := l.kLast.Get(pair)
	if feeTo == "" || kLast.IsZero() || supply.IsZero() {
		return supply, nil
	}
	k, err := amount.Mul(r0, r1)
	if err != nil {
		return supply, arith(err, "pool product")
	}
	rootK := amount.Sqrt(k)
	rootKLast := amount.Sqrt(kLast)
	if !rootK.Gt(&rootKLast) {
		return supply, nil
	}

	growth, _ := amount.Sub(rootK, rootKLast)
	num, err := amount.Mul(supply, growth)
	if err != nil {
		return supply, arith(err, "fee numerator")
	}
	den, err := amount.Mul(rootK, five)
	if err == nil {
		den, err = amount.Add(den, rootKLast)
	}
	if err != nil {
		return supply, arith(err, "fee denominator")
	}
	liquidity, err := amount.Div(num, den)
	if err != nil {
		return supply, arith(err, "fee liquidity")
	}
	if liquidity.IsZero() {
		return supply, nil
	}
	if err := l.credit(Swap, pair, feeTo, liquidity); err != nil {
		return supply, err
	}
	next, err := amount.Add(supply, liquidity)
	if err != nil {
		return supply, arith(err, "lp supply")
	}
	l.setSupply(pair, next)
	return next, nil
}

func (l *Ledger) updateKLast(pair string) error {
	if l.module.FeeTo == "" {
		l.setKLast(pair, amount.Zero())
		return nil
	}
	r0, r1 := l.Reserves(pair)
	k, err := amount.Mul(r0, r1)
	if err != nil {
		return arith(err, "pool product")
	}
	l.setKLast(pair, k)
	return nil
}

func sortedAmounts(tick0, tick1 string, a0, a1 amount.Amount) (string, string, amount.Amount, amount.Amount) {
	if tick1 < tick0 {
		return tick1, tick0, a1, a0
	}
	return tick0, tick1, a0, a1
}

func (l *Ledger) addLiq(c model.AddLiqCall, height uint32, res *model.CallResult) error {
	if c.Amount0.IsZero() || c.Amount1.IsZero() {
		return invalidf(CodeInvalidAmount, "addLiq amounts must be positive")
	}
	pair, err := l.existingPair(c.Tick0, c.Tick1)
	if err != nil {
		return err
	}
	t0, t1, a0, a1 := sortedAmounts(c.Tick0, c.Tick1, c.Amount0, c.Amount1)
	if err := l.settleReward(pair, c.Address, height); err != nil {
		return err
	}

	pre := l.poolState(pair)
	r0, r1 := l.Reserves(pair)
	supply, err := l.mintFee(pair, r0, r1, l.Supply(pair))
	if err != nil {
		return err
	}

	var lp, use0, use1 amount.Amount
	if supply.IsZero() {
		product, err := amount.Mul(a0, a1)
		if err != nil {
			return arith(err, "initial liquidity")
		}
		lp, use0, use1 = amount.Sqrt(product), a0, a1
	} else {
		if r0.IsZero() || r1.IsZero() {
			return invalidf(CodeInsufficientLiquidity, "pool %s has supply but no reserves", pair)
		}
		opt1, err := amount.MulDiv(a0, r1, r0)
		if err != nil {
			return arith(err, "optimal amount1")
		}
		if !opt1.Gt(&a1) {
			use0, use1 = a0, opt1
		} else {
			opt0, err := amount.MulDiv(a1, r0, r1)
			if err != nil {
				return arith(err, "optimal amount0")
			}
			use0, use1 = opt0, a1
		}
		lp0, err := amount.MulDiv(use0, supply, r0)
		if err != nil {
			return arith(err, "lp from amount0")
		}
		lp1, err := amount.MulDiv(use1, supply, r1)
		if err != nil {
			return arith(err, "lp from amount1")
		}
		lp = amount.Min(lp0, lp1)
	}
	if lp.IsZero() {
		return invalidf(CodeInsufficientLiquidity, "addLiq to %s mints no LP", pair)
	}

	if err := l.transferBalance(Swap, t0, c.Address, pair, use0); err != nil {
		return err
	}
	if err := l.transferBalance(Swap, t1, c.Address, pair, use1); err != nil {
		return err
	}
	if err := l.credit(Swap, pair, c.Address, lp); err != nil {
		return err
	}
	next, err := amount.Add(supply, lp)
	if err != nil {
		return arith(err, "lp supply")
	}
	l.setSupply(pair, next)
	if err := l.updateKLast(pair); err != nil {
		return err
	}

	res.Output = map[string]string{
		"amount0": amount.String(use0),
		"amount1": amount.String(use1),
		"lp":      amount.String(lp),
	}
	res.PreState = pre
	res.PostState = l.poolState(pair)
	return nil
}

func (l *Ledger) removeLiq(c model.RemoveLiqCall, height uint32, res *model.CallResult) error {
	if c.Lp.IsZero() {
		return invalidf(CodeInvalidAmount, "removeLiq lp must be positive")
	}
	pair, err := l.existingPair(c.Tick0, c.Tick1)
	if err != nil {
		return err
	}
	t0, t1, _, _ := sortedAmounts(c.Tick0, c.Tick1, c.Amount0, c.Amount1)
	if err := l.settleReward(pair, c.Address, height); err != nil {
		return err
	}

	pre := l.poolState(pair)
	r0, r1 := l.Reserves(pair)
	supply, err := l.mintFee(pair, r0, r1, l.Supply(pair))
	if err != nil {
		return err
	}
	if supply.IsZero() {
		return invalidf(CodeInsufficientLiquidity, "pool %s has no LP supply", pair)
	}

	out0, err := amount.MulDiv(c.Lp, r0, supply)
	if err != nil {
		return arith(err, "amount0 out")
	}
	out1, err := amount.MulDiv(c.Lp, r1, supply)
	if err != nil {
		return arith(err, "amount1 out")
	}
	if out0.IsZero() || out1.IsZero() {
		return invalidf(CodeInsufficientLiquidity, "removeLiq of %s from %s burns nothing", amount.String(c.Lp), pair)
	}

	if err := l.debit(Swap, pair, c.Address, c.Lp); err != nil {
		return err
	}
	next, err := amount.Sub(supply, c.Lp)
	if err != nil {
		return arith(err, "lp supply")
	}
	l.setSupply(pair, next)
	if err := l.transferBalance(Swap, t0, pair, c.Address, out0); err != nil {
		return err
	}
	if err := l.transferBalance(Swap, t1, pair, c.Address, out1); err != nil {
		return err
	}
	if err := l.updateKLast(pair); err != nil {
		return err
	}

	res.Output = map[string]string{
		"amount0": amount.String(out0),
		"amount1": amount.String(out1),
		"lp":      amount.String(c.Lp),
	}
	res.PreState = pre
	res.PostState = l.poolState(pair)
	return nil
}

// deployPool creates a pair. Redeploying is accepted only while the pool is
// still empty.
func (l *Ledger) deployPool(c model.DeployPoolCall, res *model.CallResult) error {
	if c.Tick0 == "" || c.Tick1 == "" || c.Tick0 == c.Tick1 {
		return invalidf(CodeInvalidPair, "ticks %q and %q do not form a pair", c.Tick0, c.Tick1)
	}
	if IsLpTick(c.Tick0) || IsLpTick(c.Tick1) {
		return invalidf(CodeInvalidPair, "LP ticks cannot be pooled")
	}
	pair := EncodePair(c.Tick0, c.Tick1)
	if l.PoolExists(pair) {
		r0, r1 := l.Reserves(pair)
		supply := l.Supply(pair)
		if r0.IsZero() && r1.IsZero() && supply.IsZero() {
			res.PostState = l.poolState(pair)
			return nil
		}
		return invalidf(CodePoolExisted, "pool %s", pair)
	}
	l.setKLast(pair, amount.Zero())
	l.setSupply(pair, amount.Zero())
	res.Output = map[string]string{"pair": pair}
	res.PostState = l.poolState(pair)
	return nil
}
