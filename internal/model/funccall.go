package model

import "swapledger/internal/amount"

// FuncName names a function call inside a commit.
type FuncName string

const (
	FuncSwap             FuncName = "swap"
	FuncAddLiq           FuncName = "addLiq"
	FuncRemoveLiq        FuncName = "removeLiq"
	FuncDeployPool       FuncName = "deployPool"
	FuncDecreaseApproval FuncName = "decreaseApproval"
	FuncSend             FuncName = "send"
	FuncSendLp           FuncName = "sendLp"
	FuncLock             FuncName = "lock"
	FuncUnlock           FuncName = "unlock"
	FuncClaim            FuncName = "claim"
)

// ExactType selects which side of a swap is fixed.
type ExactType string

const (
	ExactIn  ExactType = "exactIn"
	ExactOut ExactType = "exactOut"
)

// FuncCall is implemented by every call variant. The set is closed.
type FuncCall interface {
	Func() FuncName
	CallID() string
	Caller() string
	isFuncCall()
}

// CallMeta carries the fields shared by all calls.
type CallMeta struct {
	ID      string
	Address string
}

func (m CallMeta) CallID() string { return m.ID }
func (m CallMeta) Caller() string { return m.Address }
func (CallMeta) isFuncCall()      {}

type SwapCall struct {
	CallMeta
	TickIn    string
	TickOut   string
	Amount    amount.Amount
	ExactType ExactType
	Expect    amount.Amount
	Slippage  string
}

type AddLiqCall struct {
	CallMeta
	Tick0    string
	Tick1    string
	Amount0  amount.Amount
	Amount1  amount.Amount
	ExpectLp amount.Amount
	Slippage string
}

type RemoveLiqCall struct {
	CallMeta
	Tick0    string
	Tick1    string
	Lp       amount.Amount
	Amount0  amount.Amount
	Amount1  amount.Amount
	Slippage string
}

type DeployPoolCall struct {
	CallMeta
	Tick0 string
	Tick1 string
}

type DecreaseApprovalCall struct {
	CallMeta
	Tick   string
	Amount amount.Amount
}

type SendCall struct {
	CallMeta
	To     string
	Tick   string
	Amount amount.Amount
}

type SendLpCall struct {
	CallMeta
	To     string
	Tick0  string
	Tick1  string
	Amount amount.Amount
}

type LockCall struct {
	CallMeta
	Tick0  string
	Tick1  string
	Amount amount.Amount
}

type UnlockCall struct {
	CallMeta
	Tick0  string
	Tick1  string
	Amount amount.Amount
}

type ClaimCall struct {
	CallMeta
	Tick0 string
	Tick1 string
}

func (SwapCall) Func() FuncName             { return FuncSwap }
func (AddLiqCall) Func() FuncName           { return FuncAddLiq }
func (RemoveLiqCall) Func() FuncName        { return FuncRemoveLiq }
func (DeployPoolCall) Func() FuncName       { return FuncDeployPool }
func (DecreaseApprovalCall) Func() FuncName { return FuncDecreaseApproval }
func (SendCall) Func() FuncName             { return FuncSend }
func (SendLpCall) Func() FuncName           { return FuncSendLp }
func (LockCall) Func() FuncName             { return FuncLock }
func (UnlockCall) Func() FuncName           { return FuncUnlock }
func (ClaimCall) Func() FuncName            { return FuncClaim }
