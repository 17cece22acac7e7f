package ledger

import "strings"

// AssetClass partitions the balances an address holds for one tick.
type AssetClass string

const (
	Available          AssetClass = "available"
	PendingAvailable   AssetClass = "pendingAvailable"
	Approve            AssetClass = "approve"
	ConditionalApprove AssetClass = "conditionalApprove"
	Swap               AssetClass = "swap"
	PendingSwap        AssetClass = "pendingSwap"
	Lock               AssetClass = "lock"
)

// AssetClasses lists every class in a fixed order.
var AssetClasses = []AssetClass{Available, PendingAvailable, Approve, ConditionalApprove, Swap, PendingSwap, Lock}

// BalanceKey addresses one balance.
type BalanceKey struct {
	Class   AssetClass
	Tick    string
	Address string
}

// LpDecimals is the display precision of every LP tick.
const LpDecimals = 18

const pairSep = "/"

// EncodePair returns the canonical LP tick for two ticks.
func EncodePair(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + pairSep + b
}

// DecodePair splits an LP tick into its sorted ticks.
func DecodePair(pair string) (string, string, bool) {
	parts := strings.Split(pair, pairSep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	if parts[1] < parts[0] {
		return parts[1], parts[0], true
	}
	return parts[0], parts[1], true
}

// IsLpTick reports whether tick is the canonical encoding of a pair.
func IsLpTick(tick string) bool {
	a, b, ok := DecodePair(tick)
	return ok && EncodePair(a, b) == tick
}
