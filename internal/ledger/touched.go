package ledger

// TouchKind names the state family a touched item belongs to.
type TouchKind uint8

const (
	TouchBalance TouchKind = iota + 1
	TouchKLast
	TouchSupply
	TouchRewardPool
	TouchRewardUser
)

func (k TouchKind) String() string {
	switch k {
	case TouchBalance:
		return "balance"
	case TouchKLast:
		return "klast"
	case TouchSupply:
		return "supply"
	case TouchRewardPool:
		return "reward_pool"
	case TouchRewardUser:
		return "reward_user"
	default:
		return "unknown"
	}
}

// TouchedItem identifies one piece of state changed by an event.
// Tick holds the pair for every kind except balances.
type TouchedItem struct {
	Kind    TouchKind
	Class   AssetClass
	Tick    string
	Address string
}

// TouchFunc receives the items changed by a successfully applied event.
type TouchFunc func(TouchedItem)

type journal struct {
	undo    []func()
	touched []TouchedItem
}

type savepoint struct {
	undo    int
	touched int
}

func (j *journal) mark() savepoint {
	return savepoint{undo: len(j.undo), touched: len(j.touched)}
}

func (j *journal) rollback(sp savepoint) {
	for i := len(j.undo) - 1; i >= sp.undo; i-- {
		j.undo[i]()
	}
	j.undo = j.undo[:sp.undo]
	j.touched = j.touched[:sp.touched]
}
