package indexer

import "swapledger/internal/storage"

// Tier identifies one of the three ledgers kept by the coordinator.
type Tier int

const (
	Snapshot Tier = iota
	Confirmed
	Mempool
)

var allTiers = [...]Tier{Snapshot, Confirmed, Mempool}

// String returns the storage name of the tier.
func (t Tier) String() string {
	switch t {
	case Snapshot:
		return storage.TierSnapshot
	case Confirmed:
		return storage.TierConfirmed
	case Mempool:
		return storage.TierMempool
	default:
		return "unknown"
	}
}

type tierSet uint8

func tiersOf(ts ...Tier) tierSet {
	var s tierSet
	for _, t := range ts {
		s |= 1 << uint(t)
	}
	return s
}

func (s tierSet) has(t Tier) bool {
	return s&(1<<uint(t)) != 0
}
