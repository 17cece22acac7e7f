package indexer

import (
	"errors"
	"fmt"

	"swapledger/internal/ledger"
)

// ConsistencyError reports event source data that breaks the ordering the
// replay depends on. It halts advancement like a fatal ledger error.
type ConsistencyError struct {
	Cursor uint64
	Reason string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("inconsistent event source at cursor %d: %s", e.Cursor, e.Reason)
}

// IsFatal reports whether err must halt all tier advancement.
func IsFatal(err error) bool {
	var ce *ConsistencyError
	return ledger.IsFatal(err) || errors.As(err, &ce)
}
