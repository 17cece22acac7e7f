package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ValidateTxID checks that s is a 32-byte hex transaction id.
func ValidateTxID(s string) error {
	if len(s) != chainhash.MaxHashStringSize {
		return fmt.Errorf("invalid txid length %d", len(s))
	}
	if _, err := chainhash.NewHashFromStr(s); err != nil {
		return fmt.Errorf("invalid txid: %w", err)
	}
	return nil
}

// SplitInscriptionID splits "<txid>i<index>" and validates both parts.
func SplitInscriptionID(id string) (string, uint32, error) {
	pos := strings.LastIndexByte(id, 'i')
	if pos <= 0 || pos == len(id)-1 {
		return "", 0, fmt.Errorf("invalid inscription id %q", id)
	}
	txid, idx := id[:pos], id[pos+1:]
	if err := ValidateTxID(txid); err != nil {
		return "", 0, fmt.Errorf("inscription id %q: %w", id, err)
	}
	n, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("inscription id %q: invalid index", id)
	}
	return txid, uint32(n), nil
}
