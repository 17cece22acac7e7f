package model

import "fmt"

// DecodeError records why an event's operation payload could not be decoded.
// The event still occupies its cursor; it is rejected when applied.
type DecodeError struct {
	Cursor        uint64 `json:"cursor"`
	InscriptionID string `json:"inscription_id"`
	Op            string `json:"op"`
	Reason        string `json:"error"`
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode event %d (%s, op=%q): %s", e.Cursor, e.InscriptionID, e.Op, e.Reason)
}
