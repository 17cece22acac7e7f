package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnconfirmedHeight marks an event that is still in the mempool.
const UnconfirmedHeight uint32 = 4194303

// OpEvent is one indexed operation relayed from the chain.
type OpEvent struct {
	Cursor            uint64            `json:"cursor"`
	Height            uint32            `json:"height"`
	Valid             bool              `json:"valid"`
	From              string            `json:"from"`
	To                string            `json:"to"`
	InscriptionID     string            `json:"inscription_id"`
	InscriptionNumber int64             `json:"inscription_number"`
	TxID              string            `json:"txid"`
	Blocktime         int64             `json:"blocktime"`
	OpName            string            `json:"op"`
	Content           json.RawMessage   `json:"content,omitempty"`
	Data              map[string]string `json:"data,omitempty"`

	// Op is nil when DecodeErr is set.
	Op        Operation    `json:"-"`
	DecodeErr *DecodeError `json:"-"`
}

// Confirmed reports whether the event has been included in a block.
func (e *OpEvent) Confirmed() bool {
	return e.Height != UnconfirmedHeight
}

// CommitParent returns the parent commit id for commit events.
func (e *OpEvent) CommitParent() string {
	if c, ok := e.Op.(*CommitOp); ok {
		return c.Parent
	}
	return ""
}

// ParseEvent decodes one event from the source. Envelope errors are returned;
// payload errors are recorded on the event so its cursor is still consumed.
func ParseEvent(raw []byte) (*OpEvent, error) {
	var ev OpEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}

	content, err := canonicalJSON(ev.Content)
	if err != nil {
		ev.DecodeErr = ev.decodeError(fmt.Sprintf("content: %v", err))
		return &ev, nil
	}
	ev.Content = content

	if err := ev.validateIDs(); err != nil {
		ev.DecodeErr = ev.decodeError(err.Error())
		return &ev, nil
	}

	op, err := parseOperation(OpType(ev.OpName), ev.Content)
	if err != nil {
		ev.DecodeErr = ev.decodeError(err.Error())
		return &ev, nil
	}
	ev.Op = op
	return &ev, nil
}

func (e *OpEvent) validateIDs() error {
	if e.InscriptionID != "" {
		if _, _, err := SplitInscriptionID(e.InscriptionID); err != nil {
			return err
		}
	}
	if e.TxID != "" {
		if err := ValidateTxID(e.TxID); err != nil {
			return err
		}
	}
	return nil
}

func (e *OpEvent) decodeError(reason string) *DecodeError {
	return &DecodeError{
		Cursor:        e.Cursor,
		InscriptionID: e.InscriptionID,
		Op:            e.OpName,
		Reason:        reason,
	}
}

// canonicalJSON re-encodes a JSON document with sorted object keys.
func canonicalJSON(raw json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
