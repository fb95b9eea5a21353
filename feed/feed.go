// Package feed delivers per-block ledger event batches from a
// Substrate node to the monitor. The monitor core depends only on the
// Feed interface so it can run against a fake feed in tests.
package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// BatchHandler receives the event records of one finalized block.
type BatchHandler func(BlockEvents)

// CancelFunc tears down an active subscription. Implementations must
// make it safe to call more than once.
type CancelFunc func()

// Feed is the boundary to the chain's event stream.
type Feed interface {
	// IsReady reports whether the upstream node is reachable and able
	// to serve events right now.
	IsReady() bool

	// Subscribe delivers each new block's records, in block order, to
	// h until the returned CancelFunc is called. Handlers are invoked
	// from a single goroutine.
	Subscribe(h BatchHandler) (CancelFunc, error)
}

// BlockEvents is one block's worth of ledger event records.
type BlockEvents struct {
	Height  uint64
	Hash    string
	Records []EventRecord
}

// EventRecord is a raw ledger event as delivered by the sidecar: the
// emitting pallet, the event method, the undecoded positional data
// fields, and the block-execution phase.
type EventRecord struct {
	Pallet string
	Method string
	Data   []json.RawMessage
	Phase  json.RawMessage
}

// DecodedData renders the positional data fields in human-readable
// form. JSON strings are unquoted; any other JSON value keeps its
// compact encoding.
func (r EventRecord) DecodedData() []string {
	out := make([]string, len(r.Data))
	for i, raw := range r.Data {
		out[i] = decodeField(raw)
	}
	return out
}

// DecodedPhase renders the block-execution phase, e.g.
// "applyExtrinsic(2)", "Initialization" or "Finalization".
func (r EventRecord) DecodedPhase() string {
	if len(r.Phase) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Phase, &s); err == nil {
		return s
	}
	var obj map[string]json.Number
	if err := json.Unmarshal(r.Phase, &obj); err == nil && len(obj) == 1 {
		for k, v := range obj {
			return fmt.Sprintf("%s(%s)", k, v)
		}
	}
	return compactJSON(r.Phase)
}

func decodeField(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return compactJSON(raw)
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
