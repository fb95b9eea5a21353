// Package monitor ingests contract events from a ledger feed, retains
// a bounded in-memory history, and fans events out to registered
// listeners.
package monitor

import "time"

// Contracts-pallet event kinds the DOTnation UI cares about. The
// monitor stores whatever kind the feed delivers; these constants
// cover the common ones.
const (
	KindInstantiated    = "Instantiated"
	KindCalled          = "Called"
	KindContractEmitted = "ContractEmitted"
	KindCodeStored      = "CodeStored"
	KindTerminated      = "Terminated"
)

// Wildcard registers a listener for every event kind.
const Wildcard = "*"

// DefaultNamespace is the pallet namespace DOTnation contracts emit
// under.
const DefaultNamespace = "contracts"

// Event is a single contract event observed on the ledger feed.
// Payload holds the event's positional data fields in human-readable
// form; Phase describes where in block execution the event fired.
type Event struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Namespace  string    `json:"namespace"`
	Payload    []string  `json:"payload"`
	Phase      string    `json:"phase"`
	Block      uint64    `json:"block"`
	ObservedAt time.Time `json:"observed_at"`
}
