package donation

import "fmt"

// palletEventContractEmitted is the contracts-pallet kind that carries
// a contract's own event in its payload.
const palletEventContractEmitted = "ContractEmitted"

// Decoder routes ContractEmitted payloads to the typed parsers. The
// payload layout is [contract_address, event_name, fields...]. Events
// of other kinds, and contract events this package does not know,
// decode to (nil, nil).
type Decoder struct{}

// Decode implements the monitor's decode hook.
func (Decoder) Decode(kind string, payload []string) (any, error) {
	if kind != palletEventContractEmitted {
		return nil, nil
	}
	if len(payload) < 2 {
		return nil, fmt.Errorf("contract emitted payload has %d fields, want at least 2", len(payload))
	}
	return Parse(payload[1], payload[2:])
}
