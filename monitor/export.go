package monitor

import (
	"encoding/json"
	"fmt"
	"time"
)

// exportSchema identifies the export document layout.
const exportSchema = "dotnation.events.v1"

// exportDocument is the self-describing envelope written by
// ExportEvents and read back by ParseExportedEvents.
type exportDocument struct {
	Schema     string    `json:"schema"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Events     []Event   `json:"events"`
}

func marshalExport(events []Event, now time.Time) ([]byte, error) {
	doc := exportDocument{
		Schema:     exportSchema,
		ExportedAt: now,
		Count:      len(events),
		Events:     events,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding export document: %w", err)
	}
	return data, nil
}

// ParseExportedEvents restores the event sequence produced by
// ExportEvents, preserving the exported order.
func ParseExportedEvents(data []byte) ([]Event, error) {
	var doc exportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding export document: %w", err)
	}
	if doc.Schema != exportSchema {
		return nil, fmt.Errorf("unsupported export schema %q", doc.Schema)
	}
	if doc.Count != len(doc.Events) {
		return nil, fmt.Errorf("export count %d does not match %d events", doc.Count, len(doc.Events))
	}
	return doc.Events, nil
}
