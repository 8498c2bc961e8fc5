package v1

import (
	"encoding/json"
	"time"
)

// Envelope is the versioned event envelope shared with the delivery service.
// Fields are append-only; consumers ignore what they do not know.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// Validate reports whether the envelope carries the fields every consumer
// routes on.
func (e Envelope) Validate() error {
	switch {
	case e.EventID == "":
		return errMissing("event_id")
	case e.EventType == "":
		return errMissing("event_type")
	case e.OccurredAt.IsZero():
		return errMissing("occurred_at")
	case len(e.Data) == 0:
		return errMissing("data")
	}
	return nil
}

type missingFieldError string

func (e missingFieldError) Error() string {
	return "event envelope missing " + string(e)
}

func errMissing(field string) error {
	return missingFieldError(field)
}
