package types

import "encoding/json"

// ActionUpsert is the only operation kind the batch import API accepts
// from this loader.
const ActionUpsert = "upsert"

// Operation is one pending upsert derived from a validated RECORD.
// Operations are created when a record passes validation and consumed
// when their containing batch is submitted.
type Operation struct {
	// Action is the operation kind, always "upsert".
	Action string `json:"action"`

	// Data is the validated record payload, passed through verbatim.
	Data json.RawMessage `json:"data"`

	// Sequence is a monotonically increasing tag unique within the
	// current batch window, used downstream for ordering.
	Sequence int64 `json:"sequence"`
}

// BatchEnvelope is the wire body of one flush: the batch's declared
// schema, the destination table, and the ordered operations.
type BatchEnvelope struct {
	Schema    json.RawMessage `json:"schema"`
	TableName string          `json:"table_name"`
	Messages  []Operation     `json:"messages"`
}
