// Package types provides the core protocol data types for stitchload.
package types

import (
	"encoding/json"
)

// Message kinds as they appear on the wire. The vocabulary is preserved
// literally for compatibility with upstream producers.
const (
	KindRecord = "RECORD"
	KindState  = "STATE"
	KindSchema = "SCHEMA"
)

// Message represents a single decoded line from the input stream.
// Fields are raw JSON so that absence can be distinguished from an
// explicit null (a STATE value of null is legal and meaningful).
type Message struct {
	// Type is the message kind discriminator: RECORD, STATE, or SCHEMA.
	Type string `json:"type"`

	// Stream names the dataset a RECORD or SCHEMA message belongs to.
	Stream string `json:"stream,omitempty"`

	// Record is the data payload of a RECORD message.
	Record json.RawMessage `json:"record,omitempty"`

	// Schema is the JSON schema document of a SCHEMA message.
	Schema json.RawMessage `json:"schema,omitempty"`

	// Value is the opaque checkpoint payload of a STATE message.
	Value json.RawMessage `json:"value,omitempty"`

	// KeyProperties lists the key field names declared by a SCHEMA message.
	KeyProperties []string `json:"key_properties,omitempty"`
}

// rawMessage mirrors Message with every field left undecoded so that
// field presence can be checked before interpretation.
type rawMessage struct {
	Type          *string         `json:"type"`
	Stream        *string         `json:"stream"`
	Record        json.RawMessage `json:"record"`
	Schema        json.RawMessage `json:"schema"`
	Value         json.RawMessage `json:"value"`
	KeyProperties *[]string       `json:"key_properties"`
}

// DecodedMessage is a Message plus presence flags for the fields whose
// absence the dispatcher must detect.
type DecodedMessage struct {
	Message

	// HasType reports whether the type discriminator was present.
	HasType bool

	// HasStream reports whether the stream field was present.
	HasStream bool

	// HasValue reports whether the value field was present (it may
	// still hold JSON null).
	HasValue bool

	// HasKeyProperties reports whether key_properties was present.
	HasKeyProperties bool
}

// DecodeMessage parses one input line into a DecodedMessage. It returns
// an error when the line is not exactly one JSON object; field-level
// requirements are the dispatcher's concern. json.Unmarshal is used
// rather than a streaming decoder so that trailing data after the
// object is an error instead of being silently discarded.
func DecodeMessage(line []byte) (*DecodedMessage, error) {
	var raw rawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, err
	}

	m := &DecodedMessage{
		HasType:          raw.Type != nil,
		HasStream:        raw.Stream != nil,
		HasValue:         raw.Value != nil || hasField(line, "value"),
		HasKeyProperties: raw.KeyProperties != nil,
	}
	if raw.Type != nil {
		m.Type = *raw.Type
	}
	if raw.Stream != nil {
		m.Stream = *raw.Stream
	}
	m.Record = raw.Record
	m.Schema = raw.Schema
	m.Value = raw.Value
	if raw.KeyProperties != nil {
		m.KeyProperties = *raw.KeyProperties
	}
	return m, nil
}

// hasField reports whether a top-level key is present in the object,
// distinguishing {"value":null} from a missing value field.
func hasField(line []byte, key string) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(line, &probe); err != nil {
		return false
	}
	_, ok := probe[key]
	return ok
}
