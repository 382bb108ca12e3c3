// Package schema provides the in-memory stream schema registry and the
// record validators compiled from declared JSON schemas.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/stitchload/stitchload/internal/errors"
)

// StreamSchema holds the active declaration for one stream: the raw
// schema document, the validator compiled from it, and the declared
// key field names. Replaced wholesale by a new declaration; never merged.
type StreamSchema struct {
	Raw           json.RawMessage
	Validator     *jsonschema.Schema
	KeyProperties []string
}

// Validate checks a record payload against the compiled schema and
// returns the discriminating constraint detail on failure.
func (s *StreamSchema) Validate(record json.RawMessage) error {
	var doc interface{}
	if err := json.Unmarshal(record, &doc); err != nil {
		return errors.NewValidationError("record payload is not valid JSON", err)
	}
	if err := s.Validator.Validate(doc); err != nil {
		return errors.NewValidationError(fmt.Sprintf("record violates declared schema: %v", err), err)
	}
	return nil
}

// Registry maps stream names to their currently active schema. There is
// exactly one active schema per stream at any time, for the life of the
// run. The registry is single-writer; the dispatcher serializes access.
type Registry struct {
	streams map[string]*StreamSchema
}

// NewRegistry creates an empty registry. Every stream must be declared
// explicitly before any record referencing it is processed.
func NewRegistry() *Registry {
	return &Registry{streams: make(map[string]*StreamSchema)}
}

// Declare compiles a validator from the schema document and registers it
// for the stream, fully replacing any prior entry. A structurally invalid
// schema document fails fast and rejects the whole run.
func (r *Registry) Declare(stream string, schemaDoc json.RawMessage, keyProperties []string) error {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft4

	resource := fmt.Sprintf("stream://%s/schema.json", stream)
	if err := compiler.AddResource(resource, bytes.NewReader(schemaDoc)); err != nil {
		return errors.Wrap(errors.ErrCategorySchema, errors.CodeInvalidSchema,
			fmt.Sprintf("schema for stream %s is not a valid schema document", stream), err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return errors.Wrap(errors.ErrCategorySchema, errors.CodeInvalidSchema,
			fmt.Sprintf("schema for stream %s failed to compile", stream), err)
	}

	r.streams[stream] = &StreamSchema{
		Raw:           schemaDoc,
		Validator:     compiled,
		KeyProperties: keyProperties,
	}
	return nil
}

// SchemaFor returns the active schema for a stream.
func (r *Registry) SchemaFor(stream string) (*StreamSchema, error) {
	s, ok := r.streams[stream]
	if !ok {
		return nil, errors.NewSchemaError(errors.CodeSchemaNotDeclared,
			fmt.Sprintf("a record for stream %s was encountered before a corresponding schema", stream))
	}
	return s, nil
}

// KeyPropertiesFor returns the declared key field names for a stream.
func (r *Registry) KeyPropertiesFor(stream string) ([]string, error) {
	s, err := r.SchemaFor(stream)
	if err != nil {
		return nil, err
	}
	return s.KeyProperties, nil
}

// Declared reports whether a stream has an active schema.
func (r *Registry) Declared(stream string) bool {
	_, ok := r.streams[stream]
	return ok
}
