package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	loadererr "github.com/stitchload/stitchload/internal/errors"
)

const usersSchema = `{
	"type": "object",
	"properties": {
		"id": {"type": "integer"},
		"name": {"type": "string"}
	},
	"required": ["id"]
}`

func TestDeclareAndValidate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("users", json.RawMessage(usersSchema), []string{"id"}))

	s, err := r.SchemaFor("users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, s.KeyProperties)
	assert.JSONEq(t, usersSchema, string(s.Raw))

	assert.NoError(t, s.Validate(json.RawMessage(`{"id": 1, "name": "ada"}`)))
}

func TestValidate_Failures(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("users", json.RawMessage(usersSchema), []string{"id"}))
	s, err := r.SchemaFor("users")
	require.NoError(t, err)

	tests := []struct {
		name   string
		record string
	}{
		{"missing required id", `{"name": "ada"}`},
		{"wrong type for id", `{"id": "one"}`},
		{"not an object", `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(json.RawMessage(tt.record))
			require.Error(t, err)
			assert.Equal(t, loadererr.CodeValidationFailed, loadererr.GetCode(err))
		})
	}
}

func TestValidate_ErrorNamesFailingConstraint(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("users", json.RawMessage(usersSchema), []string{"id"}))
	s, err := r.SchemaFor("users")
	require.NoError(t, err)

	verr := s.Validate(json.RawMessage(`{"name": "ada"}`))
	require.Error(t, verr)
	assert.Contains(t, verr.Error(), "id")
}

func TestSchemaFor_Undeclared(t *testing.T) {
	r := NewRegistry()

	_, err := r.SchemaFor("orders")
	require.Error(t, err)
	assert.Equal(t, loadererr.CodeSchemaNotDeclared, loadererr.GetCode(err))

	var le *loadererr.LoaderError
	require.True(t, errors.As(err, &le))
	assert.Contains(t, le.Message, "orders")
}

func TestKeyPropertiesFor_Undeclared(t *testing.T) {
	r := NewRegistry()
	_, err := r.KeyPropertiesFor("orders")
	require.Error(t, err)
	assert.Equal(t, loadererr.CodeSchemaNotDeclared, loadererr.GetCode(err))
}

func TestDeclare_InvalidSchemaDocument(t *testing.T) {
	r := NewRegistry()

	err := r.Declare("users", json.RawMessage(`{"type": 12}`), nil)
	require.Error(t, err)
	assert.Equal(t, loadererr.CodeInvalidSchema, loadererr.GetCode(err))
	assert.False(t, r.Declared("users"))
}

func TestDeclare_ReplacesExisting(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("users", json.RawMessage(usersSchema), []string{"id"}))

	// Redeclare with a stricter schema; the old one must be fully replaced.
	stricter := `{
		"type": "object",
		"properties": {"id": {"type": "integer"}, "email": {"type": "string"}},
		"required": ["id", "email"]
	}`
	require.NoError(t, r.Declare("users", json.RawMessage(stricter), []string{"email"}))

	s, err := r.SchemaFor("users")
	require.NoError(t, err)
	assert.Equal(t, []string{"email"}, s.KeyProperties)

	// Valid under the old schema, invalid under the replacement.
	err = s.Validate(json.RawMessage(`{"id": 1}`))
	require.Error(t, err)
}

func TestDeclared(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Declared("users"))
	require.NoError(t, r.Declare("users", json.RawMessage(usersSchema), nil))
	assert.True(t, r.Declared("users"))
}
