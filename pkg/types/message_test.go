package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage_Record(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"type": "RECORD", "stream": "users", "record": {"id": 1}}`))
	require.NoError(t, err)

	assert.True(t, m.HasType)
	assert.Equal(t, KindRecord, m.Type)
	assert.True(t, m.HasStream)
	assert.Equal(t, "users", m.Stream)
	assert.JSONEq(t, `{"id": 1}`, string(m.Record))
}

func TestDecodeMessage_Schema(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"type": "SCHEMA", "stream": "users", "schema": {"type": "object"}, "key_properties": ["id"]}`))
	require.NoError(t, err)

	assert.Equal(t, KindSchema, m.Type)
	assert.True(t, m.HasKeyProperties)
	assert.Equal(t, []string{"id"}, m.KeyProperties)
	assert.JSONEq(t, `{"type": "object"}`, string(m.Schema))
}

func TestDecodeMessage_State(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"type": "STATE", "value": {"bookmark": 3}}`))
	require.NoError(t, err)

	assert.Equal(t, KindState, m.Type)
	assert.True(t, m.HasValue)
	assert.JSONEq(t, `{"bookmark": 3}`, string(m.Value))
}

func TestDecodeMessage_PresenceFlags(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		hasType bool
		hasStrm bool
		hasVal  bool
		hasKeys bool
	}{
		{"all absent", `{}`, false, false, false, false},
		{"type only", `{"type": "STATE"}`, true, false, false, false},
		{"explicit null value is present", `{"type": "STATE", "value": null}`, true, false, true, false},
		{"empty key_properties is present", `{"type": "SCHEMA", "stream": "s", "schema": {}, "key_properties": []}`, true, true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := DecodeMessage([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, tt.hasType, m.HasType, "HasType")
			assert.Equal(t, tt.hasStrm, m.HasStream, "HasStream")
			assert.Equal(t, tt.hasVal, m.HasValue, "HasValue")
			assert.Equal(t, tt.hasKeys, m.HasKeyProperties, "HasKeyProperties")
		})
	}
}

func TestDecodeMessage_NullValueDecodesAsNull(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"type": "STATE", "value": null}`))
	require.NoError(t, err)
	assert.True(t, m.HasValue)
	// json.RawMessage drops explicit nulls during unmarshal; the
	// presence flag is what distinguishes null from absent.
	assert.True(t, m.Value == nil || string(m.Value) == "null")
}

func TestDecodeMessage_Malformed(t *testing.T) {
	for _, line := range []string{`{not json`, `"just a string"`, `[]`} {
		_, err := DecodeMessage([]byte(line))
		assert.Error(t, err, "line %q should not decode", line)
	}
}

func TestDecodeMessage_TrailingDataRejected(t *testing.T) {
	// A line must hold exactly one JSON object; anything after it is an
	// error, never silently discarded.
	for _, line := range []string{
		`{"type": "RECORD", "stream": "s", "record": {"id": 1}}{"type": "RECORD", "stream": "s", "record": {"id": 2}}`,
		`{"type": "STATE", "value": 1} garbage`,
		`{"type": "STATE", "value": 1} {"type": "STATE", "value": 2}`,
	} {
		_, err := DecodeMessage([]byte(line))
		assert.Error(t, err, "line %q should not decode", line)
	}
}
