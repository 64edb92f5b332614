package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePreservesObjectOrder(t *testing.T) {
	raw := json.RawMessage(`{"zebra":1,"apple":2,"mango":3}`)

	m, err := DecodeObject(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"zebra", "apple", "mango"}, m.Keys())
	assert.Equal(t, `{"zebra":1,"apple":2,"mango":3}`, m.Canonical())
}

func TestDecodeVariants(t *testing.T) {
	raw := json.RawMessage(`{"s":"x","n":1.5,"b":true,"nil":null,"l":[1,"two"],"o":{"k":"v"}}`)

	m, err := DecodeObject(raw)
	require.NoError(t, err)

	s, _ := m.Get("s")
	assert.Equal(t, String, s.Kind())
	assert.Equal(t, "x", s.Text())

	n, _ := m.Get("n")
	assert.Equal(t, Number, n.Kind())
	assert.Equal(t, 1.5, n.Float())

	b, _ := m.Get("b")
	assert.Equal(t, Bool, b.Kind())
	assert.True(t, b.IsTrue())

	null, _ := m.Get("nil")
	assert.Equal(t, Null, null.Kind())

	l, _ := m.Get("l")
	require.Equal(t, List, l.Kind())
	require.Len(t, l.Items(), 2)

	o, _ := m.Get("o")
	require.Equal(t, Object, o.Kind())
	v, ok := o.Fields().Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v.Text())
}

func TestDecodeRejectsNonObject(t *testing.T) {
	_, err := DecodeObject(json.RawMessage(`[1,2,3]`))
	assert.Error(t, err)

	_, err = DecodeObject(json.RawMessage(`not json`))
	assert.Error(t, err)
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode(json.RawMessage(`{"a":1}{"b":2}`))
	assert.Error(t, err)
}

func TestCanonicalDeterministic(t *testing.T) {
	raw := json.RawMessage(`{"cmd":"ls -la","timeout":30}`)

	a, err := DecodeObject(raw)
	require.NoError(t, err)
	b, err := DecodeObject(raw)
	require.NoError(t, err)

	assert.Equal(t, a.Canonical(), b.Canonical())
}

func TestRoundTripJSON(t *testing.T) {
	raw := json.RawMessage(`{"path":"./src","recursive":true,"depth":2}`)

	v, err := Decode(raw)
	require.NoError(t, err)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(out))
}

func TestValidateAgainstSchema(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string"}
		},
		"required": ["path"]
	}`)

	ok, err := DecodeObject(json.RawMessage(`{"path":"."}`))
	require.NoError(t, err)
	assert.NoError(t, ok.ValidateAgainst("list_files", schema))

	missing, err := DecodeObject(json.RawMessage(`{"other":1}`))
	require.NoError(t, err)
	verr := missing.ValidateAgainst("list_files", schema)
	require.Error(t, verr)

	var ve *ValidationError
	require.ErrorAs(t, verr, &ve)
	assert.Equal(t, "list_files", ve.Tool)
}

func TestDecodeInto(t *testing.T) {
	type input struct {
		Command string `json:"command"`
		Timeout int    `json:"timeout"`
	}

	m, err := DecodeObject(json.RawMessage(`{"command":"echo hi","timeout":5,"extra":"ignored"}`))
	require.NoError(t, err)

	var in input
	require.NoError(t, m.DecodeInto(&in))
	assert.Equal(t, "echo hi", in.Command)
	assert.Equal(t, 5, in.Timeout)
}
