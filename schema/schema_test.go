package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/actionflow/types"
)

func TestEngineNilSchemaAcceptsAnything(t *testing.T) {
	e := NewEngine(nil)
	v := map[string]any{"anything": 1}
	out, err := e.Validate(nil, v)
	require.NoError(t, err)
	assert.Equal(t, v, out)
}

func TestEngineDispatchesByFormat(t *testing.T) {
	e := NewEngine(nil)

	// JSON Schema declaration.
	js := NewObjectSchema().
		AddProperty("name", NewStringSchema()).
		AddRequired("name")
	out, err := e.Validate(js, map[string]any{"name": "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", out["name"])

	// Native declaration, same engine.
	native := Fields{"count": {Type: "integer", Required: true}}
	out, err = e.Validate(native, map[string]any{"count": 3})
	require.NoError(t, err)
	assert.Equal(t, 3, out["count"])
}

func TestEngineUnsupportedDeclaration(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.Validate("what is this", map[string]any{})
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindConfiguration))
}

// ====== JSON Schema 格式 ======

func TestJSONSchemaRequiredAndDefaults(t *testing.T) {
	s := NewObjectSchema().
		AddProperty("city", NewStringSchema()).
		AddProperty("units", NewStringSchema().WithDefault("metric")).
		AddRequired("city")

	f := &JSONSchemaFormat{}

	_, err := f.Validate(s, map[string]any{})
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindInvalidInput))

	out, err := f.Validate(s, map[string]any{"city": "Oslo"})
	require.NoError(t, err)
	assert.Equal(t, "metric", out["units"], "default applied")
}

func TestJSONSchemaTypeChecks(t *testing.T) {
	f := &JSONSchemaFormat{}
	s := NewObjectSchema().
		AddProperty("n", NewIntegerSchema()).
		AddProperty("flag", NewBooleanSchema()).
		AddProperty("score", NewNumberSchema())

	_, err := f.Validate(s, map[string]any{"n": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected integer")

	_, err = f.Validate(s, map[string]any{"flag": "yes"})
	require.Error(t, err)

	out, err := f.Validate(s, map[string]any{"n": 2, "score": 0.5, "flag": true})
	require.NoError(t, err)
	assert.Equal(t, 2, out["n"])
}

func TestJSONSchemaRanges(t *testing.T) {
	f := &JSONSchemaFormat{}
	min, max := 0.0, 10.0
	s := NewObjectSchema().AddProperty("n", &JSONSchema{
		Type: SchemaTypeNumber, Minimum: &min, Maximum: &max,
	})

	_, err := f.Validate(s, map[string]any{"n": -1})
	require.Error(t, err)

	_, err = f.Validate(s, map[string]any{"n": 11})
	require.Error(t, err)

	_, err = f.Validate(s, map[string]any{"n": 5})
	assert.NoError(t, err)
}

func TestJSONSchemaEnumAndPattern(t *testing.T) {
	f := &JSONSchemaFormat{}
	s := NewObjectSchema().
		AddProperty("mode", NewEnumSchema("fast", "slow")).
		AddProperty("id", &JSONSchema{Type: SchemaTypeString, Pattern: `^[a-z]+-\d+$`})

	_, err := f.Validate(s, map[string]any{"mode": "medium"})
	require.Error(t, err)

	_, err = f.Validate(s, map[string]any{"id": "AB-1"})
	require.Error(t, err)

	_, err = f.Validate(s, map[string]any{"mode": "fast", "id": "job-12"})
	assert.NoError(t, err)
}

func TestJSONSchemaEnumWithObjectMembers(t *testing.T) {
	f := &JSONSchemaFormat{}
	s := NewObjectSchema().
		AddProperty("point", NewEnumSchema(
			map[string]any{"x": 0, "y": 0},
			map[string]any{"x": 1, "y": 1},
		)).
		AddProperty("path", NewEnumSchema([]any{"a", "b"}))

	_, err := f.Validate(s, map[string]any{"point": map[string]any{"x": 1, "y": 1}})
	assert.NoError(t, err)

	_, err = f.Validate(s, map[string]any{"point": map[string]any{"x": 2, "y": 2}})
	require.Error(t, err)

	_, err = f.Validate(s, map[string]any{"path": []any{"a", "b"}})
	assert.NoError(t, err)

	_, err = f.Validate(s, map[string]any{"path": []any{"b", "a"}})
	require.Error(t, err)
}

func TestJSONSchemaConstWithObjectValue(t *testing.T) {
	f := &JSONSchemaFormat{}
	s := NewObjectSchema().
		AddProperty("origin", &JSONSchema{Const: map[string]any{"x": 0}})

	_, err := f.Validate(s, map[string]any{"origin": map[string]any{"x": 0}})
	assert.NoError(t, err)

	_, err = f.Validate(s, map[string]any{"origin": map[string]any{"x": 3}})
	require.Error(t, err)
}

func TestJSONSchemaNestedObjectAndArray(t *testing.T) {
	f := &JSONSchemaFormat{}
	inner := NewObjectSchema().
		AddProperty("host", NewStringSchema()).
		AddRequired("host")
	s := NewObjectSchema().
		AddProperty("target", inner).
		AddProperty("tags", &JSONSchema{Type: SchemaTypeArray, Items: NewStringSchema()})

	_, err := f.Validate(s, map[string]any{"target": map[string]any{}})
	require.Error(t, err)

	_, err = f.Validate(s, map[string]any{"tags": []any{"a", 1}})
	require.Error(t, err)

	_, err = f.Validate(s, map[string]any{
		"target": map[string]any{"host": "db1"},
		"tags":   []any{"a", "b"},
	})
	assert.NoError(t, err)
}

func TestJSONSchemaAdditionalProperties(t *testing.T) {
	f := &JSONSchemaFormat{}
	strict := false
	s := NewObjectSchema().AddProperty("known", NewStringSchema())
	s.AdditionalProperties = &strict

	_, err := f.Validate(s, map[string]any{"unknown": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestJSONSchemaRoundTrip(t *testing.T) {
	s := NewObjectSchema().
		AddProperty("name", NewStringSchema().WithDescription("who")).
		AddRequired("name")
	data, err := s.ToJSON()
	require.NoError(t, err)

	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, SchemaTypeObject, back.Type)
	assert.Contains(t, back.Required, "name")
}

// ====== 原生字段表格式 ======

func TestNativeRequiredDefaultEnum(t *testing.T) {
	f := &NativeFormat{}
	fields := Fields{
		"city":  {Type: "string", Required: true},
		"units": {Type: "string", Default: "metric", Enum: []any{"metric", "imperial"}},
	}

	_, err := f.Validate(fields, map[string]any{})
	require.Error(t, err)

	out, err := f.Validate(fields, map[string]any{"city": "Oslo"})
	require.NoError(t, err)
	assert.Equal(t, "metric", out["units"])

	_, err = f.Validate(fields, map[string]any{"city": "Oslo", "units": "parsec"})
	require.Error(t, err)
}

func TestNativeTypeChecks(t *testing.T) {
	f := &NativeFormat{}
	fields := Fields{
		"n":    {Type: "integer"},
		"m":    {Type: "map"},
		"l":    {Type: "list"},
		"free": {},
	}

	_, err := f.Validate(fields, map[string]any{"n": "nope"})
	require.Error(t, err)

	_, err = f.Validate(fields, map[string]any{"m": []any{}})
	require.Error(t, err)

	out, err := f.Validate(fields, map[string]any{
		"n": 4, "m": map[string]any{}, "l": []any{1}, "free": struct{}{},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, out["n"])
}

func TestNativeUnknownKeysPassThrough(t *testing.T) {
	f := &NativeFormat{}
	out, err := f.Validate(Fields{"a": {Type: "string"}}, map[string]any{"a": "x", "extra": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, out["extra"])
}
