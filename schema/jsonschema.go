package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"

	"github.com/BaSui01/actionflow/types"
)

// SchemaType represents JSON Schema types.
type SchemaType string

const (
	SchemaTypeString  SchemaType = "string"
	SchemaTypeNumber  SchemaType = "number"
	SchemaTypeInteger SchemaType = "integer"
	SchemaTypeBoolean SchemaType = "boolean"
	SchemaTypeNull    SchemaType = "null"
	SchemaTypeObject  SchemaType = "object"
	SchemaTypeArray   SchemaType = "array"
)

// JSONSchema represents a JSON Schema definition (draft-07 subset).
type JSONSchema struct {
	Schema      string `json:"$schema,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	Type SchemaType `json:"type,omitempty"`

	// Object properties
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	AdditionalProperties *bool                  `json:"additionalProperties,omitempty"`

	// Array items
	Items    *JSONSchema `json:"items,omitempty"`
	MinItems *int        `json:"minItems,omitempty"`
	MaxItems *int        `json:"maxItems,omitempty"`

	// Enum and const
	Enum  []any `json:"enum,omitempty"`
	Const any   `json:"const,omitempty"`

	// String constraints
	MinLength *int    `json:"minLength,omitempty"`
	MaxLength *int    `json:"maxLength,omitempty"`
	Pattern   string  `json:"pattern,omitempty"`
	Format    string  `json:"format,omitempty"`

	// Numeric constraints
	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`

	// Default value
	Default any `json:"default,omitempty"`
}

// NewObjectSchema creates a new object schema.
func NewObjectSchema() *JSONSchema {
	return &JSONSchema{
		Type:       SchemaTypeObject,
		Properties: make(map[string]*JSONSchema),
	}
}

// NewStringSchema creates a new string schema.
func NewStringSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeString}
}

// NewNumberSchema creates a new number schema.
func NewNumberSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeNumber}
}

// NewIntegerSchema creates a new integer schema.
func NewIntegerSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeInteger}
}

// NewBooleanSchema creates a new boolean schema.
func NewBooleanSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeBoolean}
}

// NewEnumSchema creates a new enum schema.
func NewEnumSchema(values ...any) *JSONSchema {
	return &JSONSchema{Enum: values}
}

// AddProperty adds a property to an object schema.
func (s *JSONSchema) AddProperty(name string, prop *JSONSchema) *JSONSchema {
	if s.Properties == nil {
		s.Properties = make(map[string]*JSONSchema)
	}
	s.Properties[name] = prop
	return s
}

// AddRequired adds required field names.
func (s *JSONSchema) AddRequired(names ...string) *JSONSchema {
	s.Required = append(s.Required, names...)
	return s
}

// WithDescription sets the description.
func (s *JSONSchema) WithDescription(desc string) *JSONSchema {
	s.Description = desc
	return s
}

// WithDefault sets the default value.
func (s *JSONSchema) WithDefault(v any) *JSONSchema {
	s.Default = v
	return s
}

// ToJSON serializes the schema to JSON.
func (s *JSONSchema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// FromJSON deserializes a schema from JSON.
func FromJSON(data []byte) (*JSONSchema, error) {
	var schema JSONSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON schema: %w", err)
	}
	return &schema, nil
}

// JSONSchemaFormat implements Format for *JSONSchema declarations.
type JSONSchemaFormat struct{}

// Name implements Format.
func (f *JSONSchemaFormat) Name() string { return "jsonschema" }

// Detect implements Format.
func (f *JSONSchemaFormat) Detect(schema any) bool {
	_, ok := schema.(*JSONSchema)
	return ok
}

// Validate implements Format. The top-level declaration must describe an
// object, since action params and outputs are maps.
func (f *JSONSchemaFormat) Validate(schema any, value map[string]any) (map[string]any, error) {
	s, ok := schema.(*JSONSchema)
	if !ok {
		return nil, types.NewErrorf(types.KindConfiguration,
			"jsonschema format cannot validate declaration of type %T", schema)
	}
	if s.Type != "" && s.Type != SchemaTypeObject {
		return nil, types.NewConfiguration("top-level schema must describe an object")
	}

	normalized := make(map[string]any, len(value))
	for k, v := range value {
		normalized[k] = v
	}

	for _, name := range s.Required {
		if _, present := normalized[name]; !present {
			prop := s.Properties[name]
			if prop != nil && prop.Default != nil {
				continue // filled below
			}
			return nil, types.NewErrorf(types.KindInvalidInput,
				"missing required field %q", name).
				WithDetail("field", name)
		}
	}

	for name, prop := range s.Properties {
		v, present := normalized[name]
		if !present {
			if prop.Default != nil {
				normalized[name] = prop.Default
			}
			continue
		}
		if err := validateValue(name, prop, v); err != nil {
			return nil, err
		}
	}

	if s.AdditionalProperties != nil && !*s.AdditionalProperties {
		for name := range normalized {
			if _, declared := s.Properties[name]; !declared {
				return nil, types.NewErrorf(types.KindInvalidInput,
					"unknown field %q", name).
					WithDetail("field", name)
			}
		}
	}

	return normalized, nil
}

// validateValue checks one value against one property schema.
func validateValue(path string, s *JSONSchema, v any) error {
	if s == nil {
		return nil
	}

	if s.Const != nil && !looseEqual(v, s.Const) {
		return fieldError(path, fmt.Sprintf("must equal %v", s.Const))
	}
	if len(s.Enum) > 0 {
		found := false
		for _, allowed := range s.Enum {
			if looseEqual(v, allowed) {
				found = true
				break
			}
		}
		if !found {
			return fieldError(path, fmt.Sprintf("value %v not in enum %v", v, s.Enum))
		}
	}

	switch s.Type {
	case "", SchemaTypeNull:
		if s.Type == SchemaTypeNull && v != nil {
			return fieldError(path, "must be null")
		}
		return nil

	case SchemaTypeString:
		str, ok := v.(string)
		if !ok {
			return fieldError(path, fmt.Sprintf("expected string, got %T", v))
		}
		if s.MinLength != nil && len(str) < *s.MinLength {
			return fieldError(path, fmt.Sprintf("length %d below minLength %d", len(str), *s.MinLength))
		}
		if s.MaxLength != nil && len(str) > *s.MaxLength {
			return fieldError(path, fmt.Sprintf("length %d above maxLength %d", len(str), *s.MaxLength))
		}
		if s.Pattern != "" {
			re, err := regexp.Compile(s.Pattern)
			if err != nil {
				return types.NewErrorf(types.KindConfiguration,
					"invalid pattern for field %q: %v", path, err)
			}
			if !re.MatchString(str) {
				return fieldError(path, fmt.Sprintf("does not match pattern %q", s.Pattern))
			}
		}
		return nil

	case SchemaTypeNumber, SchemaTypeInteger:
		f, ok := toFloat(v)
		if !ok {
			return fieldError(path, fmt.Sprintf("expected %s, got %T", s.Type, v))
		}
		if s.Type == SchemaTypeInteger && f != math.Trunc(f) {
			return fieldError(path, fmt.Sprintf("expected integer, got %v", v))
		}
		if s.Minimum != nil && f < *s.Minimum {
			return fieldError(path, fmt.Sprintf("%v below minimum %v", f, *s.Minimum))
		}
		if s.Maximum != nil && f > *s.Maximum {
			return fieldError(path, fmt.Sprintf("%v above maximum %v", f, *s.Maximum))
		}
		return nil

	case SchemaTypeBoolean:
		if _, ok := v.(bool); !ok {
			return fieldError(path, fmt.Sprintf("expected boolean, got %T", v))
		}
		return nil

	case SchemaTypeObject:
		m, ok := v.(map[string]any)
		if !ok {
			return fieldError(path, fmt.Sprintf("expected object, got %T", v))
		}
		for _, name := range s.Required {
			if _, present := m[name]; !present {
				return fieldError(path+"."+name, "missing required field")
			}
		}
		for name, prop := range s.Properties {
			if inner, present := m[name]; present {
				if err := validateValue(path+"."+name, prop, inner); err != nil {
					return err
				}
			}
		}
		return nil

	case SchemaTypeArray:
		items, ok := v.([]any)
		if !ok {
			return fieldError(path, fmt.Sprintf("expected array, got %T", v))
		}
		if s.MinItems != nil && len(items) < *s.MinItems {
			return fieldError(path, fmt.Sprintf("length %d below minItems %d", len(items), *s.MinItems))
		}
		if s.MaxItems != nil && len(items) > *s.MaxItems {
			return fieldError(path, fmt.Sprintf("length %d above maxItems %d", len(items), *s.MaxItems))
		}
		if s.Items != nil {
			for i, item := range items {
				if err := validateValue(fmt.Sprintf("%s[%d]", path, i), s.Items, item); err != nil {
					return err
				}
			}
		}
		return nil

	default:
		return types.NewErrorf(types.KindConfiguration,
			"unknown schema type %q for field %q", s.Type, path)
	}
}

func fieldError(path, msg string) *types.Error {
	return types.NewErrorf(types.KindInvalidInput, "field %q: %s", path, msg).
		WithDetail("field", path)
}

// toFloat widens any Go numeric into float64 for range checks.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// looseEqual compares enum/const candidates tolerating numeric widening.
// Enum/const members may be objects or arrays, so the fallback is a deep
// comparison; a bare == would panic on uncomparable dynamic types.
func looseEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}
