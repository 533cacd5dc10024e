package schema

import (
	"fmt"

	"github.com/BaSui01/actionflow/types"
)

// Field declares one parameter in the native field-map format. The zero
// value accepts anything, so sparse declarations stay cheap to write.
type Field struct {
	// Type is one of "string", "number", "integer", "boolean", "map",
	// "list", "any". Empty means "any".
	Type string
	// Required rejects the value set when the field is absent and no
	// default is declared.
	Required bool
	// Default fills the field when absent.
	Default any
	// Enum restricts the accepted values.
	Enum []any
	// Doc is a human-readable description, not used in validation.
	Doc string
}

// Fields is a native schema declaration: field name to constraint.
type Fields map[string]Field

// NativeFormat implements Format for Fields declarations.
type NativeFormat struct{}

// Name implements Format.
func (f *NativeFormat) Name() string { return "native" }

// Detect implements Format.
func (f *NativeFormat) Detect(schema any) bool {
	switch schema.(type) {
	case Fields, map[string]Field:
		return true
	default:
		return false
	}
}

// Validate implements Format. Unknown keys pass through untouched; the
// native format constrains only what it declares.
func (f *NativeFormat) Validate(schema any, value map[string]any) (map[string]any, error) {
	var fields Fields
	switch s := schema.(type) {
	case Fields:
		fields = s
	case map[string]Field:
		fields = s
	default:
		return nil, types.NewErrorf(types.KindConfiguration,
			"native format cannot validate declaration of type %T", schema)
	}

	normalized := make(map[string]any, len(value))
	for k, v := range value {
		normalized[k] = v
	}

	for name, field := range fields {
		v, present := normalized[name]
		if !present {
			if field.Default != nil {
				normalized[name] = field.Default
				continue
			}
			if field.Required {
				return nil, types.NewErrorf(types.KindInvalidInput,
					"missing required field %q", name).
					WithDetail("field", name)
			}
			continue
		}

		if err := checkNativeType(name, field.Type, v); err != nil {
			return nil, err
		}

		if len(field.Enum) > 0 {
			found := false
			for _, allowed := range field.Enum {
				if looseEqual(v, allowed) {
					found = true
					break
				}
			}
			if !found {
				return nil, fieldError(name, fmt.Sprintf("value %v not in enum %v", v, field.Enum))
			}
		}
	}

	return normalized, nil
}

func checkNativeType(name, typ string, v any) error {
	switch typ {
	case "", "any":
		return nil
	case "string":
		if _, ok := v.(string); !ok {
			return fieldError(name, fmt.Sprintf("expected string, got %T", v))
		}
	case "number":
		if _, ok := toFloat(v); !ok {
			return fieldError(name, fmt.Sprintf("expected number, got %T", v))
		}
	case "integer":
		f, ok := toFloat(v)
		if !ok || f != float64(int64(f)) {
			return fieldError(name, fmt.Sprintf("expected integer, got %v", v))
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return fieldError(name, fmt.Sprintf("expected boolean, got %T", v))
		}
	case "map":
		if _, ok := v.(map[string]any); !ok {
			return fieldError(name, fmt.Sprintf("expected map, got %T", v))
		}
	case "list":
		if _, ok := v.([]any); !ok {
			return fieldError(name, fmt.Sprintf("expected list, got %T", v))
		}
	default:
		return types.NewErrorf(types.KindConfiguration,
			"unknown native field type %q for field %q", typ, name)
	}
	return nil
}
