package schema

import (
	"go.uber.org/zap"

	"github.com/BaSui01/actionflow/types"
)

// Format validates values against one schema representation. Implementations
// must be safe for concurrent use.
type Format interface {
	// Name returns the format identifier, e.g. "jsonschema" or "native".
	Name() string
	// Detect reports whether the given schema declaration belongs to this format.
	Detect(schema any) bool
	// Validate checks value against schema and returns the normalized value
	// (defaults applied). Validation failures are *types.Error of kind
	// INVALID_INPUT.
	Validate(schema any, value map[string]any) (map[string]any, error)
}

// Engine dispatches validation across registered formats. The first format
// whose Detect accepts the schema declaration wins, so callers can mix
// formats freely without naming them.
type Engine struct {
	formats []Format
	logger  *zap.Logger
}

// NewEngine creates a validation engine. With no explicit formats it
// registers the built-in JSON Schema and native field-map formats.
func NewEngine(logger *zap.Logger, formats ...Format) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(formats) == 0 {
		formats = []Format{&JSONSchemaFormat{}, &NativeFormat{}}
	}
	return &Engine{
		formats: formats,
		logger:  logger.With(zap.String("component", "schema")),
	}
}

// Register appends an additional format.
func (e *Engine) Register(f Format) {
	e.formats = append(e.formats, f)
}

// Validate validates value against the given schema declaration. A nil
// schema accepts any value unchanged. An unrecognized declaration is a
// configuration error, not a validation failure.
func (e *Engine) Validate(schema any, value map[string]any) (map[string]any, error) {
	if schema == nil {
		return value, nil
	}
	for _, f := range e.formats {
		if !f.Detect(schema) {
			continue
		}
		normalized, err := f.Validate(schema, value)
		if err != nil {
			e.logger.Debug("schema validation failed",
				zap.String("format", f.Name()),
				zap.Error(err),
			)
			return nil, err
		}
		return normalized, nil
	}
	return nil, types.NewErrorf(types.KindConfiguration,
		"unsupported schema declaration of type %T", schema)
}
