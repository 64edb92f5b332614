package value

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// ValidationError reports arguments rejected by a tool's declared schema.
type ValidationError struct {
	Tool   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %s", e.Tool, e.Reason)
}

// ValidateAgainst checks the map against a JSON Schema document.
func (m *Map) ValidateAgainst(tool string, schemaJSON json.RawMessage) error {
	var schema jsonschema.Schema
	if err := json.Unmarshal(schemaJSON, &schema); err != nil {
		return fmt.Errorf("tool %q declares an invalid schema: %w", tool, err)
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("tool %q schema does not resolve: %w", tool, err)
	}

	if err := resolved.Validate(m.MapInterface()); err != nil {
		return &ValidationError{Tool: tool, Reason: err.Error()}
	}
	return nil
}

// DecodeInto decodes the map into a typed input struct. Unknown keys are
// tolerated so that forward-compatible model output does not hard-fail.
func (m *Map) DecodeInto(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(m.MapInterface())
}
