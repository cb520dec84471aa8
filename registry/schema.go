package registry

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/goflow/orchestrator/xerrors"
)

// ValidateSchema compiles s as a JSON-Schema document to reject malformed
// declarations at descriptor-creation time, rather than only failing later
// when an input happens to violate it. An empty schema (Type == "" and no
// Properties) is treated as "no schema declared" and accepted
// unconditionally.
func ValidateSchema(s Schema) error {
	if s.Type == "" && len(s.Properties) == 0 {
		return nil
	}
	_, err := compile(s)
	return err
}

// compile builds a *jsonschema.Schema from s by first rendering it to the
// equivalent JSON-Schema document and compiling that document through
// santhosh-tekuri/jsonschema/v6.
func compile(s Schema) (*jsonschema.Schema, error) {
	doc := toJSONSchemaDoc(s)

	c := jsonschema.NewCompiler()
	const resourceName = "descriptor-schema.json"
	if err := c.AddResource(resourceName, doc); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	compiled, err := c.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return compiled, nil
}

func toJSONSchemaDoc(s Schema) map[string]any {
	doc := map[string]any{}
	if s.Type != "" {
		doc["type"] = s.Type
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			prop := map[string]any{}
			if p.Type != "" {
				prop["type"] = p.Type
			}
			if len(p.Enum) > 0 {
				enum := make([]any, len(p.Enum))
				for i, e := range p.Enum {
					enum[i] = e
				}
				prop["enum"] = enum
			}
			props[name] = prop
		}
		doc["properties"] = props
	}
	if len(s.Required) > 0 {
		doc["required"] = s.Required
	}
	return doc
}

// ValidateInput validates data against s, returning a ValidationError
// listing the first schema violation. Used by the ExecutionEngine to check
// resolved node inputs against the target agent's input schema before
// dispatch (SPEC_FULL §2 domain-stack wiring).
func ValidateInput(s Schema, data map[string]any) error {
	if s.Type == "" && len(s.Properties) == 0 {
		return nil
	}
	compiled, err := compile(s)
	if err != nil {
		return xerrors.Wrap(xerrors.KindValidation, "compiling input schema", err)
	}

	// jsonschema validates against decoded-JSON-shaped values (map[string]any,
	// []any, json.Number, ...); round-trip through encoding/json so our
	// internal map[string]any (which may carry plain Go ints/floats) matches
	// that shape instead of reimplementing JSON's decoding rules by hand.
	raw, err := json.Marshal(data)
	if err != nil {
		return xerrors.Wrap(xerrors.KindValidation, "encoding input for validation", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return xerrors.Wrap(xerrors.KindValidation, "decoding input for validation", err)
	}

	if err := compiled.Validate(normalized); err != nil {
		return xerrors.Wrap(xerrors.KindValidation, "input does not satisfy agent schema", err)
	}
	return nil
}
