package fnspec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// compiledSchema wraps a compiled JSON Schema for a CodeSpec's argument
// list. Compilation happens once and is cached on the owning CodeSpec:
// eagerly when Build registers the spec, or on the first ValidateArgs call
// for a spec that was never registered.
type compiledSchema struct {
	schema *jsonschema.Schema
}

func jsonTypeFor(t ArgType) string {
	switch t {
	case ArgString:
		return "string"
	case ArgInt:
		return "integer"
	case ArgFloat:
		return "number"
	case ArgBool:
		return "boolean"
	default:
		return "string"
	}
}

// ArgSchemaJSON renders a flat primitive argument list as a JSON Schema
// object document: every declared argument is required and additional
// properties are rejected, matching the spec's closed, primitives-only
// argument model. Provider adapters use this to declare tool argument
// shapes to the model; compileSchema uses it to build the schema it
// validates invocation args against.
func ArgSchemaJSON(args []ArgSpec) map[string]any {
	properties := make(map[string]any, len(args))
	required := make([]string, 0, len(args))
	for _, a := range args {
		properties[a.Name] = map[string]any{
			"type":        jsonTypeFor(a.Type),
			"description": a.Description,
		}
		required = append(required, a.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// compileSchema builds a compiled JSON Schema validator from a flat
// primitive argument list.
func compileSchema(args []ArgSpec) *compiledSchema {
	doc := ArgSchemaJSON(args)

	buf, err := json.Marshal(doc)
	if err != nil {
		// The document above is built entirely from static shapes; a
		// marshal failure here would indicate a programming error, not a
		// runtime condition callers can act on.
		panic(fmt.Sprintf("fnspec: failed to marshal generated schema: %v", err))
	}

	compiler := jsonschema.NewCompiler()
	const uri = "mem://agentcore/argschema.json"
	if err := compiler.AddResource(uri, bytes.NewReader(buf)); err != nil {
		panic(fmt.Sprintf("fnspec: failed to register generated schema: %v", err))
	}
	schema, err := compiler.Compile(uri)
	if err != nil {
		panic(fmt.Sprintf("fnspec: failed to compile generated schema: %v", err))
	}
	return &compiledSchema{schema: schema}
}

// Validate checks args against the compiled schema, returning a
// *schemaValidationError that wraps the library's validation error on
// failure. specName is used only to enrich the error message.
func (c *compiledSchema) Validate(specName string, args map[string]any) error {
	if c == nil || c.schema == nil {
		return nil
	}
	// jsonschema validates against any decoded via encoding/json semantics;
	// round-trip through JSON so numeric types normalize consistently
	// regardless of how callers constructed the args map.
	buf, err := json.Marshal(args)
	if err != nil {
		return errf("spec %q: failed to encode arguments: %w", specName, err)
	}
	var decoded any
	if err := json.Unmarshal(buf, &decoded); err != nil {
		return errf("spec %q: failed to decode arguments: %w", specName, err)
	}
	if err := c.schema.Validate(decoded); err != nil {
		return &schemaValidationError{specName: specName, cause: err}
	}
	return nil
}

// schemaValidationError adapts a jsonschema.ValidationError to the module's
// error conventions (errors.Is/As, concise rendering via toolerrors.Concise).
type schemaValidationError struct {
	specName string
	cause    error
}

func (e *schemaValidationError) Error() string {
	return fmt.Sprintf("spec %q: argument validation failed: %v", e.specName, e.cause)
}

func (e *schemaValidationError) Unwrap() error { return e.cause }
