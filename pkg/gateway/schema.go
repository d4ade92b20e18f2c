package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/pilot/pkg/agent/tools"
	"github.com/entrhq/pilot/pkg/types"
	"github.com/xeipuuv/gojsonschema"
)

// SchemaValidator checks invocation arguments against each tool's
// input_schema before dispatching. Tools without a usable schema pass
// through unchecked.
type SchemaValidator struct {
	next    Gateway
	schemas map[string]*gojsonschema.Schema
}

// NewSchemaValidator compiles the input schemas of specs. A schema that
// fails to compile is logged and that tool is left unchecked.
func NewSchemaValidator(gw Gateway, specs []tools.Spec) *SchemaValidator {
	v := &SchemaValidator{
		next:    gw,
		schemas: make(map[string]*gojsonschema.Schema, len(specs)),
	}
	for _, spec := range specs {
		if len(spec.InputSchema) == 0 {
			continue
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(spec.InputSchema))
		if err != nil {
			debugLog.Warnf("Ignoring invalid input schema for tool %s: %v", spec.Name, err)
			continue
		}
		v.schemas[spec.Name] = schema
	}
	return v
}

// Validate returns an error describing every schema violation in args.
func (v *SchemaValidator) Validate(name string, args map[string]interface{}) error {
	schema, ok := v.schemas[name]
	if !ok {
		return nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("failed to validate arguments: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("invalid arguments for %s: %s", name, strings.Join(problems, "; "))
}

// Execute validates args and dispatches only when they conform.
func (v *SchemaValidator) Execute(ctx context.Context, name string, args map[string]interface{}, invocationID string) types.ToolResult {
	if err := v.Validate(name, args); err != nil {
		debugLog.Warnf("Rejected call to %s: %v", name, err)
		return types.NewErrorResult(invocationID, "Error: "+err.Error())
	}
	return v.next.Execute(ctx, name, args, invocationID)
}

// ListTools lists the wrapped gateway's tools.
func (v *SchemaValidator) ListTools(ctx context.Context) ([]tools.Spec, error) {
	return ListTools(ctx, v.next)
}

// Close closes the wrapped gateway.
func (v *SchemaValidator) Close(ctx context.Context) error {
	return Close(ctx, v.next)
}
