package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// Parameter describes one argument of a Definition
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// Handler is the function signature behind a Definition
type Handler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Definition declares a tool from a parameter list and a handler
type Definition struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Parameters  []Parameter   `json:"parameters"`
	Timeout     time.Duration `json:"-"`
	Handler     Handler       `json:"-"`
}

// Func is a Tool backed by a validated Definition
type Func struct {
	def       Definition
	schemaMap map[string]interface{}
	schema    *gojsonschema.Schema
}

var validParameterTypes = map[string]bool{
	"string": true, "number": true, "boolean": true,
	"object": true, "array": true, "integer": true,
}

// New validates the definition and compiles its argument schema
func New(def Definition) (*Func, error) {
	if err := validateDefinition(def); err != nil {
		return nil, fmt.Errorf("invalid tool definition: %w", err)
	}

	schemaMap := buildSchema(def)
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}

	return &Func{def: def, schemaMap: schemaMap, schema: schema}, nil
}

// MustNew is like New but panics on an invalid definition
func MustNew(def Definition) *Func {
	f, err := New(def)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Func) Name() string { return f.def.Name }
func (f *Func) Description() string { return f.def.Description }

// ArgsSchema returns the generated JSON schema
func (f *Func) ArgsSchema() map[string]interface{} { return f.schemaMap }

// Run validates args and invokes the handler
func (f *Func) Run(ctx context.Context, args interface{}) (interface{}, error) {
	params, ok := args.(map[string]interface{})
	if !ok {
		return nil, Serde(fmt.Errorf("arguments must be a JSON object, got %T", args))
	}

	if err := validateParameters(f.schema, params); err != nil {
		return nil, Serde(err)
	}

	for _, p := range f.def.Parameters {
		if _, set := params[p.Name]; !set && p.Default != nil {
			params[p.Name] = p.Default
		}
	}

	if f.def.Timeout <= 0 {
		out, err := f.def.Handler(ctx, params)
		if err != nil {
			return nil, asToolError(err)
		}
		return out, nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, f.def.Timeout)
	defer cancel()

	type outcome struct {
		out interface{}
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: Runtime(fmt.Errorf("tool panicked: %v", rec))}
			}
		}()
		out, err := f.def.Handler(timeoutCtx, params)
		done <- outcome{out: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, asToolError(res.err)
		}
		return res.out, nil
	case <-timeoutCtx.Done():
		return nil, Runtime(fmt.Errorf("tool execution timeout after %v", f.def.Timeout))
	}
}

func validateDefinition(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	seen := make(map[string]bool, len(def.Parameters))
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if seen[param.Name] {
			return fmt.Errorf("duplicate parameter %s", param.Name)
		}
		seen[param.Name] = true
		if !validParameterTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %q for %s", param.Type, param.Name)
		}
	}

	return nil
}

func buildSchema(def Definition) map[string]interface{} {
	properties := make(map[string]interface{}, len(def.Parameters))
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{"type": param.Type}
		if param.Description != "" {
			paramSchema["description"] = param.Description
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func validateParameters(schema *gojsonschema.Schema, params map[string]interface{}) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}

	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("validation errors: %v", errs)
	}

	return nil
}

func asToolError(err error) error {
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return Runtime(err)
}
