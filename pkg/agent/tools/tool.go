// Package tools describes the tools a remote gateway offers and parses tool
// invocations out of model responses.
package tools

import (
	"fmt"
	"sort"
	"strings"
)

// Spec describes one tool advertised by the gateway.
//
// Example invocation produced by the model:
//
//	```json
//	{"tool": "navigate", "arguments": {"url": "https://example.com"}}
//	```
type Spec struct {
	// Name is the unique identifier used in tool calls (e.g., "navigate")
	Name string `json:"name"`

	// Description is a human-readable description of what the tool does
	Description string `json:"description"`

	// InputSchema is the JSON schema for the tool's arguments
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

// Parameter is one argument extracted from a tool's input schema.
type Parameter struct {
	Name        string
	Description string
	Required    bool
}

// Parameters lists the schema properties in name order.
func (s Spec) Parameters() []Parameter {
	props, _ := s.InputSchema["properties"].(map[string]interface{})
	if len(props) == 0 {
		return nil
	}

	required := make(map[string]bool)
	switch req := s.InputSchema["required"].(type) {
	case []interface{}:
		for _, r := range req {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	case []string:
		for _, name := range req {
			required[name] = true
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]Parameter, 0, len(names))
	for _, name := range names {
		desc := "No description"
		if prop, ok := props[name].(map[string]interface{}); ok {
			if d, ok := prop["description"].(string); ok && d != "" {
				desc = d
			}
		}
		params = append(params, Parameter{Name: name, Description: desc, Required: required[name]})
	}
	return params
}

// FormatForLLM renders the spec as plain text for a system prompt.
func (s Spec) FormatForLLM() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nTool: %s\nDescription: %s\n", s.Name, s.Description)

	params := s.Parameters()
	if len(params) == 0 {
		return b.String()
	}

	b.WriteString("Arguments:\n")
	for _, p := range params {
		fmt.Fprintf(&b, "- %s: %s", p.Name, p.Description)
		if p.Required {
			b.WriteString(" (required)")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatSpecs renders every spec for a system prompt.
func FormatSpecs(specs []Spec) string {
	var b strings.Builder
	for _, s := range specs {
		b.WriteString(s.FormatForLLM())
	}
	return b.String()
}

// Names returns the names of specs in order.
func Names(specs []Spec) []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}
