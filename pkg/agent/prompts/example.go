package prompts

import (
	"encoding/json"
	"sort"

	"github.com/entrhq/pilot/pkg/agent/tools"
)

// GenerateCallExample creates a concrete fenced tool call for a spec from its
// JSON schema. Only required properties are filled in.
func GenerateCallExample(spec tools.Spec) string {
	args := make(map[string]interface{})

	properties, _ := spec.InputSchema["properties"].(map[string]interface{})
	required := requiredSet(spec.InputSchema)
	for propName, propValue := range properties {
		propMap, ok := propValue.(map[string]interface{})
		if !ok || !required[propName] {
			continue
		}
		args[propName] = exampleValue(propMap)
	}

	call := map[string]interface{}{"tool": spec.Name, "arguments": args}
	data, err := json.Marshal(call)
	if err != nil {
		return ""
	}
	return "```json\n" + string(data) + "\n```"
}

func requiredSet(schema map[string]interface{}) map[string]bool {
	set := make(map[string]bool)
	switch req := schema["required"].(type) {
	case []interface{}:
		for _, r := range req {
			if name, ok := r.(string); ok {
				set[name] = true
			}
		}
	case []string:
		for _, name := range req {
			set[name] = true
		}
	}
	return set
}

// exampleValue produces a placeholder of the property's type
func exampleValue(propSchema map[string]interface{}) interface{} {
	if enum, ok := propSchema["enum"].([]interface{}); ok && len(enum) > 0 {
		return enum[0]
	}

	propType, _ := propSchema["type"].(string) //nolint:errcheck
	switch propType {
	case "string":
		if format, _ := propSchema["format"].(string); format == "uri" { //nolint:errcheck
			return "https://example.com"
		}
		return "value"
	case "integer":
		return 42
	case "number":
		return 3.14
	case "boolean":
		return true
	case "array":
		items, ok := propSchema["items"].(map[string]interface{})
		if !ok {
			return []interface{}{"item1", "item2"}
		}
		return []interface{}{exampleValue(items)}
	case "object":
		obj := make(map[string]interface{})
		props, _ := propSchema["properties"].(map[string]interface{})
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if propMap, ok := props[name].(map[string]interface{}); ok {
				obj[name] = exampleValue(propMap)
			}
		}
		return obj
	default:
		return "value"
	}
}
