package tools

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/entrhq/pilot/pkg/types"
)

// maxToolCallSize bounds the text the parser will decode.
const maxToolCallSize = 10 * 1024 * 1024

// Compile regex once at package level for efficiency
var fencedJSONRegex = regexp.MustCompile("(?is)```json\\s*(\\{.*?\\})\\s*```")

// ParseResult is the outcome of ExtractToolCall. Call is meaningful only when
// Found is true; Reason explains a miss and is meant for debug logs.
type ParseResult struct {
	Call   types.ToolInvocation
	Found  bool
	Reason string
}

func notFound(reason string) ParseResult {
	return ParseResult{Reason: reason}
}

// ExtractToolCall looks for a tool invocation in model output.
//
// Accepted forms, in order:
//
//	```json
//	{"tool": "navigate", "arguments": {"url": "https://example.com"}}
//	```
//
// or a response whose trimmed text is exactly one JSON object. JSON embedded
// in prose without a fence is not a tool call. The decoded object must have
// exactly the keys "tool" (non-empty string) and "arguments" (object).
//
// ExtractToolCall never panics and performs no I/O.
func ExtractToolCall(text string) ParseResult {
	if len(text) > maxToolCallSize {
		return notFound("response exceeds maximum tool call size")
	}

	candidate := ""
	if m := fencedJSONRegex.FindStringSubmatch(text); len(m) == 2 {
		candidate = m[1]
	} else {
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
			candidate = trimmed
		}
	}
	if candidate == "" {
		return notFound("no JSON object found")
	}

	return decodeToolCall([]byte(candidate))
}

// HasToolCall reports whether text contains a valid tool invocation.
func HasToolCall(text string) bool {
	return ExtractToolCall(text).Found
}

func decodeToolCall(data []byte) ParseResult {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return notFound("invalid JSON: " + err.Error())
	}
	if dec.More() {
		return notFound("trailing data after JSON object")
	}

	if len(raw) != 2 {
		return notFound("object must have exactly the keys tool and arguments")
	}
	rawTool, ok := raw["tool"]
	if !ok {
		return notFound("missing tool key")
	}
	rawArgs, ok := raw["arguments"]
	if !ok {
		return notFound("missing arguments key")
	}

	var name string
	if err := json.Unmarshal(rawTool, &name); err != nil {
		return notFound("tool must be a string")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return notFound("tool name is empty")
	}

	var args map[string]interface{}
	argDec := json.NewDecoder(bytes.NewReader(rawArgs))
	argDec.UseNumber()
	if err := argDec.Decode(&args); err != nil || args == nil {
		return notFound("arguments must be an object")
	}

	return ParseResult{
		Call:  types.ToolInvocation{ToolName: name, Arguments: normalizeNumbers(args).(map[string]interface{})},
		Found: true,
	}
}

// normalizeNumbers turns json.Number values into int64 when integral and
// float64 otherwise, so arguments round-trip to the gateway unchanged.
func normalizeNumbers(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalizeNumbers(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeNumbers(item)
		}
		return val
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		return v
	}
}
