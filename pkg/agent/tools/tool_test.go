package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func navigateSpec() Spec {
	return Spec{
		Name:        "navigate",
		Description: "Open a URL in the browser",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"url":     map[string]interface{}{"type": "string", "description": "Address to open"},
				"wait_ms": map[string]interface{}{"type": "integer"},
			},
			"required": []interface{}{"url"},
		},
	}
}

func TestSpec_Parameters(t *testing.T) {
	params := navigateSpec().Parameters()

	assert.Equal(t, []Parameter{
		{Name: "url", Description: "Address to open", Required: true},
		{Name: "wait_ms", Description: "No description", Required: false},
	}, params)

	assert.Nil(t, Spec{Name: "screenshot"}.Parameters())
}

func TestSpec_FormatForLLM(t *testing.T) {
	want := "\nTool: navigate\nDescription: Open a URL in the browser\nArguments:\n" +
		"- url: Address to open (required)\n" +
		"- wait_ms: No description\n"
	assert.Equal(t, want, navigateSpec().FormatForLLM())

	assert.Equal(t, "\nTool: screenshot\nDescription: Capture the page\n",
		Spec{Name: "screenshot", Description: "Capture the page"}.FormatForLLM())
}

func TestFormatSpecsAndNames(t *testing.T) {
	specs := []Spec{navigateSpec(), {Name: "screenshot", Description: "Capture"}}

	assert.Contains(t, FormatSpecs(specs), "Tool: navigate")
	assert.Contains(t, FormatSpecs(specs), "Tool: screenshot")
	assert.Equal(t, []string{"navigate", "screenshot"}, Names(specs))
}
