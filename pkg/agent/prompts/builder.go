package prompts

import (
	"strings"

	"github.com/entrhq/pilot/pkg/agent/tools"
)

// PromptBuilder constructs the system prompt for a session
type PromptBuilder struct {
	tools              []tools.Spec
	customInstructions string
	includeExamples    bool
}

// NewPromptBuilder creates a new prompt builder with default settings
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{
		tools: []tools.Spec{},
	}
}

// WithTools sets the tools advertised by the gateway
func (pb *PromptBuilder) WithTools(specs []tools.Spec) *PromptBuilder {
	pb.tools = specs
	return pb
}

// WithCustomInstructions adds operator-provided instructions
func (pb *PromptBuilder) WithCustomInstructions(instructions string) *PromptBuilder {
	pb.customInstructions = instructions
	return pb
}

// WithExamples appends a generated example call to each tool description
func (pb *PromptBuilder) WithExamples(enabled bool) *PromptBuilder {
	pb.includeExamples = enabled
	return pb
}

// Build constructs the complete system prompt by assembling all sections
func (pb *PromptBuilder) Build() string {
	var builder strings.Builder

	if pb.customInstructions != "" {
		builder.WriteString("<custom_instructions>\n")
		builder.WriteString(pb.customInstructions)
		builder.WriteString("\n</custom_instructions>\n\n")
	}

	builder.WriteString(SystemCapabilitiesPrompt)
	builder.WriteString("\n\n")

	builder.WriteString(AgentLoopPrompt)
	builder.WriteString("\n\n")

	builder.WriteString(ToolCallingPrompt)
	builder.WriteString("\n\n")

	builder.WriteString(ToolUseRulesPrompt)

	if len(pb.tools) > 0 {
		builder.WriteString("\n\nAvailable tools:\n")
		for _, spec := range pb.tools {
			builder.WriteString(spec.FormatForLLM())
			if pb.includeExamples {
				builder.WriteString("Example:\n")
				builder.WriteString(GenerateCallExample(spec))
				builder.WriteString("\n")
			}
		}
	}

	return builder.String()
}

// BuildSummarizationPrompt renders the request sent to the summarization
// session: the fixed instruction followed by "ROLE: text" lines. Non-text
// content is shown as "[Structured content]".
func BuildSummarizationPrompt(transcript []TranscriptLine) string {
	var builder strings.Builder
	builder.WriteString(SummarizationInstruction)
	for _, line := range transcript {
		builder.WriteString(strings.ToUpper(line.Role))
		builder.WriteString(": ")
		if line.Text == "" {
			builder.WriteString("[Structured content]")
		} else {
			builder.WriteString(line.Text)
		}
		builder.WriteString("\n")
	}
	return builder.String()
}

// TranscriptLine is one turn flattened for summarization
type TranscriptLine struct {
	Role string
	Text string
}
