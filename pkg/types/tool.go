package types

import "strings"

// ToolInvocation is a parsed request from the model to run one tool.
type ToolInvocation struct {
	ToolName     string                 `json:"tool"`
	Arguments    map[string]interface{} `json:"arguments"`
	InvocationID string                 `json:"invocation_id,omitempty"`
}

// Classification categorises a tool result for event emission.
type Classification string

const (
	ClassificationText  Classification = "text"
	ClassificationImage Classification = "image"
	ClassificationError Classification = "error"
)

// ToolResult is the normalised outcome of a gateway call.
type ToolResult struct {
	InvocationID   string         `json:"invocation_id"`
	Blocks         []ContentBlock `json:"blocks"`
	Classification Classification `json:"classification"`
	IsError        bool           `json:"is_error"`
}

// NewErrorResult creates an error-classified result holding a single text block.
func NewErrorResult(invocationID, message string) ToolResult {
	return ToolResult{
		InvocationID:   invocationID,
		Blocks:         []ContentBlock{TextBlock(message)},
		Classification: ClassificationError,
		IsError:        true,
	}
}

// Classify derives the classification from the result content. A result is an
// error if the gateway flagged it or the text of any text or structured block
// mentions "error"; otherwise it is
// an image if any block is an image; otherwise text.
func (r ToolResult) Classify() Classification {
	if r.IsError {
		return ClassificationError
	}
	for _, b := range r.Blocks {
		if b.Kind != BlockKindImage && strings.Contains(strings.ToLower(b.PlainText()), "error") {
			return ClassificationError
		}
	}
	for _, b := range r.Blocks {
		if b.Kind == BlockKindImage {
			return ClassificationImage
		}
	}
	return ClassificationText
}

// Texts returns the text of every text block and the text field of structured blocks.
func (r ToolResult) Texts() []string {
	var texts []string
	for _, b := range r.Blocks {
		switch b.Kind {
		case BlockKindText:
			texts = append(texts, b.Text)
		case BlockKindStructured:
			if s := b.PlainText(); s != "" {
				texts = append(texts, s)
			}
		}
	}
	return texts
}

// Summary joins the result texts with " | ", or returns fallback when there are none.
func (r ToolResult) Summary(fallback string) string {
	texts := r.Texts()
	if len(texts) == 0 {
		return fallback
	}
	return strings.Join(texts, " | ")
}
