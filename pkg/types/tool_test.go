package types

import "testing"

func TestToolResultClassify(t *testing.T) {
	tests := []struct {
		name   string
		result ToolResult
		want   Classification
	}{
		{
			name:   "plain text",
			result: ToolResult{Blocks: []ContentBlock{TextBlock("Navigated to https://x.com")}},
			want:   ClassificationText,
		},
		{
			name:   "text mentioning error in any case",
			result: ToolResult{Blocks: []ContentBlock{TextBlock("ERROR: element not found")}},
			want:   ClassificationError,
		},
		{
			name:   "gateway flagged",
			result: ToolResult{IsError: true, Blocks: []ContentBlock{TextBlock("timeout")}},
			want:   ClassificationError,
		},
		{
			name:   "image",
			result: ToolResult{Blocks: []ContentBlock{ImageBlock("png", "aGVsbG8=")}},
			want:   ClassificationImage,
		},
		{
			name:   "error wins over image",
			result: ToolResult{Blocks: []ContentBlock{ImageBlock("png", "aGVsbG8="), TextBlock("render error")}},
			want:   ClassificationError,
		},
		{
			name:   "structured only",
			result: ToolResult{Blocks: []ContentBlock{StructuredBlock(map[string]interface{}{"text": "{'title': 'x'}"})}},
			want:   ClassificationText,
		},
		{
			name:   "structured payload reporting an error",
			result: ToolResult{Blocks: []ContentBlock{StructuredBlock(map[string]interface{}{"text": `{"status":"error","message":"Element not found"}`})}},
			want:   ClassificationError,
		},
		{
			name:   "structured without text field",
			result: ToolResult{Blocks: []ContentBlock{StructuredBlock(map[string]interface{}{"status": "Error"})}},
			want:   ClassificationError,
		},
		{
			name:   "empty",
			result: ToolResult{},
			want:   ClassificationText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Classify(); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestToolResultSummary(t *testing.T) {
	result := ToolResult{Blocks: []ContentBlock{
		TextBlock("first"),
		ImageBlock("png", "aGVsbG8="),
		StructuredBlock(map[string]interface{}{"text": "second"}),
	}}

	if got := result.Summary("Operation completed"); got != "first | second" {
		t.Errorf("Summary() = %q", got)
	}
	if got := (ToolResult{}).Summary("Operation completed"); got != "Operation completed" {
		t.Errorf("Summary() fallback = %q", got)
	}
}

func TestTurnHelpers(t *testing.T) {
	turn := NewTurn(RoleUser, TextBlock("a"), ImageBlock("png", "xx"), TextBlock("b"))

	if got := turn.Text(); got != "a\nb" {
		t.Errorf("Text() = %q", got)
	}
	if !turn.HasMedia() {
		t.Error("HasMedia() should be true")
	}
	if got := len(turn.Images()); got != 1 {
		t.Errorf("Images() len = %d", got)
	}
}

func TestTaskRunAppendStep(t *testing.T) {
	run := &TaskRun{}
	first := run.AppendStep(ToolInvocation{ToolName: "a"}, ToolResult{})
	second := run.AppendStep(ToolInvocation{ToolName: "b"}, ToolResult{})

	if first.Index != 1 || second.Index != 2 {
		t.Errorf("indices = %d, %d; want 1, 2", first.Index, second.Index)
	}
	if run.Done() {
		t.Error("run should not be done without an outcome")
	}
	run.Outcome = OutcomeCompleted
	if !run.Done() {
		t.Error("run should be done")
	}
}
