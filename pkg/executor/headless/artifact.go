package headless

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/pilot/pkg/types"
)

// ArtifactWriter handles writing execution artifacts
type ArtifactWriter struct {
	outputDir string
	config    ArtifactConfig
}

// NewArtifactWriter creates a new artifact writer
func NewArtifactWriter(outputDir string, config ArtifactConfig) *ArtifactWriter {
	return &ArtifactWriter{
		outputDir: outputDir,
		config:    config,
	}
}

// WriteAll writes all configured artifact formats
func (w *ArtifactWriter) WriteAll(summary *ExecutionSummary, events []*types.AgentEvent) error {
	if err := os.MkdirAll(w.outputDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if w.config.JSON {
		if err := w.WriteExecutionJSON(summary); err != nil {
			return err
		}
	}

	if w.config.Markdown {
		if err := w.WriteSummaryMarkdown(summary); err != nil {
			return err
		}
	}

	if w.config.Events {
		if err := w.WriteEvents(events); err != nil {
			return err
		}
	}

	return nil
}

// WriteExecutionJSON writes the full execution summary as JSON
func (w *ArtifactWriter) WriteExecutionJSON(summary *ExecutionSummary) error {
	path := filepath.Join(w.outputDir, "execution.json")

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution summary: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write execution JSON: %w", writeErr)
	}

	return nil
}

// WriteEvents writes the event stream as JSON lines
func (w *ArtifactWriter) WriteEvents(events []*types.AgentEvent) error {
	path := filepath.Join(w.outputDir, "events.jsonl")

	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("failed to encode %s event: %w", ev.Type, err)
		}
	}

	if err := os.WriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write events: %w", err)
	}

	return nil
}

// WriteSummaryMarkdown writes a human-readable markdown summary
func (w *ArtifactWriter) WriteSummaryMarkdown(summary *ExecutionSummary) error {
	path := filepath.Join(w.outputDir, "summary.md")

	var md strings.Builder

	md.WriteString("# Pilot Execution Summary\n\n")
	md.WriteString(fmt.Sprintf("**Task:** %s\n\n", summary.Task))
	md.WriteString(fmt.Sprintf("**Status:** %s\n\n", summary.Status))
	md.WriteString(fmt.Sprintf("**Outcome:** %s\n\n", summary.Outcome))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", summary.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", summary.EndTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", summary.Duration))

	md.WriteString("## Result\n\n")
	if summary.Error != "" {
		md.WriteString(fmt.Sprintf("❌ **Error:** %s\n\n", summary.Error))
	} else {
		md.WriteString("✅ **Success**\n\n")
	}
	if summary.FinalMessage != "" {
		md.WriteString(summary.FinalMessage)
		md.WriteString("\n\n")
	}

	if len(summary.Steps) > 0 {
		md.WriteString("## Steps\n\n")
		for _, step := range summary.Steps {
			status := "✅"
			if step.Classification == types.ClassificationError {
				status = "❌"
			}
			md.WriteString(fmt.Sprintf("%d. %s `%s`", step.Index, status, step.Tool))
			if step.Preview != "" {
				md.WriteString(fmt.Sprintf(": %s", step.Preview))
			}
			md.WriteString("\n")
		}
		md.WriteString("\n")
	}

	md.WriteString("## Metrics\n\n")
	md.WriteString(fmt.Sprintf("- **Steps:** %d\n", summary.Metrics.Steps))
	md.WriteString(fmt.Sprintf("- **Tool Errors:** %d\n", summary.Metrics.ToolErrors))
	md.WriteString(fmt.Sprintf("- **Image Results:** %d\n", summary.Metrics.ImageResults))
	md.WriteString(fmt.Sprintf("- **Events:** %d\n", summary.Metrics.Events))

	if writeErr := os.WriteFile(path, []byte(md.String()), 0600); writeErr != nil {
		return fmt.Errorf("failed to write summary markdown: %w", writeErr)
	}

	return nil
}

// ExecutionSummary contains a complete summary of a headless run
type ExecutionSummary struct {
	Task         string           `json:"task"`
	Status       string           `json:"status"`
	Outcome      types.Outcome    `json:"outcome"`
	Error        string           `json:"error,omitempty"`
	StartTime    time.Time        `json:"start_time"`
	EndTime      time.Time        `json:"end_time"`
	Duration     time.Duration    `json:"duration"`
	FinalMessage string           `json:"final_message,omitempty"`
	Steps        []StepSummary    `json:"steps"`
	Metrics      ExecutionMetrics `json:"metrics"`
}

// StepSummary describes one executed tool call
type StepSummary struct {
	Index          int                    `json:"index"`
	Tool           string                 `json:"tool"`
	Arguments      map[string]interface{} `json:"arguments,omitempty"`
	Classification types.Classification   `json:"classification"`
	Preview        string                 `json:"preview,omitempty"`
}

// ExecutionMetrics contains execution metrics
type ExecutionMetrics struct {
	Steps        int `json:"steps"`
	ToolErrors   int `json:"tool_errors"`
	ImageResults int `json:"image_results"`
	Events       int `json:"events"`
}
