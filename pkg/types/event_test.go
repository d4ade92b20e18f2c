package types

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAgentEventType(t *testing.T) {
	tests := []struct {
		eventType AgentEventType
		expected  string
	}{
		{EventTypeTaskStarted, "task_started"},
		{EventTypeAssistantMessage, "assistant_message"},
		{EventTypeAssistantToolCall, "assistant_tool_call"},
		{EventTypeToolExecuting, "tool_executing"},
		{EventTypeToolSuccess, "tool_success"},
		{EventTypeToolSuccessImage, "tool_success_image"},
		{EventTypeToolError, "tool_error"},
		{EventTypeTaskStep, "task_step"},
		{EventTypeTaskCompleted, "task_completed"},
		{EventTypeSystemMessage, "system_message"},
		{EventTypeExecutionStopped, "execution_stopped"},
		{EventTypeError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if string(tt.eventType) != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, tt.eventType)
			}
		})
	}
}

func TestEventConstructors(t *testing.T) {
	tests := []struct {
		name        string
		event       *AgentEvent
		wantType    AgentEventType
		wantMessage string
	}{
		{"task started", NewTaskStartedEvent("find flights"), EventTypeTaskStarted, "Starting task: find flights"},
		{"tool executing", NewToolExecutingEvent("navigate"), EventTypeToolExecuting, "Executing navigate..."},
		{"tool success", NewToolSuccessEvent("navigate", "ok"), EventTypeToolSuccess, "✅ navigate completed successfully"},
		{"tool error", NewToolErrorEvent("click", "Error: missing selector"), EventTypeToolError, "Tool execution failed: Error: missing selector"},
		{"task step", NewTaskStepEvent(3, "click", nil), EventTypeTaskStep, "Step 3: Executing click"},
		{"error", NewErrorEvent(errors.New("boom")), EventTypeError, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.event.Type != tt.wantType {
				t.Errorf("type = %s, want %s", tt.event.Type, tt.wantType)
			}
			if tt.event.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", tt.event.Message, tt.wantMessage)
			}
			if tt.event.Metadata == nil {
				t.Error("metadata should be initialized")
			}
		})
	}
}

func TestTaskCompletedEventSerializesZeroSteps(t *testing.T) {
	event := NewTaskCompletedEvent("done", 0)

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "task_completed" {
		t.Errorf("type = %v", decoded["type"])
	}
	if decoded["steps"] != float64(0) {
		t.Errorf("steps = %v, want 0", decoded["steps"])
	}
	if _, ok := decoded["tool_name"]; ok {
		t.Error("tool_name should be omitted when empty")
	}
}

func TestEventPredicates(t *testing.T) {
	if !NewTaskCompletedEvent("done", 2).IsTerminal() {
		t.Error("task_completed should be terminal")
	}
	if !NewExecutionStoppedEvent("stopped").IsTerminal() {
		t.Error("execution_stopped should be terminal")
	}
	if NewToolErrorEvent("x", "y").IsTerminal() {
		t.Error("tool_error should not be terminal")
	}
	if !NewToolSuccessImageEvent("screenshot", nil).IsToolEvent() {
		t.Error("tool_success_image should be a tool event")
	}
	if NewSystemMessageEvent("hi").IsToolEvent() {
		t.Error("system_message should not be a tool event")
	}
	if got := NewTaskCompletedEvent("done", 4).StepCount(); got != 4 {
		t.Errorf("StepCount() = %d, want 4", got)
	}
}

func TestWithMetadata(t *testing.T) {
	event := (&AgentEvent{Type: EventTypeSystemMessage}).WithMetadata("strategy", "tail")
	if event.Metadata["strategy"] != "tail" {
		t.Errorf("metadata not set: %v", event.Metadata)
	}
}
