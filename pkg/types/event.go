package types

import (
	"strconv"
	"time"
)

// AgentEventType defines the type of event emitted by a task or chat run.
type AgentEventType string

const (
	EventTypeTaskStarted       AgentEventType = "task_started"        // EventTypeTaskStarted indicates a task run has begun.
	EventTypeAssistantMessage  AgentEventType = "assistant_message"   // EventTypeAssistantMessage carries a model response.
	EventTypeAssistantToolCall AgentEventType = "assistant_tool_call" // EventTypeAssistantToolCall indicates a chat reply that requested a tool.
	EventTypeToolExecuting     AgentEventType = "tool_executing"      // EventTypeToolExecuting indicates a tool was dispatched to the gateway.
	EventTypeToolSuccess       AgentEventType = "tool_success"        // EventTypeToolSuccess indicates a tool returned text content.
	EventTypeToolSuccessImage  AgentEventType = "tool_success_image"  // EventTypeToolSuccessImage indicates a tool returned an image.
	EventTypeToolError         AgentEventType = "tool_error"          // EventTypeToolError indicates a tool failed or reported an error.
	EventTypeTaskStep          AgentEventType = "task_step"           // EventTypeTaskStep marks the start of a numbered step.
	EventTypeTaskCompleted     AgentEventType = "task_completed"      // EventTypeTaskCompleted indicates the run finished normally or hit the step cap.
	EventTypeSystemMessage     AgentEventType = "system_message"      // EventTypeSystemMessage carries engine status such as memory optimisation.
	EventTypeExecutionStopped  AgentEventType = "execution_stopped"   // EventTypeExecutionStopped indicates the run was cancelled.
	EventTypeError             AgentEventType = "error"               // EventTypeError indicates a terminal model failure.
)

// AgentEvent represents an event emitted by the executor during a run.
// Field names follow the JSON wire format so transports can forward events verbatim.
type AgentEvent struct {
	// Type indicates the kind of event.
	Type AgentEventType `json:"type"`

	// Message is the human readable text attached to most events.
	Message string `json:"message,omitempty"`

	// ToolName is the name of the tool being called (for tool events).
	ToolName string `json:"tool_name,omitempty"`

	// ToolArgs is the argument map sent to the tool.
	ToolArgs map[string]interface{} `json:"tool_args,omitempty"`

	// Result is the joined text summary of a successful tool result.
	Result string `json:"result,omitempty"`

	// Content holds the raw blocks of an image result.
	Content []ContentBlock `json:"content,omitempty"`

	// Step is the 1-based step index for task_step events.
	Step int `json:"step,omitempty"`

	// Steps is the number of executed steps for task_completed events.
	Steps *int `json:"steps,omitempty"`

	// Timestamp records when the event was created.
	Timestamp time.Time `json:"timestamp"`

	// Metadata holds optional additional information about the event.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func newEvent(eventType AgentEventType, message string) *AgentEvent {
	return &AgentEvent{
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
}

// NewTaskStartedEvent creates a task started event.
func NewTaskStartedEvent(task string) *AgentEvent {
	return newEvent(EventTypeTaskStarted, "Starting task: "+task)
}

// NewAssistantMessageEvent creates an assistant message event.
func NewAssistantMessageEvent(message string) *AgentEvent {
	return newEvent(EventTypeAssistantMessage, message)
}

// NewAssistantToolCallEvent creates an event for a chat reply that contains a tool call.
func NewAssistantToolCallEvent(message, toolName string, toolArgs map[string]interface{}) *AgentEvent {
	e := newEvent(EventTypeAssistantToolCall, message)
	e.ToolName = toolName
	e.ToolArgs = toolArgs
	return e
}

// NewToolExecutingEvent creates a tool executing event.
func NewToolExecutingEvent(toolName string) *AgentEvent {
	e := newEvent(EventTypeToolExecuting, "Executing "+toolName+"...")
	e.ToolName = toolName
	return e
}

// NewToolSuccessEvent creates a tool success event with a text summary.
func NewToolSuccessEvent(toolName, result string) *AgentEvent {
	e := newEvent(EventTypeToolSuccess, "✅ "+toolName+" completed successfully")
	e.ToolName = toolName
	e.Result = result
	return e
}

// NewToolSuccessImageEvent creates a tool success event carrying image content.
func NewToolSuccessImageEvent(toolName string, content []ContentBlock) *AgentEvent {
	e := newEvent(EventTypeToolSuccessImage, "✅ "+toolName+" completed successfully")
	e.ToolName = toolName
	e.Content = content
	return e
}

// NewToolErrorEvent creates a tool error event.
func NewToolErrorEvent(toolName, detail string) *AgentEvent {
	e := newEvent(EventTypeToolError, "Tool execution failed: "+detail)
	e.ToolName = toolName
	return e
}

// NewTaskStepEvent creates a task step event.
func NewTaskStepEvent(step int, toolName string, toolArgs map[string]interface{}) *AgentEvent {
	e := newEvent(EventTypeTaskStep, "Step "+strconv.Itoa(step)+": Executing "+toolName)
	e.Step = step
	e.ToolName = toolName
	e.ToolArgs = toolArgs
	return e
}

// NewTaskCompletedEvent creates a task completed event.
func NewTaskCompletedEvent(message string, steps int) *AgentEvent {
	e := newEvent(EventTypeTaskCompleted, message)
	e.Steps = &steps
	return e
}

// NewSystemMessageEvent creates a system message event.
func NewSystemMessageEvent(message string) *AgentEvent {
	return newEvent(EventTypeSystemMessage, message)
}

// NewExecutionStoppedEvent creates an execution stopped event.
func NewExecutionStoppedEvent(message string) *AgentEvent {
	return newEvent(EventTypeExecutionStopped, message)
}

// NewErrorEvent creates an error event.
func NewErrorEvent(err error) *AgentEvent {
	return newEvent(EventTypeError, err.Error())
}

// WithMetadata adds a metadata key-value pair to the event.
func (e *AgentEvent) WithMetadata(key string, value interface{}) *AgentEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// StepCount returns the step count of a task_completed event, or zero.
func (e *AgentEvent) StepCount() int {
	if e.Steps == nil {
		return 0
	}
	return *e.Steps
}

// IsToolEvent returns true if this is a tool-related event.
func (e *AgentEvent) IsToolEvent() bool {
	switch e.Type {
	case EventTypeToolExecuting, EventTypeToolSuccess, EventTypeToolSuccessImage, EventTypeToolError, EventTypeAssistantToolCall:
		return true
	}
	return false
}

// IsTerminal returns true if the event ends a task run.
func (e *AgentEvent) IsTerminal() bool {
	switch e.Type {
	case EventTypeTaskCompleted, EventTypeExecutionStopped, EventTypeError:
		return true
	}
	return false
}

// IsErrorEvent returns true if this is an error event.
func (e *AgentEvent) IsErrorEvent() bool {
	return e.Type == EventTypeError || e.Type == EventTypeToolError
}
