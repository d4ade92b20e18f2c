package headless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/entrhq/pilot/pkg/agent"
	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/types"
)

const (
	statusSuccess        = "success"
	statusFailed         = "failed"
	statusStopped        = "stopped"
	statusPartialSuccess = "partial_success"
)

// ErrTaskFailed is returned by Run when the model failed mid-run.
var ErrTaskFailed = errors.New("task failed")

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("headless")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		debugLog.Warnf("Failed to initialize headless logger, using stderr fallback: %v", err)
	}
}

// Executor runs one task to completion without user interaction
type Executor struct {
	agent          *agent.Executor
	config         *Config
	logger         *Logger
	output         io.Writer
	artifactWriter *ArtifactWriter
}

// Option configures an Executor.
type Option func(*Executor)

// WithOutput sets where progress or JSON events are written.
func WithOutput(w io.Writer) Option {
	return func(e *Executor) {
		e.output = w
	}
}

// NewExecutor creates a new headless executor with a pre-configured agent
func NewExecutor(ag *agent.Executor, config *Config, opts ...Option) (*Executor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &Executor{
		agent:  ag,
		config: config,
		logger: NewLogger(ParseLogLevel(config.Logging.Verbosity)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.output != nil {
		e.logger.SetWriter(e.output)
	}
	if config.Artifacts.Enabled {
		e.artifactWriter = NewArtifactWriter(config.Artifacts.OutputDir, config.Artifacts)
	}

	return e, nil
}

// Run executes the task and returns its summary. The error is non-nil when
// the run could not start, the model failed or artifacts could not be written.
func (e *Executor) Run(ctx context.Context) (*ExecutionSummary, error) {
	summary := &ExecutionSummary{
		Task:      e.config.Task,
		Status:    "running",
		StartTime: time.Now(),
	}

	execCtx := ctx
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	debugLog.Infof("Starting headless execution: %s", e.config.Task)
	run, err := e.agent.Run(execCtx, e.config.Task)
	if err != nil {
		return nil, fmt.Errorf("failed to start task: %w", err)
	}

	events := e.consume(run)
	record := run.Wait()

	e.finalize(summary, record, events)
	if e.config.Logging.JSON {
		debugLog.Infof("Run finished with status %s", summary.Status)
	} else {
		e.logger.Summary(summary)
	}

	if e.artifactWriter != nil {
		if err := e.artifactWriter.WriteAll(summary, events); err != nil {
			return summary, fmt.Errorf("failed to write artifacts: %w", err)
		}
		debugLog.Infof("Artifacts written to %s", e.config.Artifacts.OutputDir)
	}

	if summary.Status == statusFailed {
		return summary, fmt.Errorf("%w: %s", ErrTaskFailed, summary.Error)
	}
	return summary, nil
}

// consume drains the run's events, printing each as it arrives.
func (e *Executor) consume(run *agent.Run) []*types.AgentEvent {
	var enc *json.Encoder
	if e.config.Logging.JSON && e.output != nil {
		enc = json.NewEncoder(e.output)
	}

	var events []*types.AgentEvent
	for ev := range run.Events() {
		events = append(events, ev)
		if enc != nil {
			if err := enc.Encode(ev); err != nil {
				debugLog.Warnf("Failed to encode %s event: %v", ev.Type, err)
			}
			continue
		}
		e.logger.Event(ev)
	}
	return events
}

func (e *Executor) finalize(summary *ExecutionSummary, record *types.TaskRun, events []*types.AgentEvent) {
	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(summary.StartTime)
	summary.Outcome = record.Outcome
	summary.Metrics.Events = len(events)

	switch record.Outcome {
	case types.OutcomeCompleted:
		summary.Status = statusSuccess
	case types.OutcomeStepLimit:
		summary.Status = statusPartialSuccess
	case types.OutcomeStopped:
		summary.Status = statusStopped
	default:
		summary.Status = statusFailed
	}
	if record.Err != nil {
		summary.Error = record.Err.Error()
	}

	for _, step := range record.Steps {
		class := step.Result.Classification
		if class == "" {
			class = step.Result.Classify()
		}
		switch class {
		case types.ClassificationError:
			summary.Metrics.ToolErrors++
		case types.ClassificationImage:
			summary.Metrics.ImageResults++
		}
		summary.Steps = append(summary.Steps, StepSummary{
			Index:          step.Index,
			Tool:           step.Invocation.ToolName,
			Arguments:      step.Invocation.Arguments,
			Classification: class,
			Preview:        truncate(step.Result.Summary(""), previewLength),
		})
	}
	summary.Metrics.Steps = len(summary.Steps)

	if record.Outcome == types.OutcomeCompleted {
		for i := len(events) - 1; i >= 0; i-- {
			if events[i].Type == types.EventTypeAssistantMessage {
				summary.FinalMessage = events[i].Message
				break
			}
		}
	}
}
