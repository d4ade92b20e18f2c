package types

// Outcome describes how a task run ended.
type Outcome string

const (
	OutcomeRunning   Outcome = ""
	OutcomeCompleted Outcome = "completed"
	OutcomeStepLimit Outcome = "step_limit"
	OutcomeStopped   Outcome = "stopped"
	OutcomeFailed    Outcome = "failed"
)

// Step records one executed tool call within a run. Index is 1-based.
type Step struct {
	Index      int            `json:"index"`
	Invocation ToolInvocation `json:"invocation"`
	Result     ToolResult     `json:"result"`
}

// TaskRun is the record of one task or chat invocation.
type TaskRun struct {
	Task    string  `json:"task"`
	Steps   []Step  `json:"steps"`
	Outcome Outcome `json:"outcome"`
	Err     error   `json:"-"`
}

// AppendStep records an executed step, numbering it after the previous one.
func (r *TaskRun) AppendStep(inv ToolInvocation, result ToolResult) Step {
	step := Step{Index: len(r.Steps) + 1, Invocation: inv, Result: result}
	r.Steps = append(r.Steps, step)
	return step
}

// Done reports whether the run reached a terminal outcome.
func (r *TaskRun) Done() bool {
	return r.Outcome != OutcomeRunning
}
