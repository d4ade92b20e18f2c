package agent

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/entrhq/pilot/pkg/types"
)

// Run is the handle of one task or chat invocation. Its event channel must
// be drained; the loop blocks on a full channel until the run's context ends.
type Run struct {
	events    chan *types.AgentEvent
	done      chan struct{}
	cancelled atomic.Bool
	state     atomic.Int32

	record   *types.TaskRun
	finishMu sync.Once
}

func newRun(task string, buffer int) *Run {
	return &Run{
		events: make(chan *types.AgentEvent, buffer),
		done:   make(chan struct{}),
		record: &types.TaskRun{Task: task},
	}
}

// Events returns the run's event stream. The channel is closed after the
// terminal event.
func (r *Run) Events() <-chan *types.AgentEvent {
	return r.events
}

// Cancel asks the run to stop. An in-flight model or tool call completes;
// the run stops at the next step boundary.
func (r *Run) Cancel() {
	r.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called.
func (r *Run) Cancelled() bool {
	return r.cancelled.Load()
}

// Done is closed when the run has finished and its event channel is closed.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes and returns its record.
func (r *Run) Wait() *types.TaskRun {
	<-r.done
	return r.record
}

// State returns the run's current state.
func (r *Run) State() State {
	return State(r.state.Load())
}

func (r *Run) setState(s State) {
	r.state.Store(int32(s))
}

// emit sends an event, giving up if ctx ends while the channel is full.
// It safely handles a closed channel.
func (r *Run) emit(ctx context.Context, event *types.AgentEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			agentDebugLog.Warnf("Dropped %s event after run finished", event.Type)
		}
	}()

	select {
	case r.events <- event:
		return
	default:
	}

	select {
	case r.events <- event:
	case <-ctx.Done():
		agentDebugLog.Warnf("Dropped %s event: %v", event.Type, ctx.Err())
	}
}

// finish records the outcome and closes the event stream.
func (r *Run) finish(outcome types.Outcome, err error) {
	r.finishMu.Do(func() {
		r.record.Outcome = outcome
		r.record.Err = err
		r.setState(StateDone)
		close(r.events)
		close(r.done)
	})
}
