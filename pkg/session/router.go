package session

import (
	"context"
	"strings"

	"github.com/entrhq/pilot/pkg/agent"
)

// Mode selects how a message is handled.
type Mode int

const (
	ModeChat Mode = iota
	ModeTask
)

func (m Mode) String() string {
	if m == ModeTask {
		return "task"
	}
	return "chat"
}

// DefaultTaskKeywords route a message to task mode when any of them appears in it.
var DefaultTaskKeywords = []string{
	"search", "navigate", "browse", "screenshot", "click",
	"research", "analyze", "find", "download",
}

// Router decides between chat and task mode by keyword. The match is a
// case-insensitive substring test, so "finding" matches "find".
type Router struct {
	keywords []string
}

// NewRouter creates a router. Without keywords it uses DefaultTaskKeywords.
func NewRouter(keywords ...string) *Router {
	var kept []string
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			kept = append(kept, kw)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, DefaultTaskKeywords...)
	}
	return &Router{keywords: kept}
}

// Keywords returns the task keywords.
func (r *Router) Keywords() []string {
	return append([]string(nil), r.keywords...)
}

// Mode returns ModeTask when msg contains a task keyword.
func (r *Router) Mode(msg string) Mode {
	lower := strings.ToLower(msg)
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return ModeTask
		}
	}
	return ModeChat
}

// Start hands msg to exec as a task or a chat message.
func (r *Router) Start(ctx context.Context, exec *agent.Executor, msg string) (*agent.Run, Mode, error) {
	mode := r.Mode(msg)
	debugLog.Debugf("Routing message as %s", mode)

	var run *agent.Run
	var err error
	if mode == ModeTask {
		run, err = exec.Run(ctx, msg)
	} else {
		run, err = exec.Chat(ctx, msg)
	}
	return run, mode, err
}
