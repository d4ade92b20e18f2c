package llm

import (
	"context"
	"sync"

	"github.com/entrhq/pilot/pkg/types"
)

// CompleteFunc performs one stateless model call over a system prompt and a
// merged, role-alternating history whose last turn is from the user.
type CompleteFunc func(ctx context.Context, systemPrompt string, history []types.Turn) (string, error)

// ChatSession keeps the history of one conversation and delegates each call
// to a provider specific CompleteFunc. It implements Session and HistorySyncer.
type ChatSession struct {
	systemPrompt string
	complete     CompleteFunc
	history      []types.Turn
	mu           sync.Mutex
}

// NewChatSession creates a session over complete.
func NewChatSession(systemPrompt string, complete CompleteFunc) *ChatSession {
	return &ChatSession{
		systemPrompt: systemPrompt,
		complete:     complete,
	}
}

// Send appends text as a user turn, calls the model, and records the reply.
// On error the user turn is discarded so the history stays as it was.
func (s *ChatSession) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := append(cloneTurns(s.history), types.NewTextTurn(types.RoleUser, text))
	reply, err := s.complete(ctx, s.systemPrompt, MergeTurns(pending))
	if err != nil {
		return "", err
	}

	s.history = append(pending, types.NewTextTurn(types.RoleAssistant, reply))
	return reply, nil
}

// SyncHistory replaces the session history. System turns are dropped since
// the session carries its own system prompt.
func (s *ChatSession) SyncHistory(turns []types.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]types.Turn, 0, len(turns))
	for _, turn := range turns {
		if turn.Role == types.RoleSystem {
			continue
		}
		history = append(history, turn)
	}
	s.history = history
}

// History returns a copy of the recorded turns.
func (s *ChatSession) History() []types.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTurns(s.history)
}

// SystemPrompt returns the prompt the session was started with.
func (s *ChatSession) SystemPrompt() string {
	return s.systemPrompt
}

// MergeTurns drops system turns and joins consecutive turns of the same role
// into one, since chat APIs expect strictly alternating roles.
func MergeTurns(turns []types.Turn) []types.Turn {
	merged := make([]types.Turn, 0, len(turns))
	for _, turn := range turns {
		if turn.Role == types.RoleSystem {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].Role == turn.Role {
			content := make([]types.ContentBlock, 0, len(merged[n-1].Content)+len(turn.Content))
			content = append(content, merged[n-1].Content...)
			content = append(content, turn.Content...)
			merged[n-1] = types.Turn{Role: turn.Role, Content: content, CreatedAt: merged[n-1].CreatedAt}
			continue
		}
		merged = append(merged, turn)
	}
	return merged
}

func cloneTurns(turns []types.Turn) []types.Turn {
	out := make([]types.Turn, len(turns))
	copy(out, turns)
	return out
}
