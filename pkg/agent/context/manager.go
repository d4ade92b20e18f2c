// Package context compresses a session's conversation once its token
// estimate passes the configured threshold.
package context

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/pilot/pkg/agent/memory"
	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/logging"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("context")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		debugLog.Warnf("Failed to initialize context logger, using stderr fallback: %v", err)
	}
}

// Manager runs summarization strategies in order against a conversation.
type Manager struct {
	strategies         []Strategy
	client             llm.Client
	summarizationModel string // optional model override for summarization calls
	mu                 sync.RWMutex
}

// NewManager creates a manager that summarizes with client.
// Strategies are evaluated in the order provided; with none given the
// manager uses a TailStrategy keeping DefaultKeepPairs pairs.
func NewManager(client llm.Client, strategies ...Strategy) *Manager {
	if len(strategies) == 0 {
		strategies = []Strategy{NewTailStrategy(DefaultKeepPairs)}
	}
	return &Manager{
		strategies: strategies,
		client:     client,
	}
}

// SetClient updates the model client used for summarization calls.
func (m *Manager) SetClient(client llm.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = client
}

// SetSummarizationModel sets the model name to use for summarization calls.
// If empty, summarization uses the same model as the main client.
// The client must implement llm.ModelCloner for this to take effect.
func (m *Manager) SetSummarizationModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summarizationModel = model
}

// GetSummarizationModel returns the configured summarization model override.
func (m *Manager) GetSummarizationModel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summarizationModel
}

func (m *Manager) clientForSummarization() llm.Client {
	m.mu.RLock()
	client := m.client
	model := m.summarizationModel
	m.mu.RUnlock()

	if client == nil {
		return nil
	}
	return llm.ForModel(client, model)
}

// ShouldSummarize reports whether any strategy wants to run.
func (m *Manager) ShouldSummarize(conv *memory.Conversation) bool {
	for _, strategy := range m.strategies {
		if strategy.ShouldRun(conv) {
			return true
		}
	}
	return false
}

// EvaluateAndSummarize runs every strategy whose ShouldRun is true.
// Returns the total number of turns replaced. A failing strategy stops the
// pass and its error is returned; the conversation is left as the failing
// strategy found it.
func (m *Manager) EvaluateAndSummarize(ctx context.Context, conv *memory.Conversation) (int, error) {
	totalSummarized := 0

	for _, strategy := range m.strategies {
		if !strategy.ShouldRun(conv) {
			continue
		}

		before := conv.EstimatedTokens()
		startTime := time.Now()

		debugLog.Printf("Executing Summarize() for strategy %s at %d estimated tokens", strategy.Name(), before)
		count, err := strategy.Summarize(ctx, conv, m.clientForSummarization())
		if err != nil {
			debugLog.Warnf("Strategy %s failed: %v", strategy.Name(), err)
			return totalSummarized, fmt.Errorf("strategy %s failed: %w", strategy.Name(), err)
		}

		totalSummarized += count
		debugLog.Printf("Strategy %s summarized %d turns in %s (tokens %d -> %d)",
			strategy.Name(), count, time.Since(startTime), before, conv.EstimatedTokens())
	}

	return totalSummarized, nil
}

// AddStrategy adds a new strategy to the manager.
// The strategy will be evaluated after existing strategies.
func (m *Manager) AddStrategy(strategy Strategy) {
	m.strategies = append(m.strategies, strategy)
}

// GetStrategies returns the list of registered strategies.
func (m *Manager) GetStrategies() []Strategy {
	return m.strategies
}
