// Package memory holds the conversation log of a session along with its
// running token estimate and the media pruning pass applied between steps.
package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/types"
)

// DefaultSummarizeThreshold is the estimated token count above which a
// conversation asks to be summarized.
const DefaultSummarizeThreshold = 50000

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("memory")
	if err != nil {
		debugLog.Warnf("Failed to initialize memory logger, using stderr fallback: %v", err)
	}
}

// Conversation is an ordered log of turns with a cumulative token estimate.
// The estimate always equals the sum of per-turn estimates; it is recomputed
// whenever a span is replaced or turns are pruned.
//
// Reads are safe from any goroutine. The owning executor is the only writer.
type Conversation struct {
	turns     []types.Turn
	estimated int
	threshold int
	estimator Estimator
	mu        sync.RWMutex
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithThreshold sets the summarization threshold in estimated tokens.
func WithThreshold(tokens int) Option {
	return func(c *Conversation) {
		if tokens > 0 {
			c.threshold = tokens
		}
	}
}

// WithEstimator replaces the default character based estimator.
func WithEstimator(est Estimator) Option {
	return func(c *Conversation) {
		if est != nil {
			c.estimator = est
		}
	}
}

// NewConversation creates an empty conversation.
func NewConversation(opts ...Option) *Conversation {
	c := &Conversation{
		turns:     make([]types.Turn, 0),
		threshold: DefaultSummarizeThreshold,
		estimator: CharEstimator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddTurn appends a turn and adds its estimate to the running total.
func (c *Conversation) AddTurn(turn types.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, turn)
	c.estimated += estimateTurn(c.estimator, turn)
}

// Add appends a new turn built from role and blocks.
func (c *Conversation) Add(role types.Role, blocks ...types.ContentBlock) {
	c.AddTurn(types.NewTurn(role, blocks...))
}

// AddText appends a single-text turn.
func (c *Conversation) AddText(role types.Role, text string) {
	c.AddTurn(types.NewTextTurn(role, text))
}

// EstimateTokens estimates the token cost of text with this conversation's estimator.
func (c *Conversation) EstimateTokens(text string) int {
	return c.estimator.Estimate(text)
}

// EstimatedTokens returns the cumulative estimate for all turns.
func (c *Conversation) EstimatedTokens() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.estimated
}

// Threshold returns the summarization threshold.
func (c *Conversation) Threshold() int {
	return c.threshold
}

// ShouldSummarize reports whether the cumulative estimate exceeds the threshold.
func (c *Conversation) ShouldSummarize() bool {
	return c.EstimatedTokens() > c.threshold
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// Turns returns a copy of the turn slice.
func (c *Conversation) Turns() []types.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// GetText renders the conversation as "ROLE: text" paragraphs separated by
// blank lines. Non-text blocks render as a bracketed marker.
func (c *Conversation) GetText() string {
	return RenderText(c.Turns())
}

// RenderText renders turns the same way as Conversation.GetText.
func RenderText(turns []types.Turn) string {
	var b strings.Builder
	for _, turn := range turns {
		b.WriteString(strings.ToUpper(string(turn.Role)))
		b.WriteString(": ")
		b.WriteString(renderBlocks(turn.Content))
		b.WriteString("\n\n")
	}
	return b.String()
}

func renderBlocks(blocks []types.ContentBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		switch block.Kind {
		case types.BlockKindText:
			parts = append(parts, block.Text)
		case types.BlockKindImage:
			parts = append(parts, "[Image content]")
		default:
			parts = append(parts, "[Structured content]")
		}
	}
	return strings.Join(parts, "\n")
}

// ReplaceSpan replaces turns[start:end] with the given replacement turns and
// recomputes the estimate from the retained turns.
func (c *Conversation) ReplaceSpan(start, end int, replacement ...types.Turn) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if start < 0 || end > len(c.turns) || start > end {
		return fmt.Errorf("invalid span [%d:%d] for %d turns", start, end, len(c.turns))
	}

	next := make([]types.Turn, 0, len(c.turns)-(end-start)+len(replacement))
	next = append(next, c.turns[:start]...)
	next = append(next, replacement...)
	next = append(next, c.turns[end:]...)

	c.turns = next
	c.recompute()
	return nil
}

// Clear removes every turn.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = make([]types.Turn, 0)
	c.estimated = 0
}

// recompute resets the estimate from the current turns. Caller holds mu.
func (c *Conversation) recompute() {
	total := 0
	for _, turn := range c.turns {
		total += estimateTurn(c.estimator, turn)
	}
	c.estimated = total
}
