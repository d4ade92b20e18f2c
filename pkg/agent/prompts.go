package agent

import (
	"context"
	"fmt"

	"github.com/entrhq/pilot/pkg/agent/prompts"
	"github.com/entrhq/pilot/pkg/agent/tools"
	"github.com/entrhq/pilot/pkg/gateway"
)

// buildSystemPrompt constructs the system prompt with tool specs and custom instructions
func (e *Executor) buildSystemPrompt() string {
	builder := prompts.NewPromptBuilder().
		WithTools(e.toolSpecs).
		WithExamples(true)

	// Add user's custom instructions if provided
	if e.customInstructions != "" {
		builder.WithCustomInstructions(e.customInstructions)
	}

	return builder.Build()
}

// DiscoverTools lists gw's tools so they can be passed to WithTools.
// Gateways that cannot list tools yield an empty list.
func DiscoverTools(ctx context.Context, gw gateway.Gateway) ([]tools.Spec, error) {
	specs, err := gateway.ListTools(ctx, gw)
	if err != nil {
		return nil, fmt.Errorf("failed to discover tools: %w", err)
	}
	agentDebugLog.Infof("Discovered %d tools: %v", len(specs), tools.Names(specs))
	return specs, nil
}
