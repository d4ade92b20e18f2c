package config

import (
	"context"
	"fmt"

	"github.com/entrhq/pilot/pkg/agent"
	agentcontext "github.com/entrhq/pilot/pkg/agent/context"
	"github.com/entrhq/pilot/pkg/agent/memory"
	"github.com/entrhq/pilot/pkg/agent/tools"
	"github.com/entrhq/pilot/pkg/gateway"
	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/session"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("config")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		debugLog.Warnf("Failed to initialize config logger, using stderr fallback: %v", err)
	}
}

// BuildGateway connects to the tool server, discovers its tools and wraps
// the connection in the configured policy and argument validation. The
// returned specs are the tools the policy permits. A server without a tool
// listing yields no specs and no validation.
func BuildGateway(ctx context.Context, cfg GatewayConfig) (gateway.Gateway, []tools.Spec, error) {
	httpGW := gateway.NewHTTPGateway(cfg.BaseURL,
		gateway.WithTimeout(cfg.Timeout),
		gateway.WithPageInfo(cfg.PageInfo),
	)
	if err := httpGW.Initialize(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to tool gateway at %s: %w", httpGW.BaseURL(), err)
	}

	specs, err := httpGW.ListTools(ctx)
	if err != nil {
		debugLog.Warnf("Tool discovery failed, continuing without tool specs: %v", err)
		specs = nil
	}

	var gw gateway.Gateway = httpGW
	if len(cfg.AllowedTools) > 0 || len(cfg.DeniedTools) > 0 {
		policy, err := gateway.NewPolicy(gw, cfg.AllowedTools, cfg.DeniedTools)
		if err != nil {
			_ = httpGW.Close(ctx)
			return nil, nil, err
		}
		gw = policy

		permitted := specs[:0:0]
		for _, spec := range specs {
			if policy.Permits(spec.Name) {
				permitted = append(permitted, spec)
			}
		}
		specs = permitted
	}

	if cfg.ValidateArguments && len(specs) > 0 {
		gw = gateway.NewSchemaValidator(gw, specs)
	}

	return gw, specs, nil
}

// ExecutorOptions returns the executor options described by cfg. Each call
// creates a fresh conversation, so options must not be shared between executors.
func ExecutorOptions(cfg *Config, client llm.Client, specs []tools.Spec) []agent.Option {
	conv := memory.NewConversation(
		memory.WithThreshold(cfg.Executor.SummarizeThreshold),
		memory.WithEstimator(memory.NewEstimator(cfg.Executor.TokenEstimator)),
	)

	manager := agentcontext.NewManager(client, agentcontext.NewTailStrategy(cfg.Executor.KeepLastTurns))
	manager.SetSummarizationModel(cfg.LLM.SummarizationModel)

	return []agent.Option{
		agent.WithTools(specs),
		agent.WithStepCap(cfg.Executor.StepCap),
		agent.WithConversation(conv),
		agent.WithContextManager(manager),
		agent.WithContinuationPrompt(cfg.Executor.ContinuationPrompt),
		agent.WithCustomInstructions(cfg.Executor.CustomInstructions),
		agent.WithEventBuffer(cfg.Executor.EventBuffer),
	}
}

// NewExecutor connects a gateway and builds an executor on client.
func NewExecutor(ctx context.Context, cfg *Config, client llm.Client) (*agent.Executor, error) {
	gw, specs, err := BuildGateway(ctx, cfg.Gateway)
	if err != nil {
		return nil, err
	}
	return agent.New(client, gw, ExecutorOptions(cfg, client, specs)...), nil
}

// SessionFactory builds one executor with its own gateway session per id.
func SessionFactory(cfg *Config, client llm.Client) session.Factory {
	return func(ctx context.Context, id string) (*agent.Executor, error) {
		exec, err := NewExecutor(ctx, cfg, client)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		return exec, nil
	}
}

// NewStore creates the session registry described by cfg.
func NewStore(cfg *Config, client llm.Client) *session.Store {
	return session.NewStore(SessionFactory(cfg, client), session.WithIdleTTL(cfg.Session.IdleTTL))
}
