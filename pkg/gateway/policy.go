package gateway

import (
	"context"
	"fmt"

	"github.com/entrhq/pilot/pkg/agent/tools"
	"github.com/entrhq/pilot/pkg/types"
	"github.com/gobwas/glob"
)

// Policy restricts which tools may be dispatched to the wrapped gateway.
// A tool is permitted when it matches no deny pattern and, if any allow
// patterns are configured, at least one of them.
type Policy struct {
	next  Gateway
	allow []glob.Glob
	deny  []glob.Glob
}

// NewPolicy wraps gw with glob allow/deny lists (e.g. "browser_*").
func NewPolicy(gw Gateway, allow, deny []string) (*Policy, error) {
	p := &Policy{next: gw}

	var err error
	if p.allow, err = compilePatterns(allow); err != nil {
		return nil, fmt.Errorf("invalid allow pattern: %w", err)
	}
	if p.deny, err = compilePatterns(deny); err != nil {
		return nil, fmt.Errorf("invalid deny pattern: %w", err)
	}
	return p, nil
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", pattern, err)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// Permits reports whether name may be dispatched.
func (p *Policy) Permits(name string) bool {
	for _, g := range p.deny {
		if g.Match(name) {
			return false
		}
	}
	if len(p.allow) == 0 {
		return true
	}
	for _, g := range p.allow {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Execute dispatches permitted tools and rejects the rest without a call.
func (p *Policy) Execute(ctx context.Context, name string, args map[string]interface{}, invocationID string) types.ToolResult {
	if !p.Permits(name) {
		debugLog.Warnf("Tool %s rejected by policy", name)
		return types.NewErrorResult(invocationID, fmt.Sprintf("Error: tool %s is not permitted", name))
	}
	return p.next.Execute(ctx, name, args, invocationID)
}

// ListTools lists the wrapped gateway's tools, dropping those not permitted.
func (p *Policy) ListTools(ctx context.Context) ([]tools.Spec, error) {
	specs, err := ListTools(ctx, p.next)
	if err != nil {
		return nil, err
	}
	filtered := make([]tools.Spec, 0, len(specs))
	for _, spec := range specs {
		if p.Permits(spec.Name) {
			filtered = append(filtered, spec)
		}
	}
	return filtered, nil
}

// Close closes the wrapped gateway.
func (p *Policy) Close(ctx context.Context) error {
	return Close(ctx, p.next)
}
