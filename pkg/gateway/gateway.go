// Package gateway dispatches tool invocations to a remote tool server and
// normalises whatever comes back into types.ToolResult values.
package gateway

import (
	"context"
	"errors"

	"github.com/entrhq/pilot/pkg/agent/tools"
	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("gateway")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		debugLog.Warnf("Failed to initialize gateway logger, using stderr fallback: %v", err)
	}
}

// ErrNotInitialized is returned when a gateway is used before Initialize.
var ErrNotInitialized = errors.New("gateway not initialized")

// Gateway executes a named tool. Execute never returns an error: transport
// and tool failures come back as error-classified results.
type Gateway interface {
	Execute(ctx context.Context, name string, args map[string]interface{}, invocationID string) types.ToolResult
}

// ToolLister is implemented by gateways that can describe their tools.
type ToolLister interface {
	ListTools(ctx context.Context) ([]tools.Spec, error)
}

// Closer is implemented by gateways holding per-session server state.
type Closer interface {
	Close(ctx context.Context) error
}

// ListTools returns the tools of gw, or nil when gw cannot describe them.
func ListTools(ctx context.Context, gw Gateway) ([]tools.Spec, error) {
	lister, ok := gw.(ToolLister)
	if !ok {
		return nil, nil
	}
	return lister.ListTools(ctx)
}

// Close releases gw's server-side state if it holds any.
func Close(ctx context.Context, gw Gateway) error {
	closer, ok := gw.(Closer)
	if !ok {
		return nil
	}
	return closer.Close(ctx)
}
