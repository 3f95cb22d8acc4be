// Package commands provides the shared context type and all CLI subcommands.
package commands

import (
	"context"

	"github.com/f9-o/launchpad/internal/core/config"
	"github.com/f9-o/launchpad/internal/core/logger"
	"github.com/f9-o/launchpad/internal/core/plugin"
	"github.com/f9-o/launchpad/internal/core/state"
)

// contextKey is the key type for values stored in a command context.
type contextKey string

const runtimeContextKey contextKey = "launchpad.runtime"

// GlobalFlags holds the parsed global flags for use by subcommands.
type GlobalFlags struct {
	ConfigFile string
	Debug      bool
	JSONOutput bool
	DryRun     bool
}

// Runtime is the shared dependency bundle injected into each subcommand via context.
type Runtime struct {
	Config  *config.Config
	Log     *logger.Logger
	State   *state.DB
	Plugins *plugin.Host
	Flags   GlobalFlags
}

// Close releases the state DB and unloads plugins.
func (rt *Runtime) Close() error {
	if rt.Plugins != nil {
		rt.Plugins.Shutdown()
	}
	if rt.State != nil {
		return rt.State.Close()
	}
	return nil
}

// NewContext returns a new context carrying the Runtime.
func NewContext(parent context.Context, rt *Runtime) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithValue(parent, runtimeContextKey, rt)
}

// FromContext extracts the Runtime from ctx. Panics if not present (programming error).
func FromContext(ctx context.Context) *Runtime {
	rt, ok := ctx.Value(runtimeContextKey).(*Runtime)
	if !ok || rt == nil {
		panic("launchpad: Runtime not found in context, missing PersistentPreRunE?")
	}
	return rt
}
