// The launchpad plugin contract. External plugins implement PluginV1 and
// export it as a "LaunchpadPlugin" symbol.
package v1

// PluginAPIVersion is the current plugin API version.
// Checked at plugin load time to prevent incompatible plugins from loading.
const PluginAPIVersion = "v1"

// Hook names fired by the lifecycle runner.
const (
	HookStageStart = "OnStageStart"
	HookStageDone  = "OnStageDone"
	HookRunFailed  = "OnRunFailed"
	HookRunDone    = "OnRunDone"
)

// HookFunc is a function invoked at a named lifecycle point.
type HookFunc func(ctx HookContext) error

// HookContext carries contextual data passed to plugin hooks.
// Config is always the redacted copy.
type HookContext struct {
	RunID  string
	Stage  Stage
	Config ScaffoldConfig
	Result *StageResult
	DryRun bool
}

// PluginV1 is the interface every launchpad plugin must implement.
type PluginV1 interface {
	// Name returns the human-readable plugin identifier.
	Name() string

	// APIVersion must return exactly PluginAPIVersion.
	APIVersion() string

	// Init is called once before any hook fires. settings carries "home"
	// and "version". Return an error to abort loading.
	Init(settings map[string]string) error

	// Hooks returns the named hooks this plugin subscribes to:
	//   OnStageStart, OnStageDone, OnRunFailed, OnRunDone
	Hooks() map[string]HookFunc

	// Shutdown is called when launchpad exits cleanly.
	Shutdown() error
}
