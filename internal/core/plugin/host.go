// Package plugin dispatches lifecycle hooks to launchpad plugins.
//
// Plugins are Go shared objects in <home>/plugins exporting a LaunchpadPlugin
// symbol, or hooks registered in-process. A plugin can observe a run but never
// change or stop it: hook errors and panics are logged and swallowed.
package plugin

import (
	"context"
	"fmt"
	"path/filepath"
	"plugin"
	"slices"
	"sync"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/internal/core/logger"
)

// Symbol is the exported name looked up in plugin shared objects.
const Symbol = "LaunchpadPlugin"

// inProcess owns hooks added with Register.
const inProcess = "in-process"

var knownHooks = []string{v1.HookStageStart, v1.HookStageDone, v1.HookRunFailed, v1.HookRunDone}

type subscription struct {
	owner string
	fn    v1.HookFunc
}

// Host holds the loaded plugins and their hook subscriptions.
type Host struct {
	mu       sync.RWMutex
	settings map[string]string
	plugins  map[string]v1.PluginV1
	subs     map[string][]subscription
	log      *logger.Logger
}

// NewHost returns an empty host. settings is handed to every plugin's Init.
func NewHost(log *logger.Logger, settings map[string]string) *Host {
	return &Host{
		settings: settings,
		plugins:  make(map[string]v1.PluginV1),
		subs:     make(map[string][]subscription),
		log:      log,
	}
}

// LoadDir loads every *.so in dir. A plugin that fails to load is logged and
// skipped; only an unreadable directory pattern is returned.
func (h *Host) LoadDir(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.so"))
	if err != nil {
		return fmt.Errorf("glob plugins: %w", err)
	}
	for _, path := range matches {
		if err := h.open(path); err != nil {
			h.log.Warn("plugin skipped", "path", path, "err", err)
		}
	}
	return nil
}

func (h *Host) open(path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while loading: %v", r)
		}
	}()

	so, err := plugin.Open(path)
	if err != nil {
		return err
	}
	sym, err := so.Lookup(Symbol)
	if err != nil {
		return err
	}
	impl, ok := sym.(v1.PluginV1)
	if !ok {
		return fmt.Errorf("%s is %T, not a PluginV1", Symbol, sym)
	}
	return h.Add(impl)
}

// Add initialises impl and subscribes its hooks. A plugin built against
// another API version, reusing a loaded name, or naming a hook the lifecycle
// never fires is rejected before Init runs.
func (h *Host) Add(impl v1.PluginV1) error {
	name := impl.Name()
	if v := impl.APIVersion(); v != v1.PluginAPIVersion {
		return fmt.Errorf("plugin %q targets API %q, launchpad speaks %q", name, v, v1.PluginAPIVersion)
	}
	hooks := impl.Hooks()
	for hook := range hooks {
		if !slices.Contains(knownHooks, hook) {
			return fmt.Errorf("plugin %q subscribes to unknown hook %q", name, hook)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, dup := h.plugins[name]; dup || name == inProcess {
		return fmt.Errorf("plugin name %q already in use", name)
	}
	if err := impl.Init(h.settings); err != nil {
		return fmt.Errorf("plugin %q init: %w", name, err)
	}

	h.plugins[name] = impl
	for _, hook := range knownHooks {
		if fn, ok := hooks[hook]; ok {
			h.subs[hook] = append(h.subs[hook], subscription{owner: name, fn: fn})
		}
	}
	h.log.Info("plugin loaded", "name", name)
	return nil
}

// Register subscribes fn to hook without a backing plugin.
func (h *Host) Register(hook string, fn v1.HookFunc) error {
	if !slices.Contains(knownHooks, hook) {
		return fmt.Errorf("unknown hook %q", hook)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[hook] = append(h.subs[hook], subscription{owner: inProcess, fn: fn})
	return nil
}

// Fire calls every subscriber of hook in load order.
func (h *Host) Fire(ctx context.Context, hook string, hc v1.HookContext) {
	h.mu.RLock()
	subs := slices.Clone(h.subs[hook])
	h.mu.RUnlock()

	for _, s := range subs {
		if ctx.Err() != nil {
			return
		}
		h.call(hook, s, hc)
	}
}

func (h *Host) call(hook string, s subscription, hc v1.HookContext) {
	log := h.log.With("plugin", s.owner, "hook", hook, "run_id", hc.RunID, "stage", string(hc.Stage))
	defer func() {
		if r := recover(); r != nil {
			log.Error("plugin hook panicked", "panic", fmt.Sprint(r))
		}
	}()
	if err := s.fn(hc); err != nil {
		log.Warn("plugin hook failed", "err", err)
	}
}

// Names returns the loaded plugin names, sorted.
func (h *Host) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.plugins))
	for name := range h.plugins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Shutdown stops every plugin in name order and drops all subscriptions.
// Calling it twice is harmless.
func (h *Host) Shutdown() {
	for _, name := range h.Names() {
		h.mu.RLock()
		p := h.plugins[name]
		h.mu.RUnlock()
		if err := p.Shutdown(); err != nil {
			h.log.Warn("plugin shutdown failed", "name", name, "err", err)
		}
	}
	h.mu.Lock()
	clear(h.plugins)
	clear(h.subs)
	h.mu.Unlock()
}
