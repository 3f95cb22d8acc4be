// Package cli defines the root Cobra command and global flag/context setup.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/f9-o/launchpad/internal/cli/commands"
	"github.com/f9-o/launchpad/internal/collect"
	"github.com/f9-o/launchpad/internal/core/config"
	"github.com/f9-o/launchpad/internal/core/logger"
	"github.com/f9-o/launchpad/internal/core/plugin"
	"github.com/f9-o/launchpad/internal/core/state"
	"github.com/f9-o/launchpad/internal/toolchain"
	"github.com/f9-o/launchpad/pkg/errs"
	"github.com/f9-o/launchpad/pkg/pprint"
)

// app holds the flag values and runtime of one Execute call.
type app struct {
	flags    commands.GlobalFlags
	scaffold commands.ScaffoldOptions
	rt       *commands.Runtime
}

// Option customises Execute; used by tests to replace external processes.
type Option func(*app)

// WithTools routes every external command through r.
func WithTools(r toolchain.Runner) Option {
	return func(a *app) { a.scaffold.Tools = r }
}

// WithPrompter replaces the interactive form.
func WithPrompter(p collect.Prompter) Option {
	return func(a *app) { a.scaffold.Prompt = p }
}

// newRootCmd builds the command tree bound to a.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "launchpad <target-dir>",
		Short: "launchpad: bootstrap a Django project from the terminal",
		Example: `  launchpad ./blog
  launchpad ./blog --deploy
  LAUNCHPAD_PROJECT=blog LAUNCHPAD_APP=posts launchpad ./blog --non-interactive --dry-run`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errs.Newf(errs.ErrUsage, "launchpad", "expected exactly one <target-dir>, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunScaffold(cmd, args[0], a.scaffold)
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "version", "help", "completion":
				return nil
			}
			return a.initRuntime(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.ConfigFile, "config", "c", "", "Path to launchpad.yaml (defaults to auto-discovery)")
	pf.BoolVar(&a.flags.Debug, "debug", false, "Enable debug-level logging")
	pf.BoolVar(&a.flags.JSONOutput, "json", false, "Output in machine-readable JSON")
	pf.BoolVar(&a.flags.DryRun, "dry-run", false, "Print planned actions without executing")

	f := root.Flags()
	f.BoolVar(&a.scaffold.Deploy, "deploy", false, "Emit Dockerfile, docker-compose.yml and cloudbuild.yaml (also LAUNCHPAD_DEPLOY=1)")
	f.BoolVar(&a.scaffold.NonInteractive, "non-interactive", false, "Never prompt; take answers from config and LAUNCHPAD_* variables")
	f.BoolVar(&a.scaffold.SkipSystem, "skip-system", false, "Skip the OS package manager step")

	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return errs.New(errs.ErrUsage, c.Name(), err)
	})

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewRenderCmd(),
		commands.NewHistoryCmd(),
		commands.NewDoctorCmd(),
		commands.NewImageCmd(),
		commands.NewVersionCmd(),
	)
	return root
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...Option) int {
	pprint.Out, pprint.ErrOut = stdout, stderr

	a := &app{}
	for _, o := range opts {
		o(a)
	}
	root := newRootCmd(a)
	if args == nil {
		args = []string{} // nil makes cobra fall back to os.Args
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	// Show banner before every help screen
	origHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		pprint.PrintBanner(commands.Version, commands.BuildDate)
		origHelp(cmd, args)
	})

	cmd, err := root.ExecuteContextC(ctx)
	if a.rt != nil {
		if cerr := a.rt.Close(); cerr != nil {
			a.rt.Log.Warn("close runtime", "err", cerr)
		}
	}
	if err == nil {
		return 0
	}

	pprint.Error("%s", err)
	if e := errs.As(err); e != nil && e.Advice != "" {
		fmt.Fprintf(stderr, "  → %s\n", e.Advice)
	}
	if errs.IsCode(err, errs.ErrUsage) && cmd != nil {
		fmt.Fprint(stderr, cmd.UsageString())
	}
	return 1
}

// initRuntime loads config, logger, state and plugins before each command runs.
func (a *app) initRuntime(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.ConfigFile)
	if err != nil {
		return errs.Wrap(err, errs.ErrConfig, "config.load").WithResource(a.flags.ConfigFile)
	}

	home := config.Home()
	if err := os.MkdirAll(home, 0o750); err != nil {
		return errs.Wrap(err, errs.ErrWriteFile, "init.home").WithResource(home)
	}

	log, err := logger.Init(logger.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		LogFile: filepath.Join(home, "logs", "launchpad.log"),
		Home:    home,
		Debug:   a.flags.Debug,
	})
	if err != nil {
		return errs.Wrap(err, errs.ErrInternal, "logger.init")
	}

	// A locked history DB only costs the run record.
	db, err := state.Open(filepath.Join(home, "state.db"))
	if err != nil {
		log.Warn("run history unavailable", "err", err)
	}

	plugins := plugin.NewHost(log, map[string]string{"home": home, "version": commands.Version})
	if err := plugins.LoadDir(filepath.Join(home, "plugins")); err != nil {
		log.Warn("plugins not loaded", "err", err)
	}
	log.Debug("plugins ready", "names", plugins.Names())

	a.rt = &commands.Runtime{
		Config:  cfg,
		Log:     log,
		State:   db,
		Plugins: plugins,
		Flags:   a.flags,
	}
	cmd.SetContext(commands.NewContext(cmd.Context(), a.rt))
	return nil
}
