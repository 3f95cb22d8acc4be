// launchpad <target-dir>: run the scaffolding lifecycle.
package commands

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/internal/collect"
	"github.com/f9-o/launchpad/internal/lifecycle"
	"github.com/f9-o/launchpad/internal/toolchain"
	"github.com/f9-o/launchpad/pkg/errs"
	"github.com/f9-o/launchpad/pkg/pprint"
)

// ScaffoldOptions are the root command's local flags.
type ScaffoldOptions struct {
	Deploy         bool
	NonInteractive bool
	SkipSystem     bool

	// Tools overrides the process runner; nil selects exec or dry-run.
	Tools toolchain.Runner
	// Prompt overrides the interactive form.
	Prompt collect.Prompter
}

// scaffoldReport is the --json output of a run.
type scaffoldReport struct {
	Run      *v1.RunRecord `json:"run"`
	Commands []string      `json:"commands,omitempty"`
}

// RunScaffold executes one lifecycle run for target.
func RunScaffold(cmd *cobra.Command, target string, opts ScaffoldOptions) error {
	rt := FromContext(cmd.Context())

	abs, err := filepath.Abs(target)
	if err != nil {
		return errs.Wrap(err, errs.ErrUsage, "scaffold").WithResource(target)
	}

	cfg := *rt.Config
	if opts.SkipSystem {
		cfg.System.Skip = true
	}

	env := os.Environ()
	tools := opts.Tools
	var dry *toolchain.DryRunRunner
	if tools == nil {
		if rt.Flags.DryRun {
			dry = toolchain.NewDryRunRunner(rt.Log)
			tools = dry
		} else {
			tools = toolchain.NewExecRunner(env, rt.Log)
		}
	}

	runner := lifecycle.New(lifecycle.Options{
		Tools:    tools,
		Env:      env,
		State:    rt.State,
		Plugins:  rt.Plugins,
		Log:      rt.Log,
		DryRun:   rt.Flags.DryRun,
		Observer: stepPrinter(rt.Flags.JSONOutput),
	})

	if !rt.Flags.JSONOutput {
		pprint.Header("scaffolding " + abs)
	}
	rec, runErr := runner.Run(cmd.Context(), abs, func(ctx context.Context) (v1.ScaffoldConfig, error) {
		return collect.Collect(ctx, &cfg, collect.Options{
			Target:         abs,
			Deploy:         opts.Deploy,
			NonInteractive: opts.NonInteractive || rt.Flags.JSONOutput,
			Prompt:         opts.Prompt,
		})
	})

	var planned []string
	if dry != nil {
		for _, c := range dry.Commands() {
			planned = append(planned, c.String())
		}
	}

	if rt.Flags.JSONOutput {
		if err := json.NewEncoder(cmd.OutOrStdout()).Encode(scaffoldReport{Run: rec, Commands: planned}); err != nil {
			return err
		}
		return runErr
	}
	if runErr != nil {
		return runErr
	}
	printSummary(rec, planned)
	return nil
}

// stepPrinter renders lifecycle events as numbered steps.
func stepPrinter(quiet bool) lifecycle.Observer {
	if quiet {
		return nil
	}
	return func(ev lifecycle.Event) {
		if ev.Result == nil {
			pprint.Step(ev.Index, ev.Total, "%s", strings.ReplaceAll(string(ev.Stage), "_", " "))
			return
		}
		switch ev.Result.Status {
		case v1.StageSkipped:
			pprint.Info("skipped: %s", ev.Result.Detail)
		case v1.StageOK:
			if ev.Result.Detail != "" {
				pprint.Info("%s", ev.Result.Detail)
			}
		}
	}
}

func printSummary(rec *v1.RunRecord, planned []string) {
	if rec.DryRun {
		pprint.Header("dry run plan")
		for _, c := range planned {
			pprint.Info("$ %s", c)
		}
		for _, st := range rec.Stages {
			for _, f := range st.Files {
				pprint.Info("would write %s", f)
			}
		}
		pprint.Success("Dry run finished, nothing was written")
		return
	}

	pprint.Header("project ready")
	pprint.KV("Project  ", rec.Project)
	pprint.KV("App      ", rec.App)
	pprint.KV("Target   ", rec.Target)
	if rec.Commit != "" {
		pprint.KV("Commit   ", rec.Commit)
	}
	pprint.KV("Run      ", rec.ID)
	pprint.Panel("next steps", strings.Join([]string{
		"cd " + rec.Target,
		"source " + toolchain.VenvDir + "/bin/activate",
		"python " + toolchain.ManagePy + " runserver",
	}, "\n"))
	pprint.Success("Scaffolded %s", rec.Project)
}
