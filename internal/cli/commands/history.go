// launchpad history: list, inspect and forget persisted runs.
package commands

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/f9-o/launchpad/internal/core/config"
	"github.com/f9-o/launchpad/internal/tui"
	"github.com/f9-o/launchpad/pkg/errs"
	"github.com/f9-o/launchpad/pkg/pprint"
)

func NewHistoryCmd() *cobra.Command {
	var (
		target string
		useUI  bool
		forget string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous scaffolding runs",
		Example: `  launchpad history
  launchpad history --target ./blog --json
  launchpad history --ui
  launchpad history --delete <run-id>`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			if rt.State == nil {
				return errs.Newf(errs.ErrStateRead, "history", "run history is unavailable").
					WithResource(filepath.Join(config.Home(), "state.db")).
					WithAdvice("another launchpad process holds the history database; retry when it finishes")
			}

			if target != "" {
				abs, err := filepath.Abs(target)
				if err != nil {
					return errs.Wrap(err, errs.ErrUsage, "history").WithResource(target)
				}
				target = abs
			}

			if forget != "" {
				rec, err := rt.State.GetRun(forget)
				if err != nil {
					return err
				}
				if rec == nil {
					return errs.Newf(errs.ErrValidation, "history.delete", "no run with id %q", forget).
						WithAdvice("run `launchpad history` to list run IDs")
				}
				if err := rt.State.DeleteRun(forget); err != nil {
					return err
				}
				pprint.Success("Forgot run %s", forget)
				return nil
			}

			if useUI {
				return tui.Run(tui.Config{Store: rt.State, Target: target})
			}

			runs, err := rt.State.ListRuns(target)
			if err != nil {
				return err
			}
			if rt.Flags.JSONOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(runs)
			}
			if len(runs) == 0 {
				pprint.Info("No runs recorded yet.")
				return nil
			}

			t := pprint.NewTable("RUN", "STARTED", "PROJECT", "APP", "TARGET", "STAGE", "RESULT")
			for _, r := range runs {
				t.AddRow(r.ID, r.Started.Local().Format(time.DateTime), r.Project, r.App, r.Target, string(r.Stage), r.Result())
			}
			t.Render()
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&target, "target", "", "Only show runs for this target directory")
	f.BoolVar(&useUI, "ui", false, "Browse runs in the interactive terminal UI")
	f.StringVar(&forget, "delete", "", "Forget the run with this ID")
	return cmd
}
