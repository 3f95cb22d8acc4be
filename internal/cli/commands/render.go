// launchpad render: print a built-in template resolved against the config.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/internal/core/config"
	"github.com/f9-o/launchpad/internal/render"
	"github.com/f9-o/launchpad/pkg/errs"
)

func NewRenderCmd() *cobra.Command {
	var (
		list    bool
		answers config.AnswersConfig
		inline  bool
	)

	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Print a rendered template without writing anything",
		Example: `  launchpad render --list
  launchpad render settings_db --project blog --db-name blogdb --db-user bloguser
  launchpad render compose --project blog --inline-secrets`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				for _, n := range render.Names() {
					fmt.Fprintln(out, n)
				}
				return nil
			}
			if len(args) == 0 {
				return errs.Newf(errs.ErrUsage, "render", "missing template name").
					WithAdvice("run `launchpad render --list` to see the available templates")
			}

			rt := FromContext(cmd.Context())
			a := rt.Config.Answers
			overlay(&a, answers)

			cfg := rt.Config.ScaffoldConfig(".", a, true)
			if cmd.Flags().Changed("inline-secrets") {
				cfg.Deploy.InlineSecrets = inline
			}

			content, err := render.Render(v1.TemplateName(args[0]), cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(out, content)
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&list, "list", false, "List the available templates")
	f.StringVar(&answers.Project, "project", "", "Project name")
	f.StringVar(&answers.App, "app", "", "App name")
	f.StringVar(&answers.DBName, "db-name", "", "Database name")
	f.StringVar(&answers.DBUser, "db-user", "", "Database user")
	f.StringVar(&answers.DBPassword, "db-password", "", "Database password")
	f.BoolVar(&inline, "inline-secrets", false, "Write database values into the compose file in cleartext")
	return cmd
}

// overlay copies the non-empty fields of src onto dst.
func overlay(dst *config.AnswersConfig, src config.AnswersConfig) {
	for _, p := range []struct {
		dst *string
		src string
	}{
		{&dst.Project, src.Project},
		{&dst.App, src.App},
		{&dst.DBName, src.DBName},
		{&dst.DBUser, src.DBUser},
		{&dst.DBPassword, src.DBPassword},
	} {
		if p.src != "" {
			*p.dst = p.src
		}
	}
}
