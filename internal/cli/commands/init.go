// launchpad init: write a default launchpad.yaml in the target directory.
package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/f9-o/launchpad/internal/core/config"
	"github.com/f9-o/launchpad/pkg/errs"
	"github.com/f9-o/launchpad/pkg/pprint"
)

func NewInitCmd() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default launchpad.yaml in the current (or specified) directory",
		Example: `  launchpad init
  launchpad init --path ./workspace`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if targetPath == "" {
				targetPath = "."
			}
			outFile := filepath.Join(targetPath, config.ProjectFile)
			if _, err := os.Stat(outFile); err == nil {
				return errs.Newf(errs.ErrWriteFile, "init", "%s already exists", outFile).
					WithAdvice("delete it first to reinitialise")
			}

			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return errs.Wrap(err, errs.ErrWriteFile, "init").WithResource(targetPath)
			}
			if err := os.WriteFile(outFile, []byte(config.DefaultConfigTemplate), 0o644); err != nil {
				return errs.Wrap(err, errs.ErrWriteFile, "init").WithResource(outFile)
			}

			pprint.Success("Created %s", outFile)
			pprint.Info("Edit it to set your defaults, then run: launchpad <target-dir>")
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPath, "path", ".", "Target directory for launchpad.yaml")
	return cmd
}
