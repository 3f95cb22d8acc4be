// launchpad image: build the container image of a scaffolded project.
package commands

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/internal/orchestrator"
	"github.com/f9-o/launchpad/internal/render"
	"github.com/f9-o/launchpad/pkg/errs"
	"github.com/f9-o/launchpad/pkg/pprint"
)

func NewImageCmd() *cobra.Command {
	var (
		tags       []string
		noCache    bool
		dockerHost string
	)

	cmd := &cobra.Command{
		Use:   "image <target-dir>",
		Short: "Build the Docker image of a project scaffolded with --deploy",
		Example: `  launchpad image ./blog
  launchpad image ./blog --tag blog:dev --no-cache`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())

			dir, err := filepath.Abs(args[0])
			if err != nil {
				return errs.Wrap(err, errs.ErrUsage, "image").WithResource(args[0])
			}
			if len(tags) == 0 {
				tags = []string{DefaultImageTag(dir)}
			}

			excludes, err := ignorePatterns(dir)
			if err != nil {
				return err
			}

			dc, err := orchestrator.NewClient(dockerHost, rt.Log)
			if err != nil {
				return err
			}
			defer dc.Close()

			var out io.Writer = cmd.OutOrStdout()
			if rt.Flags.JSONOutput {
				out = nil
			}
			id, err := dc.BuildImage(cmd.Context(), orchestrator.BuildOptions{
				Dir:      dir,
				Tags:     tags,
				Excludes: excludes,
				NoCache:  noCache,
				Out:      out,
			})
			if err != nil {
				return err
			}

			pprint.Success("Built %s", strings.Join(tags, ", "))
			if id != "" {
				pprint.KV("Image  ", id)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&tags, "tag", "t", nil, "Image tag (repeatable; defaults to <dir-name>:latest)")
	f.BoolVar(&noCache, "no-cache", false, "Do not use the build cache")
	f.StringVar(&dockerHost, "docker-host", "", "Docker daemon address (defaults to DOCKER_HOST)")
	return cmd
}

// DefaultImageTag derives <name>:latest from the project directory.
func DefaultImageTag(dir string) string {
	name := strings.ToLower(filepath.Base(dir))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return '-'
	}, name)
	name = strings.Trim(name, ".-_")
	if name == "" {
		name = "app"
	}
	return name + ":latest"
}

// ignorePatterns reads the project's .dockerignore, falling back to the
// built-in one.
func ignorePatterns(dir string) ([]string, error) {
	b, err := os.ReadFile(filepath.Join(dir, render.DockerignorePath))
	if err == nil {
		return orchestrator.ParseIgnore(string(b)), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, errs.Wrap(err, errs.ErrDockerBuild, "image.ignore").WithResource(dir)
	}
	content, err := render.Render(v1.TemplateDockerignore, v1.ScaffoldConfig{})
	if err != nil {
		return nil, err
	}
	return orchestrator.ParseIgnore(content), nil
}
