// launchpad doctor: check that the host can run a scaffold.
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/f9-o/launchpad/internal/health"
	"github.com/f9-o/launchpad/internal/orchestrator"
	"github.com/f9-o/launchpad/pkg/errs"
	"github.com/f9-o/launchpad/pkg/pprint"
)

// doctorResult is the --json shape of one probe.
type doctorResult struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	OK       bool   `json:"ok"`
	Optional bool   `json:"optional"`
	Detail   string `json:"detail,omitempty"`
	Error    string `json:"error,omitempty"`
}

func NewDoctorCmd() *cobra.Command {
	var dockerHost string

	cmd := &cobra.Command{
		Use:          "doctor",
		Short:        "Check required tools, the package index, the database and Docker",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())

			var pinger health.Pinger
			if dc, err := orchestrator.NewClient(dockerHost, rt.Log); err != nil {
				rt.Log.Debug("docker client unavailable", "err", err)
			} else {
				defer dc.Close()
				pinger = dc
			}

			checker := health.NewChecker(rt.Log, pinger)
			results := checker.Run(cmd.Context(), health.Probes(rt.Config))

			if rt.Flags.JSONOutput {
				out := make([]doctorResult, 0, len(results))
				for _, r := range results {
					dr := doctorResult{Name: r.Name, Kind: string(r.Kind), OK: r.OK, Optional: r.Optional, Detail: r.Detail}
					if r.Err != nil {
						dr.Error = r.Err.Error()
					}
					out = append(out, dr)
				}
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(out); err != nil {
					return err
				}
			} else {
				pprint.Header("doctor")
				for _, r := range results {
					label := fmt.Sprintf("%s (%s)", r.Name, r.Target)
					if r.Kind == health.KindDocker {
						label = r.Name
					}
					switch {
					case r.OK:
						pprint.Success("%s: %s", label, r.Detail)
					case r.Optional:
						pprint.Warn("%s: %v", label, r.Err)
					default:
						pprint.Error("%s: %v", label, r.Err)
					}
				}
			}

			if !health.Healthy(results) {
				return errs.Newf(errs.ErrToolNotFound, "doctor", "required checks failed").
					WithAdvice("install the missing tools or set system.skip / python in launchpad.yaml")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dockerHost, "docker-host", "", "Docker daemon address (defaults to DOCKER_HOST)")
	return cmd
}
