// Package health: TCP and tool probe implementations.
package health

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/f9-o/launchpad/pkg/netutil"
)

// CheckTCP dials host:port and returns nil if the connection succeeds.
func CheckTCP(ctx context.Context, host string, port int, timeout time.Duration) error {
	if !netutil.IsValidPort(port) {
		return fmt.Errorf("tcp probe: invalid port %d", port)
	}
	if host == "" {
		host = "localhost"
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return netutil.ProbeTCP(ctx, host, port, timeout)
}

// CheckTool resolves name on PATH and returns its location.
func CheckTool(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("tool probe: name is required")
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found on PATH", name)
	}
	return path, nil
}
