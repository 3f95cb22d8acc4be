// Package netutil provides network helpers used by config validation, the
// compose renderer checks and `launchpad doctor`.
package netutil

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/docker/go-connections/nat"
)

// IsValidPort returns true if port is a usable TCP port (1–65535).
func IsValidPort(port int) bool {
	return port >= 1 && port <= 65535
}

// PortMapping is a parsed "host:container" publish spec.
type PortMapping struct {
	HostPort      int
	ContainerPort int
	Proto         string
}

// ParsePortMapping parses a compose-style publish spec such as "8000:8000"
// or "127.0.0.1:8000:8000/tcp". Exactly one port pair is allowed.
func ParsePortMapping(spec string) (PortMapping, error) {
	mappings, err := nat.ParsePortSpec(spec)
	if err != nil {
		return PortMapping{}, fmt.Errorf("parse port spec %q: %w", spec, err)
	}
	if len(mappings) != 1 {
		return PortMapping{}, fmt.Errorf("port spec %q: expected a single port, got a range of %d", spec, len(mappings))
	}
	m := mappings[0]
	hostPort, err := strconv.Atoi(m.Binding.HostPort)
	if err != nil {
		return PortMapping{}, fmt.Errorf("port spec %q: host port is required", spec)
	}
	return PortMapping{
		HostPort:      hostPort,
		ContainerPort: m.Port.Int(),
		Proto:         m.Port.Proto(),
	}, nil
}

// ProbeTCP dials host:port and returns nil if successful within the timeout.
func ProbeTCP(ctx context.Context, host string, port int, timeout time.Duration) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("tcp probe to %s failed: %w", addr, err)
	}
	conn.Close()
	return nil
}
