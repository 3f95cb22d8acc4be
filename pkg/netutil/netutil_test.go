package netutil

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestParsePortMapping(t *testing.T) {
	tests := []struct {
		spec      string
		host      int
		container int
		wantErr   bool
	}{
		{"8000:8000", 8000, 8000, false},
		{"127.0.0.1:8080:8000", 8080, 8000, false},
		{"8000:8000/tcp", 8000, 8000, false},
		{"8000", 0, 0, true},
		{"8000-8001:8000-8001", 0, 0, true},
		{"abc:def", 0, 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePortMapping(tt.spec)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePortMapping(%q) err = %v, wantErr %v", tt.spec, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if got.HostPort != tt.host || got.ContainerPort != tt.container {
			t.Errorf("ParsePortMapping(%q) = %+v, want %d:%d", tt.spec, got, tt.host, tt.container)
		}
	}
}

func TestIsValidPort(t *testing.T) {
	for port, want := range map[int]bool{0: false, 1: true, 5432: true, 65535: true, 65536: false, -1: false} {
		if got := IsValidPort(port); got != want {
			t.Errorf("IsValidPort(%d) = %v, want %v", port, got, want)
		}
	}
}

func TestProbeTCP(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	go func() {
		if c, err := l.Accept(); err == nil {
			c.Close()
		}
	}()

	if err := ProbeTCP(context.Background(), "127.0.0.1", port, time.Second); err != nil {
		t.Errorf("ProbeTCP on open port: %v", err)
	}
	l.Close()
}
