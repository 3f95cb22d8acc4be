// Package health runs the environment probes behind `launchpad doctor`.
package health

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/f9-o/launchpad/internal/core/config"
	"github.com/f9-o/launchpad/internal/core/logger"
)

// DefaultTimeout bounds each network probe.
const DefaultTimeout = 5 * time.Second

// Kind selects how a probe is carried out.
type Kind string

const (
	KindTool   Kind = "tool"   // executable resolvable on PATH
	KindHTTP   Kind = "http"   // GET returns 2xx
	KindTCP    Kind = "tcp"    // host:port accepts connections
	KindDocker Kind = "docker" // daemon answers ping
)

// Probe is one check to perform.
type Probe struct {
	Name     string
	Kind     Kind
	Target   string // tool name, URL or host
	Port     int
	Optional bool // failure is a warning, not an error
}

// Result is the outcome of a Probe.
type Result struct {
	Probe
	OK       bool
	Detail   string
	Err      error
	Duration time.Duration
}

// Pinger is satisfied by the docker client.
type Pinger interface {
	Ping(ctx context.Context) (string, error)
}

// Checker dispatches probes.
type Checker struct {
	log     *logger.Logger
	docker  Pinger
	timeout time.Duration
}

// NewChecker constructs a Checker. docker may be nil when no client could be built.
func NewChecker(log *logger.Logger, docker Pinger) *Checker {
	return &Checker{log: log, docker: docker, timeout: DefaultTimeout}
}

// Probes returns the standard doctor checks for cfg.
func Probes(cfg *config.Config) []Probe {
	python := cfg.Python
	if python == "" {
		python = "python3"
	}
	probes := []Probe{{Name: "python", Kind: KindTool, Target: python}}
	if !cfg.System.Skip && len(cfg.System.Manager) > 0 {
		for _, tool := range cfg.System.Manager {
			probes = append(probes, Probe{Name: "package manager", Kind: KindTool, Target: tool})
		}
	}
	if cfg.Doctor.IndexURL != "" {
		probes = append(probes, Probe{Name: "package index", Kind: KindHTTP, Target: cfg.Doctor.IndexURL})
	}
	probes = append(probes,
		Probe{Name: "database", Kind: KindTCP, Target: cfg.Database.Host, Port: cfg.Database.Port, Optional: true},
		Probe{Name: "docker", Kind: KindDocker, Optional: true},
	)
	return probes
}

// Run executes every probe in order.
func (c *Checker) Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, 0, len(probes))
	for _, p := range probes {
		results = append(results, c.Check(ctx, p))
	}
	return results
}

// Check performs a single probe.
func (c *Checker) Check(ctx context.Context, p Probe) Result {
	start := time.Now()
	res := Result{Probe: p}

	switch p.Kind {
	case KindTool:
		res.Detail, res.Err = CheckTool(p.Target)
	case KindHTTP:
		res.Err = CheckHTTP(ctx, p.Target, 0, c.timeout)
		res.Detail = p.Target
	case KindTCP:
		res.Err = CheckTCP(ctx, p.Target, p.Port, c.timeout)
		res.Detail = p.Target + ":" + strconv.Itoa(p.Port)
	case KindDocker:
		if c.docker == nil {
			res.Err = fmt.Errorf("no docker client")
			break
		}
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		var v string
		v, res.Err = c.docker.Ping(pctx)
		cancel()
		res.Detail = "API " + v
	default:
		res.Err = fmt.Errorf("unknown probe kind %q", p.Kind)
	}

	res.OK = res.Err == nil
	res.Duration = time.Since(start)
	c.log.Debug("probe", "name", p.Name, "kind", p.Kind, "ok", res.OK, "err", res.Err)
	return res
}

// Healthy reports whether every required probe passed.
func Healthy(results []Result) bool {
	for _, r := range results {
		if !r.OK && !r.Optional {
			return false
		}
	}
	return true
}
