// Package orchestrator wraps the Docker Engine API for building and checking
// the container image of a scaffolded project.
package orchestrator

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"

	"github.com/f9-o/launchpad/internal/core/logger"
	"github.com/f9-o/launchpad/pkg/errs"
)

// Client wraps the Docker API client with launchpad-specific helpers.
type Client struct {
	docker *dockerclient.Client
	log    *logger.Logger
}

// NewClient creates a new Docker API client. An empty host means DOCKER_HOST
// and friends from the environment.
func NewClient(host string, log *logger.Logger) (*Client, error) {
	opts := []dockerclient.Opt{
		dockerclient.WithAPIVersionNegotiation(),
	}
	if host != "" {
		opts = append(opts, dockerclient.WithHost(host))
	} else {
		opts = append(opts, dockerclient.FromEnv)
	}

	dc, err := dockerclient.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrDockerConnect, "docker.client")
	}
	return &Client{docker: dc, log: log}, nil
}

// Ping verifies Docker daemon connectivity and returns the negotiated API version.
func (c *Client) Ping(ctx context.Context) (string, error) {
	p, err := c.docker.Ping(ctx)
	if err != nil {
		return "", errs.Wrap(err, errs.ErrDockerConnect, "docker.ping").
			WithAdvice("start the Docker daemon or set DOCKER_HOST")
	}
	return p.APIVersion, nil
}

// Close releases the Docker API client resources.
func (c *Client) Close() error {
	return c.docker.Close()
}

// BuildOptions describes one image build.
type BuildOptions struct {
	Dir        string   // build context directory
	Dockerfile string   // relative to Dir; "Dockerfile" when empty
	Tags       []string // e.g. blog:latest
	Excludes   []string // .dockerignore patterns
	NoCache    bool
	Out        io.Writer // build output; nil discards
}

// buildMessage is one line of the daemon's JSON build stream.
type buildMessage struct {
	Stream      string `json:"stream"`
	Error       string `json:"error"`
	ErrorDetail struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
	Aux json.RawMessage `json:"aux"`
}

// BuildImage sends Dir as the build context and streams the daemon's output.
// It returns the built image ID when the daemon reports one.
func (c *Client) BuildImage(ctx context.Context, opts BuildOptions) (string, error) {
	if _, err := os.Stat(filepath.Join(opts.Dir, dockerfileOrDefault(opts.Dockerfile))); err != nil {
		return "", errs.Wrap(err, errs.ErrDockerBuild, "docker.build").WithResource(opts.Dir).
			WithAdvice("scaffold with --deploy to emit the Dockerfile first")
	}

	buildCtx, err := archive.TarWithOptions(opts.Dir, &archive.TarOptions{ExcludePatterns: opts.Excludes})
	if err != nil {
		return "", errs.Wrap(err, errs.ErrDockerBuild, "docker.build.context").WithResource(opts.Dir)
	}
	defer buildCtx.Close()

	c.log.Info("building image", "dir", opts.Dir, "tags", strings.Join(opts.Tags, ","))
	resp, err := c.docker.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Dockerfile: dockerfileOrDefault(opts.Dockerfile),
		Tags:       opts.Tags,
		NoCache:    opts.NoCache,
		Remove:     true,
	})
	if err != nil {
		return "", errs.Wrap(err, errs.ErrDockerBuild, "docker.build").WithResource(opts.Dir)
	}
	defer resp.Body.Close()

	return c.readBuildStream(resp.Body, opts.Out)
}

func (c *Client) readBuildStream(r io.Reader, out io.Writer) (string, error) {
	if out == nil {
		out = io.Discard
	}
	var id string
	dec := json.NewDecoder(r)
	for {
		var msg buildMessage
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return "", errs.Wrap(err, errs.ErrDockerBuild, "docker.build.stream")
		}
		if msg.Error != "" {
			detail := msg.ErrorDetail.Message
			if detail == "" {
				detail = msg.Error
			}
			return "", errs.New(errs.ErrDockerBuild, "docker.build", fmt.Errorf("%s", strings.TrimSpace(detail)))
		}
		if msg.Stream != "" {
			_, _ = io.WriteString(out, msg.Stream)
			c.log.Debug("build", "out", strings.TrimRight(msg.Stream, "\n"))
		}
		if len(msg.Aux) > 0 {
			var aux struct {
				ID string `json:"ID"`
			}
			if json.Unmarshal(msg.Aux, &aux) == nil && aux.ID != "" {
				id = aux.ID
			}
		}
	}
	return id, nil
}

// ParseIgnore turns .dockerignore content into exclude patterns.
func ParseIgnore(content string) []string {
	var patterns []string
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, filepath.Clean(line))
	}
	return patterns
}

func dockerfileOrDefault(name string) string {
	if name == "" {
		return "Dockerfile"
	}
	return name
}
