// Package secrets performs WRITE_SECRETS: the database credentials are written
// once to the target's environment file and, for the gcp backend, also stored
// in Secret Manager so generated manifests can reference them.
package secrets

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/internal/core/logger"
	"github.com/f9-o/launchpad/internal/render"
	"github.com/f9-o/launchpad/pkg/errs"
)

// EnvFile is the environment file, relative to the target.
const EnvFile = ".env"

// Store persists the credentials of a run and returns the files it wrote,
// relative to the target.
type Store interface {
	Put(ctx context.Context, cfg v1.ScaffoldConfig) ([]string, error)
	Close() error
}

// New returns the store selected by cfg.Deploy.Secrets.
func New(ctx context.Context, cfg v1.ScaffoldConfig, log *logger.Logger) (Store, error) {
	switch cfg.Deploy.Secrets {
	case v1.SecretsEnvFile, "":
		return &EnvFileStore{}, nil
	case v1.SecretsGCP:
		return NewSecretManagerStore(ctx, cfg.Deploy.GCPProject, log)
	default:
		return nil, errs.Newf(errs.ErrConfig, "secrets.new", "unknown backend %q", cfg.Deploy.Secrets)
	}
}

// EnvFileStore writes the rendered env template to <target>/.env.
type EnvFileStore struct{}

// Put writes the environment file with owner-only permissions.
func (EnvFileStore) Put(_ context.Context, cfg v1.ScaffoldConfig) ([]string, error) {
	content, err := render.Render(v1.TemplateEnv, cfg)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(cfg.Target, EnvFile)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return nil, errs.Wrap(err, errs.ErrWriteFile, "secrets.envfile").WithResource(path)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return nil, errs.Wrap(err, errs.ErrWriteFile, "secrets.envfile").WithResource(path)
	}
	return []string{EnvFile}, nil
}

// Close is a no-op.
func (EnvFileStore) Close() error { return nil }

// ReadEnvFile parses KEY=VALUE lines from path. Values are taken verbatim up
// to the end of the line; blank lines and # comments are ignored.
func ReadEnvFile(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrSecretStore, "secrets.read").WithResource(path)
	}
	var env []string
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		if k, _, ok := strings.Cut(line, "="); !ok || strings.TrimSpace(k) == "" {
			return nil, errs.Newf(errs.ErrSecretStore, "secrets.read", "malformed line %q", k).WithResource(path)
		}
		env = append(env, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Wrap(err, errs.ErrSecretStore, "secrets.read").WithResource(path)
	}
	return env, nil
}
