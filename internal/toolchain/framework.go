package toolchain

import (
	"context"
	"path/filepath"
)

// ManagePy is the per-project management script created by StartProject.
const ManagePy = "manage.py"

// Framework drives the web framework's project CLI from inside the virtualenv.
type Framework struct {
	run  Runner
	venv Virtualenv
	dir  string
	base []string
}

// NewFramework returns a Framework rooted at dir using venv's interpreter.
func NewFramework(r Runner, venv Virtualenv, dir string, base []string) *Framework {
	return &Framework{run: r, venv: venv, dir: dir, base: base}
}

// StartProject creates the project skeleton directly in the target directory,
// leaving manage.py at its root.
func (f *Framework) StartProject(ctx context.Context, project string) error {
	_, err := f.run.Run(ctx, Command{
		Name: f.venv.Bin("django-admin"),
		Args: []string{"startproject", project, "."},
		Dir:  f.dir,
		Env:  f.venv.Env(f.base),
	})
	return err
}

// StartApp creates the app skeleton next to the project package.
func (f *Framework) StartApp(ctx context.Context, app string) error {
	return f.manage(ctx, nil, "startapp", app)
}

// Migrate applies the initial migrations. secrets are KEY=VALUE pairs exported
// to the child only, so the settings module can resolve its database values.
func (f *Framework) Migrate(ctx context.Context, secrets []string) error {
	return f.manage(ctx, secrets, "migrate")
}

func (f *Framework) manage(ctx context.Context, extra []string, args ...string) error {
	_, err := f.run.Run(ctx, Command{
		Name: f.venv.Bin("python"),
		Args: append([]string{filepath.Join(f.dir, ManagePy)}, args...),
		Dir:  f.dir,
		Env:  MergeEnv(f.venv.Env(f.base), extra),
	})
	return err
}
