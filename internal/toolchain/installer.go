package toolchain

import (
	"context"
	"os"
	"path/filepath"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/internal/core/logger"
	"github.com/f9-o/launchpad/pkg/errs"
)

const (
	// VenvDir is the virtualenv directory, relative to the target.
	VenvDir = "venv"
	// RequirementsFile records the resolved framework packages.
	RequirementsFile = "requirements.txt"
)

// Virtualenv is an isolated interpreter environment. Tools inside it are
// addressed by absolute path and given an explicit environment.
type Virtualenv struct {
	Dir string
}

// Bin returns the path of an executable inside the virtualenv.
func (v Virtualenv) Bin(name string) string {
	return filepath.Join(v.Dir, "bin", name)
}

// Env returns base adjusted so child processes resolve the virtualenv first.
func (v Virtualenv) Env(base []string) []string {
	path := filepath.Join(v.Dir, "bin")
	if old, ok := LookupEnv(base, "PATH"); ok && old != "" {
		path += string(os.PathListSeparator) + old
	}
	return MergeEnv(base, []string{
		"VIRTUAL_ENV=" + v.Dir,
		"PATH=" + path,
		"-PYTHONHOME",
	})
}

// Installer performs INSTALL_DEPS: OS packages, the virtualenv, the framework
// packages and the frozen requirements file.
type Installer struct {
	run  Runner
	spec v1.ToolchainSpec
	dir  string
	venv Virtualenv
	base []string
	log  *logger.Logger
}

// NewInstaller builds an installer for cfg's target directory.
func NewInstaller(r Runner, cfg v1.ScaffoldConfig, base []string, log *logger.Logger) *Installer {
	return &Installer{
		run:  r,
		spec: cfg.Toolchain,
		dir:  cfg.Target,
		venv: Virtualenv{Dir: filepath.Join(cfg.Target, VenvDir)},
		base: base,
		log:  log,
	}
}

// Venv returns the virtualenv the installer creates.
func (i *Installer) Venv() Virtualenv { return i.venv }

// InstallSystem refreshes the package index and installs the system packages.
// It reports false when the step is disabled by configuration.
func (i *Installer) InstallSystem(ctx context.Context) (bool, error) {
	if i.spec.SkipSystem || len(i.spec.SystemPackages) == 0 {
		i.log.Info("system packages skipped")
		return false, nil
	}
	if len(i.spec.PackageManager) == 0 {
		return false, errs.Newf(errs.ErrConfig, "toolchain.system", "system.manager is empty").
			WithAdvice("set system.manager (e.g. [sudo, apt-get]) or system.skip: true")
	}

	update := i.manager("update")
	if _, err := i.run.Run(ctx, update); err != nil {
		return false, err
	}
	install := i.manager(append([]string{"install", "-y"}, i.spec.SystemPackages...)...)
	if _, err := i.run.Run(ctx, install); err != nil {
		return false, err
	}
	return true, nil
}

// CreateVenv creates the virtualenv inside the target directory.
func (i *Installer) CreateVenv(ctx context.Context) error {
	python := i.spec.Python
	if python == "" {
		python = "python3"
	}
	_, err := i.run.Run(ctx, Command{
		Name: python,
		Args: []string{"-m", "venv", i.venv.Dir},
		Dir:  i.dir,
	})
	return err
}

// InstallFramework installs the framework packages with the virtualenv's pip.
func (i *Installer) InstallFramework(ctx context.Context) error {
	if len(i.spec.FrameworkPackages) == 0 {
		return errs.Newf(errs.ErrConfig, "toolchain.framework", "framework.packages is empty")
	}
	_, err := i.run.Run(ctx, Command{
		Name: i.venv.Bin("pip"),
		Args: append([]string{"install"}, i.spec.FrameworkPackages...),
		Dir:  i.dir,
		Env:  i.venv.Env(i.base),
	})
	return err
}

// Freeze writes the resolved package set to requirements.txt and returns the
// file's path relative to the target.
func (i *Installer) Freeze(ctx context.Context) (string, error) {
	out, err := i.run.Run(ctx, Command{
		Name: i.venv.Bin("pip"),
		Args: []string{"freeze"},
		Dir:  i.dir,
		Env:  i.venv.Env(i.base),
	})
	if err != nil {
		return "", err
	}

	path := filepath.Join(i.dir, RequirementsFile)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", errs.Wrap(err, errs.ErrWriteFile, "toolchain.freeze").WithResource(path)
	}
	return RequirementsFile, nil
}

func (i *Installer) manager(args ...string) Command {
	return Command{
		Name: i.spec.PackageManager[0],
		Args: append(append([]string(nil), i.spec.PackageManager[1:]...), args...),
		Dir:  i.dir,
	}
}
