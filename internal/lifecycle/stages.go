package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"time"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/internal/patch"
	"github.com/f9-o/launchpad/internal/render"
	"github.com/f9-o/launchpad/internal/secrets"
	"github.com/f9-o/launchpad/internal/toolchain"
	"github.com/f9-o/launchpad/internal/vcs"
	"github.com/f9-o/launchpad/pkg/errs"
)

// stageOutput is what a stage hands back besides its error.
type stageOutput struct {
	files   []string
	detail  string
	skipped bool
}

type stageFunc func(ctx context.Context) (stageOutput, error)

func (rn *run) stageFunc(stage v1.Stage) stageFunc {
	switch stage {
	case v1.StageCollect:
		return rn.collectStage
	case v1.StageInstallDeps:
		return rn.installDeps
	case v1.StageScaffold:
		return rn.scaffold
	case v1.StagePatchConfig:
		return rn.patchConfig
	case v1.StageWriteSecrets:
		return rn.writeSecrets
	case v1.StageMigrate:
		return rn.migrate
	case v1.StageEmitArtifacts:
		return rn.emitArtifacts
	case v1.StageInitVCS:
		return rn.initVCS
	}
	return func(context.Context) (stageOutput, error) {
		return stageOutput{}, errs.Newf(errs.ErrInternal, "lifecycle.stage", "no handler for %s", stage)
	}
}

func (rn *run) collectStage(ctx context.Context) (stageOutput, error) {
	cfg, err := rn.collect(ctx)
	if err != nil {
		return stageOutput{}, err
	}
	if cfg.Target == "" {
		cfg.Target = rn.rec.Target
	}
	if err := cfg.Validate(); err != nil {
		return stageOutput{}, errs.Wrap(err, errs.ErrValidation, "lifecycle.collect")
	}
	rn.cfg = cfg
	rn.rec.Project = cfg.Project
	rn.rec.App = cfg.App
	rn.rec.Deploy = cfg.Deploy.Enabled
	rn.log.Info("configuration collected", "config", cfg.Redacted())
	return stageOutput{detail: cfg.Project + "/" + cfg.App}, nil
}

func (rn *run) installDeps(ctx context.Context) (stageOutput, error) {
	if !rn.opts.DryRun {
		if err := os.MkdirAll(rn.cfg.Target, 0o755); err != nil {
			return stageOutput{}, errs.Wrap(err, errs.ErrWriteFile, "lifecycle.install").WithResource(rn.cfg.Target)
		}
	}

	inst := toolchain.NewInstaller(rn.opts.Tools, rn.cfg, rn.opts.Env, rn.log)
	ran, err := inst.InstallSystem(ctx)
	if err != nil {
		return stageOutput{}, err
	}
	if err := inst.CreateVenv(ctx); err != nil {
		return stageOutput{}, err
	}
	if err := inst.InstallFramework(ctx); err != nil {
		return stageOutput{}, err
	}

	out := stageOutput{detail: "system packages installed"}
	if !ran {
		out.detail = "system packages skipped"
	}
	if rn.opts.DryRun {
		return out, nil
	}
	req, err := inst.Freeze(ctx)
	if err != nil {
		return stageOutput{}, err
	}
	out.files = []string{req}
	return out, nil
}

func (rn *run) framework() *toolchain.Framework {
	venv := toolchain.Virtualenv{Dir: filepath.Join(rn.cfg.Target, toolchain.VenvDir)}
	return toolchain.NewFramework(rn.opts.Tools, venv, rn.cfg.Target, rn.opts.Env)
}

func (rn *run) scaffold(ctx context.Context) (stageOutput, error) {
	fw := rn.framework()
	if err := fw.StartProject(ctx, rn.cfg.Project); err != nil {
		return stageOutput{}, err
	}
	if err := fw.StartApp(ctx, rn.cfg.App); err != nil {
		return stageOutput{}, err
	}
	return stageOutput{files: []string{toolchain.ManagePy, rn.cfg.Project + "/", rn.cfg.App + "/"}}, nil
}

func (rn *run) patchConfig(_ context.Context) (stageOutput, error) {
	patches, err := patch.SettingsPatches(rn.cfg)
	if err != nil {
		return stageOutput{}, err
	}
	if rn.opts.DryRun {
		return stageOutput{files: []string{patch.SettingsFile(rn.cfg)}, detail: "patches rendered, not applied"}, nil
	}

	applied := 0
	for _, p := range patches {
		outcome, err := patch.ApplyFile(rn.cfg.Target, p)
		if err != nil {
			return stageOutput{}, err
		}
		rn.log.Info("patch", "name", p.Name, "file", p.File, "outcome", outcome)
		if outcome == v1.PatchApplied {
			applied++
		}
	}
	out := stageOutput{files: []string{patch.SettingsFile(rn.cfg)}}
	if applied == 0 {
		out.detail = "settings already patched"
	}
	return out, nil
}

func (rn *run) writeSecrets(ctx context.Context) (stageOutput, error) {
	if rn.opts.DryRun {
		return stageOutput{files: []string{secrets.EnvFile}, detail: "not written (dry run)"}, nil
	}
	store, err := rn.opts.Secrets(ctx, rn.cfg, rn.log)
	if err != nil {
		return stageOutput{}, err
	}
	defer store.Close()

	files, err := store.Put(ctx, rn.cfg)
	if err != nil {
		return stageOutput{}, err
	}
	return stageOutput{files: files, detail: string(rn.cfg.Deploy.Secrets)}, nil
}

func (rn *run) migrate(ctx context.Context) (stageOutput, error) {
	var env []string
	if !rn.opts.DryRun {
		var err error
		env, err = secrets.ReadEnvFile(filepath.Join(rn.cfg.Target, secrets.EnvFile))
		if err != nil {
			return stageOutput{}, err
		}
	}
	if err := rn.framework().Migrate(ctx, env); err != nil {
		return stageOutput{}, err
	}
	return stageOutput{}, nil
}

func (rn *run) emitArtifacts(_ context.Context) (stageOutput, error) {
	files, err := render.Artifacts(rn.cfg)
	if err != nil {
		return stageOutput{}, err
	}
	out := stageOutput{}
	for _, f := range files {
		out.files = append(out.files, f.Path)
	}
	if rn.opts.DryRun {
		out.detail = "rendered and verified, not written"
		return out, nil
	}
	if err := writeFiles(rn.cfg.Target, files); err != nil {
		return stageOutput{}, err
	}
	if rn.cfg.Deploy.Secrets != v1.SecretsGCP {
		out.detail = "replace YOUR_PROJECT_ID in " + render.CloudBuildPath + " before deploying"
	}
	return out, nil
}

func (rn *run) initVCS(_ context.Context) (stageOutput, error) {
	if rn.opts.DryRun {
		return stageOutput{skipped: true, detail: "dry run"}, nil
	}
	res, err := vcs.Init(rn.cfg, rn.opts.Now().Round(time.Second))
	if err != nil {
		return stageOutput{}, err
	}
	rn.rec.Commit = res.Hash
	return stageOutput{files: res.Files, detail: res.Hash}, nil
}

// writeFiles writes each generated file under root, overwriting.
func writeFiles(root string, files []v1.GeneratedFile) error {
	for _, f := range files {
		path := filepath.Join(root, f.Path)
		mode := os.FileMode(f.Mode)
		if mode == 0 {
			mode = 0o644
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errs.Wrap(err, errs.ErrWriteFile, "lifecycle.write").WithResource(path)
		}
		if err := os.WriteFile(path, []byte(f.Content), mode); err != nil {
			return errs.Wrap(err, errs.ErrWriteFile, "lifecycle.write").WithResource(path)
		}
	}
	return nil
}
