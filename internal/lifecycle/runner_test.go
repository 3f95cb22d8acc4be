package lifecycle

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/internal/core/logger"
	"github.com/f9-o/launchpad/internal/core/plugin"
	"github.com/f9-o/launchpad/internal/core/state"
	"github.com/f9-o/launchpad/internal/toolchain"
	"github.com/f9-o/launchpad/pkg/errs"
)

const settingsTemplate = `from pathlib import Path

BASE_DIR = Path(__file__).resolve().parent.parent

INSTALLED_APPS = [
    'django.contrib.admin',
    'django.contrib.auth',
]

DATABASES = {
    'default': {
        'ENGINE': 'django.db.backends.sqlite3',
        'NAME': BASE_DIR / 'db.sqlite3',
    }
}

STATIC_URL = 'static/'
`

// fakeTools simulates the framework CLI by writing the skeleton files the
// real tools would create.
type fakeTools struct {
	mu      sync.Mutex
	calls   []toolchain.Command
	failOn  string // argument that makes a command fail
	migrate []string
}

func (f *fakeTools) Run(_ context.Context, cmd toolchain.Command) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)

	for _, a := range cmd.Args {
		if f.failOn != "" && a == f.failOn {
			return nil, errs.Newf(errs.ErrToolFailed, "toolchain.run", "%s exited with status 1", cmd.String())
		}
	}

	write := func(rel, content string) error {
		path := filepath.Join(cmd.Dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		return os.WriteFile(path, []byte(content), 0o644)
	}

	switch {
	case len(cmd.Args) >= 2 && cmd.Args[0] == "startproject":
		project := cmd.Args[1]
		for rel, content := range map[string]string{
			"manage.py":              "#!/usr/bin/env python\n",
			project + "/__init__.py": "",
			project + "/settings.py": settingsTemplate,
			project + "/urls.py":     "urlpatterns = []\n",
			project + "/wsgi.py":     "application = None\n",
		} {
			if err := write(rel, content); err != nil {
				return nil, err
			}
		}
	case len(cmd.Args) >= 3 && cmd.Args[1] == "startapp":
		app := cmd.Args[2]
		for _, rel := range []string{app + "/__init__.py", app + "/models.py", app + "/views.py"} {
			if err := write(rel, ""); err != nil {
				return nil, err
			}
		}
	case len(cmd.Args) >= 2 && cmd.Args[1] == "migrate":
		f.migrate = cmd.Env
	case len(cmd.Args) == 1 && cmd.Args[0] == "freeze":
		return []byte("Django==5.0\npsycopg2-binary==2.9.9\n"), nil
	}
	return nil, nil
}

func demoConfig(target string, deploy bool) v1.ScaffoldConfig {
	return v1.ScaffoldConfig{
		Target:   target,
		Project:  "blog",
		App:      "posts",
		Database: v1.DatabaseSpec{Name: "blogdb", User: "bloguser", Password: "secret"},
		Toolchain: v1.ToolchainSpec{
			Python:            "python3",
			FrameworkPackages: []string{"django", "psycopg2-binary", "gunicorn"},
			SkipSystem:        true,
		},
		Deploy: v1.DeploySpec{Enabled: deploy, Secrets: v1.SecretsEnvFile},
		Author: v1.Author{Name: "launchpad", Email: "launchpad@localhost"},
	}
}

func fixed(cfg v1.ScaffoldConfig) CollectFunc {
	return func(context.Context) (v1.ScaffoldConfig, error) { return cfg, nil }
}

// listFiles returns every regular file under root except the repository
// metadata, relative and sorted.
func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(out)
	return out
}

func newRunner(tools toolchain.Runner, opts Options) *Runner {
	opts.Tools = tools
	opts.Env = []string{"PATH=/usr/bin:/bin"}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}
	return New(opts)
}

func TestRunScaffoldsDemoProject(t *testing.T) {
	target := filepath.Join(t.TempDir(), "demo")
	tools := &fakeTools{}

	rec, err := newRunner(tools, Options{}).Run(context.Background(), target, fixed(demoConfig(target, false)))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Stage != v1.StageDone {
		t.Fatalf("final stage = %s", rec.Stage)
	}
	if rec.Commit == "" {
		t.Error("no commit recorded")
	}

	for _, rel := range []string{"manage.py", "blog/settings.py", "posts/models.py", "requirements.txt", ".gitignore"} {
		if _, err := os.Stat(filepath.Join(target, rel)); err != nil {
			t.Errorf("missing %s: %v", rel, err)
		}
	}

	settings, err := os.ReadFile(filepath.Join(target, "blog/settings.py"))
	if err != nil {
		t.Fatal(err)
	}
	s := string(settings)
	apps := s[strings.Index(s, "INSTALLED_APPS = ["):]
	apps = apps[:strings.Index(apps, "]")]
	if !strings.Contains(apps, "'posts',") {
		t.Errorf("'posts' not inside INSTALLED_APPS:\n%s", s)
	}
	if !strings.Contains(s, "'ENGINE': 'django.db.backends.postgresql'") {
		t.Error("database block not applied")
	}
	if strings.Contains(s, "secret") {
		t.Error("password written into settings")
	}

	env, err := os.ReadFile(filepath.Join(target, ".env"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(env), "DB_NAME=blogdb\n") {
		t.Errorf(".env = %q", env)
	}

	if pw, _ := toolchain.LookupEnv(tools.migrate, "DB_PASSWORD"); pw != "secret" {
		t.Errorf("migrate ran without the database password in its env")
	}

	var statuses []string
	for _, st := range rec.Stages {
		statuses = append(statuses, string(st.Stage)+"="+string(st.Status))
	}
	want := []string{
		"COLLECT=ok", "INSTALL_DEPS=ok", "SCAFFOLD=ok", "PATCH_CONFIG=ok", "WRITE_SECRETS=ok",
		"APPLY_MIGRATIONS=ok", "EMIT_DEPLOYMENT_ARTIFACTS=skipped", "INIT_VERSION_CONTROL=ok",
	}
	if strings.Join(statuses, " ") != strings.Join(want, " ") {
		t.Errorf("stages = %v\nwant     %v", statuses, want)
	}
}

func TestDeployAddsExactlyThreeArtifacts(t *testing.T) {
	base := t.TempDir()
	plain := filepath.Join(base, "plain")
	deploy := filepath.Join(base, "deploy")

	if _, err := newRunner(&fakeTools{}, Options{}).Run(context.Background(), plain, fixed(demoConfig(plain, false))); err != nil {
		t.Fatalf("Run without deploy: %v", err)
	}
	if _, err := newRunner(&fakeTools{}, Options{}).Run(context.Background(), deploy, fixed(demoConfig(deploy, true))); err != nil {
		t.Fatalf("Run with deploy: %v", err)
	}

	without := map[string]bool{}
	for _, f := range listFiles(t, plain) {
		without[f] = true
	}
	var extra []string
	for _, f := range listFiles(t, deploy) {
		if !without[f] {
			extra = append(extra, f)
		}
	}

	if len(extra) != 3 {
		t.Fatalf("deploy added %v, want exactly 3 files", extra)
	}
	for _, f := range extra {
		raw, err := os.ReadFile(filepath.Join(deploy, f))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(raw), "blog") {
			t.Errorf("%s does not mention the project", f)
		}
	}
}

func TestRunFailureIsTerminal(t *testing.T) {
	target := filepath.Join(t.TempDir(), "demo")
	tools := &fakeTools{failOn: "startapp"}
	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	host := plugin.NewHost(logger.Discard(), nil)
	var failed []v1.Stage
	err = host.Register(v1.HookRunFailed, func(hc v1.HookContext) error {
		failed = append(failed, hc.Stage)
		if hc.Config.Database.Password == "secret" {
			t.Error("hook received the cleartext password")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	rec, err := newRunner(tools, Options{State: db, Plugins: host}).Run(context.Background(), target, fixed(demoConfig(target, true)))
	if !errs.IsCode(err, errs.ErrToolFailed) {
		t.Fatalf("err = %v, want %s", err, errs.ErrToolFailed)
	}
	if rec.Stage != v1.StageFailed {
		t.Errorf("stage = %s, want FAILED", rec.Stage)
	}
	last := rec.Stages[len(rec.Stages)-1]
	if last.Stage != v1.StageScaffold || last.Status != v1.StageError {
		t.Errorf("last result = %+v", last)
	}
	if len(failed) != 1 || failed[0] != v1.StageScaffold {
		t.Errorf("OnRunFailed fired for %v", failed)
	}

	// Nothing after the failing stage ran.
	if _, err := os.Stat(filepath.Join(target, ".env")); !os.IsNotExist(err) {
		t.Error(".env written after failure")
	}
	for _, c := range tools.calls {
		for _, a := range c.Args {
			if a == "migrate" {
				t.Error("migrate ran after failure")
			}
		}
	}

	stored, err := db.GetRun(rec.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetRun = %v, %v", stored, err)
	}
	if stored.Stage != v1.StageFailed || stored.Error == "" {
		t.Errorf("persisted record = %+v", stored)
	}
}

func TestCollectFailureWritesNothing(t *testing.T) {
	target := filepath.Join(t.TempDir(), "demo")
	tools := &fakeTools{}
	collect := func(context.Context) (v1.ScaffoldConfig, error) {
		return v1.ScaffoldConfig{}, errs.Newf(errs.ErrValidation, "collect", "missing required fields: project")
	}

	rec, err := newRunner(tools, Options{}).Run(context.Background(), target, collect)
	if !errs.IsCode(err, errs.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
	if rec.Stage != v1.StageFailed {
		t.Errorf("stage = %s", rec.Stage)
	}
	if len(tools.calls) != 0 {
		t.Errorf("tools ran: %v", tools.calls)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("target created")
	}
}

func TestDryRunRecordsCommandsOnly(t *testing.T) {
	target := filepath.Join(t.TempDir(), "demo")
	dry := toolchain.NewDryRunRunner(logger.Discard())

	rec, err := newRunner(dry, Options{DryRun: true}).Run(context.Background(), target, fixed(demoConfig(target, true)))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rec.DryRun || rec.Stage != v1.StageDone {
		t.Errorf("record = %+v", rec)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("dry run created the target")
	}

	var joined []string
	for _, c := range dry.Commands() {
		joined = append(joined, c.String())
	}
	all := strings.Join(joined, "\n")
	for _, want := range []string{"-m venv", "startproject blog .", "startapp posts", "migrate"} {
		if !strings.Contains(all, want) {
			t.Errorf("dry run did not record %q:\n%s", want, all)
		}
	}
}

func TestObserverSeesEveryStage(t *testing.T) {
	target := filepath.Join(t.TempDir(), "demo")
	var done []v1.Stage
	obs := func(ev Event) {
		if ev.Total != len(Stages()) {
			t.Errorf("total = %d", ev.Total)
		}
		if ev.Result != nil {
			done = append(done, ev.Stage)
		}
	}
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	opts := Options{Observer: obs, Now: func() time.Time { return clock }, NewID: func() string { return "run-1" }}

	rec, err := newRunner(&fakeTools{}, opts).Run(context.Background(), target, fixed(demoConfig(target, false)))
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != "run-1" {
		t.Errorf("id = %q", rec.ID)
	}
	if len(done) != len(Stages()) {
		t.Errorf("observer saw %v", done)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	target := filepath.Join(t.TempDir(), "demo")
	rec, err := newRunner(&fakeTools{}, Options{}).Run(ctx, target, fixed(demoConfig(target, false)))
	if err == nil || rec.Stage != v1.StageFailed {
		t.Fatalf("Run on cancelled ctx = %v, %s", err, rec.Stage)
	}
}
