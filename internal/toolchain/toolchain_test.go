package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/internal/core/logger"
	"github.com/f9-o/launchpad/pkg/errs"
)

// scriptedRunner records commands and answers them from a table keyed by the
// executable's base name.
type scriptedRunner struct {
	calls   []Command
	outputs map[string][]byte
	fail    map[string]error
}

func (r *scriptedRunner) Run(_ context.Context, cmd Command) ([]byte, error) {
	r.calls = append(r.calls, cmd)
	name := filepath.Base(cmd.Name)
	if err := r.fail[name]; err != nil {
		return nil, err
	}
	return r.outputs[name], nil
}

func testConfig(target string) v1.ScaffoldConfig {
	return v1.ScaffoldConfig{
		Target:  target,
		Project: "blog",
		App:     "posts",
		Toolchain: v1.ToolchainSpec{
			Python:            "python3",
			PackageManager:    []string{"sudo", "apt-get"},
			SystemPackages:    []string{"python3-venv", "libpq-dev"},
			FrameworkPackages: []string{"django", "psycopg2-binary"},
		},
	}
}

func TestMergeEnv(t *testing.T) {
	tests := []struct {
		name string
		base []string
		over []string
		want []string
	}{
		{"override keeps order", []string{"A=1", "B=2"}, []string{"A=3"}, []string{"A=3", "B=2"}},
		{"append new", []string{"A=1"}, []string{"C=9"}, []string{"A=1", "C=9"}},
		{"remove", []string{"A=1", "PYTHONHOME=/x"}, []string{"-PYTHONHOME"}, []string{"A=1"}},
		{"empty value kept", nil, []string{"E="}, []string{"E="}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergeEnv(tt.base, tt.over); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MergeEnv = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVirtualenvEnv(t *testing.T) {
	v := Virtualenv{Dir: "/tmp/demo/venv"}
	env := v.Env([]string{"PATH=/usr/bin", "PYTHONHOME=/opt/py", "HOME=/root"})

	if got, _ := LookupEnv(env, "PATH"); got != "/tmp/demo/venv/bin:/usr/bin" {
		t.Errorf("PATH = %q", got)
	}
	if got, _ := LookupEnv(env, "VIRTUAL_ENV"); got != "/tmp/demo/venv" {
		t.Errorf("VIRTUAL_ENV = %q", got)
	}
	if _, ok := LookupEnv(env, "PYTHONHOME"); ok {
		t.Error("PYTHONHOME not removed")
	}
	if got, _ := LookupEnv(env, "HOME"); got != "/root" {
		t.Errorf("HOME = %q", got)
	}
	if v.Bin("pip") != "/tmp/demo/venv/bin/pip" {
		t.Errorf("Bin(pip) = %q", v.Bin("pip"))
	}
}

func TestInstallerCommands(t *testing.T) {
	dir := t.TempDir()
	r := &scriptedRunner{outputs: map[string][]byte{"pip": []byte("Django==5.0\n")}}
	inst := NewInstaller(r, testConfig(dir), []string{"PATH=/usr/bin"}, logger.Discard())
	ctx := context.Background()

	ran, err := inst.InstallSystem(ctx)
	if err != nil || !ran {
		t.Fatalf("InstallSystem = %v, %v", ran, err)
	}
	if err := inst.CreateVenv(ctx); err != nil {
		t.Fatal(err)
	}
	if err := inst.InstallFramework(ctx); err != nil {
		t.Fatal(err)
	}
	rel, err := inst.Freeze(ctx)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"sudo apt-get update",
		"sudo apt-get install -y python3-venv libpq-dev",
		"python3 -m venv " + filepath.Join(dir, "venv"),
		filepath.Join(dir, "venv/bin/pip") + " install django psycopg2-binary",
		filepath.Join(dir, "venv/bin/pip") + " freeze",
	}
	if len(r.calls) != len(want) {
		t.Fatalf("ran %d commands, want %d", len(r.calls), len(want))
	}
	for i, c := range r.calls {
		if c.String() != want[i] {
			t.Errorf("command %d = %q, want %q", i, c.String(), want[i])
		}
		if c.Dir != dir {
			t.Errorf("command %d dir = %q", i, c.Dir)
		}
	}
	if v, _ := LookupEnv(r.calls[3].Env, "VIRTUAL_ENV"); v == "" {
		t.Error("pip install ran without VIRTUAL_ENV")
	}

	raw, err := os.ReadFile(filepath.Join(dir, rel))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "Django==5.0\n" {
		t.Errorf("requirements.txt = %q", raw)
	}
}

func TestInstallSystemSkipped(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Toolchain.SkipSystem = true
	r := &scriptedRunner{}
	ran, err := NewInstaller(r, cfg, nil, logger.Discard()).InstallSystem(context.Background())
	if err != nil || ran {
		t.Fatalf("InstallSystem = %v, %v", ran, err)
	}
	if len(r.calls) != 0 {
		t.Errorf("ran %v", r.calls)
	}
}

func TestInstallerStopsOnFailure(t *testing.T) {
	cfg := testConfig(t.TempDir())
	boom := errs.Newf(errs.ErrToolFailed, "toolchain.run", "exit 100")
	r := &scriptedRunner{fail: map[string]error{"sudo": boom}}
	_, err := NewInstaller(r, cfg, nil, logger.Discard()).InstallSystem(context.Background())
	if !errs.IsCode(err, errs.ErrToolFailed) {
		t.Fatalf("err = %v", err)
	}
	if len(r.calls) != 1 {
		t.Errorf("continued after failure: %d calls", len(r.calls))
	}
}

func TestFrameworkCommands(t *testing.T) {
	dir := t.TempDir()
	r := &scriptedRunner{}
	venv := Virtualenv{Dir: filepath.Join(dir, VenvDir)}
	fw := NewFramework(r, venv, dir, []string{"PATH=/usr/bin"})
	ctx := context.Background()

	if err := fw.StartProject(ctx, "blog"); err != nil {
		t.Fatal(err)
	}
	if err := fw.StartApp(ctx, "posts"); err != nil {
		t.Fatal(err)
	}
	if err := fw.Migrate(ctx, []string{"DB_NAME=blogdb", "DB_PASSWORD=secret"}); err != nil {
		t.Fatal(err)
	}

	if got := r.calls[0].Args; !reflect.DeepEqual(got, []string{"startproject", "blog", "."}) {
		t.Errorf("startproject args = %v", got)
	}
	if got := r.calls[1].Args; got[len(got)-2] != "startapp" || got[len(got)-1] != "posts" {
		t.Errorf("startapp args = %v", got)
	}
	if v, _ := LookupEnv(r.calls[2].Env, "DB_PASSWORD"); v != "secret" {
		t.Errorf("migrate env DB_PASSWORD = %q", v)
	}
	if _, ok := LookupEnv(r.calls[1].Env, "DB_PASSWORD"); ok {
		t.Error("startapp received database secrets")
	}
}

func TestDryRunRunnerRecords(t *testing.T) {
	r := NewDryRunRunner(logger.Discard())
	out, err := r.Run(context.Background(), Command{Name: "git", Args: []string{"init"}})
	if err != nil || out != nil {
		t.Fatalf("Run = %q, %v", out, err)
	}
	cmds := r.Commands()
	if len(cmds) != 1 || cmds[0].String() != "git init" {
		t.Errorf("Commands() = %v", cmds)
	}
}

func TestExecRunner(t *testing.T) {
	r := NewExecRunner(os.Environ(), logger.Discard())
	ctx := context.Background()

	out, err := r.Run(ctx, Command{Name: "sh", Args: []string{"-c", "echo $LP_TEST"}, Env: []string{"LP_TEST=hello"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("stdout = %q", out)
	}

	_, err = r.Run(ctx, Command{Name: "sh", Args: []string{"-c", "echo broken >&2; exit 3"}})
	if !errs.IsCode(err, errs.ErrToolFailed) {
		t.Fatalf("err = %v, want %s", err, errs.ErrToolFailed)
	}
	if !strings.Contains(err.Error(), "status 3") || !strings.Contains(err.Error(), "broken") {
		t.Errorf("failure report lacks exit status or output: %v", err)
	}

	_, err = r.Run(ctx, Command{Name: "launchpad-no-such-tool"})
	if !errs.IsCode(err, errs.ErrToolNotFound) {
		t.Errorf("err = %v, want %s", err, errs.ErrToolNotFound)
	}
}
