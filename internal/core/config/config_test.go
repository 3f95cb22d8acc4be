package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	v1 "github.com/f9-o/launchpad/api/v1"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadFromDefaults(t *testing.T) {
	p := writeFile(t, t.TempDir(), "launchpad.yaml", "python: python3.12\n")

	cfg, err := LoadFrom(p)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Python != "python3.12" {
		t.Errorf("Python = %q", cfg.Python)
	}
	if cfg.Database.Host != "localhost" || cfg.Database.Port != 5432 {
		t.Errorf("database defaults = %+v", cfg.Database)
	}
	if cfg.Deploy.Port != 8000 || cfg.Deploy.BaseImage != "python:3.11-slim" {
		t.Errorf("deploy defaults = %+v", cfg.Deploy)
	}
	if cfg.Secrets.Backend != "env" {
		t.Errorf("secrets backend = %q", cfg.Secrets.Backend)
	}
	if len(cfg.Framework.Packages) == 0 {
		t.Error("framework packages default is empty")
	}
}

func TestDefaultTemplateLoads(t *testing.T) {
	p := writeFile(t, t.TempDir(), "launchpad.yaml", DefaultConfigTemplate)
	if _, err := LoadFrom(p); err != nil {
		t.Fatalf("default template does not load: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	p := writeFile(t, t.TempDir(), "launchpad.yaml", "")
	t.Setenv("LAUNCHPAD_DEPLOY", "true")
	t.Setenv("LAUNCHPAD_DB_PASSWORD", "s3cret")
	t.Setenv("LAUNCHPAD_DATABASE_PORT", "6543")

	cfg, err := LoadFrom(p)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if !cfg.Deploy.Enabled {
		t.Error("LAUNCHPAD_DEPLOY did not enable deploy")
	}
	if cfg.Answers.DBPassword != "s3cret" {
		t.Errorf("db password answer = %q", cfg.Answers.DBPassword)
	}
	if cfg.Database.Port != 6543 {
		t.Errorf("database.port = %d", cfg.Database.Port)
	}
}

func TestEnvSelectsSecretManager(t *testing.T) {
	p := writeFile(t, t.TempDir(), "launchpad.yaml", "")
	t.Setenv("LAUNCHPAD_SECRETS_BACKEND", "gcp")
	t.Setenv("LAUNCHPAD_SECRETS_GCP_PROJECT", "my-proj")

	cfg, err := LoadFrom(p)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Secrets.Backend != "gcp" || cfg.Secrets.GCPProject != "my-proj" {
		t.Errorf("secrets = %+v", cfg.Secrets)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad port", "database:\n  port: 70000\n", "database.port"},
		{"unknown backend", "secrets:\n  backend: vault\n", "unknown secrets.backend"},
		{"gcp without project", "secrets:\n  backend: gcp\n", "gcp_project"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, t.TempDir(), "launchpad.yaml", tt.body)
			_, err := LoadFrom(p)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("LoadFrom err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestScaffoldConfig(t *testing.T) {
	p := writeFile(t, t.TempDir(), "launchpad.yaml", "")
	cfg, err := LoadFrom(p)
	if err != nil {
		t.Fatal(err)
	}
	sc := cfg.ScaffoldConfig("/tmp/demo", AnswersConfig{
		Project: "blog", App: "posts", DBName: "blogdb", DBUser: "bloguser", DBPassword: "secret",
	}, true)

	if err := sc.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !sc.Deploy.Enabled {
		t.Error("deploy flag not carried")
	}
	if sc.Deploy.Secrets != v1.SecretsEnvFile {
		t.Errorf("secrets backend = %q", sc.Deploy.Secrets)
	}
	if sc.Database.Host != "localhost" || sc.Database.Port != 5432 {
		t.Errorf("database = %+v", sc.Database)
	}
}

func TestIsSensitiveKey(t *testing.T) {
	for key, want := range map[string]bool{
		"db_password":   true,
		"DB_PASSWORD":   true,
		"api_token":     true,
		"project":       false,
		"database.name": false,
	} {
		if got := IsSensitiveKey(key); got != want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", key, got, want)
		}
	}
}
