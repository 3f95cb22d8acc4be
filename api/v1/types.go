// Package v1 defines the public data types shared across all launchpad layers.
package v1

import (
	"fmt"
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle enumerations
// ─────────────────────────────────────────────────────────────────────────────

// Stage is one state of the scaffolding lifecycle.
type Stage string

const (
	StageCollect       Stage = "COLLECT"
	StageInstallDeps   Stage = "INSTALL_DEPS"
	StageScaffold      Stage = "SCAFFOLD"
	StagePatchConfig   Stage = "PATCH_CONFIG"
	StageWriteSecrets  Stage = "WRITE_SECRETS"
	StageMigrate       Stage = "APPLY_MIGRATIONS"
	StageEmitArtifacts Stage = "EMIT_DEPLOYMENT_ARTIFACTS"
	StageInitVCS       Stage = "INIT_VERSION_CONTROL"
	StageDone          Stage = "DONE"
	StageFailed        Stage = "FAILED"
)

// Terminal reports whether no further transition leaves s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// StageStatus is the outcome of a single stage.
type StageStatus string

const (
	StageOK      StageStatus = "ok"
	StageSkipped StageStatus = "skipped"
	StageError   StageStatus = "failed"
)

// TemplateName identifies one of the built-in file blueprints.
type TemplateName string

const (
	TemplateSettingsDB     TemplateName = "settings_db"
	TemplateSettingsStatic TemplateName = "settings_static"
	TemplateInstalledApp   TemplateName = "installed_app"
	TemplateEnv            TemplateName = "env"
	TemplateDockerfile     TemplateName = "dockerfile"
	TemplateCompose        TemplateName = "compose"
	TemplateCloudBuild     TemplateName = "cloudbuild"
	TemplateGitignore      TemplateName = "gitignore"
	TemplateDockerignore   TemplateName = "dockerignore"
)

// PatchMode selects where a patch inserts its text.
type PatchMode string

const (
	PatchAfter  PatchMode = "after"  // immediately after the first anchor match
	PatchAppend PatchMode = "append" // end of file, anchor ignored
)

// PatchOutcome reports what Apply did with a patch.
type PatchOutcome string

const (
	PatchApplied PatchOutcome = "applied"
	PatchSkipped PatchOutcome = "skipped" // insertion already present
)

// SecretsBackend selects where WRITE_SECRETS stores the database credentials.
type SecretsBackend string

const (
	SecretsEnvFile SecretsBackend = "env"
	SecretsGCP     SecretsBackend = "gcp"
)

// ─────────────────────────────────────────────────────────────────────────────
// Scaffold configuration
// ─────────────────────────────────────────────────────────────────────────────

// DatabaseSpec holds the connection values written to settings and the env file.
type DatabaseSpec struct {
	Name     string `yaml:"name"     mapstructure:"name"`
	User     string `yaml:"user"     mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Host     string `yaml:"host"     mapstructure:"host"`
	Port     int    `yaml:"port"     mapstructure:"port"`
}

// ToolchainSpec lists the packages and interpreter the installer uses.
type ToolchainSpec struct {
	Python            string   `yaml:"python"`
	PackageManager    []string `yaml:"package_manager"` // e.g. ["sudo", "apt-get"]
	SystemPackages    []string `yaml:"system_packages"`
	FrameworkPackages []string `yaml:"framework_packages"`
	SkipSystem        bool     `yaml:"skip_system"`
}

// DeploySpec controls the optional deployment artifacts.
type DeploySpec struct {
	Enabled       bool           `yaml:"enabled"`
	InlineSecrets bool           `yaml:"inline_secrets"`
	BaseImage     string         `yaml:"base_image"`
	Port          int            `yaml:"port"`
	Secrets       SecretsBackend `yaml:"secrets"`
	GCPProject    string         `yaml:"gcp_project"`
}

// Author is the identity used for the first commit.
type Author struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// ScaffoldConfig is the immutable input of one run. It is created once by the
// collector and passed by value; stages never mutate it.
type ScaffoldConfig struct {
	Target    string        `yaml:"target"`
	Project   string        `yaml:"project"`
	App       string        `yaml:"app"`
	Database  DatabaseSpec  `yaml:"database"`
	Toolchain ToolchainSpec `yaml:"toolchain"`
	Deploy    DeploySpec    `yaml:"deploy"`
	Author    Author        `yaml:"author"`
}

// redactedPassword replaces the database password in any loggable copy.
const redactedPassword = "********"

// Redacted returns a copy safe to log.
func (c ScaffoldConfig) Redacted() ScaffoldConfig {
	if c.Database.Password != "" {
		c.Database.Password = redactedPassword
	}
	return c
}

// Missing returns the names of required fields that are empty.
func (c ScaffoldConfig) Missing() []string {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("target", c.Target)
	check("project", c.Project)
	check("app", c.App)
	check("database.name", c.Database.Name)
	check("database.user", c.Database.User)
	check("database.password", c.Database.Password)
	return missing
}

// Validate checks presence of the required fields only; name syntax is left to
// the framework CLI.
func (c ScaffoldConfig) Validate() error {
	if m := c.Missing(); len(m) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(m, ", "))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Generated content
// ─────────────────────────────────────────────────────────────────────────────

// GeneratedFile is a (path, content) pair written once, relative to the target.
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"-"`
	Mode    uint32 `json:"mode"`
}

// Patch is a targeted textual edit of a generated file.
type Patch struct {
	Name   string    `json:"name"`
	File   string    `json:"file"`   // path relative to the target directory
	Anchor string    `json:"anchor"` // regular expression matched per line
	Insert string    `json:"-"`
	Mode   PatchMode `json:"mode"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Run records (persisted in BoltDB)
// ─────────────────────────────────────────────────────────────────────────────

// StageResult is the typed outcome a stage hands back to the runner.
type StageResult struct {
	Stage    Stage         `json:"stage"`
	Status   StageStatus   `json:"status"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Files    []string      `json:"files,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Err      string        `json:"error,omitempty"`
}

// RunRecord is the persisted history entry of one lifecycle run. It never
// carries the database password.
type RunRecord struct {
	ID        string        `json:"id"`
	Target    string        `json:"target"`
	Project   string        `json:"project"`
	App       string        `json:"app"`
	Deploy    bool          `json:"deploy"`
	DryRun    bool          `json:"dry_run"`
	Stage     Stage         `json:"stage"`
	Stages    []StageResult `json:"stages"`
	Commit    string        `json:"commit,omitempty"`
	Started   time.Time     `json:"started"`
	Completed time.Time     `json:"completed,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Result returns "success", "failure" or "running" for display and audit.
func (r RunRecord) Result() string {
	switch r.Stage {
	case StageDone:
		return "success"
	case StageFailed:
		return "failure"
	default:
		return "running"
	}
}
