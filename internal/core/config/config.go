// Package config provides the launchpad configuration loader.
// Config is loaded by merging defaults → ~/.launchpad/config.yaml →
// launchpad.yaml → LAUNCHPAD_* env vars.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/pkg/netutil"
)

// ProjectFile is the per-project config file name discovered upward from cwd.
const ProjectFile = "launchpad.yaml"

// sensitiveKeyRegex matches config keys and log attributes that must be redacted.
var sensitiveKeyRegex = regexp.MustCompile(`(?i)(password|token|secret|passphrase)`)

// Defaults contains factory-default values applied before any config file is loaded.
var Defaults = map[string]any{
	"python":                "python3",
	"system.manager":        []string{"sudo", "apt-get"},
	"system.packages":       []string{"python3-venv", "python3-dev", "libpq-dev", "postgresql", "postgresql-contrib"},
	"system.skip":           false,
	"framework.packages":    []string{"django", "psycopg2-binary", "gunicorn"},
	"database.host":         "localhost",
	"database.port":         5432,
	"deploy.enabled":        false,
	"deploy.inline_secrets": false,
	"deploy.base_image":     "python:3.11-slim",
	"deploy.port":           8000,
	"secrets.backend":       string(v1.SecretsEnvFile),
	"secrets.gcp_project":   "",
	"git.author_name":       "launchpad",
	"git.author_email":      "launchpad@localhost",
	"log.level":             "info",
	"log.format":            "text",
	"doctor.index_url":      "https://pypi.org/simple/",
}

// ─────────────────────────────────────────────────────────────────────────────
// Config types
// ─────────────────────────────────────────────────────────────────────────────

// Config is the fully-decoded launchpad configuration.
type Config struct {
	Python    string          `mapstructure:"python"`
	System    SystemConfig    `mapstructure:"system"`
	Framework FrameworkConfig `mapstructure:"framework"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Deploy    DeployConfig    `mapstructure:"deploy"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Git       GitConfig       `mapstructure:"git"`
	Log       LogConfig       `mapstructure:"log"`
	Doctor    DoctorConfig    `mapstructure:"doctor"`
	Answers   AnswersConfig   `mapstructure:"answers"`
}

// SystemConfig controls the OS package manager step.
type SystemConfig struct {
	Manager  []string `mapstructure:"manager"`
	Packages []string `mapstructure:"packages"`
	Skip     bool     `mapstructure:"skip"`
}

// FrameworkConfig lists the packages installed into the virtualenv.
type FrameworkConfig struct {
	Packages []string `mapstructure:"packages"`
}

// DatabaseConfig holds the connection defaults written into settings.
type DatabaseConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DeployConfig controls EMIT_DEPLOYMENT_ARTIFACTS.
type DeployConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	InlineSecrets bool   `mapstructure:"inline_secrets"`
	BaseImage     string `mapstructure:"base_image"`
	Port          int    `mapstructure:"port"`
}

// SecretsConfig selects the WRITE_SECRETS backend.
type SecretsConfig struct {
	Backend    string `mapstructure:"backend"` // env | gcp
	GCPProject string `mapstructure:"gcp_project"`
}

// GitConfig is the author identity for the first commit.
type GitConfig struct {
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email"`
}

// LogConfig controls logging behaviour.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // json | text
}

// DoctorConfig holds the endpoints probed by `launchpad doctor`.
type DoctorConfig struct {
	IndexURL string `mapstructure:"index_url"`
}

// AnswersConfig pre-seeds the collector; any field left empty is prompted for.
type AnswersConfig struct {
	Project    string `mapstructure:"project"`
	App        string `mapstructure:"app"`
	DBName     string `mapstructure:"db_name"`
	DBUser     string `mapstructure:"db_user"`
	DBPassword string `mapstructure:"db_password"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Loader
// ─────────────────────────────────────────────────────────────────────────────

// Load discovers and loads the configuration, walking up directories to find
// launchpad.yaml, then merging it with the global config and environment variables.
func Load(explicitPath string) (*Config, error) {
	return load(viper.New(), explicitPath, true)
}

// LoadFrom loads only explicitPath plus defaults and env, skipping the global
// file and upward discovery.
func LoadFrom(explicitPath string) (*Config, error) {
	return load(viper.New(), explicitPath, false)
}

func load(v *viper.Viper, explicitPath string, discover bool) (*Config, error) {
	for k, val := range Defaults {
		v.SetDefault(k, val)
	}

	// LAUNCHPAD_DEPLOY_ENABLED → deploy.enabled
	v.SetEnvPrefix("LAUNCHPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short aliases kept for the environment toggles used by earlier scripts.
	_ = v.BindEnv("deploy.enabled", "LAUNCHPAD_DEPLOY_ENABLED", "LAUNCHPAD_DEPLOY")
	_ = v.BindEnv("answers.project", "LAUNCHPAD_ANSWERS_PROJECT", "LAUNCHPAD_PROJECT")
	_ = v.BindEnv("answers.app", "LAUNCHPAD_ANSWERS_APP", "LAUNCHPAD_APP")
	_ = v.BindEnv("answers.db_name", "LAUNCHPAD_ANSWERS_DB_NAME", "LAUNCHPAD_DB_NAME")
	_ = v.BindEnv("answers.db_user", "LAUNCHPAD_ANSWERS_DB_USER", "LAUNCHPAD_DB_USER")
	_ = v.BindEnv("answers.db_password", "LAUNCHPAD_ANSWERS_DB_PASSWORD", "LAUNCHPAD_DB_PASSWORD")

	if discover {
		globalCfg := filepath.Join(Home(), "config.yaml")
		if _, err := os.Stat(globalCfg); err == nil {
			v.SetConfigFile(globalCfg)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read global config: %w", err)
			}
		}
	}

	projectPath := explicitPath
	if projectPath == "" && discover {
		if path, err := discoverProjectConfig(); err == nil {
			projectPath = path
		}
	}
	if projectPath != "" {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read project config %q: %w", projectPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// IsSensitiveKey returns true if key matches a known sensitive pattern.
func IsSensitiveKey(key string) bool {
	return sensitiveKeyRegex.MatchString(key)
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// discoverProjectConfig walks up from the CWD looking for launchpad.yaml.
func discoverProjectConfig() (string, error) {
	start, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := start
	for {
		candidate := filepath.Join(dir, ProjectFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("%s not found (searched up from %s)", ProjectFile, start)
}

// validate performs semantic validation on the loaded config.
func validate(cfg *Config) error {
	if cfg.Python == "" {
		return fmt.Errorf("python interpreter must not be empty")
	}
	if !cfg.System.Skip && len(cfg.System.Manager) == 0 {
		return fmt.Errorf("system.manager must name a package manager command")
	}
	if !netutil.IsValidPort(cfg.Database.Port) {
		return fmt.Errorf("database.port %d out of range", cfg.Database.Port)
	}
	if !netutil.IsValidPort(cfg.Deploy.Port) {
		return fmt.Errorf("deploy.port %d out of range", cfg.Deploy.Port)
	}
	switch v1.SecretsBackend(cfg.Secrets.Backend) {
	case v1.SecretsEnvFile:
	case v1.SecretsGCP:
		if cfg.Secrets.GCPProject == "" {
			return fmt.Errorf("secrets.gcp_project is required when secrets.backend is %q", v1.SecretsGCP)
		}
	default:
		return fmt.Errorf("unknown secrets.backend %q (want env | gcp)", cfg.Secrets.Backend)
	}
	return nil
}

// Home returns the launchpad home directory (~/.launchpad).
func Home() string {
	if h := os.Getenv("LAUNCHPAD_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".launchpad"
	}
	return filepath.Join(home, ".launchpad")
}

// ScaffoldConfig assembles the immutable run input from the loaded config,
// the collected answers and the target directory.
func (c *Config) ScaffoldConfig(target string, answers AnswersConfig, deploy bool) v1.ScaffoldConfig {
	return v1.ScaffoldConfig{
		Target:  target,
		Project: answers.Project,
		App:     answers.App,
		Database: v1.DatabaseSpec{
			Name:     answers.DBName,
			User:     answers.DBUser,
			Password: answers.DBPassword,
			Host:     c.Database.Host,
			Port:     c.Database.Port,
		},
		Toolchain: v1.ToolchainSpec{
			Python:            c.Python,
			PackageManager:    append([]string(nil), c.System.Manager...),
			SystemPackages:    append([]string(nil), c.System.Packages...),
			FrameworkPackages: append([]string(nil), c.Framework.Packages...),
			SkipSystem:        c.System.Skip,
		},
		Deploy: v1.DeploySpec{
			Enabled:       deploy || c.Deploy.Enabled,
			InlineSecrets: c.Deploy.InlineSecrets,
			BaseImage:     c.Deploy.BaseImage,
			Port:          c.Deploy.Port,
			Secrets:       v1.SecretsBackend(c.Secrets.Backend),
			GCPProject:    c.Secrets.GCPProject,
		},
		Author: v1.Author{Name: c.Git.AuthorName, Email: c.Git.AuthorEmail},
	}
}

// DefaultConfigTemplate is the content written by `launchpad init`.
const DefaultConfigTemplate = `# launchpad.yaml: scaffolding defaults for this workspace
python: python3

system:
  manager: [sudo, apt-get]
  packages: [python3-venv, python3-dev, libpq-dev, postgresql, postgresql-contrib]
  skip: false

framework:
  packages: [django, psycopg2-binary, gunicorn]

database:
  host: localhost
  port: 5432

deploy:
  enabled: false
  # Local development only: writes the database values in cleartext into
  # docker-compose.yml instead of ${VAR} references.
  inline_secrets: false
  base_image: python:3.11-slim
  port: 8000

secrets:
  backend: env   # env | gcp
  # gcp_project: my-project

git:
  author_name: launchpad
  author_email: launchpad@localhost

# answers:
#   project: blog
#   app: posts
#   db_name: blogdb
#   db_user: bloguser
#   db_password: set LAUNCHPAD_DB_PASSWORD instead
`
