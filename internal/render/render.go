// Package render turns a ScaffoldConfig into file content using the built-in
// templates. Rendering is pure: no I/O beyond the embedded template set.
package render

import (
	"bytes"
	"embed"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/pkg/errs"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Connection and image defaults applied when the config leaves them empty.
const (
	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultBaseImage  = "python:3.11-slim"
	DefaultDeployPort = 8000
)

// Deployment artifact paths, relative to the target directory.
const (
	DockerfilePath = "Dockerfile"
	ComposePath    = "docker-compose.yml"
	CloudBuildPath = "cloudbuild.yaml"
)

// DockerignorePath is honoured by image builds when present; it is not emitted.
const DockerignorePath = ".dockerignore"

// templates is parsed once; a parse failure is a build defect.
var templates = template.Must(
	template.New("launchpad").
		Option("missingkey=error").
		Funcs(template.FuncMap{"yamlScalar": yamlScalar}).
		ParseFS(templateFS, "templates/*.tmpl"),
)

// data is what every template executes against.
type data struct {
	v1.ScaffoldConfig
	SecretManager bool
	SecretName    string
}

// Names lists every template the renderer knows, sorted.
func Names() []v1.TemplateName {
	var names []v1.TemplateName
	for _, t := range templates.Templates() {
		if n, ok := strings.CutSuffix(t.Name(), ".tmpl"); ok {
			names = append(names, v1.TemplateName(n))
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Render resolves the named template against cfg.
func Render(name v1.TemplateName, cfg v1.ScaffoldConfig) (string, error) {
	t := templates.Lookup(string(name) + ".tmpl")
	if t == nil {
		return "", errs.Newf(errs.ErrRender, "render", "unknown template %q", name).
			WithAdvice("run `launchpad render --list` to see the available templates")
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, newData(cfg)); err != nil {
		return "", errs.Wrap(err, errs.ErrRender, "render").WithResource(string(name))
	}
	return buf.String(), nil
}

// SecretName is the Secret Manager id holding the project's database password.
func SecretName(cfg v1.ScaffoldConfig) string {
	return cfg.Project + "-db-password"
}

// Artifacts renders the deployment trio: image definition, orchestration
// file and cloud build manifest.
func Artifacts(cfg v1.ScaffoldConfig) ([]v1.GeneratedFile, error) {
	specs := []struct {
		name v1.TemplateName
		path string
	}{
		{v1.TemplateDockerfile, DockerfilePath},
		{v1.TemplateCompose, ComposePath},
		{v1.TemplateCloudBuild, CloudBuildPath},
	}

	files := make([]v1.GeneratedFile, 0, len(specs))
	for _, s := range specs {
		content, err := Render(s.name, cfg)
		if err != nil {
			return nil, err
		}
		f := v1.GeneratedFile{Path: s.path, Content: content, Mode: 0o644}
		if err := Verify(f); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func newData(cfg v1.ScaffoldConfig) data {
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Deploy.BaseImage == "" {
		cfg.Deploy.BaseImage = DefaultBaseImage
	}
	if cfg.Deploy.Port == 0 {
		cfg.Deploy.Port = DefaultDeployPort
	}
	return data{
		ScaffoldConfig: cfg,
		SecretManager:  cfg.Deploy.Secrets == v1.SecretsGCP,
		SecretName:     SecretName(cfg),
	}
}

// yamlScalar encodes s as a single YAML scalar, quoting only when needed.
func yamlScalar(s string) (string, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(out), "\n"), nil
}
