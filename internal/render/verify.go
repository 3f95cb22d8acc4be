package render

import (
	"bufio"
	"strings"

	"gopkg.in/yaml.v3"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/pkg/errs"
	"github.com/f9-o/launchpad/pkg/netutil"
)

type composeFile struct {
	Services map[string]struct {
		Build       string            `yaml:"build"`
		Ports       []string          `yaml:"ports"`
		Environment map[string]string `yaml:"environment"`
	} `yaml:"services"`
}

type cloudBuildFile struct {
	Steps []struct {
		Name string   `yaml:"name"`
		Args []string `yaml:"args"`
	} `yaml:"steps"`
	Images []string `yaml:"images"`
}

// Verify sanity-checks a rendered deployment artifact: YAML files must parse,
// the compose port mapping must be a valid publish spec, and the Dockerfile
// must start from a base image and declare a launch command.
func Verify(f v1.GeneratedFile) error {
	switch f.Path {
	case ComposePath:
		return verifyCompose(f)
	case CloudBuildPath:
		var cb cloudBuildFile
		if err := yaml.Unmarshal([]byte(f.Content), &cb); err != nil {
			return verifyErr(f.Path, "invalid YAML: %v", err)
		}
		if len(cb.Steps) == 0 {
			return verifyErr(f.Path, "no build steps")
		}
		return nil
	case DockerfilePath:
		return verifyDockerfile(f)
	}
	return nil
}

func verifyCompose(f v1.GeneratedFile) error {
	var cf composeFile
	if err := yaml.Unmarshal([]byte(f.Content), &cf); err != nil {
		return verifyErr(f.Path, "invalid YAML: %v", err)
	}
	if len(cf.Services) != 1 {
		return verifyErr(f.Path, "expected exactly one service, found %d", len(cf.Services))
	}
	for name, svc := range cf.Services {
		for _, p := range svc.Ports {
			if _, err := netutil.ParsePortMapping(p); err != nil {
				return verifyErr(f.Path, "service %s: %v", name, err)
			}
		}
		for _, key := range []string{"DB_NAME", "DB_USER", "DB_PASSWORD"} {
			if _, ok := svc.Environment[key]; !ok {
				return verifyErr(f.Path, "service %s: environment %s missing", name, key)
			}
		}
	}
	return nil
}

func verifyDockerfile(f v1.GeneratedFile) error {
	var first string
	var hasCmd bool
	sc := bufio.NewScanner(strings.NewReader(f.Content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if first == "" {
			first = line
		}
		if strings.HasPrefix(line, "CMD ") {
			hasCmd = true
		}
	}
	if !strings.HasPrefix(first, "FROM ") {
		return verifyErr(f.Path, "first instruction must be FROM, got %q", first)
	}
	if !hasCmd {
		return verifyErr(f.Path, "no CMD instruction")
	}
	return nil
}

func verifyErr(path, format string, args ...any) error {
	return errs.Newf(errs.ErrRender, "render.verify", format, args...).WithResource(path)
}
