// Package patch applies targeted, idempotent text insertions to generated
// configuration files.
//
// A patch inserts a block immediately after the first line matching its
// anchor (or at the end of the file in append mode). Re-applying a patch whose
// block is already present where it would go is reported as skipped: right
// after the anchor, anywhere inside the bracket the anchor opens, or anywhere
// in the file for append mode. A missing anchor is always an error.
package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/internal/render"
	"github.com/f9-o/launchpad/pkg/errs"
)

// SettingsFile is the generated settings module, relative to the target.
// The project is started in the target directory itself, so manage.py sits
// at the root next to the settings package.
func SettingsFile(cfg v1.ScaffoldConfig) string {
	return filepath.Join(cfg.Project, "settings.py")
}

// Apply returns content with p applied. It never touches the filesystem.
func Apply(content string, p v1.Patch) (string, v1.PatchOutcome, error) {
	insert := splitLines(p.Insert)
	if len(insert) == 0 {
		return content, "", errs.Newf(errs.ErrInternal, "patch.apply", "patch %q has nothing to insert", p.Name)
	}
	lines := splitLines(content)

	switch p.Mode {
	case v1.PatchAppend:
		if containsBlock(lines, insert) {
			return content, v1.PatchSkipped, nil
		}
		out := content
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		if out != "" {
			out += "\n"
		}
		return out + joinLines(insert), v1.PatchApplied, nil

	case v1.PatchAfter, "":
		if p.Anchor == "" {
			return content, "", errs.Newf(errs.ErrInternal, "patch.apply", "patch %q has no anchor", p.Name)
		}
		re, err := regexp.Compile(p.Anchor)
		if err != nil {
			return content, "", errs.Wrap(err, errs.ErrInternal, "patch.apply").WithResource(p.Name)
		}
		at := -1
		for i, line := range lines {
			if re.MatchString(line) {
				at = i
				break
			}
		}
		if at < 0 {
			return content, "", errs.Newf(errs.ErrPatchAnchor, "patch.apply", "anchor %q not found", p.Anchor).
				WithResource(p.File).
				WithAdvice(fmt.Sprintf("the generated %s no longer matches the %s patch; edit it by hand", p.File, p.Name))
		}
		if containsBlock(lines[at+1:anchoredEnd(lines, at, len(insert))], insert) {
			return content, v1.PatchSkipped, nil
		}

		out := make([]string, 0, len(lines)+len(insert))
		out = append(out, lines[:at+1]...)
		out = append(out, insert...)
		out = append(out, lines[at+1:]...)
		result := joinLines(out)
		if !strings.HasSuffix(content, "\n") {
			result = strings.TrimSuffix(result, "\n")
		}
		return result, v1.PatchApplied, nil

	default:
		return content, "", errs.Newf(errs.ErrInternal, "patch.apply", "unknown patch mode %q", p.Mode)
	}
}

// anchoredEnd returns the end (exclusive) of the region an after-mode patch
// owns. When the anchor line opens a bracket the region runs to the line that
// closes it; otherwise it covers only the n lines right after the anchor.
func anchoredEnd(lines []string, at, n int) int {
	var closer string
	if open := strings.TrimRight(lines[at], " \t\r"); open != "" {
		closer = map[byte]string{'[': "]", '(': ")", '{': "}"}[open[len(open)-1]]
	}
	if closer == "" {
		return min(at+1+n, len(lines))
	}
	for i := at + 1; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), closer) {
			return i
		}
	}
	return len(lines)
}

// ApplyFile applies p to root/p.File, rewriting the file only when the patch
// was applied.
func ApplyFile(root string, p v1.Patch) (v1.PatchOutcome, error) {
	path := filepath.Join(root, p.File)
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errs.Wrap(err, errs.ErrPatchIO, "patch.read").WithResource(path)
	}

	out, outcome, err := Apply(string(raw), p)
	if err != nil {
		return "", err
	}
	if outcome == v1.PatchSkipped {
		return outcome, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", errs.Wrap(err, errs.ErrPatchIO, "patch.stat").WithResource(path)
	}
	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		return "", errs.Wrap(err, errs.ErrPatchIO, "patch.write").WithResource(path)
	}
	return outcome, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Standard settings patches
// ─────────────────────────────────────────────────────────────────────────────

// AppRegistration adds the app to INSTALLED_APPS right after the list opener.
func AppRegistration(cfg v1.ScaffoldConfig) (v1.Patch, error) {
	return build(cfg, "app-registration", v1.TemplateInstalledApp, `^INSTALLED_APPS\s*=\s*\[`, v1.PatchAfter)
}

// StaticRoot declares the collected static files directory after STATIC_URL.
func StaticRoot(cfg v1.ScaffoldConfig) (v1.Patch, error) {
	return build(cfg, "static-root", v1.TemplateSettingsStatic, `^STATIC_URL\s*=`, v1.PatchAfter)
}

// Database appends the environment-driven DATABASES block. Being last in the
// module it overrides the default definition.
func Database(cfg v1.ScaffoldConfig) (v1.Patch, error) {
	return build(cfg, "database", v1.TemplateSettingsDB, "", v1.PatchAppend)
}

// SettingsPatches returns the PATCH_CONFIG patches in application order.
func SettingsPatches(cfg v1.ScaffoldConfig) ([]v1.Patch, error) {
	var patches []v1.Patch
	for _, fn := range []func(v1.ScaffoldConfig) (v1.Patch, error){AppRegistration, StaticRoot, Database} {
		p, err := fn(cfg)
		if err != nil {
			return nil, err
		}
		patches = append(patches, p)
	}
	return patches, nil
}

func build(cfg v1.ScaffoldConfig, name string, tmpl v1.TemplateName, anchor string, mode v1.PatchMode) (v1.Patch, error) {
	insert, err := render.Render(tmpl, cfg)
	if err != nil {
		return v1.Patch{}, err
	}
	return v1.Patch{
		Name:   name,
		File:   SettingsFile(cfg),
		Anchor: anchor,
		Insert: insert,
		Mode:   mode,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Line helpers
// ─────────────────────────────────────────────────────────────────────────────

// splitLines splits s into lines without their terminators. A trailing
// newline does not produce an empty final element.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n") + "\n"
}

// containsBlock reports whether block appears as a contiguous run of lines in
// lines, ignoring trailing whitespace.
func containsBlock(lines, block []string) bool {
	if len(block) == 0 || len(block) > len(lines) {
		return false
	}
outer:
	for i := 0; i+len(block) <= len(lines); i++ {
		for j, b := range block {
			if strings.TrimRight(lines[i+j], " \t\r") != strings.TrimRight(b, " \t\r") {
				continue outer
			}
		}
		return true
	}
	return false
}
