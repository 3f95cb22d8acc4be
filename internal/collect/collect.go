// Package collect performs COLLECT: it gathers the project, app and database
// answers from presets (config file, environment) and, on a terminal, from an
// interactive form, and assembles the immutable ScaffoldConfig.
package collect

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/internal/core/config"
	"github.com/f9-o/launchpad/pkg/errs"
)

// Prompter fills in answers interactively. Fields already set are shown as
// defaults.
type Prompter func(ctx context.Context, a *config.AnswersConfig) error

// Options controls how answers are gathered.
type Options struct {
	Target         string
	Deploy         bool
	NonInteractive bool
	Stdin          *os.File // TTY check; defaults to os.Stdin
	Prompt         Prompter // defaults to FormPrompter
}

// Collect returns the run's ScaffoldConfig. It has no side effects besides
// reading the terminal.
func Collect(ctx context.Context, cfg *config.Config, opts Options) (v1.ScaffoldConfig, error) {
	answers := cfg.Answers

	if opts.interactive() {
		prompt := opts.Prompt
		if prompt == nil {
			prompt = FormPrompter
		}
		if err := prompt(ctx, &answers); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return v1.ScaffoldConfig{}, errs.New(errs.ErrUsage, "collect.prompt", err)
			}
			return v1.ScaffoldConfig{}, errs.Wrap(err, errs.ErrInternal, "collect.prompt")
		}
	}

	sc := cfg.ScaffoldConfig(opts.Target, trim(answers), opts.Deploy)
	if missing := sc.Missing(); len(missing) > 0 {
		return v1.ScaffoldConfig{}, errs.Newf(errs.ErrValidation, "collect", "missing required fields: %s", strings.Join(missing, ", ")).
			WithAdvice("answer the prompts, or set them under answers: in launchpad.yaml or via LAUNCHPAD_PROJECT, LAUNCHPAD_APP, LAUNCHPAD_DB_NAME, LAUNCHPAD_DB_USER and LAUNCHPAD_DB_PASSWORD")
	}
	return sc, nil
}

func (o Options) interactive() bool {
	if o.NonInteractive {
		return false
	}
	if o.Prompt != nil {
		return true
	}
	in := o.Stdin
	if in == nil {
		in = os.Stdin
	}
	return term.IsTerminal(int(in.Fd()))
}

// trim strips surrounding whitespace from names. The password is kept verbatim.
func trim(a config.AnswersConfig) config.AnswersConfig {
	a.Project = strings.TrimSpace(a.Project)
	a.App = strings.TrimSpace(a.App)
	a.DBName = strings.TrimSpace(a.DBName)
	a.DBUser = strings.TrimSpace(a.DBUser)
	return a
}

// FormPrompter asks for every answer on one form page; the password is masked.
func FormPrompter(ctx context.Context, a *config.AnswersConfig) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project name").
				Placeholder("blog").
				Value(&a.Project).
				Validate(huh.ValidateNotEmpty()),
			huh.NewInput().
				Title("App name").
				Placeholder("posts").
				Value(&a.App).
				Validate(huh.ValidateNotEmpty()),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Database name").
				Value(&a.DBName).
				Validate(huh.ValidateNotEmpty()),
			huh.NewInput().
				Title("Database user").
				Value(&a.DBUser).
				Validate(huh.ValidateNotEmpty()),
			huh.NewInput().
				Title("Database password").
				EchoMode(huh.EchoModePassword).
				Value(&a.DBPassword).
				Validate(huh.ValidateNotEmpty()),
		),
	)
	return form.RunWithContext(ctx)
}
