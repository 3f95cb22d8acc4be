// Package vcs performs INIT_VERSION_CONTROL: initialise a repository in the
// target, write its ignore file and record everything not ignored in a first
// commit.
package vcs

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/internal/render"
	"github.com/f9-o/launchpad/pkg/errs"
)

const (
	// IgnoreFile is written before staging so ignored paths never enter the commit.
	IgnoreFile = ".gitignore"
	// CommitMessage is the message of the first commit.
	CommitMessage = "Initial commit"
)

// Result describes the commit Init created.
type Result struct {
	Hash  string
	Files []string // files written by Init, relative to the target
}

// Init opens or creates a repository at cfg.Target and commits its content.
func Init(cfg v1.ScaffoldConfig, now time.Time) (*Result, error) {
	repo, err := git.PlainInit(cfg.Target, false)
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		repo, err = git.PlainOpen(cfg.Target)
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrVCS, "vcs.init").WithResource(cfg.Target)
	}

	ignore, err := render.Render(v1.TemplateGitignore, cfg)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(cfg.Target, IgnoreFile)
	if err := os.WriteFile(path, []byte(ignore), 0o644); err != nil {
		return nil, errs.Wrap(err, errs.ErrWriteFile, "vcs.ignore").WithResource(path)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrVCS, "vcs.worktree").WithResource(cfg.Target)
	}
	// All stages through worktree status, which honours the ignore file.
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return nil, errs.Wrap(err, errs.ErrVCS, "vcs.add").WithResource(cfg.Target)
	}

	hash, err := wt.Commit(CommitMessage, &git.CommitOptions{
		Author: &object.Signature{
			Name:  cfg.Author.Name,
			Email: cfg.Author.Email,
			When:  now,
		},
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrVCS, "vcs.commit").WithResource(cfg.Target).
			WithAdvice("set git.author_name and git.author_email in launchpad.yaml")
	}
	return &Result{Hash: hash.String(), Files: []string{IgnoreFile}}, nil
}
