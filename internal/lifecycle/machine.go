package lifecycle

import (
	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/pkg/errs"
)

// order lists the working stages in execution order.
var order = []v1.Stage{
	v1.StageCollect,
	v1.StageInstallDeps,
	v1.StageScaffold,
	v1.StagePatchConfig,
	v1.StageWriteSecrets,
	v1.StageMigrate,
	v1.StageEmitArtifacts,
	v1.StageInitVCS,
}

// edges are the legal forward transitions. Every non-terminal stage may also
// move to FAILED.
var edges = map[v1.Stage][]v1.Stage{
	v1.StageCollect:       {v1.StageInstallDeps},
	v1.StageInstallDeps:   {v1.StageScaffold},
	v1.StageScaffold:      {v1.StagePatchConfig},
	v1.StagePatchConfig:   {v1.StageWriteSecrets},
	v1.StageWriteSecrets:  {v1.StageMigrate},
	v1.StageMigrate:       {v1.StageEmitArtifacts, v1.StageInitVCS},
	v1.StageEmitArtifacts: {v1.StageInitVCS},
	v1.StageInitVCS:       {v1.StageDone},
}

// Stages returns the working stages in execution order.
func Stages() []v1.Stage {
	return append([]v1.Stage(nil), order...)
}

// Transition checks that the machine may move from one stage to another.
// An illegal transition is a programming error.
func Transition(from, to v1.Stage) error {
	if from.Terminal() {
		return errs.Newf(errs.ErrInternal, "lifecycle.transition", "%s is terminal, cannot move to %s", from, to)
	}
	if to == v1.StageFailed {
		return nil
	}
	for _, s := range edges[from] {
		if s == to {
			return nil
		}
	}
	return errs.Newf(errs.ErrInternal, "lifecycle.transition", "illegal transition %s -> %s", from, to)
}

// Next returns the stage that follows a successful from. The deployment stage
// is only entered when deploy is set.
func Next(from v1.Stage, deploy bool) v1.Stage {
	switch from {
	case v1.StageMigrate:
		if deploy {
			return v1.StageEmitArtifacts
		}
		return v1.StageInitVCS
	case v1.StageInitVCS:
		return v1.StageDone
	}
	next := edges[from]
	if len(next) == 0 {
		return v1.StageFailed
	}
	return next[0]
}
