// Package lifecycle drives one scaffolding run through its ordered stages.
//
// Each stage returns a typed StageResult; the runner advances only on
// success. Any failure moves the run to FAILED, which is one-way. Created
// files are never rolled back. The run record is persisted after every
// transition so an interrupted run still shows up in history.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/google/uuid"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/internal/core/logger"
	"github.com/f9-o/launchpad/internal/core/plugin"
	"github.com/f9-o/launchpad/internal/core/state"
	"github.com/f9-o/launchpad/internal/secrets"
	"github.com/f9-o/launchpad/internal/toolchain"
)

// CollectFunc produces the run's configuration during COLLECT.
type CollectFunc func(ctx context.Context) (v1.ScaffoldConfig, error)

// SecretsFactory opens the credential store a run writes to.
type SecretsFactory func(ctx context.Context, cfg v1.ScaffoldConfig, log *logger.Logger) (secrets.Store, error)

// Event is delivered to the Observer when a stage starts (Result nil) and
// when it finishes.
type Event struct {
	Stage  v1.Stage
	Index  int // 1-based position in Stages()
	Total  int
	Result *v1.StageResult
}

// Observer receives progress events; used by the CLI for step output.
type Observer func(Event)

// Options wires a Runner to its collaborators. Tools and Log are required.
type Options struct {
	Tools    toolchain.Runner
	Env      []string // base environment for every child process
	Secrets  SecretsFactory
	State    *state.DB    // optional run history
	Plugins  *plugin.Host // optional stage hooks
	Log      *logger.Logger
	Observer Observer
	DryRun   bool
	Now      func() time.Time
	NewID    func() string
}

// Runner executes runs. A Runner may be reused; every Run starts at COLLECT.
type Runner struct {
	opts Options
}

// New returns a Runner, filling optional collaborators with defaults.
func New(opts Options) *Runner {
	if opts.Secrets == nil {
		opts.Secrets = secrets.New
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}
	return &Runner{opts: opts}
}

// run is the mutable state of a single Run call.
type run struct {
	*Runner
	rec     *v1.RunRecord
	cfg     v1.ScaffoldConfig
	collect CollectFunc
	log     *logger.Logger
}

// Run executes every stage for target. It returns the final record, which is
// also persisted, and the first error encountered.
func (r *Runner) Run(ctx context.Context, target string, collect CollectFunc) (*v1.RunRecord, error) {
	rn := &run{
		Runner: r,
		rec: &v1.RunRecord{
			ID:      r.opts.NewID(),
			Target:  target,
			DryRun:  r.opts.DryRun,
			Stage:   v1.StageCollect,
			Started: r.opts.Now().UTC(),
		},
		collect: collect,
	}
	rn.log = &logger.Logger{Logger: r.opts.Log.With("run", rn.rec.ID)}
	rn.persist()

	stage := v1.StageCollect
	for !stage.Terminal() {
		if err := ctx.Err(); err != nil {
			return rn.rec, rn.fail(ctx, stage, err)
		}

		res, err := rn.execute(ctx, stage)
		rn.rec.Stages = append(rn.rec.Stages, res)
		if err != nil {
			return rn.rec, rn.fail(ctx, stage, err)
		}

		next := Next(stage, rn.cfg.Deploy.Enabled)
		if stage == v1.StageMigrate && next == v1.StageInitVCS {
			rn.skip(ctx, v1.StageEmitArtifacts, "deployment artifacts not requested")
		}
		if err := Transition(stage, next); err != nil {
			return rn.rec, rn.fail(ctx, stage, err)
		}
		rn.log.Debug("transition", "from", stage, "to", next)
		stage = next
		rn.rec.Stage = stage
		rn.persist()
	}

	rn.rec.Completed = r.opts.Now().UTC()
	rn.persist()
	rn.fire(ctx, v1.HookRunDone, v1.StageDone, nil)
	r.audit(rn.rec)
	return rn.rec, nil
}

// execute runs one stage and wraps it with hooks, timing and observer events.
func (rn *run) execute(ctx context.Context, stage v1.Stage) (v1.StageResult, error) {
	idx, total := position(stage)
	rn.notify(Event{Stage: stage, Index: idx, Total: total})
	rn.fire(ctx, v1.HookStageStart, stage, nil)

	started := rn.opts.Now()
	out, err := rn.stageFunc(stage)(ctx)

	res := v1.StageResult{
		Stage:    stage,
		Status:   v1.StageOK,
		Started:  started.UTC(),
		Duration: rn.opts.Now().Sub(started),
		Files:    out.files,
		Detail:   out.detail,
	}
	if out.skipped {
		res.Status = v1.StageSkipped
	}
	if err != nil {
		res.Status = v1.StageError
		res.Err = err.Error()
	}

	rn.log.Info("stage finished", "stage", stage, "status", res.Status, "duration", res.Duration, "files", len(res.Files))
	rn.notify(Event{Stage: stage, Index: idx, Total: total, Result: &res})
	rn.fire(ctx, v1.HookStageDone, stage, &res)
	return res, err
}

// skip records a stage that is not entered.
func (rn *run) skip(ctx context.Context, stage v1.Stage, detail string) {
	idx, total := position(stage)
	res := v1.StageResult{
		Stage:   stage,
		Status:  v1.StageSkipped,
		Started: rn.opts.Now().UTC(),
		Detail:  detail,
	}
	rn.rec.Stages = append(rn.rec.Stages, res)
	rn.log.Info("stage skipped", "stage", stage, "reason", detail)
	rn.notify(Event{Stage: stage, Index: idx, Total: total, Result: &res})
	rn.fire(ctx, v1.HookStageDone, stage, &res)
}

// fail moves the run to FAILED and returns err annotated with the stage.
func (rn *run) fail(ctx context.Context, stage v1.Stage, err error) error {
	if terr := Transition(stage, v1.StageFailed); terr != nil {
		rn.log.Error("cannot fail from stage", "stage", stage, "err", terr)
	}
	rn.rec.Stage = v1.StageFailed
	rn.rec.Error = err.Error()
	rn.rec.Completed = rn.opts.Now().UTC()
	rn.persist()

	rn.log.Error("run failed", "stage", stage, "err", err)
	rn.fire(ctx, v1.HookRunFailed, stage, nil)
	rn.audit(rn.rec)
	return fmt.Errorf("%s: %w", stage, err)
}

func (rn *run) persist() {
	if rn.opts.State == nil {
		return
	}
	if err := rn.opts.State.PutRun(*rn.rec); err != nil {
		rn.log.Warn("run history not saved", "err", err)
	}
}

func (rn *run) notify(ev Event) {
	if rn.opts.Observer != nil {
		rn.opts.Observer(ev)
	}
}

func (rn *run) fire(ctx context.Context, hook string, stage v1.Stage, res *v1.StageResult) {
	if rn.opts.Plugins == nil {
		return
	}
	rn.opts.Plugins.Fire(context.WithoutCancel(ctx), hook, v1.HookContext{
		RunID:  rn.rec.ID,
		Stage:  stage,
		Config: rn.cfg.Redacted(),
		Result: res,
		DryRun: rn.opts.DryRun,
	})
}

func (r *Runner) audit(rec *v1.RunRecord) {
	r.opts.Log.Audit(logger.AuditEntry{
		Op:     "scaffold",
		User:   currentUser(),
		RunID:  rec.ID,
		Target: rec.Target,
		Stage:  string(rec.Stage),
		Result: rec.Result(),
	})
}

func position(stage v1.Stage) (int, int) {
	for i, s := range order {
		if s == stage {
			return i + 1, len(order)
		}
	}
	return 0, len(order)
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}
