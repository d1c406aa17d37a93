// Package orchestrator composes pre-check, synthesis, the audit store, and
// fleet apply into the end-to-end change workflow. It owns stage ordering
// and failure policy; it is the only component the API and CLI boundaries
// talk to.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/fabricfleet/portctl/pkg/audit"
	"github.com/fabricfleet/portctl/pkg/change"
	"github.com/fabricfleet/portctl/pkg/fleet"
	"github.com/fabricfleet/portctl/pkg/precheck"
	"github.com/fabricfleet/portctl/pkg/store"
	"github.com/fabricfleet/portctl/pkg/util"
)

// State is the lifecycle position of one change request.
type State string

const (
	StateReceived   State = "received"
	StatePreChecked State = "prechecked"
	StateRejected   State = "rejected"
	StateCommitted  State = "committed"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Result reports one pipeline run. When State is Rejected no commit exists;
// when Failed, CommitID still names the intent commit — the store is an
// intent log, and a failed apply never retracts it. Compensation is the
// caller's decision via an explicit Rollback.
type Result struct {
	State    State            `json:"state"`
	CommitID string           `json:"commit_hash,omitempty"`
	PreCheck *precheck.Result `json:"pre_check,omitempty"`
	Config   *change.Artifact `json:"config,omitempty"`
	Apply    []fleet.Result   `json:"apply,omitempty"`
}

// RollbackResult reports a rollback run.
type RollbackResult struct {
	CommitID   string         `json:"commit_hash"`
	RolledBack string         `json:"rolled_back_to"`
	Device     string         `json:"device"`
	Interface  string         `json:"interface"`
	Config     string         `json:"config"`
	Apply      []fleet.Result `json:"apply"`
	Success    bool           `json:"success"`
}

// Orchestrator runs the change pipeline. Stages execute sequentially per
// change; only the apply stage fans out.
type Orchestrator struct {
	checker  *precheck.Engine
	renderer change.Renderer
	commits  *store.FileStore
	fleet    *fleet.Executor
}

// New wires the pipeline components together.
func New(checker *precheck.Engine, renderer change.Renderer, commits *store.FileStore, fl *fleet.Executor) *Orchestrator {
	return &Orchestrator{
		checker:  checker,
		renderer: renderer,
		commits:  commits,
		fleet:    fl,
	}
}

// PreCheck runs the safety inspection for one port without changing anything.
func (o *Orchestrator) PreCheck(ctx context.Context, dev, iface string) (*precheck.Result, error) {
	return o.checker.Check(ctx, dev, iface)
}

// Configure runs the full pipeline for one change request:
// pre-check gate, render, commit, apply. The commit lands strictly before
// the apply so the audit trail always reflects intent, even when the network
// never accepted it.
func (o *Orchestrator) Configure(ctx context.Context, req *change.Request, author string) (*Result, error) {
	start := time.Now()
	log := util.WithDevice(req.Device).WithField("interface", req.Interface)
	res := &Result{State: StateReceived}

	if err := req.Validate(); err != nil {
		return res, err
	}

	// Received -> PreChecked
	pre, err := o.checker.CheckFor(ctx, req.Device, req.Interface, req)
	if err != nil {
		o.record(audit.NewEvent(author, req.Device, "configure").
			WithInterface(req.Interface).
			WithFailure(audit.StagePreCheck, err).
			WithDuration(time.Since(start)))
		return res, util.NewStageError(audit.StagePreCheck, req.Device, err)
	}
	res.State = StatePreChecked
	res.PreCheck = pre

	// PreChecked -> Rejected: no commit, no apply. The refusal itself is
	// still an auditable outcome.
	if !pre.Safe {
		res.State = StateRejected
		unsafe := util.NewUnsafeError(req.Device, req.Interface, pre.Recommendations)
		o.record(audit.NewEvent(author, req.Device, "configure").
			WithInterface(req.Interface).
			WithFailure(audit.StagePreCheck, unsafe).
			WithDuration(time.Since(start)))
		log.Warnf("change rejected by pre-check: %v", pre.Recommendations)
		return res, unsafe
	}

	artifact, err := o.renderer.Render(req)
	if err != nil {
		return res, util.NewStageError(audit.StageRender, req.Device, err)
	}
	res.Config = artifact

	// Caller-initiated cancellation before commit aborts with no side effects.
	if err := ctx.Err(); err != nil {
		return res, err
	}

	// PreChecked -> Committed
	commitID, err := o.commits.Commit(req.Device, req.Interface, artifact, author)
	if err != nil {
		o.record(audit.NewEvent(author, req.Device, "configure").
			WithInterface(req.Interface).
			WithFailure(audit.StageCommit, err).
			WithDuration(time.Since(start)))
		return res, util.NewStageError(audit.StageCommit, req.Device, err)
	}
	res.State = StateCommitted
	res.CommitID = commitID

	// Committed -> Applied. Once committed, the apply outcome must be
	// recorded even if the caller stops waiting, so the apply detaches from
	// the caller's cancellation and relies on the fleet's per-device timeout.
	applyCtx := context.WithoutCancel(ctx)
	results := o.fleet.Apply(applyCtx, []fleet.Target{{Device: req.Device, Artifact: artifact}})
	res.Apply = results

	event := audit.NewEvent(author, req.Device, "configure").
		WithInterface(req.Interface).
		WithCommit(commitID).
		WithDuration(time.Since(start))

	if !fleet.AllSucceeded(results) {
		res.State = StateFailed
		failed := firstFailure(results)
		o.record(event.WithFailure(audit.StageApply, errors.New(failed.Err)))
		log.Errorf("apply failed on %s: %s (commit %s kept in history)", failed.Device, failed.Err, commitID)
		return res, util.NewStageError(audit.StageApply, failed.Device, util.NewRejectedError(failed.Device, failed.Err))
	}

	res.State = StateSucceeded
	o.record(event.WithSuccess())
	log.Infof("configured %s (commit %s)", req.Interface, commitID)
	return res, nil
}

// Rollback re-applies the configuration of an earlier commit. The restored
// text is committed as a new record first, then pushed to the device.
func (o *Orchestrator) Rollback(ctx context.Context, commitID, author string) (*RollbackResult, error) {
	start := time.Now()

	rec, err := o.commits.Rollback(commitID, author)
	if err != nil {
		return nil, err
	}

	artifact := &change.Artifact{
		Device:    rec.Device,
		Interface: rec.Interface,
		Commands:  rec.Commands,
	}
	results := o.fleet.Apply(context.WithoutCancel(ctx), []fleet.Target{{Device: rec.Device, Artifact: artifact}})

	log := util.WithOperation("rollback").WithField("device", rec.Device)
	success := fleet.AllSucceeded(results)
	event := audit.NewEvent(author, rec.Device, "rollback").
		WithInterface(rec.Interface).
		WithCommit(rec.ID).
		WithDuration(time.Since(start))
	if success {
		event.WithSuccess()
		log.Infof("restored commit %s as %s", commitID, rec.ID)
	} else {
		failed := firstFailure(results)
		event.WithFailure(audit.StageApply, errors.New(failed.Err))
		log.Errorf("restore apply failed on %s: %s", failed.Device, failed.Err)
	}
	o.record(event)

	return &RollbackResult{
		CommitID:   rec.ID,
		RolledBack: commitID,
		Device:     rec.Device,
		Interface:  rec.Interface,
		Config:     rec.ConfigText,
		Apply:      results,
		Success:    success,
	}, nil
}

// History returns commit summaries, optionally filtered by device.
func (o *Orchestrator) History(device string, limit int) ([]store.Summary, error) {
	return o.commits.History(device, limit)
}

func (o *Orchestrator) record(event *audit.Event) {
	if err := audit.Log(event); err != nil {
		util.Warnf("audit log write failed: %v", err)
	}
}

func firstFailure(results []fleet.Result) fleet.Result {
	for _, r := range results {
		if !r.Success {
			return r
		}
	}
	return fleet.Result{}
}
