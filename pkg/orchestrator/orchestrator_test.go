package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fabricfleet/portctl/pkg/audit"
	"github.com/fabricfleet/portctl/pkg/change"
	"github.com/fabricfleet/portctl/pkg/device"
	"github.com/fabricfleet/portctl/pkg/fleet"
	"github.com/fabricfleet/portctl/pkg/precheck"
	"github.com/fabricfleet/portctl/pkg/store"
	"github.com/fabricfleet/portctl/pkg/util"
)

type testPipeline struct {
	exec  *device.ScriptedExecutor
	store *store.FileStore
	orch  *Orchestrator
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()
	exec := device.NewScriptedExecutor()
	commits, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	orch := New(
		precheck.NewEngine(exec, time.Second),
		change.NewCommandRenderer(),
		commits,
		fleet.NewExecutor(exec, 4, 500*time.Millisecond),
	)
	return &testPipeline{exec: exec, store: commits, orch: orch}
}

// installAuditLog routes audit events to a temp file for the test and
// returns a function that reads them back.
func installAuditLog(t *testing.T) func() []*audit.Event {
	t.Helper()
	logger, err := audit.NewFileLogger(filepath.Join(t.TempDir(), "audit.log"))
	if err != nil {
		t.Fatalf("opening audit log: %v", err)
	}
	audit.SetDefaultLogger(logger)
	t.Cleanup(func() {
		audit.SetDefaultLogger(nil)
		logger.Close()
	})
	return func() []*audit.Event {
		events, err := audit.Query(audit.Filter{})
		if err != nil {
			t.Fatalf("querying audit log: %v", err)
		}
		return events
	}
}

func quietPort() *device.Script {
	return &device.Script{
		State: &device.PortState{
			Exists:      true,
			AdminStatus: device.StatusUp,
			OperStatus:  device.StatusDown,
			Attributes:  map[string]string{"mode": "access", "vlan": "1"},
		},
	}
}

func serverLinkRequest() *change.Request {
	return &change.Request{
		Device:      "leaf-01",
		Interface:   "Eth1/1",
		Mode:        change.ModeAccess,
		VLAN:        10,
		Description: "Server Link",
	}
}

func TestConfigure_EndToEnd(t *testing.T) {
	p := newTestPipeline(t)
	p.exec.SetScript("leaf-01", quietPort())

	res, err := p.orch.Configure(context.Background(), serverLinkRequest(), "alice")
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if res.State != StateSucceeded {
		t.Errorf("State = %s, want succeeded", res.State)
	}
	if res.CommitID == "" {
		t.Error("expected a commit id")
	}

	text := res.Config.Text()
	for _, want := range []string{
		"interface Eth1/1",
		"switchport mode access",
		"switchport access vlan 10",
		"no shutdown",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered config missing %q:\n%s", want, text)
		}
	}

	byDev := fleet.ByDevice(res.Apply)
	if !byDev["leaf-01"].Success {
		t.Errorf("apply result for leaf-01: %+v", byDev["leaf-01"])
	}

	// The device saw exactly the committed commands.
	applied := p.exec.Applied("leaf-01")
	if len(applied) != 1 {
		t.Fatalf("device saw %d batches, want 1", len(applied))
	}
	committed, err := p.store.Get(res.CommitID)
	if err != nil {
		t.Fatalf("Get commit failed: %v", err)
	}
	if strings.Join(applied[0], "\n") != committed.ConfigText {
		t.Error("applied commands differ from committed text")
	}
}

func TestConfigure_RejectedByLivePort(t *testing.T) {
	p := newTestPipeline(t)
	p.exec.SetScript("leaf-01", &device.Script{
		State: &device.PortState{
			Exists:      true,
			AdminStatus: device.StatusUp,
			OperStatus:  device.StatusUp,
			LearnedMACs: []string{"aa:bb:cc:dd:ee:ff"},
		},
	})

	res, err := p.orch.Configure(context.Background(), serverLinkRequest(), "alice")
	if !errors.Is(err, util.ErrUnsafe) {
		t.Fatalf("Configure = %v, want ErrUnsafe", err)
	}
	if res.State != StateRejected {
		t.Errorf("State = %s, want rejected", res.State)
	}

	// No commit, no apply.
	if hist, _ := p.store.History("", 10); len(hist) != 0 {
		t.Errorf("rejected change created %d commits", len(hist))
	}
	if applied := p.exec.Applied("leaf-01"); len(applied) != 0 {
		t.Errorf("rejected change reached the device: %v", applied)
	}
}

func TestConfigure_RejectionRecordsAuditEvent(t *testing.T) {
	p := newTestPipeline(t)
	events := installAuditLog(t)
	p.exec.SetScript("leaf-01", &device.Script{
		State: &device.PortState{
			Exists:      true,
			AdminStatus: device.StatusUp,
			OperStatus:  device.StatusUp,
			LearnedMACs: []string{"aa:bb:cc:dd:ee:ff"},
		},
	})

	if _, err := p.orch.Configure(context.Background(), serverLinkRequest(), "alice"); !errors.Is(err, util.ErrUnsafe) {
		t.Fatalf("Configure = %v, want ErrUnsafe", err)
	}

	got := events()
	if len(got) != 1 {
		t.Fatalf("audit log has %d events, want 1", len(got))
	}
	ev := got[0]
	if ev.Success {
		t.Error("rejection event marked successful")
	}
	if ev.Stage != audit.StagePreCheck {
		t.Errorf("Stage = %q, want %q", ev.Stage, audit.StagePreCheck)
	}
	if ev.User != "alice" || ev.Device != "leaf-01" || ev.Operation != "configure" {
		t.Errorf("event = %+v", ev)
	}
	if !strings.Contains(ev.Error, "not safe to configure") {
		t.Errorf("Error = %q, want refusal reason", ev.Error)
	}
}

func TestConfigure_ApplyFailureKeepsCommit(t *testing.T) {
	p := newTestPipeline(t)
	script := quietPort()
	script.ApplyErr = util.NewRejectedError("leaf-01", "vlan not allowed on this port")
	p.exec.SetScript("leaf-01", script)

	res, err := p.orch.Configure(context.Background(), serverLinkRequest(), "alice")
	if err == nil {
		t.Fatal("expected apply failure")
	}
	var stageErr *util.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "apply" {
		t.Errorf("error should name the apply stage: %v", err)
	}
	if res.State != StateFailed {
		t.Errorf("State = %s, want failed", res.State)
	}

	// Intent log: the commit stays in history even though apply failed.
	if res.CommitID == "" {
		t.Fatal("expected commit id on failed apply")
	}
	if _, err := p.store.Get(res.CommitID); err != nil {
		t.Errorf("commit %s not retained: %v", res.CommitID, err)
	}
}

func TestConfigure_PreCheckErrorPropagates(t *testing.T) {
	p := newTestPipeline(t)
	p.exec.SetScript("leaf-01", &device.Script{ReadErr: util.ErrUnreachable})

	_, err := p.orch.Configure(context.Background(), serverLinkRequest(), "alice")
	if !errors.Is(err, util.ErrUnreachable) {
		t.Errorf("Configure = %v, want ErrUnreachable", err)
	}
	if hist, _ := p.store.History("", 10); len(hist) != 0 {
		t.Error("failed pre-check must not create commits")
	}
}

func TestConfigure_CancelledBeforeCommit(t *testing.T) {
	p := newTestPipeline(t)
	p.exec.SetScript("leaf-01", quietPort())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Pre-check uses its own timeout context over the scripted executor,
	// which ignores ctx for reads; the pipeline checks for cancellation
	// before committing.
	res, err := p.orch.Configure(ctx, serverLinkRequest(), "alice")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Configure = %v, want context.Canceled", err)
	}
	if res.CommitID != "" {
		t.Error("cancelled change must not commit")
	}
	if hist, _ := p.store.History("", 10); len(hist) != 0 {
		t.Error("cancelled change left commits behind")
	}
}

func TestConfigure_CancelledAfterCommitStillApplies(t *testing.T) {
	p := newTestPipeline(t)
	events := installAuditLog(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The caller goes away the moment the apply starts, which is after the
	// commit landed. The apply must still run to completion so the recorded
	// outcome matches what happened on the device.
	script := quietPort()
	script.OnApply = cancel
	script.ApplyDelay = 50 * time.Millisecond
	p.exec.SetScript("leaf-01", script)

	res, err := p.orch.Configure(ctx, serverLinkRequest(), "alice")
	if err != nil {
		t.Fatalf("Configure = %v, want success despite cancelled caller", err)
	}
	if res.State != StateSucceeded {
		t.Errorf("State = %s, want succeeded", res.State)
	}
	if applied := p.exec.Applied("leaf-01"); len(applied) != 1 {
		t.Errorf("device saw %d batches, want 1", len(applied))
	}

	got := events()
	if len(got) != 1 {
		t.Fatalf("audit log has %d events, want 1", len(got))
	}
	if !got[0].Success || got[0].CommitID != res.CommitID {
		t.Errorf("event = %+v, want success recorded for commit %s", got[0], res.CommitID)
	}
}

func TestRollback_RestoresTargetConfig(t *testing.T) {
	p := newTestPipeline(t)
	p.exec.SetScript("leaf-01", quietPort())

	first, err := p.orch.Configure(context.Background(), serverLinkRequest(), "alice")
	if err != nil {
		t.Fatal(err)
	}

	second := serverLinkRequest()
	second.VLAN = 20
	if _, err := p.orch.Configure(context.Background(), second, "alice"); err != nil {
		t.Fatal(err)
	}

	rb, err := p.orch.Rollback(context.Background(), first.CommitID, "bob")
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if !rb.Success {
		t.Errorf("rollback apply failed: %+v", rb.Apply)
	}
	if rb.Config != first.Config.Text() {
		t.Error("rollback config not byte-identical to target commit")
	}

	// Current state for the port is now the rollback commit.
	cur, err := p.store.Current("leaf-01", "Eth1/1")
	if err != nil {
		t.Fatal(err)
	}
	if cur.ID != rb.CommitID || cur.ConfigText != first.Config.Text() {
		t.Errorf("current = %s, want rollback commit %s with original text", cur.ID, rb.CommitID)
	}
}

func TestRollback_UnknownCommit(t *testing.T) {
	p := newTestPipeline(t)
	if _, err := p.orch.Rollback(context.Background(), "0000000", "alice"); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("Rollback = %v, want ErrNotFound", err)
	}
}
