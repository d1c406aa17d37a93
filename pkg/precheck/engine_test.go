package precheck

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fabricfleet/portctl/pkg/change"
	"github.com/fabricfleet/portctl/pkg/device"
	"github.com/fabricfleet/portctl/pkg/util"
)

func accessRequest() *change.Request {
	return &change.Request{
		Device:    "leaf-01",
		Interface: "Eth1/1",
		Mode:      change.ModeAccess,
		VLAN:      10,
	}
}

func TestEvaluate_Verdicts(t *testing.T) {
	tests := []struct {
		name  string
		state *device.PortState
		req   *change.Request
		safe  bool
	}{
		{
			name:  "missing port is never safe",
			state: &device.PortState{Exists: false},
			req:   accessRequest(),
			safe:  false,
		},
		{
			name: "learned MACs with layer-2 change",
			state: &device.PortState{
				Exists:      true,
				AdminStatus: device.StatusUp,
				OperStatus:  device.StatusUp,
				LearnedMACs: []string{"aa:bb:cc:dd:ee:ff"},
			},
			req:  accessRequest(),
			safe: false,
		},
		{
			name: "learned MACs without request context",
			state: &device.PortState{
				Exists:      true,
				LearnedMACs: []string{"aa:bb:cc:dd:ee:ff"},
			},
			req:  nil,
			safe: false,
		},
		{
			name: "quiet existing port",
			state: &device.PortState{
				Exists:      true,
				AdminStatus: device.StatusUp,
				OperStatus:  device.StatusDown,
			},
			req:  accessRequest(),
			safe: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Evaluate(tt.state, tt.req)
			if r.Safe != tt.safe {
				t.Errorf("Safe = %v, want %v (recommendations: %v)", r.Safe, tt.safe, r.Recommendations)
			}
			if len(r.Recommendations) == 0 {
				t.Error("expected at least one recommendation")
			}
		})
	}
}

func TestEvaluate_Recommendations(t *testing.T) {
	state := &device.PortState{
		Exists:      true,
		AdminStatus: device.StatusUp,
		OperStatus:  device.StatusDown,
	}
	r := Evaluate(state, accessRequest())

	joined := strings.Join(r.Recommendations, "\n")
	if !strings.Contains(joined, "No MAC addresses learned") {
		t.Errorf("missing no-MAC recommendation: %v", r.Recommendations)
	}
	if !strings.Contains(joined, "administratively up but operationally down") {
		t.Errorf("missing admin-up/oper-down recommendation: %v", r.Recommendations)
	}
}

func TestCheck_PropagatesReadErrors(t *testing.T) {
	exec := device.NewScriptedExecutor()
	exec.SetScript("leaf-01", &device.Script{
		ReadErr: util.ErrUnreachable,
	})

	engine := NewEngine(exec, time.Second)
	_, err := engine.Check(context.Background(), "leaf-01", "Eth1/1")
	if !errors.Is(err, util.ErrUnreachable) {
		t.Errorf("Check() error = %v, want ErrUnreachable", err)
	}
}

func TestCheck_ReturnsState(t *testing.T) {
	exec := device.NewScriptedExecutor()
	exec.SetScript("leaf-01", &device.Script{
		State: &device.PortState{
			Exists:      true,
			AdminStatus: device.StatusUp,
			OperStatus:  device.StatusUp,
			Attributes:  map[string]string{"description": "Uplink to Core", "vlan": "10"},
		},
	})

	engine := NewEngine(exec, time.Second)
	r, err := engine.CheckFor(context.Background(), "leaf-01", "Eth1/1", accessRequest())
	if err != nil {
		t.Fatalf("CheckFor failed: %v", err)
	}
	if !r.Safe {
		t.Errorf("expected quiet up port to be safe: %+v", r)
	}
	if r.CurrentConfig["description"] != "Uplink to Core" {
		t.Errorf("CurrentConfig not carried through: %v", r.CurrentConfig)
	}
}
