// Package precheck inspects live port state and decides whether a
// configuration change is safe to proceed.
package precheck

import (
	"context"
	"fmt"
	"time"

	"github.com/fabricfleet/portctl/pkg/change"
	"github.com/fabricfleet/portctl/pkg/device"
	"github.com/fabricfleet/portctl/pkg/util"
)

// Result is the pre-flight verdict for one port. Safe is derived purely from
// the state fields; Recommendations describe the verdict and never feed back
// into it.
type Result struct {
	PortExists      bool              `json:"port_exists"`
	AdminStatus     string            `json:"admin_status"`
	OperStatus      string            `json:"oper_status"`
	CurrentConfig   map[string]string `json:"current_config"`
	LearnedMACs     []string          `json:"mac_addresses"`
	Recommendations []string          `json:"recommendations"`
	Safe            bool              `json:"is_safe_to_configure"`
}

// Engine reads port state through a device executor and applies the safety
// policy.
type Engine struct {
	exec    device.Executor
	timeout time.Duration
}

// NewEngine creates an engine. timeout bounds each state read; zero means
// 30 seconds.
func NewEngine(exec device.Executor, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{exec: exec, timeout: timeout}
}

// Check reads current state and evaluates safety for a generic change (no
// specific request). Unreachable and timeout errors propagate to the caller.
func (e *Engine) Check(ctx context.Context, dev, iface string) (*Result, error) {
	return e.CheckFor(ctx, dev, iface, nil)
}

// CheckFor reads current state and evaluates safety for a specific request.
func (e *Engine) CheckFor(ctx context.Context, dev, iface string, req *change.Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	state, err := e.exec.ReadState(ctx, dev, iface)
	if err != nil {
		return nil, err
	}

	util.WithDevice(dev).Debugf("pre-check %s: exists=%v admin=%s oper=%s macs=%d",
		iface, state.Exists, state.AdminStatus, state.OperStatus, len(state.LearnedMACs))

	return Evaluate(state, req), nil
}

// Evaluate applies the safety policy to retrieved state. Pure function:
// the verdict is computed first, then recommendations are generated as
// descriptive output.
func Evaluate(state *device.PortState, req *change.Request) *Result {
	r := &Result{
		PortExists:    state.Exists,
		AdminStatus:   orUnknown(state.AdminStatus),
		OperStatus:    orUnknown(state.OperStatus),
		CurrentConfig: state.Attributes,
		LearnedMACs:   state.LearnedMACs,
	}
	if r.CurrentConfig == nil {
		r.CurrentConfig = map[string]string{}
	}
	if r.LearnedMACs == nil {
		r.LearnedMACs = []string{}
	}

	// Verdict. A port with learned MACs is carrying traffic; reconfiguring
	// its mode or VLAN would disrupt it. Without a concrete request we must
	// assume the worst, so any learned MAC makes the port unsafe.
	switch {
	case !state.Exists:
		r.Safe = false
	case len(state.LearnedMACs) > 0 && (req == nil || req.ChangesLayer2()):
		r.Safe = false
	default:
		r.Safe = true
	}

	// Recommendations (descriptive only).
	if !state.Exists {
		r.Recommendations = append(r.Recommendations, "Port does not exist on this device")
		return r
	}
	if len(state.LearnedMACs) > 0 {
		r.Recommendations = append(r.Recommendations,
			fmt.Sprintf("%d MAC address(es) learned - port is carrying live traffic", len(state.LearnedMACs)))
	} else {
		r.Recommendations = append(r.Recommendations, "No MAC addresses learned - safe to reconfigure")
	}
	if r.AdminStatus == device.StatusUp && r.OperStatus == device.StatusDown {
		r.Recommendations = append(r.Recommendations,
			"Port is administratively up but operationally down",
			"Consider checking physical connectivity")
	}
	if r.AdminStatus == device.StatusDown {
		r.Recommendations = append(r.Recommendations, "Port is administratively down")
	}
	return r
}

func orUnknown(s string) string {
	if s == "" {
		return device.StatusUnknown
	}
	return s
}
