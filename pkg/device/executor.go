// Package device defines the capability boundary between the change pipeline
// and real network devices, plus the transports that implement it: SSH for
// CLI-driven switches and Redis config_db for SONiC.
package device

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/fabricfleet/portctl/pkg/util"
)

// Admin/oper status values reported by ReadState.
const (
	StatusUp      = "up"
	StatusDown    = "down"
	StatusUnknown = "unknown"
)

// PortState is the raw state payload read from a device port.
type PortState struct {
	Exists      bool              `json:"exists"`
	AdminStatus string            `json:"admin_status"`
	OperStatus  string            `json:"oper_status"`
	Attributes  map[string]string `json:"attributes"` // current config snapshot (mode, vlan, description, ...)
	LearnedMACs []string          `json:"learned_macs"`
}

// Executor is the device capability consumed by the pipeline. Both calls
// honor ctx cancellation and deadlines; failures surface as ErrUnreachable,
// ErrTimeout, or a RejectedError.
type Executor interface {
	// ReadState retrieves the current state of one port.
	ReadState(ctx context.Context, device, iface string) (*PortState, error)

	// ApplyCommands pushes ordered configuration lines to a device.
	ApplyCommands(ctx context.Context, device string, commands []string) error
}

// classifyNetErr maps transport errors onto the pipeline error taxonomy.
func classifyNetErr(device string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", device, util.ErrTimeout)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%s: %w", device, util.ErrTimeout)
	}
	return fmt.Errorf("%s: %v: %w", device, err, util.ErrUnreachable)
}
