package device

import (
	"context"
	"fmt"

	"github.com/fabricfleet/portctl/pkg/inventory"
	"github.com/fabricfleet/portctl/pkg/util"
)

// Transport names accepted in the inventory.
const (
	TransportSSH      = "ssh"
	TransportConfigDB = "configdb"
)

// Dispatcher routes executor calls to the transport declared for each device
// in the inventory. SSH is the default when a device declares none.
type Dispatcher struct {
	src      inventory.Source
	ssh      Executor
	configDB Executor
}

// NewDispatcher builds a dispatcher over both transports.
func NewDispatcher(src inventory.Source) *Dispatcher {
	return &Dispatcher{
		src:      src,
		ssh:      NewSSHExecutor(src),
		configDB: NewConfigDBExecutor(src),
	}
}

// ReadState routes to the device's transport.
func (d *Dispatcher) ReadState(ctx context.Context, device, iface string) (*PortState, error) {
	exec, err := d.route(device)
	if err != nil {
		return nil, err
	}
	return exec.ReadState(ctx, device, iface)
}

// ApplyCommands routes to the device's transport.
func (d *Dispatcher) ApplyCommands(ctx context.Context, device string, commands []string) error {
	exec, err := d.route(device)
	if err != nil {
		return err
	}
	return exec.ApplyCommands(ctx, device, commands)
}

func (d *Dispatcher) route(device string) (Executor, error) {
	desc, err := d.src.Resolve(device)
	if err != nil {
		return nil, err
	}
	switch desc.Transport {
	case TransportConfigDB:
		return d.configDB, nil
	case TransportSSH, "":
		return d.ssh, nil
	default:
		return nil, fmt.Errorf("device %s: transport %q: %w", device, desc.Transport, util.ErrNotFound)
	}
}
