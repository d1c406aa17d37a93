// Package change models switch-port configuration intent and renders it into
// device-native command lines.
package change

import (
	"time"

	"github.com/fabricfleet/portctl/pkg/util"
)

// Mode is a switchport mode
type Mode string

const (
	ModeAccess Mode = "access"
	ModeTrunk  Mode = "trunk"
)

// Request describes the desired configuration for one switch port.
// Immutable once created; zero VLAN/VNI mean "not requested".
type Request struct {
	Device      string `json:"device"`
	Interface   string `json:"interface"`
	Mode        Mode   `json:"mode"`
	VLAN        int    `json:"vlan,omitempty"`
	Description string `json:"description,omitempty"`
	VNI         int    `json:"vni,omitempty"` // VXLAN network identifier
	VRF         string `json:"vrf,omitempty"`
}

// Validate checks ranges and mode coherence. Malformed requests never enter
// the pipeline.
func (r *Request) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(r.Device != "", "device is required")
	v.Add(r.Interface != "", "interface is required")
	if r.Mode != ModeAccess && r.Mode != ModeTrunk {
		v.AddErrorf("mode %q must be 'access' or 'trunk'", r.Mode)
	}
	if r.VLAN != 0 && (r.VLAN < 1 || r.VLAN > 4094) {
		v.AddErrorf("vlan %d must be between 1 and 4094", r.VLAN)
	}
	if r.VNI < 0 {
		v.AddErrorf("vni %d must be a positive integer", r.VNI)
	}
	return v.Build()
}

// ChangesLayer2 reports whether applying this request would alter the port's
// mode or VLAN membership. Used by the pre-check safety gate: layer-2 changes
// on a port with learned MACs disrupt live traffic.
func (r *Request) ChangesLayer2() bool {
	return r.VLAN != 0 || r.Mode != ""
}

// Artifact is the rendered configuration for one (device, interface).
// Commands are ordered; Text() is the canonical byte form committed to the
// audit store.
type Artifact struct {
	Device     string    `json:"device"`
	Interface  string    `json:"interface"`
	Commands   []string  `json:"commands"`
	RenderedAt time.Time `json:"rendered_at"`
}

// Text returns the newline-joined command text. Identical requests yield
// byte-identical text regardless of when they were rendered.
func (a *Artifact) Text() string {
	out := ""
	for i, c := range a.Commands {
		if i > 0 {
			out += "\n"
		}
		out += c
	}
	return out
}
