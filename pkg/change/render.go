package change

import (
	"fmt"
	"time"
)

// Renderer turns a validated Request into a configuration Artifact.
// Implementations must be pure and deterministic: identical requests yield
// byte-identical command sequences, which the audit store relies on for
// content-derived commit identifiers.
type Renderer interface {
	Render(req *Request) (*Artifact, error)
}

// CommandRenderer renders NX-OS style interface configuration.
type CommandRenderer struct{}

// NewCommandRenderer creates the default renderer.
func NewCommandRenderer() *CommandRenderer {
	return &CommandRenderer{}
}

// Render produces command lines in a fixed order: interface selector,
// description, switchport enable, mode lines, VXLAN block, VRF membership,
// and administrative enable last.
func (cr *CommandRenderer) Render(req *Request) (*Artifact, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lines := []string{
		fmt.Sprintf("interface %s", req.Interface),
	}

	if req.Description != "" {
		lines = append(lines, fmt.Sprintf("  description %s", req.Description))
	}

	lines = append(lines, "  switchport")

	switch req.Mode {
	case ModeAccess:
		lines = append(lines, "  switchport mode access")
		if req.VLAN != 0 {
			lines = append(lines, fmt.Sprintf("  switchport access vlan %d", req.VLAN))
		}
	case ModeTrunk:
		lines = append(lines, "  switchport mode trunk")
		if req.VLAN != 0 {
			lines = append(lines, fmt.Sprintf("  switchport trunk allowed vlan %d", req.VLAN))
		}
	}

	if req.VNI != 0 {
		lines = append(lines, "  vxlan")
		lines = append(lines, fmt.Sprintf("    vni %d", req.VNI))
	}

	if req.VRF != "" {
		lines = append(lines, fmt.Sprintf("  vrf member %s", req.VRF))
	}

	lines = append(lines, "  no shutdown")

	return &Artifact{
		Device:     req.Device,
		Interface:  req.Interface,
		Commands:   lines,
		RenderedAt: time.Now(),
	}, nil
}
