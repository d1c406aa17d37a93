package device

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/fabricfleet/portctl/pkg/inventory"
	"github.com/fabricfleet/portctl/pkg/util"
)

// SSHExecutor drives CLI-managed switches over SSH. One session per command;
// connections are not pooled, so a hung device affects only its own calls.
type SSHExecutor struct {
	src inventory.Source
}

// NewSSHExecutor creates an executor that resolves devices through src.
func NewSSHExecutor(src inventory.Source) *SSHExecutor {
	return &SSHExecutor{src: src}
}

// ReadState runs the show commands needed to build a PortState.
func (e *SSHExecutor) ReadState(ctx context.Context, device, iface string) (*PortState, error) {
	client, err := e.dial(ctx, device)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	intfOut, err := e.run(ctx, client, fmt.Sprintf("show interface %s switchport", iface))
	if err != nil {
		return nil, classifyNetErr(device, err)
	}

	macOut, err := e.run(ctx, client, fmt.Sprintf("show mac address-table interface %s", iface))
	if err != nil {
		return nil, classifyNetErr(device, err)
	}

	state := ParseInterfaceOutput(intfOut)
	state.LearnedMACs = ParseMACTable(macOut)
	return state, nil
}

// ApplyCommands enters config mode and sends the rendered lines.
func (e *SSHExecutor) ApplyCommands(ctx context.Context, device string, commands []string) error {
	client, err := e.dial(ctx, device)
	if err != nil {
		return err
	}
	defer client.Close()

	script := "configure terminal\n" + strings.Join(commands, "\n") + "\nend"
	out, err := e.run(ctx, client, script)
	if err != nil {
		return classifyNetErr(device, err)
	}
	if reason, rejected := scanForRejection(out); rejected {
		return util.NewRejectedError(device, reason)
	}

	util.WithDevice(device).Debugf("applied %d command lines over SSH", len(commands))
	return nil
}

// dial opens an SSH connection honoring the context deadline.
func (e *SSHExecutor) dial(ctx context.Context, device string) (*ssh.Client, error) {
	desc, err := e.src.Resolve(device)
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User: desc.SSHUser,
		Auth: []ssh.AuthMethod{
			ssh.Password(desc.SSHPass),
		},
		// Fabric management network — host keys are provisioned out of band.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	if deadline, ok := ctx.Deadline(); ok {
		config.Timeout = time.Until(deadline)
	}

	addr := net.JoinHostPort(desc.MgmtAddr, fmt.Sprintf("%d", desc.SSHPort))
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyNetErr(device, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, classifyNetErr(device, err)
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// run executes one remote command in a fresh session.
func (e *SSHExecutor) run(ctx context.Context, client *ssh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", err
	}
	defer session.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(cmd)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		// Non-zero exit still carries useful output (e.g. "% Invalid command").
		if r.err != nil && len(r.out) == 0 {
			return "", r.err
		}
		return string(r.out), nil
	case <-ctx.Done():
		session.Close()
		return "", ctx.Err()
	}
}

// scanForRejection looks for CLI error markers in command output.
func scanForRejection(out string) (string, bool) {
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "% ") || strings.HasPrefix(trimmed, "ERROR:") {
			return trimmed, true
		}
	}
	return "", false
}
