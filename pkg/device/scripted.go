package device

import (
	"context"
	"sync"
	"time"
)

// Script defines the scripted behavior for one device.
type Script struct {
	State      *PortState
	ReadErr    error
	ApplyErr   error
	ApplyDelay time.Duration
	OnApply    func() // called when an apply begins
}

// ScriptedExecutor is a deterministic in-memory Executor for tests. Each
// device follows its Script; applied command batches are recorded.
type ScriptedExecutor struct {
	mu       sync.Mutex
	scripts  map[string]*Script
	applied  map[string][][]string
	inflight int
	peak     int
}

// NewScriptedExecutor creates an executor with no scripted devices.
func NewScriptedExecutor() *ScriptedExecutor {
	return &ScriptedExecutor{
		scripts: make(map[string]*Script),
		applied: make(map[string][][]string),
	}
}

// SetScript installs the behavior for a device.
func (s *ScriptedExecutor) SetScript(device string, script *Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[device] = script
}

// ReadState returns the scripted state for the device.
func (s *ScriptedExecutor) ReadState(ctx context.Context, device, iface string) (*PortState, error) {
	s.mu.Lock()
	script, ok := s.scripts[device]
	s.mu.Unlock()

	if !ok || script.State == nil && script.ReadErr == nil {
		return &PortState{Exists: false, AdminStatus: StatusUnknown, OperStatus: StatusUnknown}, nil
	}
	if script.ReadErr != nil {
		return nil, script.ReadErr
	}
	return script.State, nil
}

// ApplyCommands records the batch and returns the scripted outcome, waiting
// out ApplyDelay first unless the context expires.
func (s *ScriptedExecutor) ApplyCommands(ctx context.Context, device string, commands []string) error {
	s.mu.Lock()
	script := s.scripts[device]
	s.inflight++
	if s.inflight > s.peak {
		s.peak = s.inflight
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()

	if script != nil && script.OnApply != nil {
		script.OnApply()
	}

	if script != nil && script.ApplyDelay > 0 {
		select {
		case <-time.After(script.ApplyDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if script != nil && script.ApplyErr != nil {
		return script.ApplyErr
	}

	s.mu.Lock()
	s.applied[device] = append(s.applied[device], commands)
	s.mu.Unlock()
	return nil
}

// Applied returns the command batches applied to a device.
func (s *ScriptedExecutor) Applied(device string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied[device]
}

// PeakInflight returns the maximum number of concurrent ApplyCommands calls
// observed. Used to verify pool bounds.
func (s *ScriptedExecutor) PeakInflight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}
