// Package inventory provides the device registry consumed by the change
// pipeline. The registry is read-only from the pipeline's point of view.
package inventory

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/fabricfleet/portctl/pkg/util"
)

// Device is a connection descriptor for one managed switch.
type Device struct {
	Name      string `yaml:"name" json:"name"`
	Role      string `yaml:"role" json:"role"` // leaf or spine
	Site      string `yaml:"site" json:"site"`
	MgmtAddr  string `yaml:"mgmt_addr" json:"mgmt_addr"`
	Transport string `yaml:"transport" json:"transport"` // ssh or configdb
	SSHUser   string `yaml:"ssh_user,omitempty" json:"-"`
	SSHPass   string `yaml:"ssh_pass,omitempty" json:"-"`
	SSHPort   int    `yaml:"ssh_port,omitempty" json:"-"`
	RedisDB   int    `yaml:"redis_db,omitempty" json:"-"`
}

// Source resolves device names to connection descriptors.
type Source interface {
	Resolve(name string) (*Device, error)
	List() ([]*Device, error)
}

type inventoryFile struct {
	Devices []*Device `yaml:"devices"`
}

// FileSource loads devices from a YAML inventory file once and serves
// lookups from memory.
type FileSource struct {
	path    string
	mu      sync.RWMutex
	devices map[string]*Device
}

// NewFileSource loads the inventory file at path.
func NewFileSource(path string) (*FileSource, error) {
	s := &FileSource{path: path, devices: make(map[string]*Device)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSource) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading inventory %s: %w", s.path, err)
	}

	var f inventoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing inventory %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range f.Devices {
		if d.Name == "" {
			return fmt.Errorf("inventory %s: device with empty name", s.path)
		}
		if _, dup := s.devices[d.Name]; dup {
			return fmt.Errorf("inventory %s: duplicate device %q", s.path, d.Name)
		}
		if d.SSHPort == 0 {
			d.SSHPort = 22
		}
		s.devices[d.Name] = d
	}
	return nil
}

// Resolve returns the descriptor for name or ErrNotFound.
func (s *FileSource) Resolve(name string) (*Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[name]
	if !ok {
		return nil, fmt.Errorf("device %q: %w", name, util.ErrNotFound)
	}
	return d, nil
}

// List returns all devices sorted by name.
func (s *FileSource) List() ([]*Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// StaticSource serves a fixed device list. Used in tests and as a fallback
// when no inventory file is configured.
type StaticSource struct {
	Devices []*Device
}

// Resolve returns the descriptor for name or ErrNotFound.
func (s *StaticSource) Resolve(name string) (*Device, error) {
	for _, d := range s.Devices {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device %q: %w", name, util.ErrNotFound)
}

// List returns the configured devices.
func (s *StaticSource) List() ([]*Device, error) {
	return s.Devices, nil
}
