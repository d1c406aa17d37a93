package authz

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy maps principals to the operations they may perform.
//
//	super_users:
//	  - netops-admin
//	grants:
//	  alice:
//	    - port.precheck
//	    - port.configure
//	  ticket-bot:
//	    - all
type Policy struct {
	SuperUsers []string                `yaml:"super_users"`
	Grants     map[string][]Permission `yaml:"grants"`
}

// LoadPolicy reads a policy file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy %s: %w", path, err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing policy %s: %w", path, err)
	}
	return &p, nil
}
