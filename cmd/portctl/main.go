// Portctl - fabric switch-port configuration tool
//
// A CLI for pushing safe, auditable interface changes to leaf/spine fabric
// devices:
//   - Pre-flight safety checks before any change (port existence, live
//     traffic detection)
//   - Every change committed to a local audit store before it touches a
//     device, so the trail records intent even when the network refuses it
//   - Rollback by re-applying any earlier commit
//
// Examples:
//
//	portctl -d leaf-01 -i Eth1/1 precheck
//	portctl -d leaf-01 -i Eth1/1 configure --mode access --vlan 10 --description "Server Link"
//	portctl -d leaf-01 -i Eth1/10 configure --mode trunk --vlan 100 --vni 10100 --vrf tenant-a
//	portctl history -d leaf-01 --limit 20
//	portctl rollback a1b2c3d
//	portctl devices
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fabricfleet/portctl/pkg/audit"
	"github.com/fabricfleet/portctl/pkg/authz"
	"github.com/fabricfleet/portctl/pkg/change"
	"github.com/fabricfleet/portctl/pkg/device"
	"github.com/fabricfleet/portctl/pkg/fleet"
	"github.com/fabricfleet/portctl/pkg/inventory"
	"github.com/fabricfleet/portctl/pkg/orchestrator"
	"github.com/fabricfleet/portctl/pkg/precheck"
	"github.com/fabricfleet/portctl/pkg/settings"
	"github.com/fabricfleet/portctl/pkg/store"
	"github.com/fabricfleet/portctl/pkg/util"
	"github.com/fabricfleet/portctl/pkg/version"
)

var (
	// Context flags (set the scope for operations)
	deviceName    string // -d, --device
	interfaceName string // -i, --interface

	// Option flags
	inventoryPath string
	storeRoot     string
	auditLogPath  string
	policyPath    string
	author        string
	jsonOutput    bool
	verbose       bool
	askPass       bool

	userSettings *settings.Settings
)

// timeRound is the display granularity for durations in tables.
const timeRound = time.Millisecond

var rootCmd = &cobra.Command{
	Use:           "portctl",
	Short:         "Safe, auditable switch-port configuration",
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Tables go to stdout; logs stay on stderr.
		util.SetLogOutput(os.Stderr)
		if verbose {
			if err := util.SetLogLevel("debug"); err != nil {
				return err
			}
		}

		var err error
		userSettings, err = settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		applySettingsDefaults()
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&deviceName, "device", "d", "", "device name from inventory")
	pf.StringVarP(&interfaceName, "interface", "i", "", "interface name (device-local)")
	pf.StringVar(&inventoryPath, "inventory", "", "device inventory file (YAML)")
	pf.StringVar(&storeRoot, "store", "", "audit store directory")
	pf.StringVar(&auditLogPath, "audit-log", "", "operation event log file")
	pf.StringVar(&policyPath, "policy", "", "authorization policy file (YAML)")
	pf.StringVar(&author, "author", "", "principal recorded on commits")
	pf.BoolVar(&jsonOutput, "json", false, "JSON output")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&askPass, "ask-pass", false, "prompt for SSH password instead of inventory credentials")
}

// applySettingsDefaults fills unset flags from the settings file, then from
// built-in defaults.
func applySettingsDefaults() {
	if inventoryPath == "" {
		inventoryPath = userSettings.InventoryPath
	}
	if inventoryPath == "" {
		inventoryPath = "/etc/portctl/hosts.yaml"
	}
	if storeRoot == "" {
		storeRoot = userSettings.StoreRoot
	}
	if storeRoot == "" {
		storeRoot = defaultDataPath("commits")
	}
	if auditLogPath == "" {
		auditLogPath = userSettings.AuditLogPath
	}
	if auditLogPath == "" {
		auditLogPath = defaultDataPath("audit.log")
	}
	if policyPath == "" {
		policyPath = userSettings.PolicyPath
	}
	if author == "" {
		author = userSettings.Author
	}
	if author == "" {
		author = osUser()
	}
}

func defaultDataPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".portctl", name)
}

func osUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "operator"
}

// app bundles the wired pipeline for one CLI invocation.
type app struct {
	inv     inventory.Source
	orch    *orchestrator.Orchestrator
	store   *store.FileStore
	checker *authz.Checker
}

// buildApp wires the full pipeline: inventory, transport dispatcher,
// pre-check engine, renderer, audit store, and fleet executor.
func buildApp() (*app, error) {
	var inv inventory.Source
	inv, err := inventory.NewFileSource(inventoryPath)
	if err != nil {
		return nil, err
	}

	if askPass {
		pass, err := promptPassword("SSH password: ")
		if err != nil {
			return nil, err
		}
		inv = &passwordSource{Source: inv, password: pass}
	}

	commits, err := store.Open(storeRoot)
	if err != nil {
		return nil, err
	}

	eventLog, err := audit.NewFileLogger(auditLogPath)
	if err != nil {
		return nil, err
	}
	audit.SetDefaultLogger(eventLog)

	exec := device.NewDispatcher(inv)
	orch := orchestrator.New(
		precheck.NewEngine(exec, 30*time.Second),
		change.NewCommandRenderer(),
		commits,
		fleet.NewExecutor(exec, fleet.DefaultConcurrency, fleet.DefaultPerDeviceTimeout),
	)

	var checker *authz.Checker
	if policyPath != "" {
		policy, err := authz.LoadPolicy(policyPath)
		if err != nil {
			return nil, err
		}
		checker = authz.NewChecker(policy)
		// The authz principal and the commit author are the same identity.
		if author != "" {
			checker.SetUser(author)
		} else {
			author = checker.CurrentUser()
		}
	}

	return &app{inv: inv, orch: orch, store: commits, checker: checker}, nil
}

// requirePermission checks the policy before a device-touching verb runs.
// Without a policy file every operation is allowed.
func (a *app) requirePermission(perm authz.Permission) error {
	return a.checker.Check(perm, &authz.Context{Device: deviceName, Interface: interfaceName})
}

// passwordSource overrides inventory SSH passwords with an interactively
// supplied one.
type passwordSource struct {
	inventory.Source
	password string
}

func (s *passwordSource) Resolve(name string) (*inventory.Device, error) {
	dev, err := s.Source.Resolve(name)
	if err != nil {
		return nil, err
	}
	d := *dev
	d.SSHPass = s.password
	return &d, nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

// requireContext errors unless -d (and optionally -i) are set.
func requireContext(needInterface bool) error {
	if deviceName == "" {
		return fmt.Errorf("device required: use -d <device>")
	}
	if needInterface && interfaceName == "" {
		return fmt.Errorf("interface required: use -i <interface>")
	}
	return nil
}
