package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabricfleet/portctl/pkg/authz"
	"github.com/fabricfleet/portctl/pkg/change"
	"github.com/fabricfleet/portctl/pkg/cli"
	"github.com/fabricfleet/portctl/pkg/orchestrator"
	"github.com/fabricfleet/portctl/pkg/util"
)

var (
	cfgMode        string
	cfgVLAN        int
	cfgDescription string
	cfgVNI         int
	cfgVRF         string
	cfgDryRun      bool
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure a switch port (pre-check, commit, apply)",
	Long: `Runs the full change pipeline for one interface:

  1. Pre-check: the change is refused if the port carries live traffic
     and the request alters layer-2 membership
  2. Render: CLI command lines are synthesized from the request
  3. Commit: the rendered config is written to the audit store
  4. Apply: commands are pushed to the device

The commit happens before the apply, so a failed push still leaves a
durable record of intent. Use "portctl rollback <commit>" to restore
the previous configuration.`,
	Example: `  portctl -d leaf-01 -i Eth1/1 configure --mode access --vlan 10 --description "Server Link"
  portctl -d leaf-01 -i Eth1/10 configure --mode trunk --vlan 100 --vni 10100 --vrf tenant-a`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireContext(true); err != nil {
			return err
		}

		req := &change.Request{
			Device:      deviceName,
			Interface:   interfaceName,
			Mode:        change.Mode(cfgMode),
			VLAN:        cfgVLAN,
			Description: cfgDescription,
			VNI:         cfgVNI,
			VRF:         cfgVRF,
		}
		if err := req.Validate(); err != nil {
			return err
		}

		if cfgDryRun {
			art, err := change.NewCommandRenderer().Render(req)
			if err != nil {
				return err
			}
			fmt.Println(art.Text())
			return nil
		}

		a, err := buildApp()
		if err != nil {
			return err
		}
		if err := a.requirePermission(authz.PermPortConfigure); err != nil {
			return err
		}

		res, err := a.orch.Configure(context.Background(), req, author)
		if err != nil {
			return reportConfigureError(res, err)
		}

		if jsonOutput {
			return printJSON(res)
		}
		printConfigured(res)
		return nil
	},
}

func init() {
	f := configureCmd.Flags()
	f.StringVar(&cfgMode, "mode", "", "port mode: access or trunk (required)")
	f.IntVar(&cfgVLAN, "vlan", 0, "VLAN ID (1-4094)")
	f.StringVar(&cfgDescription, "description", "", "interface description")
	f.IntVar(&cfgVNI, "vni", 0, "VXLAN network identifier")
	f.StringVar(&cfgVRF, "vrf", "", "VRF name")
	f.BoolVar(&cfgDryRun, "dry-run", false, "print rendered config without committing or applying")
	configureCmd.MarkFlagRequired("mode")
	rootCmd.AddCommand(configureCmd)
}

// reportConfigureError gives unsafe rejections a readable rendering; other
// errors pass through to the standard error path.
func reportConfigureError(res *orchestrator.Result, err error) error {
	var unsafe *util.UnsafeError
	if errors.As(err, &unsafe) && !jsonOutput {
		fmt.Printf("%s %s %s is not safe to configure\n\n", cli.Red("REJECTED:"), unsafe.Device, unsafe.Interface)
		for _, r := range unsafe.Recommendations {
			fmt.Printf("  - %s\n", r)
		}
		return fmt.Errorf("change rejected by pre-check")
	}
	if res != nil && res.CommitID != "" {
		// The commit landed before the failure, point the operator at it.
		return fmt.Errorf("%w (change recorded as commit %s)", err, res.CommitID)
	}
	return err
}

func printConfigured(res *orchestrator.Result) {
	fmt.Printf("%s commit %s\n\n", cli.Green("configured:"), cli.Bold(res.CommitID))
	if res.Config != nil {
		fmt.Println(res.Config.Text())
	}

	t := cli.NewTable("DEVICE", "STATUS", "DURATION")
	for _, r := range res.Apply {
		t.Row(r.Device, cli.StatusWord(r.Success), r.Duration.Round(timeRound).String())
	}
	t.Flush()
}
