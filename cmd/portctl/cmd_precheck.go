package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fabricfleet/portctl/pkg/authz"
	"github.com/fabricfleet/portctl/pkg/cli"
	"github.com/fabricfleet/portctl/pkg/precheck"
)

var precheckCmd = &cobra.Command{
	Use:   "precheck",
	Short: "Check whether an interface is safe to reconfigure",
	Long: `Reads live port state from the device and reports whether the
interface can be reconfigured without disrupting active traffic. A port
with learned MAC addresses is considered in use and flagged unsafe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireContext(true); err != nil {
			return err
		}
		a, err := buildApp()
		if err != nil {
			return err
		}
		if err := a.requirePermission(authz.PermPortPreCheck); err != nil {
			return err
		}

		res, err := a.orch.PreCheck(context.Background(), deviceName, interfaceName)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(res)
		}
		printPreCheck(res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(precheckCmd)
}

func printPreCheck(res *precheck.Result) {
	fmt.Printf("%s %s/%s\n\n", cli.Bold("Pre-check"), deviceName, interfaceName)

	t := cli.NewTable("FIELD", "VALUE")
	t.Row("port exists", fmt.Sprintf("%v", res.PortExists))
	t.Row("admin status", res.AdminStatus)
	t.Row("oper status", res.OperStatus)
	t.Row("learned MACs", fmt.Sprintf("%d", len(res.LearnedMACs)))
	if len(res.LearnedMACs) > 0 {
		t.Row("", strings.Join(res.LearnedMACs, ", "))
	}
	t.Flush()

	fmt.Println()
	for _, r := range res.Recommendations {
		fmt.Printf("  - %s\n", r)
	}
	fmt.Println()
	if res.Safe {
		fmt.Printf("verdict: %s\n", cli.Green("safe to configure"))
	} else {
		fmt.Printf("verdict: %s\n", cli.Red("NOT safe to configure"))
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
