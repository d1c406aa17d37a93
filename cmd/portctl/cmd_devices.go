package main

import (
	"github.com/spf13/cobra"

	"github.com/fabricfleet/portctl/pkg/authz"
	"github.com/fabricfleet/portctl/pkg/cli"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices from the inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		if err := a.requirePermission(authz.PermDeviceView); err != nil {
			return err
		}

		devs, err := a.inv.List()
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(devs)
		}

		t := cli.NewTable("NAME", "ROLE", "SITE", "MGMT", "TRANSPORT")
		for _, d := range devs {
			transport := d.Transport
			if transport == "" {
				transport = "ssh"
			}
			t.Row(d.Name, d.Role, d.Site, d.MgmtAddr, transport)
		}
		t.Flush()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
