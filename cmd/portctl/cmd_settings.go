package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabricfleet/portctl/pkg/cli"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change persistent settings",
	Long:  `Settings are stored in ~/.portctl/settings.json and supply defaults for the corresponding flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return printJSON(userSettings)
		}
		t := cli.NewTable("KEY", "VALUE")
		t.Row("inventory", orDefault(userSettings.InventoryPath))
		t.Row("store", orDefault(userSettings.StoreRoot))
		t.Row("audit-log", orDefault(userSettings.AuditLogPath))
		t.Row("author", orDefault(userSettings.Author))
		t.Row("policy", orDefault(userSettings.PolicyPath))
		t.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a persistent setting",
	Long:  `Keys: inventory, store, audit-log, author, policy. An empty value clears the setting.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		switch key {
		case "inventory":
			userSettings.InventoryPath = value
		case "store":
			userSettings.StoreRoot = value
		case "audit-log":
			userSettings.AuditLogPath = value
		case "author":
			userSettings.Author = value
		case "policy":
			userSettings.PolicyPath = value
		default:
			return fmt.Errorf("unknown setting %q (keys: inventory, store, audit-log, author, policy)", key)
		}
		if err := userSettings.Save(); err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", key, orDefault(value))
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func orDefault(v string) string {
	if v == "" {
		return "(default)"
	}
	return v
}
