package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabricfleet/portctl/pkg/authz"
	"github.com/fabricfleet/portctl/pkg/cli"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <commit>",
	Short: "Restore the configuration recorded in an earlier commit",
	Long: `Re-applies the configuration stored under the given commit to its
device. The restore is itself recorded as a new commit, so history is
never rewritten and a rollback can in turn be rolled back.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		if err := a.requirePermission(authz.PermPortRollback); err != nil {
			return err
		}

		res, err := a.orch.Rollback(context.Background(), args[0], author)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(res)
		}

		fmt.Printf("%s %s/%s restored to commit %s (recorded as %s)\n\n",
			cli.Green("rolled back:"), res.Device, res.Interface,
			cli.Bold(res.RolledBack), cli.Bold(res.CommitID))
		fmt.Println(res.Config)

		t := cli.NewTable("DEVICE", "STATUS", "DURATION")
		for _, r := range res.Apply {
			t.Row(r.Device, cli.StatusWord(r.Success), r.Duration.Round(timeRound).String())
		}
		t.Flush()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}
