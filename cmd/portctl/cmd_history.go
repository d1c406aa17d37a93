package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabricfleet/portctl/pkg/authz"
	"github.com/fabricfleet/portctl/pkg/cli"
	"github.com/fabricfleet/portctl/pkg/store"
	"github.com/fabricfleet/portctl/pkg/util"
)

var (
	historyLimit int
	historyShow  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded configuration commits, most recent first",
	Long: `Lists commits from the audit store. Without -d all devices are
shown; with -d the listing is restricted to one device. Use --show
to print the full stored configuration of a single commit.`,
	Example: `  portctl history
  portctl history -d leaf-01 --limit 20
  portctl history --show a1b2c3d`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyLimit < 1 {
			return util.NewValidationError("limit must be a positive integer")
		}

		a, err := buildApp()
		if err != nil {
			return err
		}
		if err := a.requirePermission(authz.PermHistoryView); err != nil {
			return err
		}

		if historyShow != "" {
			return showCommit(a, historyShow)
		}

		summaries, err := a.orch.History(deviceName, historyLimit)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(summaries)
		}
		printHistory(summaries)
		return nil
	},
}

func init() {
	f := historyCmd.Flags()
	f.IntVar(&historyLimit, "limit", store.DefaultHistoryLimit, "maximum commits to list")
	f.StringVar(&historyShow, "show", "", "print the stored config of one commit")
	rootCmd.AddCommand(historyCmd)
}

func printHistory(summaries []store.Summary) {
	t := cli.NewTable("COMMIT", "DEVICE", "INTERFACE", "OPERATION", "AUTHOR", "WHEN", "MESSAGE")
	for _, s := range summaries {
		t.Row(s.ID, s.Device, s.Interface, s.Operation, s.Author,
			s.Timestamp.Local().Format("2006-01-02 15:04:05"), util.Truncate(s.Message, 48))
	}
	t.Flush()
}

func showCommit(a *app, id string) error {
	rec, err := a.store.Get(id)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(rec)
	}
	printRecord(rec)
	return nil
}

func printRecord(rec *store.Record) {
	t := cli.NewTable("FIELD", "VALUE")
	t.Row("commit", rec.ID)
	t.Row("device", rec.Device)
	t.Row("interface", rec.Interface)
	t.Row("operation", rec.Operation)
	t.Row("author", rec.Author)
	t.Row("when", rec.Timestamp.Local().Format("2006-01-02 15:04:05"))
	if rec.Parent != "" {
		t.Row("parent", rec.Parent)
	}
	if rec.RollbackOf != "" {
		t.Row("rollback of", rec.RollbackOf)
	}
	t.Row("message", rec.Message)
	t.Flush()

	fmt.Println()
	fmt.Println(rec.ConfigText)
}
