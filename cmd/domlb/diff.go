package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-sched/domlb/internal/tickdiff"
)

// newDiffCmd compares two --snapshot-out files and reports which domains
// moved further from (or closer to) balance between them.
func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <baseline.json> <current.json>",
		Short: "Compare two tick snapshots written by --snapshot-out",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseline, err := tickdiff.LoadSnapshot(args[0])
			if err != nil {
				return err
			}
			current, err := tickdiff.LoadSnapshot(args[1])
			if err != nil {
				return err
			}
			report := tickdiff.Compare(baseline, current)
			fmt.Print(tickdiff.Format(report))
			return nil
		},
	}
}
