package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"veriado/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check and repair drift between authoritative rows and the search projection",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Report missing, drifted, and extra projection rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := audit.Verify(st)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		fmt.Printf("missing=%d drift=%d extra=%d\n", len(summary.Missing), len(summary.Drift), len(summary.Extra))
		if summary.NeedsRepair() {
			fmt.Println("repair needed: run `docmgmt audit repair`")
		}
		return nil
	},
}

var auditRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Re-enqueue missing/drifted files and delete extra projection rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := audit.Verify(st)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if !summary.NeedsRepair() {
			fmt.Println("nothing to repair")
			return nil
		}
		if err := audit.Repair(st, summary); err != nil {
			return fmt.Errorf("repair: %w", err)
		}
		fmt.Printf("repaired: re-enqueued %d, deleted %d\n", len(summary.Missing)+len(summary.Drift), len(summary.Extra))
		return nil
	},
}
