package main

import (
	"fmt"

	"github.com/JonnyWalker81/nillabg/internal/report"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check fact timestamps against the staging rows",
	Long: `Recompute the normalized timestamp and hour bucket of every glucose, meal
and insulin fact from its staging row and list the ones that disagree.
Exits non-zero when any fact mismatches.`,
	RunE: runVerify,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-insulin",
	Short: "Remove small doses logged right next to another dose",
	Long: `Delete fact_insulin rows of at most cleanup.max_units that lie within
cleanup.window_minutes of another dose. These are usually pen primes or
double-logged entries.`,
	RunE: runCleanup,
}

var backfillCmd = &cobra.Command{
	Use:   "backfill-epocdate",
	Short: "Fill treatments.epocdate from created_at",
	Long: `Add the epocdate column to the treatments staging table if it is missing
and set it to created_at plus normalize.treatment_offset_minutes, in epoch
milliseconds. Rows with an unparseable created_at are set to NULL.`,
	RunE: runBackfill,
}

var dryRun bool

func init() {
	cleanupCmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the doses that would be removed without deleting them")
}

func runVerify(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	result, err := maintenanceService(store).Verify(cmd.Context())
	if err != nil {
		return err
	}
	if err := report.Verification(cmd.OutOrStdout(), result, app.format); err != nil {
		return err
	}
	if !result.OK() {
		return fmt.Errorf("%d of %d facts have mismatched timestamps", len(result.Mismatches), result.Checked)
	}
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	result, err := maintenanceService(store).CleanupInsulin(cmd.Context(), dryRun)
	if err != nil {
		return err
	}
	return report.Cleanup(cmd.OutOrStdout(), result, app.format)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	stats, err := maintenanceService(store).BackfillEpocDate(cmd.Context())
	if err != nil {
		return err
	}
	if app.format != report.FormatText {
		return report.Encode(cmd.OutOrStdout(), stats, app.format)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "epocdate set on %d of %d treatments (%d NULL)\n", stats.Loaded, stats.Rows, stats.Skipped)
	return err
}
