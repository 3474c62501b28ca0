package main

import (
	"fmt"

	"github.com/JonnyWalker81/nillabg/internal/report"
	"github.com/JonnyWalker81/nillabg/internal/service"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the star schema from the staging tables",
	Long: `Create dim_time, dim_insulin_type, fact_glucose, fact_meal and fact_insulin
if they do not exist, then load every staging entry and treatment. Safe to
re-run: facts are upserted on their staging identifiers.`,
	RunE: runBuild,
}

var initStaging bool

func init() {
	buildCmd.Flags().BoolVar(&initStaging, "init-staging", false, "Create empty entries/treatments tables if missing")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore()
	if err != nil {
		return err
	}
	if initStaging {
		if err := store.MigrateStaging(ctx); err != nil {
			return fmt.Errorf("failed to create staging tables: %w", err)
		}
	}

	opts := service.WarehouseOptions{
		EntryOffsetMinutes:     app.cfg.Normalize.EntryOffsetMinutes,
		TreatmentOffsetMinutes: app.cfg.Normalize.TreatmentOffsetMinutes,
	}
	warehouse := service.NewWarehouseService(store, insulinClassifier(), opts, app.log)

	summary, err := warehouse.Build(ctx)
	if err != nil {
		return err
	}
	return report.Build(cmd.OutOrStdout(), summary, app.format)
}
