package main

import (
	"github.com/JonnyWalker81/nillabg/internal/report"
	"github.com/JonnyWalker81/nillabg/internal/service"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Label warehouse meals as hypo, snack or meal",
	Long: `Classify every fact_meal row from its macros and whether any insulin dose
lies within classify.insulin_proximity_minutes, and store the label.`,
	RunE: runClassify,
}

var classifyStart, classifyEnd string

func init() {
	dateFlags(classifyCmd, &classifyStart, &classifyEnd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	r, err := parseRange(classifyStart, classifyEnd)
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}

	svc := service.NewClassificationService(store, mealClassifier(), app.log)
	counts, err := svc.ClassifyMeals(cmd.Context(), r)
	if err != nil {
		return err
	}
	return report.Classes(cmd.OutOrStdout(), counts, app.format)
}
