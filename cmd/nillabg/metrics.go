package main

import (
	"fmt"
	"time"

	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/models"
	"github.com/JonnyWalker81/nillabg/internal/report"
	"github.com/JonnyWalker81/nillabg/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Report carb ratio, insulin sensitivity and carb absorption per time of day",
	Long: `Associate each meal with the bolus doses and glucose readings around it,
drop meals with correction boluses or an out-of-range pre-meal average, and
print mean, standard deviation, median and count per morning, afternoon and
evening bucket. Window flags are in minutes and override the config.`,
	RunE: runMetrics,
}

var (
	metricsStart, metricsEnd string
	windowFlags              = map[string]*int{}
)

// windowFlagHelp lists the minute flags in registration order
var windowFlagHelp = []struct{ name, usage string }{
	{"time-window", "Dose association window around the meal"},
	{"post-offset", "Offset of the post-meal glucose window"},
	{"pre-window", "Width of the pre-meal glucose average"},
	{"post-window", "Width of the post-meal glucose average"},
	{"nocorr-before", "No correction bolus this long before the meal"},
	{"nocorr-after", "No correction bolus this long after the meal"},
}

func init() {
	dateFlags(metricsCmd, &metricsStart, &metricsEnd)
	for _, f := range windowFlagHelp {
		windowFlags[f.name] = metricsCmd.Flags().Int(f.name, 0, f.usage+" (minutes)")
	}
}

// metricsParams merges the config defaults with the flags the user set
func metricsParams(flags *pflag.FlagSet, r models.DateRange) models.MetricsParams {
	p := app.cfg.Metrics.Params()
	p.Range = r
	targets := map[string]*time.Duration{
		"time-window":   &p.TimeWindow,
		"post-offset":   &p.PostOffset,
		"pre-window":    &p.PreWindow,
		"post-window":   &p.PostWindow,
		"nocorr-before": &p.NoCorrBefore,
		"nocorr-after":  &p.NoCorrAfter,
	}
	for name, target := range targets {
		if flags.Changed(name) {
			*target = time.Duration(*windowFlags[name]) * time.Minute
		}
	}
	return p
}

func runMetrics(cmd *cobra.Command, args []string) error {
	r, err := parseRange(metricsStart, metricsEnd)
	if err != nil {
		return err
	}
	for name, v := range windowFlags {
		if cmd.Flags().Changed(name) && *v < 0 {
			return fmt.Errorf("--%s must not be negative", name)
		}
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	svc := service.NewMetricsService(service.NewAssociationService(store, app.log), app.log)

	params := metricsParams(cmd.Flags(), r)
	result, err := svc.Compute(cmd.Context(), params)
	if err != nil {
		return err
	}

	runLogger(cmd).Info("metrics computed",
		logger.Int("meals", result.Meals),
		logger.Int("included", result.Included),
		logger.String("excluded", report.Exclusions(result.Excluded)),
		logger.Duration("time_window", params.TimeWindow),
		logger.Float64("pre_meal_min", params.PreMealMin),
		logger.Float64("pre_meal_max", params.PreMealMax),
	)
	return report.Metrics(cmd.OutOrStdout(), result, app.format)
}
