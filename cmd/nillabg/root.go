package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/JonnyWalker81/nillabg/internal/config"
	"github.com/JonnyWalker81/nillabg/internal/database"
	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/models"
	"github.com/JonnyWalker81/nillabg/internal/report"
	"github.com/JonnyWalker81/nillabg/internal/repository"
	"github.com/JonnyWalker81/nillabg/internal/service"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "nillabg",
	Short: "Glucose and treatment warehouse",
	Long: `nillabg builds a star schema from Nightscout staging tables, classifies
meals and insulin doses, and reports carbohydrate ratio, insulin sensitivity
and carbohydrate absorption per time of day.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	logLevel     string
	outputFormat string
)

// app holds what every subcommand needs after setup
var app struct {
	cfg    *config.Config
	log    logger.Logger
	format report.Format
	db     *gorm.DB
	store  repository.Store
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(logger.WithRunID(ctx, ""))
	stop()
	closeDB()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text, json or yaml")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(serveCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	format, err := report.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	level := logger.ParseLevel(cfg.Log.Level)
	log, err := logger.New(logger.Config{
		Backend:   cfg.Log.Backend,
		Level:     level,
		Format:    cfg.Log.Format,
		AddSource: level == logger.LevelDebug,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetDefault(log)
	cmd.SetContext(logger.WithLogger(cmd.Context(), log))

	app.cfg = cfg
	app.log = log
	app.format = format
	return nil
}

// openStore connects to the warehouse on first use
func openStore() (repository.Store, error) {
	if app.store != nil {
		return app.store, nil
	}
	db, err := database.Open(app.cfg.Database, app.log)
	if err != nil {
		return nil, err
	}
	app.db = db
	app.store = repository.NewGormStore(db)
	return app.store, nil
}

func closeDB() {
	if app.db == nil {
		return
	}
	if err := database.Close(app.db); err != nil && app.log != nil {
		app.log.Warn("failed to close database", logger.Err(err))
	}
}

// runLogger returns the logger tagged with this invocation's run_id and command
func runLogger(cmd *cobra.Command) logger.Logger {
	return logger.Ctx(cmd.Context()).With(logger.String("command", cmd.Name()))
}

func insulinClassifier() *service.InsulinClassifier {
	return service.NewInsulinClassifier(app.cfg.Classify.BolusNames, app.cfg.Classify.BasalNames)
}

func mealClassifier() *service.MealClassifier {
	c := app.cfg.Classify
	return service.NewMealClassifier(service.MealThresholds{
		HypoMaxCarbs:     c.HypoMaxCarbs,
		SnackMinCarbs:    c.SnackMinCarbs,
		SnackMaxCarbs:    c.SnackMaxCarbs,
		InsulinProximity: time.Duration(c.InsulinProximityMinutes) * time.Minute,
	})
}

func maintenanceService(store repository.Store) service.MaintenanceService {
	return service.NewMaintenanceService(store, service.MaintenanceOptions{
		EntryOffsetMinutes:     app.cfg.Normalize.EntryOffsetMinutes,
		TreatmentOffsetMinutes: app.cfg.Normalize.TreatmentOffsetMinutes,
		CleanupMaxUnits:        app.cfg.Cleanup.MaxUnits,
		CleanupWindow:          time.Duration(app.cfg.Cleanup.WindowMinutes) * time.Minute,
	}, app.log)
}

// dateFlags registers --start and --end on cmd
func dateFlags(cmd *cobra.Command, start, end *string) {
	cmd.Flags().StringVar(start, "start", "", "First date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(end, "end", "", "Last date to include (YYYY-MM-DD)")
}

func parseRange(start, end string) (models.DateRange, error) {
	var r models.DateRange
	var err error
	if r.Start, err = parseDay("start", start); err != nil {
		return r, err
	}
	if r.End, err = parseDay("end", end); err != nil {
		return r, err
	}
	if r.Start != nil && r.End != nil && r.Start.After(*r.End) {
		return r, fmt.Errorf("--start %s is after --end %s", start, end)
	}
	return r, nil
}

func parseDay(flag, value string) (*time.Time, error) {
	t, err := models.ParseDay(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flag, err)
	}
	return t, nil
}
