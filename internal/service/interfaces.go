package service

import (
	"context"
	"time"

	"github.com/JonnyWalker81/nillabg/internal/models"
)

// WarehouseService builds the star schema from the staging tables
type WarehouseService interface {
	EnsureSchema(ctx context.Context) error
	// TimeBucket returns the dim_time id of the hour containing t, creating it if needed
	TimeBucket(ctx context.Context, t time.Time) (int64, error)
	// InsulinType returns the dim_insulin_type row for name, creating and classifying it if needed
	InsulinType(ctx context.Context, name string) (*models.InsulinType, error)
	LoadGlucoseFacts(ctx context.Context) (*models.LoadStats, error)
	LoadTreatmentFacts(ctx context.Context) (*models.LoadStats, error)
	Build(ctx context.Context) (*models.BuildSummary, error)
}

// AssociationService joins meals to bolus doses and glucose context
type AssociationService interface {
	Associate(ctx context.Context, params models.MetricsParams) ([]models.MealAssociation, error)
}

// ClassificationService labels meals using nearby insulin
type ClassificationService interface {
	ClassifyAt(ctx context.Context, carbs, protein, fat *float64, ts int64) (models.MealClass, error)
	ClassifyMeals(ctx context.Context, r models.DateRange) (map[models.MealClass]int, error)
}

// MetricsService aggregates per-bucket statistics over associated meals
type MetricsService interface {
	Compute(ctx context.Context, params models.MetricsParams) (*models.MetricsReport, error)
}

// MaintenanceService defines the one-shot repair and audit passes
type MaintenanceService interface {
	BackfillEpocDate(ctx context.Context) (*models.LoadStats, error)
	CleanupInsulin(ctx context.Context, dryRun bool) (*models.CleanupReport, error)
	Verify(ctx context.Context) (*models.VerifyReport, error)
}

// OverviewService defines the read-only daily view
type OverviewService interface {
	Day(ctx context.Context, date time.Time) (*models.DayOverview, error)
}
