package repository

import (
	"context"

	"github.com/JonnyWalker81/nillabg/internal/models"
)

// StagingRepository defines read access to the replicated staging tables,
// plus the one column backfill the loaders depend on
type StagingRepository interface {
	MigrateStaging(ctx context.Context) error
	EachEntry(ctx context.Context, fn func(*models.Entry) error) error
	EachTreatment(ctx context.Context, fn func(*models.Treatment) error) error
	EnsureEpocDateColumn(ctx context.Context) error
	SetTreatmentEpocDate(ctx context.Context, treatmentID int64, epochMillis *int64) error
}

// DimensionRepository defines lookups and inserts for dim_time and dim_insulin_type.
// Find* return nil, nil when no row matches.
type DimensionRepository interface {
	FindTimeBucket(ctx context.Context, epoch int64) (*models.TimeBucket, error)
	CreateTimeBucket(ctx context.Context, bucket *models.TimeBucket) error
	FindInsulinType(ctx context.Context, name string) (*models.InsulinType, error)
	CreateInsulinType(ctx context.Context, insulinType *models.InsulinType) error
}

// FactRepository defines writes to the fact tables
type FactRepository interface {
	UpsertGlucose(ctx context.Context, fact *models.GlucoseFact) error
	UpsertMeal(ctx context.Context, fact *models.MealFact) error
	SetMealClassification(ctx context.Context, treatmentID int64, class models.MealClass) error
	UpsertInsulinDose(ctx context.Context, dose *models.InsulinDose) error
	// PruneInsulinDoses deletes the treatment's doses whose key is not in keep
	PruneInsulinDoses(ctx context.Context, treatmentID int64, keep []string) (int, error)
	DeleteInsulinDose(ctx context.Context, factID int64) error
}

// QueryRepository defines the read side used by association, metrics and reporting
type QueryRepository interface {
	ListMeals(ctx context.Context, r models.DateRange) ([]models.MealRow, error)
	ListDoses(ctx context.Context, r models.DateRange) ([]models.DoseRow, error)
	ListGlucose(ctx context.Context, r models.DateRange) ([]models.GlucoseFact, error)
	// SumBolusUnits totals the units of bolus doses inside w
	SumBolusUnits(ctx context.Context, w models.Window) (units float64, doses int, err error)
	// HasDose reports whether any dose of the class lies inside w; an empty class matches any dose
	HasDose(ctx context.Context, w models.Window, class models.InsulinClass) (bool, error)
	// AverageGlucose returns the mean sgv inside w, nil when there are no readings
	AverageGlucose(ctx context.Context, w models.Window) (*float64, error)
}

// Store is the storage handle threaded through every component
type Store interface {
	StagingRepository
	DimensionRepository
	FactRepository
	QueryRepository

	// Migrate creates the dimension and fact tables if they do not exist
	Migrate(ctx context.Context) error
}
