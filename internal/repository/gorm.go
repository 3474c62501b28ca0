package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JonnyWalker81/nillabg/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// stagingBatchSize bounds how many staging rows are held in memory at once
const stagingBatchSize = 1000

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a Store backed by a relational database
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Migrate(ctx context.Context) error {
	// Dimensions first so the fact foreign keys have a target.
	if err := s.db.WithContext(ctx).AutoMigrate(
		&models.TimeBucket{},
		&models.InsulinType{},
		&models.GlucoseFact{},
		&models.MealFact{},
		&models.InsulinDose{},
	); err != nil {
		return fmt.Errorf("failed to migrate warehouse schema: %w", err)
	}
	return nil
}

func (s *gormStore) MigrateStaging(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&models.Entry{}, &models.Treatment{}); err != nil {
		return fmt.Errorf("failed to migrate staging schema: %w", err)
	}
	return nil
}

func (s *gormStore) EachEntry(ctx context.Context, fn func(*models.Entry) error) error {
	var batch []models.Entry
	res := s.db.WithContext(ctx).FindInBatches(&batch, stagingBatchSize, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			if err := fn(&batch[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if res.Error != nil {
		return fmt.Errorf("failed to read entries: %w", res.Error)
	}
	return nil
}

func (s *gormStore) EachTreatment(ctx context.Context, fn func(*models.Treatment) error) error {
	var batch []models.Treatment
	res := s.db.WithContext(ctx).FindInBatches(&batch, stagingBatchSize, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			if err := fn(&batch[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if res.Error != nil {
		return fmt.Errorf("failed to read treatments: %w", res.Error)
	}
	return nil
}

func (s *gormStore) EnsureEpocDateColumn(ctx context.Context) error {
	m := s.db.WithContext(ctx).Migrator()
	if m.HasColumn(&models.Treatment{}, "EpocDate") {
		return nil
	}
	if err := m.AddColumn(&models.Treatment{}, "EpocDate"); err != nil {
		return fmt.Errorf("failed to add epocdate column: %w", err)
	}
	return nil
}

func (s *gormStore) SetTreatmentEpocDate(ctx context.Context, treatmentID int64, epochMillis *int64) error {
	err := s.db.WithContext(ctx).
		Model(&models.Treatment{}).
		Where("mysqlid = ?", treatmentID).
		Update("epocdate", epochMillis).Error
	if err != nil {
		return fmt.Errorf("failed to set epocdate: %w", err)
	}
	return nil
}

func (s *gormStore) FindTimeBucket(ctx context.Context, epoch int64) (*models.TimeBucket, error) {
	var bucket models.TimeBucket
	err := s.db.WithContext(ctx).Where("epoch = ?", epoch).Take(&bucket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get time bucket: %w", err)
	}
	return &bucket, nil
}

func (s *gormStore) CreateTimeBucket(ctx context.Context, bucket *models.TimeBucket) error {
	if err := s.db.WithContext(ctx).Create(bucket).Error; err != nil {
		return fmt.Errorf("failed to create time bucket: %w", err)
	}
	return nil
}

func (s *gormStore) FindInsulinType(ctx context.Context, name string) (*models.InsulinType, error) {
	var insulinType models.InsulinType
	err := s.db.WithContext(ctx).Where("insulin_name = ?", name).Take(&insulinType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get insulin type: %w", err)
	}
	return &insulinType, nil
}

func (s *gormStore) CreateInsulinType(ctx context.Context, insulinType *models.InsulinType) error {
	if err := s.db.WithContext(ctx).Create(insulinType).Error; err != nil {
		return fmt.Errorf("failed to create insulin type: %w", err)
	}
	return nil
}

func (s *gormStore) UpsertGlucose(ctx context.Context, fact *models.GlucoseFact) error {
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entry_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"ts", "time_id", "sgv", "delta", "direction"}),
		}).
		Create(fact).Error
	if err != nil {
		return fmt.Errorf("failed to upsert glucose fact: %w", err)
	}
	return nil
}

func (s *gormStore) UpsertMeal(ctx context.Context, fact *models.MealFact) error {
	// classification is owned by the classifier and survives a reload
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "treatment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"ts", "time_id", "carbs", "protein", "fat"}),
		}).
		Create(fact).Error
	if err != nil {
		return fmt.Errorf("failed to upsert meal fact: %w", err)
	}
	return nil
}

func (s *gormStore) SetMealClassification(ctx context.Context, treatmentID int64, class models.MealClass) error {
	err := s.db.WithContext(ctx).
		Model(&models.MealFact{}).
		Where("treatment_id = ?", treatmentID).
		Update("classification", string(class)).Error
	if err != nil {
		return fmt.Errorf("failed to classify meal: %w", err)
	}
	return nil
}

func (s *gormStore) UpsertInsulinDose(ctx context.Context, dose *models.InsulinDose) error {
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dose_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"treatment_id", "ordinal", "ts", "time_id", "insulin_type_id", "units"}),
		}).
		Create(dose).Error
	if err != nil {
		return fmt.Errorf("failed to upsert insulin dose: %w", err)
	}
	return nil
}

func (s *gormStore) PruneInsulinDoses(ctx context.Context, treatmentID int64, keep []string) (int, error) {
	q := s.db.WithContext(ctx).Where("treatment_id = ?", treatmentID)
	if len(keep) > 0 {
		q = q.Where("dose_key NOT IN ?", keep)
	}
	res := q.Delete(&models.InsulinDose{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune insulin doses: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *gormStore) DeleteInsulinDose(ctx context.Context, factID int64) error {
	if err := s.db.WithContext(ctx).Delete(&models.InsulinDose{}, factID).Error; err != nil {
		return fmt.Errorf("failed to delete insulin dose: %w", err)
	}
	return nil
}

func (s *gormStore) ListMeals(ctx context.Context, r models.DateRange) ([]models.MealRow, error) {
	q := s.db.WithContext(ctx).
		Table("fact_meal AS m").
		Select("m.treatment_id, m.ts, m.time_id, m.carbs, m.protein, m.fat, m.classification, dt.hour, dt.date").
		Joins("JOIN dim_time dt ON m.time_id = dt.time_id")
	q = withDateRange(q, r)

	var meals []models.MealRow
	if err := q.Order("m.ts").Scan(&meals).Error; err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	return meals, nil
}

func (s *gormStore) ListDoses(ctx context.Context, r models.DateRange) ([]models.DoseRow, error) {
	q := s.db.WithContext(ctx).
		Table("fact_insulin AS fi").
		Select("fi.fact_id, fi.treatment_id, fi.ts, fi.units, " +
			"COALESCE(dit.insulin_name, '') AS insulin_name, COALESCE(dit.insulin_class, 'unknown') AS insulin_class").
		Joins("JOIN dim_time dt ON fi.time_id = dt.time_id").
		Joins("LEFT JOIN dim_insulin_type dit ON fi.insulin_type_id = dit.insulin_type_id")
	q = withDateRange(q, r)

	var doses []models.DoseRow
	if err := q.Order("fi.ts").Order("fi.fact_id").Scan(&doses).Error; err != nil {
		return nil, fmt.Errorf("failed to list insulin doses: %w", err)
	}
	return doses, nil
}

func (s *gormStore) ListGlucose(ctx context.Context, r models.DateRange) ([]models.GlucoseFact, error) {
	q := s.db.WithContext(ctx).
		Table("fact_glucose AS fg").
		Select("fg.entry_id, fg.ts, fg.time_id, fg.sgv, fg.delta, fg.direction").
		Joins("JOIN dim_time dt ON fg.time_id = dt.time_id")
	q = withDateRange(q, r)

	var readings []models.GlucoseFact
	if err := q.Order("fg.ts").Scan(&readings).Error; err != nil {
		return nil, fmt.Errorf("failed to list glucose readings: %w", err)
	}
	return readings, nil
}

func (s *gormStore) SumBolusUnits(ctx context.Context, w models.Window) (float64, int, error) {
	var res struct {
		Units sql.NullFloat64
		Doses int64
	}
	err := s.db.WithContext(ctx).
		Table("fact_insulin AS fi").
		Select("SUM(fi.units) AS units, COUNT(*) AS doses").
		Joins("JOIN dim_insulin_type dit ON fi.insulin_type_id = dit.insulin_type_id").
		Where("dit.insulin_class = ? AND fi.ts BETWEEN ? AND ?", string(models.InsulinClassBolus), w.From, w.To).
		Scan(&res).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum bolus units: %w", err)
	}
	return res.Units.Float64, int(res.Doses), nil
}

func (s *gormStore) HasDose(ctx context.Context, w models.Window, class models.InsulinClass) (bool, error) {
	q := s.db.WithContext(ctx).
		Table("fact_insulin AS fi").
		Where("fi.ts BETWEEN ? AND ?", w.From, w.To)
	if class != "" {
		q = q.Joins("JOIN dim_insulin_type dit ON fi.insulin_type_id = dit.insulin_type_id").
			Where("dit.insulin_class = ?", string(class))
	}

	var ids []int64
	if err := q.Limit(1).Pluck("fi.fact_id", &ids).Error; err != nil {
		return false, fmt.Errorf("failed to look up insulin doses: %w", err)
	}
	return len(ids) > 0, nil
}

func (s *gormStore) AverageGlucose(ctx context.Context, w models.Window) (*float64, error) {
	var avg sql.NullFloat64
	row := s.db.WithContext(ctx).
		Model(&models.GlucoseFact{}).
		Select("AVG(sgv)").
		Where("ts BETWEEN ? AND ? AND sgv IS NOT NULL", w.From, w.To).
		Row()
	if err := row.Scan(&avg); err != nil {
		return nil, fmt.Errorf("failed to average glucose: %w", err)
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

func withDateRange(q *gorm.DB, r models.DateRange) *gorm.DB {
	if d := r.StartDate(); d != "" {
		q = q.Where("dt.date >= ?", d)
	}
	if d := r.EndDate(); d != "" {
		q = q.Where("dt.date <= ?", d)
	}
	return q
}
