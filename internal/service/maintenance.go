package service

import (
	"context"
	"fmt"
	"time"

	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/models"
	"github.com/JonnyWalker81/nillabg/internal/repository"
	"github.com/JonnyWalker81/nillabg/internal/timenorm"
)

// MaintenanceOptions holds the thresholds of the repair passes
type MaintenanceOptions struct {
	EntryOffsetMinutes     int
	TreatmentOffsetMinutes int
	CleanupMaxUnits        float64
	CleanupWindow          time.Duration
}

type maintenanceService struct {
	store repository.Store
	opts  MaintenanceOptions
	log   logger.Logger
}

// NewMaintenanceService creates a new maintenance service
func NewMaintenanceService(store repository.Store, opts MaintenanceOptions, log logger.Logger) MaintenanceService {
	return &maintenanceService{
		store: store,
		opts:  opts,
		log:   log.With(logger.String("service", "maintenance")),
	}
}

// BackfillEpocDate adds treatments.epocdate when missing and sets it to
// created_at plus the row's utcOffset (or the configured treatment offset),
// in epoch milliseconds. Rows whose created_at does not parse get NULL.
func (s *maintenanceService) BackfillEpocDate(ctx context.Context) (*models.LoadStats, error) {
	if err := s.store.EnsureEpocDateColumn(ctx); err != nil {
		return nil, err
	}

	stats := &models.LoadStats{}
	err := s.store.EachTreatment(ctx, func(t *models.Treatment) error {
		stats.Rows++
		var ms *int64
		if ts, ok := timenorm.Normalize(t.CreatedAt, TreatmentOffset(t, s.opts.TreatmentOffsetMinutes)); ok {
			v := ts.UnixMilli()
			ms = &v
			stats.Loaded++
		} else {
			stats.Skipped++
		}
		return s.store.SetTreatmentEpocDate(ctx, t.ID, ms)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to backfill epocdate: %w", err)
	}

	s.log.WithContext(ctx).Info("epocdate backfilled",
		logger.Int("rows", stats.Rows),
		logger.Int("set", stats.Loaded),
		logger.Int("null", stats.Skipped),
	)
	return stats, nil
}

// CleanupInsulin removes doses of at most CleanupMaxUnits that lie within
// CleanupWindow of any other dose. Candidates are chosen against the full
// dose list before anything is deleted.
func (s *maintenanceService) CleanupInsulin(ctx context.Context, dryRun bool) (*models.CleanupReport, error) {
	doses, err := s.store.ListDoses(ctx, models.DateRange{})
	if err != nil {
		return nil, err
	}

	window := seconds(s.opts.CleanupWindow)
	report := &models.CleanupReport{Examined: len(doses), DryRun: dryRun, Removed: []models.DoseRow{}}

	// doses are ordered by ts, so neighbours within the window are contiguous
	for i, d := range doses {
		if d.Units == nil || *d.Units > s.opts.CleanupMaxUnits {
			continue
		}
		if hasNeighbour(doses, i, window) {
			report.Removed = append(report.Removed, d)
		}
	}

	if !dryRun {
		for _, d := range report.Removed {
			if err := s.store.DeleteInsulinDose(ctx, d.FactID); err != nil {
				return nil, err
			}
		}
	}

	s.log.WithContext(ctx).Info("insulin cleanup finished",
		logger.Int("examined", report.Examined),
		logger.Int("removed", len(report.Removed)),
		logger.Bool("dry_run", dryRun),
	)
	return report, nil
}

func hasNeighbour(doses []models.DoseRow, i int, window int64) bool {
	ts := doses[i].TS
	for j := i - 1; j >= 0 && ts-doses[j].TS <= window; j-- {
		if doses[j].FactID != doses[i].FactID {
			return true
		}
	}
	for j := i + 1; j < len(doses) && doses[j].TS-ts <= window; j++ {
		if doses[j].FactID != doses[i].FactID {
			return true
		}
	}
	return false
}

// Verify recomputes every fact timestamp from its staging row and checks it
// against the stored ts and hour bucket.
func (s *maintenanceService) Verify(ctx context.Context) (*models.VerifyReport, error) {
	report := &models.VerifyReport{Mismatches: []models.TimeMismatch{}}

	glucose, err := s.store.ListGlucose(ctx, models.DateRange{})
	if err != nil {
		return nil, err
	}
	glucoseByID := make(map[int64]models.GlucoseFact, len(glucose))
	for _, g := range glucose {
		glucoseByID[g.EntryID] = g
	}

	meals, err := s.store.ListMeals(ctx, models.DateRange{})
	if err != nil {
		return nil, err
	}
	mealsByID := make(map[int64]models.MealRow, len(meals))
	for _, m := range meals {
		mealsByID[m.TreatmentID] = m
	}

	doses, err := s.store.ListDoses(ctx, models.DateRange{})
	if err != nil {
		return nil, err
	}
	dosesByTreatment := make(map[int64][]models.DoseRow)
	for _, d := range doses {
		dosesByTreatment[d.TreatmentID] = append(dosesByTreatment[d.TreatmentID], d)
	}

	err = s.store.EachEntry(ctx, func(e *models.Entry) error {
		ts, ok := EntryTime(e, s.opts.EntryOffsetMinutes)
		if !ok {
			return nil
		}
		fact, found := glucoseByID[e.ID]
		if !found {
			report.Missing++
			return nil
		}
		report.Checked++
		if want := timenorm.Epoch(ts); fact.TS != want {
			report.Mismatches = append(report.Mismatches, models.TimeMismatch{
				Table: "fact_glucose", ID: e.ID, Stored: fact.TS, Expected: want, Reason: "ts",
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify glucose facts: %w", err)
	}

	err = s.store.EachTreatment(ctx, func(t *models.Treatment) error {
		ts, ok := TreatmentTime(t, s.opts.TreatmentOffsetMinutes)
		if !ok {
			return nil
		}
		want := timenorm.Epoch(ts)

		if t.IsMeal() {
			meal, found := mealsByID[t.ID]
			if !found {
				report.Missing++
			} else {
				report.Checked++
				if meal.TS != want {
					report.Mismatches = append(report.Mismatches, models.TimeMismatch{
						Table: "fact_meal", ID: t.ID, Stored: meal.TS, Expected: want, Reason: "ts",
					})
				} else if hour := timenorm.TruncateHour(ts); meal.Hour != hour.Hour() || meal.Date != hour.Format("2006-01-02") {
					report.Mismatches = append(report.Mismatches, models.TimeMismatch{
						Table: "fact_meal", ID: t.ID, Stored: meal.TS, Expected: want, Reason: "time_bucket",
					})
				}
			}
		}

		for _, d := range dosesByTreatment[t.ID] {
			report.Checked++
			if d.TS != want {
				report.Mismatches = append(report.Mismatches, models.TimeMismatch{
					Table: "fact_insulin", ID: d.FactID, Stored: d.TS, Expected: want, Reason: "ts",
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify treatment facts: %w", err)
	}

	s.log.WithContext(ctx).Info("timestamps verified",
		logger.Int("checked", report.Checked),
		logger.Int("missing", report.Missing),
		logger.Int("mismatches", len(report.Mismatches)),
	)
	return report, nil
}
