package service

import (
	"context"
	"fmt"
	"time"

	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/models"
	"github.com/JonnyWalker81/nillabg/internal/repository"
)

type associationService struct {
	store repository.QueryRepository
	log   logger.Logger
}

// NewAssociationService creates a new meal association service
func NewAssociationService(store repository.QueryRepository, log logger.Logger) AssociationService {
	return &associationService{
		store: store,
		log:   log.With(logger.String("service", "association")),
	}
}

// Associate evaluates every meal in params.Range. Gates run in order and the
// first failing gate is recorded on the association:
//
//	no_insulin         no bolus units within ±TimeWindow
//	correction_before  bolus in (ts-NoCorrBefore, ts-TimeWindow]
//	pre_glucose        no readings in [ts-PreWindow, ts] or average outside the gate
//	correction_after   bolus in [ts+TimeWindow, ts+NoCorrAfter)
//
// Post glucose is looked up only for meals that pass and may be missing.
func (s *associationService) Associate(ctx context.Context, params models.MetricsParams) ([]models.MealAssociation, error) {
	meals, err := s.store.ListMeals(ctx, params.Range)
	if err != nil {
		return nil, err
	}

	tw := seconds(params.TimeWindow)
	out := make([]models.MealAssociation, 0, len(meals))
	for _, meal := range meals {
		a := models.MealAssociation{Meal: meal, Bucket: BucketForHour(meal.Hour)}
		ts := meal.TS

		units, doses, err := s.store.SumBolusUnits(ctx, models.Window{From: ts - tw, To: ts + tw})
		if err != nil {
			return nil, fmt.Errorf("meal %d: %w", meal.TreatmentID, err)
		}
		a.Units, a.Doses = units, doses
		if units <= 0 {
			a.Excluded = models.ExcludedNoInsulin
			out = append(out, a)
			continue
		}

		before := models.Window{From: ts - seconds(params.NoCorrBefore) + 1, To: ts - tw}
		if hit, err := s.bolusIn(ctx, before); err != nil {
			return nil, fmt.Errorf("meal %d: %w", meal.TreatmentID, err)
		} else if hit {
			a.Excluded = models.ExcludedCorrectionBefore
			out = append(out, a)
			continue
		}

		pre, err := s.store.AverageGlucose(ctx, models.Window{From: ts - seconds(params.PreWindow), To: ts})
		if err != nil {
			return nil, fmt.Errorf("meal %d: %w", meal.TreatmentID, err)
		}
		a.Pre = pre
		if pre == nil || *pre < params.PreMealMin || *pre > params.PreMealMax {
			a.Excluded = models.ExcludedPreGlucose
			out = append(out, a)
			continue
		}

		after := models.Window{From: ts + tw, To: ts + seconds(params.NoCorrAfter) - 1}
		if hit, err := s.bolusIn(ctx, after); err != nil {
			return nil, fmt.Errorf("meal %d: %w", meal.TreatmentID, err)
		} else if hit {
			a.Excluded = models.ExcludedCorrectionAfter
			out = append(out, a)
			continue
		}

		postFrom := ts + seconds(params.PostOffset)
		post, err := s.store.AverageGlucose(ctx, models.Window{From: postFrom, To: postFrom + seconds(params.PostWindow)})
		if err != nil {
			return nil, fmt.Errorf("meal %d: %w", meal.TreatmentID, err)
		}
		a.Post = post
		out = append(out, a)
	}

	s.log.WithContext(ctx).Debug("meals associated", logger.Int("meals", len(out)))
	return out, nil
}

func (s *associationService) bolusIn(ctx context.Context, w models.Window) (bool, error) {
	if w.Empty() {
		return false, nil
	}
	return s.store.HasDose(ctx, w, models.InsulinClassBolus)
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
