package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/models"
	"github.com/JonnyWalker81/nillabg/internal/repository"
)

// InsulinClassifier maps product names to bolus/basal by case-insensitive substring
type InsulinClassifier struct {
	bolus []string
	basal []string
}

// NewInsulinClassifier creates a classifier from lists of name fragments
func NewInsulinClassifier(bolus, basal []string) *InsulinClassifier {
	return &InsulinClassifier{
		bolus: lowerAll(bolus),
		basal: lowerAll(basal),
	}
}

// Classify returns the class of name; empty and unmatched names are unknown.
// Bolus fragments are checked first.
func (c *InsulinClassifier) Classify(name string) models.InsulinClass {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return models.InsulinClassUnknown
	}
	for _, f := range c.bolus {
		if strings.Contains(n, f) {
			return models.InsulinClassBolus
		}
	}
	for _, f := range c.basal {
		if strings.Contains(n, f) {
			return models.InsulinClassBasal
		}
	}
	return models.InsulinClassUnknown
}

// MealThresholds holds the carbohydrate bounds of the meal heuristic in grams
type MealThresholds struct {
	HypoMaxCarbs     float64
	SnackMinCarbs    float64
	SnackMaxCarbs    float64
	InsulinProximity time.Duration
}

// DefaultMealThresholds returns hypo below 4 g, snack strictly between 4 and 7 g
// and a ±30 minute insulin lookup
func DefaultMealThresholds() MealThresholds {
	return MealThresholds{
		HypoMaxCarbs:     4,
		SnackMinCarbs:    4,
		SnackMaxCarbs:    7,
		InsulinProximity: 30 * time.Minute,
	}
}

// MealClassifier labels carbohydrate events as hypo treatment, snack or meal
type MealClassifier struct {
	t MealThresholds
}

// NewMealClassifier creates a meal classifier
func NewMealClassifier(t MealThresholds) *MealClassifier {
	return &MealClassifier{t: t}
}

// Classify applies the heuristic. Missing macros count as zero.
//
//	hypo  if (carbs < hypo_max and no protein or fat) or (carbs > 0 and no insulin nearby)
//	snack if snack_min < carbs < snack_max
//	meal  otherwise
func (c *MealClassifier) Classify(carbs, protein, fat *float64, insulinNearby bool) models.MealClass {
	cv, pv, fv := deref(carbs), deref(protein), deref(fat)

	if (cv < c.t.HypoMaxCarbs && pv == 0 && fv == 0) || (cv > 0 && !insulinNearby) {
		return models.MealClassHypo
	}
	if cv > c.t.SnackMinCarbs && cv < c.t.SnackMaxCarbs {
		return models.MealClassSnack
	}
	return models.MealClassMeal
}

type classificationService struct {
	store repository.Store
	meals *MealClassifier
	log   logger.Logger
}

// NewClassificationService creates a new classification service
func NewClassificationService(store repository.Store, meals *MealClassifier, log logger.Logger) ClassificationService {
	return &classificationService{
		store: store,
		meals: meals,
		log:   log.With(logger.String("service", "classification")),
	}
}

func (s *classificationService) ClassifyAt(ctx context.Context, carbs, protein, fat *float64, ts int64) (models.MealClass, error) {
	prox := int64(s.meals.t.InsulinProximity / time.Second)
	nearby, err := s.store.HasDose(ctx, models.Window{From: ts - prox, To: ts + prox}, "")
	if err != nil {
		return "", fmt.Errorf("failed to look up nearby insulin: %w", err)
	}
	return s.meals.Classify(carbs, protein, fat, nearby), nil
}

func (s *classificationService) ClassifyMeals(ctx context.Context, r models.DateRange) (map[models.MealClass]int, error) {
	meals, err := s.store.ListMeals(ctx, r)
	if err != nil {
		return nil, err
	}

	counts := make(map[models.MealClass]int)
	for _, m := range meals {
		class, err := s.ClassifyAt(ctx, m.Carbs, m.Protein, m.Fat, m.TS)
		if err != nil {
			return nil, err
		}
		if err := s.store.SetMealClassification(ctx, m.TreatmentID, class); err != nil {
			return nil, err
		}
		counts[class]++
	}

	s.log.WithContext(ctx).Info("meals classified",
		logger.Int("meals", len(meals)),
		logger.Int("hypo", counts[models.MealClassHypo]),
		logger.Int("snack", counts[models.MealClassSnack]),
		logger.Int("meal", counts[models.MealClassMeal]),
	)
	return counts, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
