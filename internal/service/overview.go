package service

import (
	"context"
	"time"

	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/models"
	"github.com/JonnyWalker81/nillabg/internal/repository"
)

// SpikeThreshold is the sgv in mg/dL at or above which a reading counts as a spike
const SpikeThreshold = 180

type overviewService struct {
	store repository.QueryRepository
	log   logger.Logger
}

// NewOverviewService creates a new daily overview service
func NewOverviewService(store repository.QueryRepository, log logger.Logger) OverviewService {
	return &overviewService{
		store: store,
		log:   log.With(logger.String("service", "overview")),
	}
}

func (s *overviewService) Day(ctx context.Context, date time.Time) (*models.DayOverview, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	r := models.DateRange{Start: &day, End: &day}

	meals, err := s.store.ListMeals(ctx, r)
	if err != nil {
		return nil, err
	}
	doses, err := s.store.ListDoses(ctx, r)
	if err != nil {
		return nil, err
	}
	glucose, err := s.store.ListGlucose(ctx, r)
	if err != nil {
		return nil, err
	}

	spikes := []models.GlucoseFact{}
	for _, g := range glucose {
		if g.SGV != nil && *g.SGV >= SpikeThreshold {
			spikes = append(spikes, g)
		}
	}

	s.log.WithContext(ctx).Debug("day overview",
		logger.String("date", r.StartDate()),
		logger.Int("meals", len(meals)),
		logger.Int("doses", len(doses)),
		logger.Int("readings", len(glucose)),
	)

	return &models.DayOverview{
		Date:    r.StartDate(),
		Meals:   nonNil(meals),
		Doses:   nonNil(doses),
		Glucose: nonNil(glucose),
		Spikes:  spikes,
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
