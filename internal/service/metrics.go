package service

import (
	"context"
	"math"
	"sort"

	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/models"
)

// BucketForHour maps an hour of day to its report bucket:
// morning [4,12), afternoon [12,18), evening otherwise
func BucketForHour(hour int) models.Bucket {
	switch {
	case hour >= 4 && hour < 12:
		return models.BucketMorning
	case hour >= 12 && hour < 18:
		return models.BucketAfternoon
	default:
		return models.BucketEvening
	}
}

// Summarize returns mean, median, sample standard deviation and count.
// A single value has a deviation of 0; no values give a zero Stats.
func Summarize(values []float64) models.Stats {
	n := len(values)
	if n == 0 {
		return models.Stats{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	var stddev float64
	if n > 1 {
		var sq float64
		for _, v := range sorted {
			sq += (v - mean) * (v - mean)
		}
		stddev = math.Sqrt(sq / float64(n-1))
	}

	return models.Stats{Mean: mean, Median: median, StdDev: stddev, Count: n}
}

// MealMetrics derives the per-meal ratios of an included association.
// k converts mg/dL to mmol/L.
func MealMetrics(a models.MealAssociation, k float64) map[models.Metric]float64 {
	out := make(map[models.Metric]float64, len(models.Metrics))
	if !a.Included() || a.Units <= 0 {
		return out
	}
	carbs := deref(a.Meal.Carbs)

	if carbs > 0 {
		out[models.MetricCarbRatio] = carbs / a.Units
	}
	if a.Pre != nil && a.Post != nil {
		out[models.MetricInsulinSensitivity] = (*a.Pre - *a.Post) * k / a.Units
		if carbs > 0 {
			out[models.MetricCarbAbsorption] = (*a.Post - *a.Pre) * k / carbs
		}
	}
	return out
}

type metricsService struct {
	assoc AssociationService
	log   logger.Logger
}

// NewMetricsService creates a new metrics aggregator
func NewMetricsService(assoc AssociationService, log logger.Logger) MetricsService {
	return &metricsService{
		assoc: assoc,
		log:   log.With(logger.String("service", "metrics")),
	}
}

func (s *metricsService) Compute(ctx context.Context, params models.MetricsParams) (*models.MetricsReport, error) {
	assocs, err := s.assoc.Associate(ctx, params)
	if err != nil {
		return nil, err
	}
	return Aggregate(assocs, params.MgdlToMmol), nil
}

// Aggregate groups included associations by bucket and summarises each metric.
// Buckets and metrics keep their fixed print order; metrics without samples are omitted.
func Aggregate(assocs []models.MealAssociation, k float64) *models.MetricsReport {
	samples := make(map[models.Bucket]map[models.Metric][]float64)
	report := &models.MetricsReport{Meals: len(assocs)}

	for _, a := range assocs {
		if !a.Included() {
			if report.Excluded == nil {
				report.Excluded = make(map[models.ExclusionReason]int)
			}
			report.Excluded[a.Excluded]++
			continue
		}
		report.Included++

		if samples[a.Bucket] == nil {
			samples[a.Bucket] = make(map[models.Metric][]float64)
		}
		for m, v := range MealMetrics(a, k) {
			samples[a.Bucket][m] = append(samples[a.Bucket][m], v)
		}
	}

	for _, b := range models.Buckets {
		br := models.BucketReport{Bucket: b, Metrics: []models.MetricStats{}}
		for _, m := range models.Metrics {
			if vals := samples[b][m]; len(vals) > 0 {
				br.Metrics = append(br.Metrics, models.MetricStats{Metric: m, Stats: Summarize(vals)})
			}
		}
		report.Buckets = append(report.Buckets, br)
	}
	return report
}
