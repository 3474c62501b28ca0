package service

import (
	"context"
	"math"
	"testing"

	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/models"
)

func TestBucketForHour(t *testing.T) {
	tests := []struct {
		hour int
		want models.Bucket
	}{
		{0, models.BucketEvening},
		{3, models.BucketEvening},
		{4, models.BucketMorning},
		{11, models.BucketMorning},
		{12, models.BucketAfternoon},
		{17, models.BucketAfternoon},
		{18, models.BucketEvening},
		{23, models.BucketEvening},
	}
	for _, tt := range tests {
		if got := BucketForHour(tt.hour); got != tt.want {
			t.Errorf("BucketForHour(%d) = %v, want %v", tt.hour, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   models.Stats
	}{
		{name: "empty", values: nil, want: models.Stats{}},
		{name: "single value has zero deviation", values: []float64{10}, want: models.Stats{Mean: 10, Median: 10, StdDev: 0, Count: 1}},
		{name: "odd count", values: []float64{3, 1, 2}, want: models.Stats{Mean: 2, Median: 2, StdDev: 1, Count: 3}},
		{name: "even count", values: []float64{4, 1, 3, 2}, want: models.Stats{Mean: 2.5, Median: 2.5, StdDev: math.Sqrt(5.0 / 3.0), Count: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.values)
			if got.Count != tt.want.Count {
				t.Fatalf("Count = %d, want %d", got.Count, tt.want.Count)
			}
			if math.Abs(got.Mean-tt.want.Mean) > 1e-9 ||
				math.Abs(got.Median-tt.want.Median) > 1e-9 ||
				math.Abs(got.StdDev-tt.want.StdDev) > 1e-9 {
				t.Errorf("Summarize(%v) = %+v, want %+v", tt.values, got, tt.want)
			}
		})
	}
}

func TestMealMetrics(t *testing.T) {
	k := 1.0 / 18.0
	pre, post := 90.0, 140.0

	full := models.MealAssociation{Meal: models.MealRow{Carbs: f64(30)}, Units: 3, Pre: &pre, Post: &post}
	got := MealMetrics(full, k)
	if len(got) != 3 {
		t.Fatalf("MealMetrics() = %v, want three metrics", got)
	}

	noPost := models.MealAssociation{Meal: models.MealRow{Carbs: f64(30)}, Units: 3, Pre: &pre}
	got = MealMetrics(noPost, k)
	if _, ok := got[models.MetricCarbRatio]; !ok || len(got) != 1 {
		t.Errorf("MealMetrics(no post) = %v, want carb_ratio only", got)
	}

	noCarbs := models.MealAssociation{Meal: models.MealRow{}, Units: 2, Pre: &pre, Post: &post}
	got = MealMetrics(noCarbs, k)
	if _, ok := got[models.MetricInsulinSensitivity]; !ok || len(got) != 1 {
		t.Errorf("MealMetrics(no carbs) = %v, want insulin_sensitivity only", got)
	}

	excluded := full
	excluded.Excluded = models.ExcludedCorrectionAfter
	if got := MealMetrics(excluded, k); len(got) != 0 {
		t.Errorf("MealMetrics(excluded) = %v, want none", got)
	}
}

func TestMetricsService_EndToEnd(t *testing.T) {
	entries, treatments := standardMeal()
	store := buildStore(t, entries, treatments)
	svc := NewMetricsService(NewAssociationService(store, logger.Nop()), logger.Nop())

	report, err := svc.Compute(context.Background(), models.DefaultMetricsParams())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if report.Meals != 1 || report.Included != 1 {
		t.Errorf("Meals/Included = %d/%d, want 1/1", report.Meals, report.Included)
	}
	if len(report.Buckets) != 3 {
		t.Fatalf("got %d buckets, want 3", len(report.Buckets))
	}

	morning := report.Buckets[0]
	if morning.Bucket != models.BucketMorning || len(morning.Metrics) != 3 {
		t.Fatalf("morning bucket = %+v", morning)
	}
	want := map[models.Metric]float64{
		models.MetricCarbRatio:          10.0,
		models.MetricInsulinSensitivity: (90.0 - 140.0) / 18.0 / 3.0,
		models.MetricCarbAbsorption:     (140.0 - 90.0) / 18.0 / 30.0,
	}
	for i, ms := range morning.Metrics {
		if ms.Metric != models.Metrics[i] {
			t.Errorf("metric %d = %v, want %v", i, ms.Metric, models.Metrics[i])
		}
		if math.Abs(ms.Stats.Mean-want[ms.Metric]) > 1e-9 {
			t.Errorf("%s mean = %v, want %v", ms.Metric, ms.Stats.Mean, want[ms.Metric])
		}
		if ms.Stats.Count != 1 || ms.Stats.StdDev != 0 {
			t.Errorf("%s stats = %+v, want n=1 sd=0", ms.Metric, ms.Stats)
		}
	}
	if math.Abs(want[models.MetricInsulinSensitivity]-(-0.926)) > 1e-3 {
		t.Errorf("sensitivity fixture drifted: %v", want[models.MetricInsulinSensitivity])
	}

	if !report.Buckets[1].Empty() || !report.Buckets[2].Empty() {
		t.Error("afternoon and evening should have no records")
	}
}

func TestAggregate_CountsExclusions(t *testing.T) {
	pre, post := 100.0, 120.0
	assocs := []models.MealAssociation{
		{Bucket: models.BucketEvening, Meal: models.MealRow{Carbs: f64(20)}, Units: 2, Pre: &pre, Post: &post},
		{Bucket: models.BucketEvening, Meal: models.MealRow{Carbs: f64(40)}, Units: 2, Pre: &pre},
		{Bucket: models.BucketMorning, Excluded: models.ExcludedNoInsulin},
		{Bucket: models.BucketMorning, Excluded: models.ExcludedPreGlucose},
		{Bucket: models.BucketMorning, Excluded: models.ExcludedPreGlucose},
	}

	report := Aggregate(assocs, 1.0/18.0)
	if report.Meals != 5 || report.Included != 2 {
		t.Errorf("Meals/Included = %d/%d, want 5/2", report.Meals, report.Included)
	}
	if report.Excluded[models.ExcludedPreGlucose] != 2 || report.Excluded[models.ExcludedNoInsulin] != 1 {
		t.Errorf("Excluded = %v", report.Excluded)
	}

	evening := report.Buckets[2]
	if evening.Bucket != models.BucketEvening || len(evening.Metrics) != 3 {
		t.Fatalf("evening = %+v", evening)
	}
	ratio := evening.Metrics[0]
	if ratio.Metric != models.MetricCarbRatio || ratio.Stats.Count != 2 || ratio.Stats.Mean != 15 {
		t.Errorf("carb_ratio = %+v, want n=2 mean=15", ratio)
	}
	if evening.Metrics[1].Stats.Count != 1 {
		t.Errorf("insulin_sensitivity n = %d, want 1", evening.Metrics[1].Stats.Count)
	}
	if !report.Buckets[0].Empty() {
		t.Error("morning has only excluded meals and should be empty")
	}
}
