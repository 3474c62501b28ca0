package models

import "time"

// Bucket groups meals by time of day
type Bucket string

const (
	BucketMorning   Bucket = "morning"
	BucketAfternoon Bucket = "afternoon"
	BucketEvening   Bucket = "evening"
)

// Buckets lists the report buckets in print order
var Buckets = []Bucket{BucketMorning, BucketAfternoon, BucketEvening}

// Metric names a derived per-meal ratio
type Metric string

const (
	MetricCarbRatio          Metric = "carb_ratio"
	MetricInsulinSensitivity Metric = "insulin_sensitivity"
	MetricCarbAbsorption     Metric = "carb_absorption"
)

// Metrics lists the metrics in print order
var Metrics = []Metric{MetricCarbRatio, MetricInsulinSensitivity, MetricCarbAbsorption}

// ExclusionReason says why a meal did not reach the statistics
type ExclusionReason string

const (
	ExcludedNone             ExclusionReason = ""
	ExcludedNoInsulin        ExclusionReason = "no_insulin"
	ExcludedCorrectionBefore ExclusionReason = "correction_before"
	ExcludedPreGlucose       ExclusionReason = "pre_glucose"
	ExcludedCorrectionAfter  ExclusionReason = "correction_after"
)

// MetricsParams tunes the association windows and gates
type MetricsParams struct {
	Range        DateRange
	TimeWindow   time.Duration
	PostOffset   time.Duration
	PreWindow    time.Duration
	PostWindow   time.Duration
	NoCorrBefore time.Duration
	NoCorrAfter  time.Duration
	PreMealMin   float64 // mg/dL
	PreMealMax   float64 // mg/dL
	MgdlToMmol   float64
}

// DefaultMetricsParams returns the stock windows: ±50 min dose association,
// 15 min glucose averages, post reading 2h after the meal, no correction
// boluses 2h before / 3h after, and a 63-117 mg/dL pre-meal gate.
func DefaultMetricsParams() MetricsParams {
	return MetricsParams{
		TimeWindow:   50 * time.Minute,
		PostOffset:   120 * time.Minute,
		PreWindow:    15 * time.Minute,
		PostWindow:   15 * time.Minute,
		NoCorrBefore: 120 * time.Minute,
		NoCorrAfter:  180 * time.Minute,
		PreMealMin:   63,
		PreMealMax:   117,
		MgdlToMmol:   1.0 / 18.0,
	}
}

// MealAssociation is one meal joined to its bolus total and glucose context
type MealAssociation struct {
	Meal     MealRow         `json:"meal"`
	Bucket   Bucket          `json:"bucket"`
	Units    float64         `json:"units"`
	Doses    int             `json:"doses"`
	Pre      *float64        `json:"pre,omitempty"`
	Post     *float64        `json:"post,omitempty"`
	Excluded ExclusionReason `json:"excluded,omitempty"`
}

// Included reports whether the meal survives every gate
func (a *MealAssociation) Included() bool {
	return a.Excluded == ExcludedNone
}

// Stats summarises one metric within one bucket
type Stats struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	StdDev float64 `json:"stddev" yaml:"stddev"`
	Count  int     `json:"n" yaml:"n"`
}

// MetricStats pairs a metric with its summary
type MetricStats struct {
	Metric Metric `json:"metric" yaml:"metric"`
	Stats  Stats  `json:"stats" yaml:"stats"`
}

// BucketReport holds every metric that has samples in a bucket
type BucketReport struct {
	Bucket  Bucket        `json:"bucket" yaml:"bucket"`
	Metrics []MetricStats `json:"metrics" yaml:"metrics"`
}

// Empty reports whether no metric in the bucket has a sample
func (b *BucketReport) Empty() bool {
	return len(b.Metrics) == 0
}

// MetricsReport is the full output of a metrics run
type MetricsReport struct {
	Buckets  []BucketReport          `json:"buckets" yaml:"buckets"`
	Meals    int                     `json:"meals" yaml:"meals"`
	Included int                     `json:"included" yaml:"included"`
	Excluded map[ExclusionReason]int `json:"excluded,omitempty" yaml:"excluded,omitempty"`
}
