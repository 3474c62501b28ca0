package models

import (
	"fmt"
	"time"
)

// InsulinClass is the pharmacological class of an insulin product
type InsulinClass string

const (
	InsulinClassBolus   InsulinClass = "bolus"
	InsulinClassBasal   InsulinClass = "basal"
	InsulinClassUnknown InsulinClass = "unknown"
)

// MealClass is the heuristic label written back onto meal facts
type MealClass string

const (
	MealClassHypo  MealClass = "hypo"
	MealClassSnack MealClass = "snack"
	MealClassMeal  MealClass = "meal"
)

// UnknownInsulinName is stored for injections that carry no product name
const UnknownInsulinName = "Unknown"

// TimeBucket is one hour-granularity row of dim_time
type TimeBucket struct {
	TimeID int64     `gorm:"column:time_id;primaryKey;autoIncrement" json:"time_id"`
	TS     time.Time `gorm:"column:ts;not null" json:"ts"`
	Epoch  int64     `gorm:"column:epoch;not null;uniqueIndex:u_dim_time_epoch" json:"epoch"`
	Date   string    `gorm:"column:date;type:varchar(10);index:idx_dim_time_date" json:"date"`
	Hour   int       `gorm:"column:hour" json:"hour"`
	Dow    int       `gorm:"column:dow" json:"dow"` // Monday = 0
	Month  int       `gorm:"column:month" json:"month"`
	Year   int       `gorm:"column:year" json:"year"`
}

func (TimeBucket) TableName() string { return "dim_time" }

// InsulinType is one distinct insulin product name in dim_insulin_type
type InsulinType struct {
	InsulinTypeID int64        `gorm:"column:insulin_type_id;primaryKey;autoIncrement" json:"insulin_type_id"`
	Name          string       `gorm:"column:insulin_name;type:varchar(255);uniqueIndex:u_dim_insulin_name" json:"insulin_name"`
	Class         InsulinClass `gorm:"column:insulin_class;type:varchar(16);default:unknown" json:"insulin_class"`
}

func (InsulinType) TableName() string { return "dim_insulin_type" }

// GlucoseFact is one sensor glucose reading
type GlucoseFact struct {
	EntryID   int64       `gorm:"column:entry_id;primaryKey;autoIncrement:false" json:"entry_id"`
	TS        int64       `gorm:"column:ts;index:idx_fact_glucose_ts" json:"ts"`
	TimeID    int64       `gorm:"column:time_id" json:"time_id"`
	SGV       *int        `gorm:"column:sgv" json:"sgv,omitempty"`
	Delta     *float64    `gorm:"column:delta" json:"delta,omitempty"`
	Direction *string     `gorm:"column:direction;type:varchar(32)" json:"direction,omitempty"`
	Time      *TimeBucket `gorm:"foreignKey:TimeID;references:TimeID" json:"-"`
}

func (GlucoseFact) TableName() string { return "fact_glucose" }

// MealFact is one treatment event recognised as a meal
type MealFact struct {
	TreatmentID    int64       `gorm:"column:treatment_id;primaryKey;autoIncrement:false" json:"treatment_id"`
	TS             int64       `gorm:"column:ts;index:idx_fact_meal_ts" json:"ts"`
	TimeID         int64       `gorm:"column:time_id" json:"time_id"`
	Carbs          *float64    `gorm:"column:carbs" json:"carbs,omitempty"`
	Protein        *float64    `gorm:"column:protein" json:"protein,omitempty"`
	Fat            *float64    `gorm:"column:fat" json:"fat,omitempty"`
	Classification *MealClass  `gorm:"column:classification;type:varchar(8)" json:"classification,omitempty"`
	Time           *TimeBucket `gorm:"foreignKey:TimeID;references:TimeID" json:"-"`
}

func (MealFact) TableName() string { return "fact_meal" }

// InsulinDose is one injection extracted from a treatment's payload.
// DoseKey is "<treatment_id>:<ordinal>" and makes reloading idempotent.
type InsulinDose struct {
	FactID        int64        `gorm:"column:fact_id;primaryKey;autoIncrement" json:"fact_id"`
	DoseKey       string       `gorm:"column:dose_key;type:varchar(64);uniqueIndex:u_fact_insulin_dose_key" json:"dose_key"`
	TreatmentID   int64        `gorm:"column:treatment_id;index:idx_fact_insulin_treatment" json:"treatment_id"`
	Ordinal       int          `gorm:"column:ordinal" json:"ordinal"`
	TS            int64        `gorm:"column:ts;index:idx_fact_insulin_ts" json:"ts"`
	TimeID        int64        `gorm:"column:time_id" json:"time_id"`
	InsulinTypeID int64        `gorm:"column:insulin_type_id" json:"insulin_type_id"`
	Units         *float64     `gorm:"column:units" json:"units,omitempty"`
	Time          *TimeBucket  `gorm:"foreignKey:TimeID;references:TimeID" json:"-"`
	InsulinType   *InsulinType `gorm:"foreignKey:InsulinTypeID;references:InsulinTypeID" json:"-"`
}

func (InsulinDose) TableName() string { return "fact_insulin" }

// DoseKey builds the idempotency key of the ordinal-th injection of a treatment
func DoseKey(treatmentID int64, ordinal int) string {
	return fmt.Sprintf("%d:%d", treatmentID, ordinal)
}

// MealRow is a meal fact joined with its time bucket
type MealRow struct {
	TreatmentID    int64      `gorm:"column:treatment_id" json:"treatment_id"`
	TS             int64      `gorm:"column:ts" json:"ts"`
	TimeID         int64      `gorm:"column:time_id" json:"time_id"`
	Carbs          *float64   `gorm:"column:carbs" json:"carbs,omitempty"`
	Protein        *float64   `gorm:"column:protein" json:"protein,omitempty"`
	Fat            *float64   `gorm:"column:fat" json:"fat,omitempty"`
	Classification *MealClass `gorm:"column:classification" json:"classification,omitempty"`
	Hour           int        `gorm:"column:hour" json:"hour"`
	Date           string     `gorm:"column:date" json:"date"`
}

// DoseRow is an insulin dose joined with its product name and class
type DoseRow struct {
	FactID      int64        `gorm:"column:fact_id" json:"fact_id"`
	TreatmentID int64        `gorm:"column:treatment_id" json:"treatment_id"`
	TS          int64        `gorm:"column:ts" json:"ts"`
	Units       *float64     `gorm:"column:units" json:"units,omitempty"`
	Name        string       `gorm:"column:insulin_name" json:"insulin_name"`
	Class       InsulinClass `gorm:"column:insulin_class" json:"insulin_class"`
}

// Window is an inclusive range of epoch seconds
type Window struct {
	From int64
	To   int64
}

// Empty reports whether the window contains no instant
func (w Window) Empty() bool {
	return w.To < w.From
}

// Contains reports whether ts lies inside the window
func (w Window) Contains(ts int64) bool {
	return ts >= w.From && ts <= w.To
}

// DateRange optionally bounds queries by dim_time.date, both ends inclusive
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// StartDate returns the lower bound as YYYY-MM-DD, or "" when unbounded
func (r DateRange) StartDate() string {
	if r.Start == nil {
		return ""
	}
	return r.Start.Format("2006-01-02")
}

// EndDate returns the upper bound as YYYY-MM-DD, or "" when unbounded
func (r DateRange) EndDate() string {
	if r.End == nil {
		return ""
	}
	return r.End.Format("2006-01-02")
}

// Includes reports whether a YYYY-MM-DD date string falls inside the range
func (r DateRange) Includes(date string) bool {
	if s := r.StartDate(); s != "" && date < s {
		return false
	}
	if e := r.EndDate(); e != "" && date > e {
		return false
	}
	return true
}

// LoadStats counts what a loader did with its staging rows
type LoadStats struct {
	Rows    int `json:"rows" yaml:"rows"`
	Loaded  int `json:"loaded" yaml:"loaded"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Meals   int `json:"meals,omitempty" yaml:"meals,omitempty"`
	Doses   int `json:"doses,omitempty" yaml:"doses,omitempty"`
	Priming int `json:"priming,omitempty" yaml:"priming,omitempty"`
	Removed int `json:"removed,omitempty" yaml:"removed,omitempty"`
}

// BuildSummary is the outcome of a full warehouse build
type BuildSummary struct {
	Glucose    LoadStats `json:"glucose" yaml:"glucose"`
	Treatments LoadStats `json:"treatments" yaml:"treatments"`
}

// ParseDay parses a YYYY-MM-DD date as midnight UTC. Empty input is an
// unbounded side of a range and returns nil.
func ParseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return &t, nil
}
