package models

// CleanupReport lists the small duplicate doses removed by a cleanup pass
type CleanupReport struct {
	Examined int       `json:"examined" yaml:"examined"`
	Removed  []DoseRow `json:"removed" yaml:"removed"`
	DryRun   bool      `json:"dry_run" yaml:"dry_run"`
}

// TimeMismatch is a fact whose stored timestamp or hour bucket disagrees
// with the value recomputed from its staging row
type TimeMismatch struct {
	Table    string `json:"table" yaml:"table"`
	ID       int64  `json:"id" yaml:"id"`
	Stored   int64  `json:"stored" yaml:"stored"`
	Expected int64  `json:"expected" yaml:"expected"`
	Reason   string `json:"reason" yaml:"reason"`
}

// VerifyReport is the outcome of a timestamp consistency check
type VerifyReport struct {
	Checked    int            `json:"checked" yaml:"checked"`
	Missing    int            `json:"missing" yaml:"missing"`
	Mismatches []TimeMismatch `json:"mismatches" yaml:"mismatches"`
}

// OK reports whether every checked fact matched
func (r *VerifyReport) OK() bool {
	return len(r.Mismatches) == 0
}

// DayOverview gathers everything recorded on one calendar date
type DayOverview struct {
	Date    string        `json:"date" yaml:"date"`
	Meals   []MealRow     `json:"meals" yaml:"meals"`
	Doses   []DoseRow     `json:"doses" yaml:"doses"`
	Glucose []GlucoseFact `json:"glucose" yaml:"glucose"`
	Spikes  []GlucoseFact `json:"spikes" yaml:"spikes"`
}
