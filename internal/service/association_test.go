package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/models"
)

func TestAssociationService_Associate(t *testing.T) {
	entries, treatments := standardMeal()

	tests := []struct {
		name       string
		entries    []models.Entry
		treatments []models.Treatment
		want       models.ExclusionReason
		wantUnits  float64
		wantPost   bool
	}{
		{
			name:       "covered meal passes every gate",
			entries:    entries,
			treatments: treatments,
			want:       models.ExcludedNone,
			wantUnits:  3,
			wantPost:   true,
		},
		{
			name:       "no bolus",
			entries:    entries,
			treatments: []models.Treatment{mealAt(100, base, 30)},
			want:       models.ExcludedNoInsulin,
		},
		{
			name:       "basal inside the window is not a bolus",
			entries:    entries,
			treatments: []models.Treatment{mealAt(100, base, 30), doseAt(101, at(10), "Tresiba", 12)},
			want:       models.ExcludedNoInsulin,
		},
		{
			name:    "boluses inside the window are summed",
			entries: entries,
			treatments: append(append([]models.Treatment{}, treatments...),
				doseAt(102, at(-50), "Fiasp", 1.5), doseAt(103, at(50), "Humalog", 0.5)),
			// the edge doses also sit on the correction bands
			want:      models.ExcludedCorrectionBefore,
			wantUnits: 5,
		},
		{
			name:       "correction bolus 90 minutes before",
			entries:    entries,
			treatments: append(append([]models.Treatment{}, treatments...), doseAt(102, at(-90), "NovoRapid", 2)),
			want:       models.ExcludedCorrectionBefore,
			wantUnits:  3,
		},
		{
			name:       "bolus exactly at the open end of the before band",
			entries:    entries,
			treatments: append(append([]models.Treatment{}, treatments...), doseAt(102, at(-120), "NovoRapid", 2)),
			want:       models.ExcludedNone,
			wantUnits:  3,
			wantPost:   true,
		},
		{
			name:       "bolus long before is ignored",
			entries:    entries,
			treatments: append(append([]models.Treatment{}, treatments...), doseAt(102, at(-130), "NovoRapid", 2)),
			want:       models.ExcludedNone,
			wantUnits:  3,
			wantPost:   true,
		},
		{
			name:       "pre average above the gate",
			entries:    []models.Entry{reading(1, at(-10), 120), reading(2, at(-5), 120), reading(3, at(125), 140)},
			treatments: treatments,
			want:       models.ExcludedPreGlucose,
			wantUnits:  3,
		},
		{
			name:       "no pre readings",
			entries:    []models.Entry{reading(3, at(125), 140)},
			treatments: treatments,
			want:       models.ExcludedPreGlucose,
			wantUnits:  3,
		},
		{
			name:       "correction bolus after the meal",
			entries:    entries,
			treatments: append(append([]models.Treatment{}, treatments...), doseAt(102, at(100), "NovoRapid", 2)),
			want:       models.ExcludedCorrectionAfter,
			wantUnits:  3,
		},
		{
			name:       "bolus exactly at the open end of the after band",
			entries:    entries,
			treatments: append(append([]models.Treatment{}, treatments...), doseAt(102, at(180), "NovoRapid", 2)),
			want:       models.ExcludedNone,
			wantUnits:  3,
			wantPost:   true,
		},
		{
			name:       "missing post glucose still passes",
			entries:    []models.Entry{reading(1, at(-10), 85), reading(2, at(-5), 95)},
			treatments: treatments,
			want:       models.ExcludedNone,
			wantUnits:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := buildStore(t, tt.entries, tt.treatments)
			svc := NewAssociationService(store, logger.Nop())

			got, err := svc.Associate(context.Background(), models.DefaultMetricsParams())
			if err != nil {
				t.Fatalf("Associate() error = %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("Associate() returned %d meals, want 1", len(got))
			}
			a := got[0]
			if a.Excluded != tt.want {
				t.Errorf("Excluded = %q, want %q", a.Excluded, tt.want)
			}
			if math.Abs(a.Units-tt.wantUnits) > 1e-9 {
				t.Errorf("Units = %v, want %v", a.Units, tt.wantUnits)
			}
			if (a.Post != nil) != tt.wantPost {
				t.Errorf("Post = %v, want present=%v", a.Post, tt.wantPost)
			}
			if a.Bucket != models.BucketMorning {
				t.Errorf("Bucket = %v, want morning", a.Bucket)
			}
		})
	}
}

func TestAssociationService_Averages(t *testing.T) {
	entries, treatments := standardMeal()
	store := buildStore(t, entries, treatments)

	got, err := NewAssociationService(store, logger.Nop()).Associate(context.Background(), models.DefaultMetricsParams())
	if err != nil {
		t.Fatalf("Associate() error = %v", err)
	}
	a := got[0]
	if a.Pre == nil || *a.Pre != 90 {
		t.Errorf("Pre = %v, want 90", a.Pre)
	}
	if a.Post == nil || *a.Post != 140 {
		t.Errorf("Post = %v, want 140", a.Post)
	}
	if a.Doses != 1 {
		t.Errorf("Doses = %d, want 1", a.Doses)
	}
}

func TestAssociationService_WindowOverrides(t *testing.T) {
	entries, treatments := standardMeal()
	store := buildStore(t, entries, treatments)
	svc := NewAssociationService(store, logger.Nop())

	// a 3 minute window no longer reaches the bolus at +5 min
	params := models.DefaultMetricsParams()
	params.TimeWindow = 3 * time.Minute
	got, err := svc.Associate(context.Background(), params)
	if err != nil {
		t.Fatalf("Associate() error = %v", err)
	}
	if got[0].Excluded != models.ExcludedNoInsulin {
		t.Errorf("Excluded = %q, want no_insulin", got[0].Excluded)
	}

	// the date range filters on the meal's hour bucket
	day := base.AddDate(0, 0, 1)
	params = models.DefaultMetricsParams()
	params.Range = models.DateRange{Start: &day}
	got, err = svc.Associate(context.Background(), params)
	if err != nil {
		t.Fatalf("Associate() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Associate() with later start returned %d meals, want 0", len(got))
	}
}

func TestAssociationService_CorrectionBandsCollapse(t *testing.T) {
	entries, treatments := standardMeal()

	tests := []struct {
		name         string
		noCorrBefore time.Duration
		noCorrAfter  time.Duration
		extra        []models.Treatment
		wantUnits    float64
	}{
		{
			name:         "bands shorter than the dose window",
			noCorrBefore: 30 * time.Minute,
			noCorrAfter:  50 * time.Minute,
			extra:        []models.Treatment{doseAt(102, at(-40), "NovoRapid", 2), doseAt(103, at(49), "Fiasp", 1)},
			wantUnits:    6,
		},
		{
			name:         "bands equal to the dose window",
			noCorrBefore: 50 * time.Minute,
			noCorrAfter:  50 * time.Minute,
			extra:        []models.Treatment{doseAt(102, at(-50), "NovoRapid", 2), doseAt(103, at(50), "Fiasp", 1)},
			wantUnits:    6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			all := append(append([]models.Treatment{}, treatments...), tt.extra...)
			store := buildStore(t, entries, all)

			params := models.DefaultMetricsParams()
			params.NoCorrBefore = tt.noCorrBefore
			params.NoCorrAfter = tt.noCorrAfter

			got, err := NewAssociationService(store, logger.Nop()).Associate(context.Background(), params)
			if err != nil {
				t.Fatalf("Associate() error = %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("Associate() returned %d meals, want 1", len(got))
			}
			if !got[0].Included() {
				t.Errorf("Excluded = %q, want included", got[0].Excluded)
			}
			if math.Abs(got[0].Units-tt.wantUnits) > 1e-9 {
				t.Errorf("Units = %v, want %v", got[0].Units, tt.wantUnits)
			}
			if got[0].Doses != 3 {
				t.Errorf("Doses = %d, want 3", got[0].Doses)
			}
		})
	}
}
