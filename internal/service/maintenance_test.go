package service

import (
	"context"
	"testing"
	"time"

	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/models"
	"github.com/JonnyWalker81/nillabg/internal/repository"
)

func newTestMaintenance(store repository.Store) MaintenanceService {
	return NewMaintenanceService(store, MaintenanceOptions{
		EntryOffsetMinutes:     120,
		TreatmentOffsetMinutes: 120,
		CleanupMaxUnits:        1,
		CleanupWindow:          5 * time.Minute,
	}, logger.Nop())
}

func TestMaintenance_BackfillEpocDate(t *testing.T) {
	ctx := context.Background()
	zero := 0
	store := repository.NewMemoryStore()
	store.Treatments = []models.Treatment{
		{ID: 1, CreatedAt: str("2024-07-07T06:00:00Z")},
		{ID: 2, CreatedAt: str("whenever"), EpocDate: millis(base)},
		{ID: 3},
		{ID: 4, CreatedAt: str("2024-07-07T08:00:00Z"), UTCOffset: &zero},
	}

	stats, err := newTestMaintenance(store).BackfillEpocDate(ctx)
	if err != nil {
		t.Fatalf("BackfillEpocDate() error = %v", err)
	}
	if stats.Rows != 4 || stats.Loaded != 2 || stats.Skipped != 2 {
		t.Errorf("stats = %+v", stats)
	}

	if got := store.Treatments[0].EpocDate; got == nil || *got != base.UnixMilli() {
		t.Errorf("treatment 1 epocdate = %v, want %d", got, base.UnixMilli())
	}
	if got := store.Treatments[1].EpocDate; got != nil {
		t.Errorf("treatment 2 epocdate = %v, want NULL for unparseable created_at", *got)
	}
	if got := store.Treatments[3].EpocDate; got == nil || *got != base.UnixMilli() {
		t.Errorf("treatment 4 epocdate = %v, want %d from its own utcOffset", got, base.UnixMilli())
	}
}

func TestMaintenance_CleanupInsulin(t *testing.T) {
	ctx := context.Background()
	store := buildStore(t, nil, []models.Treatment{
		doseAt(1, at(0), "NovoRapid", 6),
		doseAt(2, at(3), "NovoRapid", 1),    // small, next to dose 1
		doseAt(3, at(60), "NovoRapid", 0.5), // small, alone
		doseAt(4, at(120), "NovoRapid", 1),  // small pair within 5 min
		doseAt(5, at(125), "NovoRapid", 0.5),
		doseAt(6, at(200), "Tresiba", 14),
	})
	svc := newTestMaintenance(store)

	dry, err := svc.CleanupInsulin(ctx, true)
	if err != nil {
		t.Fatalf("CleanupInsulin(dry run) error = %v", err)
	}
	if len(dry.Removed) != 3 || dry.Examined != 6 {
		t.Errorf("dry run removed %d of %d, want 3 of 6", len(dry.Removed), dry.Examined)
	}
	if n := store.Counts()["fact_insulin"]; n != 6 {
		t.Fatalf("dry run deleted rows: %d left", n)
	}

	report, err := svc.CleanupInsulin(ctx, false)
	if err != nil {
		t.Fatalf("CleanupInsulin() error = %v", err)
	}
	removed := map[int64]bool{}
	for _, d := range report.Removed {
		removed[d.TreatmentID] = true
	}
	for _, id := range []int64{2, 4, 5} {
		if !removed[id] {
			t.Errorf("dose of treatment %d was kept, want removed", id)
		}
	}
	if n := store.Counts()["fact_insulin"]; n != 3 {
		t.Errorf("fact_insulin rows = %d, want 3", n)
	}
}

func TestMaintenance_Verify(t *testing.T) {
	ctx := context.Background()
	entries, treatments := standardMeal()
	store := buildStore(t, entries, treatments)
	svc := newTestMaintenance(store)

	report, err := svc.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !report.OK() || report.Checked != 6 || report.Missing != 0 {
		t.Errorf("clean warehouse report = %+v", report)
	}

	// shift the staging meal after the build; the fact no longer matches
	store.Treatments[0].EpocDate = millis(at(7))
	store.Entries = append(store.Entries, reading(99, at(1), 100))

	report, err = svc.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(report.Mismatches) != 1 {
		t.Fatalf("mismatches = %+v, want 1", report.Mismatches)
	}
	m := report.Mismatches[0]
	if m.Table != "fact_meal" || m.ID != 100 || m.Expected != at(7).Unix() || m.Stored != base.Unix() {
		t.Errorf("mismatch = %+v", m)
	}
	if report.Missing != 1 {
		t.Errorf("missing = %d, want 1", report.Missing)
	}
}
