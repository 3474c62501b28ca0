package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/models"
	"github.com/JonnyWalker81/nillabg/internal/repository"
)

// base is a Sunday morning; every fixture is placed relative to it
var base = time.Date(2024, 7, 7, 8, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func f64(v float64) *float64 { return &v }
func str(s string) *string   { return &s }

func millis(t time.Time) *int64 {
	v := t.UnixMilli()
	return &v
}

func reading(id int64, t time.Time, sgv int) models.Entry {
	date := float64(t.UnixMilli())
	offset := 0
	return models.Entry{ID: id, Date: &date, SGV: &sgv, UTCOffset: &offset}
}

func mealAt(id int64, t time.Time, carbs float64) models.Treatment {
	return models.Treatment{
		ID:        id,
		EventType: str("Meal Bolus"),
		EpocDate:  millis(t),
		Carbs:     f64(carbs),
	}
}

func doseAt(id int64, t time.Time, name string, units float64) models.Treatment {
	return models.Treatment{
		ID:                id,
		EventType:         str("Correction Bolus"),
		EpocDate:          millis(t),
		InsulinInjections: str(fmt.Sprintf(`[{"insulin":%q,"units":%v}]`, name, units)),
	}
}

func testInsulinClassifier() *InsulinClassifier {
	return NewInsulinClassifier(
		[]string{"novorapid", "novarap", "fiasp", "humalog", "apidra", "lyumjev"},
		[]string{"tresiba", "lantus", "levemir", "toujeo", "abasaglar"},
	)
}

func newTestWarehouse(store repository.Store) WarehouseService {
	return NewWarehouseService(store, testInsulinClassifier(), WarehouseOptions{
		EntryOffsetMinutes:     120,
		TreatmentOffsetMinutes: 120,
	}, logger.Nop())
}

// buildStore loads the staging rows into a fresh in-memory warehouse
func buildStore(t *testing.T, entries []models.Entry, treatments []models.Treatment) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore()
	store.Entries = entries
	store.Treatments = treatments
	if _, err := newTestWarehouse(store).Build(context.Background()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return store
}

// standardMeal is a 30 g meal at base covered by 3 U five minutes later, with
// a 90 mg/dL pre average and a 140 mg/dL post average
func standardMeal() ([]models.Entry, []models.Treatment) {
	entries := []models.Entry{
		reading(1, at(-10), 85),
		reading(2, at(-5), 95),
		reading(3, at(125), 130),
		reading(4, at(130), 150),
	}
	treatments := []models.Treatment{
		mealAt(100, base, 30),
		doseAt(101, at(5), "NovoRapid", 3),
	}
	return entries, treatments
}
