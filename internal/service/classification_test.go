package service

import (
	"context"
	"testing"

	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/models"
)

func TestInsulinClassifier_Classify(t *testing.T) {
	c := testInsulinClassifier()

	tests := []struct {
		name string
		want models.InsulinClass
	}{
		{"NovoRapid", models.InsulinClassBolus},
		{"novarap pen", models.InsulinClassBolus},
		{"FIASP", models.InsulinClassBolus},
		{"Tresiba FlexTouch", models.InsulinClassBasal},
		{"lantus", models.InsulinClassBasal},
		{"Unknown", models.InsulinClassUnknown},
		{"", models.InsulinClassUnknown},
		{"   ", models.InsulinClassUnknown},
	}

	for _, tt := range tests {
		if got := c.Classify(tt.name); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMealClassifier_Classify(t *testing.T) {
	c := NewMealClassifier(DefaultMealThresholds())

	tests := []struct {
		name    string
		carbs   *float64
		protein *float64
		fat     *float64
		nearby  bool
		want    models.MealClass
	}{
		{name: "4 g without insulin is hypo", carbs: f64(4), protein: f64(0), fat: f64(0), want: models.MealClassHypo},
		{name: "5 g with insulin is snack", carbs: f64(5), protein: f64(0), fat: f64(0), nearby: true, want: models.MealClassSnack},
		{name: "7 g with insulin is meal", carbs: f64(7), protein: f64(0), fat: f64(0), nearby: true, want: models.MealClassMeal},
		{name: "4 g with insulin is meal", carbs: f64(4), nearby: true, want: models.MealClassMeal},
		{name: "3 g with insulin but no macros is hypo", carbs: f64(3), nearby: true, want: models.MealClassHypo},
		{name: "3 g with protein and insulin is meal", carbs: f64(3), protein: f64(10), nearby: true, want: models.MealClassMeal},
		{name: "uncovered large meal is hypo", carbs: f64(60), protein: f64(20), fat: f64(15), want: models.MealClassHypo},
		{name: "covered large meal is meal", carbs: f64(60), protein: f64(20), nearby: true, want: models.MealClassMeal},
		{name: "nil macros count as zero", want: models.MealClassHypo},
		{name: "protein only without insulin is meal", protein: f64(25), want: models.MealClassMeal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.carbs, tt.protein, tt.fat, tt.nearby)
			if got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassificationService_ClassifyMeals(t *testing.T) {
	ctx := context.Background()
	store := buildStore(t, nil, []models.Treatment{
		mealAt(1, at(0), 45),
		doseAt(2, at(20), "Fiasp", 4),
		mealAt(3, at(180), 15),
		mealAt(4, at(300), 6),
		doseAt(5, at(330), "Tresiba", 14), // basal, exactly 30 min after meal 4
	})

	svc := NewClassificationService(store, NewMealClassifier(DefaultMealThresholds()), logger.Nop())
	counts, err := svc.ClassifyMeals(ctx, models.DateRange{})
	if err != nil {
		t.Fatalf("ClassifyMeals() error = %v", err)
	}

	want := map[int64]models.MealClass{
		1: models.MealClassMeal,
		3: models.MealClassHypo,
		4: models.MealClassSnack,
	}
	for id, class := range want {
		m, ok := store.Meal(id)
		if !ok {
			t.Fatalf("meal %d missing", id)
		}
		if m.Classification == nil || *m.Classification != class {
			t.Errorf("meal %d classification = %v, want %v", id, m.Classification, class)
		}
	}
	if counts[models.MealClassMeal] != 1 || counts[models.MealClassHypo] != 1 || counts[models.MealClassSnack] != 1 {
		t.Errorf("counts = %v, want one of each", counts)
	}
}

func TestClassificationService_ClassifyAt(t *testing.T) {
	ctx := context.Background()
	store := buildStore(t, nil, []models.Treatment{doseAt(1, base, "NovoRapid", 2)})
	svc := NewClassificationService(store, NewMealClassifier(DefaultMealThresholds()), logger.Nop())

	got, err := svc.ClassifyAt(ctx, f64(30), nil, nil, at(31).Unix())
	if err != nil {
		t.Fatalf("ClassifyAt() error = %v", err)
	}
	if got != models.MealClassHypo {
		t.Errorf("ClassifyAt(31 min after dose) = %v, want hypo", got)
	}

	got, err = svc.ClassifyAt(ctx, f64(30), nil, nil, at(-30).Unix())
	if err != nil {
		t.Fatalf("ClassifyAt() error = %v", err)
	}
	if got != models.MealClassMeal {
		t.Errorf("ClassifyAt(30 min before dose) = %v, want meal", got)
	}
}
