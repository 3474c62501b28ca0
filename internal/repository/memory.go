package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JonnyWalker81/nillabg/internal/models"
)

// MemoryStore is a Store kept entirely in process memory. It backs the
// service tests and dry runs against fixture data.
type MemoryStore struct {
	mu sync.RWMutex

	Entries    []models.Entry
	Treatments []models.Treatment

	buckets      map[int64]*models.TimeBucket // by epoch
	bucketsByID  map[int64]*models.TimeBucket
	types        map[string]*models.InsulinType // by name
	typesByID    map[int64]*models.InsulinType
	glucose      map[int64]*models.GlucoseFact // by entry id
	meals        map[int64]*models.MealFact    // by treatment id
	doses        map[string]*models.InsulinDose
	nextBucketID int64
	nextTypeID   int64
	nextDoseID   int64
	hasEpocDate  bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets:     make(map[int64]*models.TimeBucket),
		bucketsByID: make(map[int64]*models.TimeBucket),
		types:       make(map[string]*models.InsulinType),
		typesByID:   make(map[int64]*models.InsulinType),
		glucose:     make(map[int64]*models.GlucoseFact),
		meals:       make(map[int64]*models.MealFact),
		doses:       make(map[string]*models.InsulinDose),
		hasEpocDate: true,
	}
}

func (s *MemoryStore) Migrate(ctx context.Context) error        { return nil }
func (s *MemoryStore) MigrateStaging(ctx context.Context) error { return nil }

func (s *MemoryStore) EachEntry(ctx context.Context, fn func(*models.Entry) error) error {
	s.mu.RLock()
	rows := append([]models.Entry(nil), s.Entries...)
	s.mu.RUnlock()
	for i := range rows {
		if err := fn(&rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) EachTreatment(ctx context.Context, fn func(*models.Treatment) error) error {
	s.mu.RLock()
	rows := append([]models.Treatment(nil), s.Treatments...)
	s.mu.RUnlock()
	for i := range rows {
		if err := fn(&rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) EnsureEpocDateColumn(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasEpocDate = true
	return nil
}

func (s *MemoryStore) SetTreatmentEpocDate(ctx context.Context, treatmentID int64, epochMillis *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasEpocDate {
		return fmt.Errorf("failed to set epocdate: column missing")
	}
	for i := range s.Treatments {
		if s.Treatments[i].ID == treatmentID {
			s.Treatments[i].EpocDate = epochMillis
		}
	}
	return nil
}

func (s *MemoryStore) FindTimeBucket(ctx context.Context, epoch int64) (*models.TimeBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[epoch]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) CreateTimeBucket(ctx context.Context, bucket *models.TimeBucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[bucket.Epoch]; ok {
		return fmt.Errorf("failed to create time bucket: duplicate epoch %d", bucket.Epoch)
	}
	s.nextBucketID++
	bucket.TimeID = s.nextBucketID
	cp := *bucket
	s.buckets[bucket.Epoch] = &cp
	s.bucketsByID[cp.TimeID] = &cp
	return nil
}

func (s *MemoryStore) FindInsulinType(ctx context.Context, name string) (*models.InsulinType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[name]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) CreateInsulinType(ctx context.Context, insulinType *models.InsulinType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.types[insulinType.Name]; ok {
		return fmt.Errorf("failed to create insulin type: duplicate name %q", insulinType.Name)
	}
	s.nextTypeID++
	insulinType.InsulinTypeID = s.nextTypeID
	cp := *insulinType
	s.types[cp.Name] = &cp
	s.typesByID[cp.InsulinTypeID] = &cp
	return nil
}

func (s *MemoryStore) UpsertGlucose(ctx context.Context, fact *models.GlucoseFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *fact
	cp.Time = nil
	s.glucose[cp.EntryID] = &cp
	return nil
}

func (s *MemoryStore) UpsertMeal(ctx context.Context, fact *models.MealFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *fact
	cp.Time = nil
	if existing, ok := s.meals[cp.TreatmentID]; ok {
		cp.Classification = existing.Classification
	}
	s.meals[cp.TreatmentID] = &cp
	return nil
}

func (s *MemoryStore) SetMealClassification(ctx context.Context, treatmentID int64, class models.MealClass) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.meals[treatmentID]; ok {
		c := class
		m.Classification = &c
	}
	return nil
}

func (s *MemoryStore) UpsertInsulinDose(ctx context.Context, dose *models.InsulinDose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.doses[dose.DoseKey]; ok {
		dose.FactID = existing.FactID
	} else {
		s.nextDoseID++
		dose.FactID = s.nextDoseID
	}
	cp := *dose
	cp.Time = nil
	cp.InsulinType = nil
	s.doses[cp.DoseKey] = &cp
	return nil
}

func (s *MemoryStore) PruneInsulinDoses(ctx context.Context, treatmentID int64, keep []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make(map[string]bool, len(keep))
	for _, k := range keep {
		kept[k] = true
	}
	removed := 0
	for key, d := range s.doses {
		if d.TreatmentID == treatmentID && !kept[key] {
			delete(s.doses, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) DeleteInsulinDose(ctx context.Context, factID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, d := range s.doses {
		if d.FactID == factID {
			delete(s.doses, key)
		}
	}
	return nil
}

func (s *MemoryStore) ListMeals(ctx context.Context, r models.DateRange) ([]models.MealRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []models.MealRow
	for _, m := range s.meals {
		b, ok := s.bucketsByID[m.TimeID]
		if !ok || !r.Includes(b.Date) {
			continue
		}
		row := models.MealRow{
			TreatmentID: m.TreatmentID,
			TS:          m.TS,
			TimeID:      m.TimeID,
			Carbs:       m.Carbs,
			Protein:     m.Protein,
			Fat:         m.Fat,
			Hour:        b.Hour,
			Date:        b.Date,
		}
		if m.Classification != nil {
			c := *m.Classification
			row.Classification = &c
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TS != rows[j].TS {
			return rows[i].TS < rows[j].TS
		}
		return rows[i].TreatmentID < rows[j].TreatmentID
	})
	return rows, nil
}

func (s *MemoryStore) ListDoses(ctx context.Context, r models.DateRange) ([]models.DoseRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []models.DoseRow
	for _, d := range s.doses {
		b, ok := s.bucketsByID[d.TimeID]
		if !ok || !r.Includes(b.Date) {
			continue
		}
		row := models.DoseRow{
			FactID:      d.FactID,
			TreatmentID: d.TreatmentID,
			TS:          d.TS,
			Units:       d.Units,
			Class:       models.InsulinClassUnknown,
		}
		if t, ok := s.typesByID[d.InsulinTypeID]; ok {
			row.Name = t.Name
			row.Class = t.Class
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TS != rows[j].TS {
			return rows[i].TS < rows[j].TS
		}
		return rows[i].FactID < rows[j].FactID
	})
	return rows, nil
}

func (s *MemoryStore) ListGlucose(ctx context.Context, r models.DateRange) ([]models.GlucoseFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []models.GlucoseFact
	for _, g := range s.glucose {
		b, ok := s.bucketsByID[g.TimeID]
		if !ok || !r.Includes(b.Date) {
			continue
		}
		rows = append(rows, *g)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TS != rows[j].TS {
			return rows[i].TS < rows[j].TS
		}
		return rows[i].EntryID < rows[j].EntryID
	})
	return rows, nil
}

func (s *MemoryStore) SumBolusUnits(ctx context.Context, w models.Window) (float64, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var units float64
	n := 0
	for _, d := range s.doses {
		if !w.Contains(d.TS) || s.classOf(d) != models.InsulinClassBolus {
			continue
		}
		n++
		if d.Units != nil {
			units += *d.Units
		}
	}
	return units, n, nil
}

func (s *MemoryStore) HasDose(ctx context.Context, w models.Window, class models.InsulinClass) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.doses {
		if !w.Contains(d.TS) {
			continue
		}
		if class == "" || s.classOf(d) == class {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) AverageGlucose(ctx context.Context, w models.Window) (*float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum float64
	n := 0
	for _, g := range s.glucose {
		if g.SGV == nil || !w.Contains(g.TS) {
			continue
		}
		sum += float64(*g.SGV)
		n++
	}
	if n == 0 {
		return nil, nil
	}
	avg := sum / float64(n)
	return &avg, nil
}

// Glucose returns the stored reading for an entry, for assertions
func (s *MemoryStore) Glucose(entryID int64) (models.GlucoseFact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.glucose[entryID]
	if !ok {
		return models.GlucoseFact{}, false
	}
	return *g, true
}

// Meal returns the stored meal fact for a treatment, for assertions
func (s *MemoryStore) Meal(treatmentID int64) (models.MealFact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meals[treatmentID]
	if !ok {
		return models.MealFact{}, false
	}
	return *m, true
}

// Dose returns the stored dose for a dose key, for assertions
func (s *MemoryStore) Dose(key string) (models.InsulinDose, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.doses[key]
	if !ok {
		return models.InsulinDose{}, false
	}
	return *d, true
}

// Counts returns the number of rows per warehouse table
func (s *MemoryStore) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		"dim_time":         len(s.buckets),
		"dim_insulin_type": len(s.types),
		"fact_glucose":     len(s.glucose),
		"fact_meal":        len(s.meals),
		"fact_insulin":     len(s.doses),
	}
}

func (s *MemoryStore) classOf(d *models.InsulinDose) models.InsulinClass {
	if t, ok := s.typesByID[d.InsulinTypeID]; ok {
		return t.Class
	}
	return models.InsulinClassUnknown
}
