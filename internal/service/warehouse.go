package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/models"
	"github.com/JonnyWalker81/nillabg/internal/repository"
	"github.com/JonnyWalker81/nillabg/internal/timenorm"
)

// WarehouseOptions holds the source timezone skew of the staging tables
type WarehouseOptions struct {
	EntryOffsetMinutes     int
	TreatmentOffsetMinutes int
}

type warehouseService struct {
	store   repository.Store
	insulin *InsulinClassifier
	opts    WarehouseOptions
	log     logger.Logger

	mu      sync.Mutex
	buckets map[int64]int64 // hour epoch -> time_id
	types   map[string]*models.InsulinType
}

// NewWarehouseService creates a new warehouse builder
func NewWarehouseService(store repository.Store, insulin *InsulinClassifier, opts WarehouseOptions, log logger.Logger) WarehouseService {
	return &warehouseService{
		store:   store,
		insulin: insulin,
		opts:    opts,
		log:     log.With(logger.String("service", "warehouse")),
		buckets: make(map[int64]int64),
		types:   make(map[string]*models.InsulinType),
	}
}

func (s *warehouseService) EnsureSchema(ctx context.Context) error {
	return s.store.Migrate(ctx)
}

func (s *warehouseService) TimeBucket(ctx context.Context, t time.Time) (int64, error) {
	hour := timenorm.TruncateHour(t)
	epoch := timenorm.Epoch(hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.buckets[epoch]; ok {
		return id, nil
	}

	bucket, err := s.store.FindTimeBucket(ctx, epoch)
	if err != nil {
		return 0, err
	}
	if bucket == nil {
		bucket = &models.TimeBucket{
			TS:    hour,
			Epoch: epoch,
			Date:  hour.Format("2006-01-02"),
			Hour:  hour.Hour(),
			Dow:   timenorm.MondayWeekday(hour),
			Month: int(hour.Month()),
			Year:  hour.Year(),
		}
		if err := s.store.CreateTimeBucket(ctx, bucket); err != nil {
			return 0, err
		}
	}

	s.buckets[epoch] = bucket.TimeID
	return bucket.TimeID, nil
}

// InsulinType looks names up exactly as given; ParseInjections already trims them.
func (s *warehouseService) InsulinType(ctx context.Context, name string) (*models.InsulinType, error) {
	if name == "" {
		name = models.UnknownInsulinName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if it, ok := s.types[name]; ok {
		return it, nil
	}

	it, err := s.store.FindInsulinType(ctx, name)
	if err != nil {
		return nil, err
	}
	if it == nil {
		it = &models.InsulinType{Name: name, Class: s.insulin.Classify(name)}
		if err := s.store.CreateInsulinType(ctx, it); err != nil {
			return nil, err
		}
		s.log.WithContext(ctx).Debug("insulin type created",
			logger.String("name", it.Name),
			logger.String("class", string(it.Class)),
		)
	}

	s.types[name] = it
	return it, nil
}

func (s *warehouseService) LoadGlucoseFacts(ctx context.Context) (*models.LoadStats, error) {
	log := s.log.WithContext(ctx)
	stats := &models.LoadStats{}

	err := s.store.EachEntry(ctx, func(e *models.Entry) error {
		stats.Rows++
		ts, ok := EntryTime(e, s.opts.EntryOffsetMinutes)
		if !ok {
			stats.Skipped++
			log.Debug("entry skipped: no usable timestamp", logger.Int64("entry_id", e.ID))
			return nil
		}

		timeID, err := s.TimeBucket(ctx, ts)
		if err != nil {
			return err
		}

		fact := &models.GlucoseFact{
			EntryID:   e.ID,
			TS:        timenorm.Epoch(ts),
			TimeID:    timeID,
			SGV:       e.SGV,
			Delta:     e.Delta,
			Direction: e.Direction,
		}
		if err := s.store.UpsertGlucose(ctx, fact); err != nil {
			return err
		}
		stats.Loaded++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load glucose facts: %w", err)
	}

	log.Info("glucose facts loaded",
		logger.Int("rows", stats.Rows),
		logger.Int("loaded", stats.Loaded),
		logger.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

func (s *warehouseService) LoadTreatmentFacts(ctx context.Context) (*models.LoadStats, error) {
	log := s.log.WithContext(ctx)
	stats := &models.LoadStats{}

	err := s.store.EachTreatment(ctx, func(t *models.Treatment) error {
		stats.Rows++
		ts, ok := TreatmentTime(t, s.opts.TreatmentOffsetMinutes)
		if !ok {
			stats.Skipped++
			log.Debug("treatment skipped: no usable timestamp", logger.Int64("treatment_id", t.ID))
			return nil
		}

		timeID, err := s.TimeBucket(ctx, ts)
		if err != nil {
			return err
		}
		epoch := timenorm.Epoch(ts)

		if t.IsMeal() {
			meal := &models.MealFact{
				TreatmentID: t.ID,
				TS:          epoch,
				TimeID:      timeID,
				Carbs:       t.Carbs,
				Protein:     t.ProteinGrams(),
				Fat:         t.FatGrams(),
			}
			if err := s.store.UpsertMeal(ctx, meal); err != nil {
				return err
			}
			stats.Meals++
		}

		var payload string
		if t.InsulinInjections != nil {
			payload = *t.InsulinInjections
		}
		keep := []string{}
		for i, inj := range ParseInjections(payload) {
			if t.IsPriming() || inj.Priming {
				stats.Priming++
				continue
			}
			it, err := s.InsulinType(ctx, inj.Name)
			if err != nil {
				return err
			}
			dose := &models.InsulinDose{
				DoseKey:       models.DoseKey(t.ID, i),
				TreatmentID:   t.ID,
				Ordinal:       i,
				TS:            epoch,
				TimeID:        timeID,
				InsulinTypeID: it.InsulinTypeID,
				Units:         inj.Units,
			}
			if err := s.store.UpsertInsulinDose(ctx, dose); err != nil {
				return err
			}
			keep = append(keep, dose.DoseKey)
			stats.Doses++
		}

		removed, err := s.store.PruneInsulinDoses(ctx, t.ID, keep)
		if err != nil {
			return err
		}
		stats.Removed += removed
		stats.Loaded++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load treatment facts: %w", err)
	}

	log.Info("treatment facts loaded",
		logger.Int("rows", stats.Rows),
		logger.Int("loaded", stats.Loaded),
		logger.Int("skipped", stats.Skipped),
		logger.Int("meals", stats.Meals),
		logger.Int("doses", stats.Doses),
		logger.Int("priming", stats.Priming),
		logger.Int("removed", stats.Removed),
	)
	return stats, nil
}

func (s *warehouseService) Build(ctx context.Context) (*models.BuildSummary, error) {
	start := time.Now()
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	glucose, err := s.LoadGlucoseFacts(ctx)
	if err != nil {
		return nil, err
	}
	treatments, err := s.LoadTreatmentFacts(ctx)
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Info("warehouse built", logger.Duration("elapsed", time.Since(start)))
	return &models.BuildSummary{Glucose: *glucose, Treatments: *treatments}, nil
}

// EntryTime normalizes the timestamp of an entries row: date, then sysTime,
// then dateString. The row's utcOffset wins over defaultOffset when present.
func EntryTime(e *models.Entry, defaultOffset int) (time.Time, bool) {
	offset := defaultOffset
	if e.UTCOffset != nil {
		offset = *e.UTCOffset
	}
	return timenorm.First(offset, e.Date, e.SysTime, e.DateString)
}

// TreatmentTime normalizes the timestamp of a treatments row. epocdate already
// carries the offset; created_at and timestamp get TreatmentOffset added.
func TreatmentTime(t *models.Treatment, defaultOffset int) (time.Time, bool) {
	if t.EpocDate != nil {
		if ts, ok := timenorm.Normalize(*t.EpocDate, 0); ok {
			return ts, true
		}
	}
	return timenorm.First(TreatmentOffset(t, defaultOffset), t.CreatedAt, t.Timestamp)
}

// TreatmentOffset is the row's utcOffset when present, else defaultOffset
func TreatmentOffset(t *models.Treatment, defaultOffset int) int {
	if t.UTCOffset != nil {
		return *t.UTCOffset
	}
	return defaultOffset
}

// Injection is one element of a treatment's insulinInjections payload
type Injection struct {
	Name    string
	Units   *float64
	Priming bool
}

var (
	injectionNameKeys  = []string{"insulin", "insulinType", "name"}
	injectionUnitsKeys = []string{"units", "amount", "dose"}
)

// ParseInjections decodes a JSON list of injection records or a single record.
// Malformed payloads yield no injections; non-object elements are ignored.
func ParseInjections(payload string) []Injection {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}

	var raw any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return nil
	}

	out := make([]Injection, 0, len(items))
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		inj := Injection{}
		for _, k := range injectionNameKeys {
			if s, ok := rec[k].(string); ok && strings.TrimSpace(s) != "" {
				inj.Name = strings.TrimSpace(s)
				break
			}
		}
		inj.Units = injectionUnits(rec)
		for _, v := range rec {
			if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), "priming") {
				inj.Priming = true
				break
			}
		}
		out = append(out, inj)
	}
	return out
}

// injectionUnits takes the first non-zero of units, amount and dose. When none
// is set it keeps a zero dose, then falls back to value.
func injectionUnits(rec map[string]any) *float64 {
	for _, k := range injectionUnitsKeys {
		if u, ok := toFloat(rec[k]); ok && u != 0 {
			return &u
		}
	}
	for _, k := range []string{"dose", "value"} {
		if u, ok := toFloat(rec[k]); ok {
			return &u
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
