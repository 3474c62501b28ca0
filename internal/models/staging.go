package models

import (
	"strconv"
	"strings"
)

// Entry is a row of the flat `entries` staging table replicated from the
// CGM document store. Column names follow the source documents.
type Entry struct {
	ID         int64    `gorm:"column:mysqlid;primaryKey;autoIncrement" json:"mysqlid"`
	DocID      *string  `gorm:"column:_id;type:varchar(255)" json:"_id,omitempty"`
	Date       *float64 `gorm:"column:date" json:"date,omitempty"` // epoch, usually milliseconds
	DateString *string  `gorm:"column:dateString;type:text" json:"dateString,omitempty"`
	SysTime    *string  `gorm:"column:sysTime;type:text" json:"sysTime,omitempty"`
	SGV        *int     `gorm:"column:sgv" json:"sgv,omitempty"`
	Delta      *float64 `gorm:"column:delta" json:"delta,omitempty"`
	Direction  *string  `gorm:"column:direction;type:text" json:"direction,omitempty"`
	Device     *string  `gorm:"column:device;type:text" json:"device,omitempty"`
	Type       *string  `gorm:"column:type;type:text" json:"type,omitempty"`
	UTCOffset  *int     `gorm:"column:utcOffset" json:"utcOffset,omitempty"`
}

func (Entry) TableName() string { return "entries" }

// Treatment is a row of the flat `treatments` staging table.
// Protein and fat arrive as free text from the source documents.
type Treatment struct {
	ID                int64    `gorm:"column:mysqlid;primaryKey;autoIncrement" json:"mysqlid"`
	DocID             *string  `gorm:"column:_id;type:varchar(255)" json:"_id,omitempty"`
	CreatedAt         *string  `gorm:"column:created_at;type:text" json:"created_at,omitempty"`
	Timestamp         *string  `gorm:"column:timestamp;type:text" json:"timestamp,omitempty"`
	EpocDate          *int64   `gorm:"column:epocdate" json:"epocdate,omitempty"` // milliseconds, offset already applied
	EventType         *string  `gorm:"column:eventType;type:text" json:"eventType,omitempty"`
	Carbs             *float64 `gorm:"column:carbs" json:"carbs,omitempty"`
	Protein           *string  `gorm:"column:protein;type:text" json:"protein,omitempty"`
	Fat               *string  `gorm:"column:fat;type:text" json:"fat,omitempty"`
	Insulin           *float64 `gorm:"column:insulin" json:"insulin,omitempty"`
	InsulinInjections *string  `gorm:"column:insulinInjections;type:text" json:"insulinInjections,omitempty"`
	Notes             *string  `gorm:"column:notes;type:text" json:"notes,omitempty"`
	EnteredBy         *string  `gorm:"column:enteredBy;type:text" json:"enteredBy,omitempty"`
	UTCOffset         *int     `gorm:"column:utcOffset" json:"utcOffset,omitempty"`
}

func (Treatment) TableName() string { return "treatments" }

// IsMeal reports whether the event type names a meal
func (t *Treatment) IsMeal() bool {
	return t.EventType != nil && strings.Contains(strings.ToLower(*t.EventType), "meal")
}

// IsPriming reports whether the treatment notes flag a priming shot
func (t *Treatment) IsPriming() bool {
	return t.Notes != nil && strings.Contains(strings.ToLower(*t.Notes), "priming")
}

// ProteinGrams returns protein as a number, nil when absent or not numeric
func (t *Treatment) ProteinGrams() *float64 {
	return parseGrams(t.Protein)
}

// FatGrams returns fat as a number, nil when absent or not numeric
func (t *Treatment) FatGrams() *float64 {
	return parseGrams(t.Fat)
}

func parseGrams(s *string) *float64 {
	if s == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil {
		return nil
	}
	return &v
}
