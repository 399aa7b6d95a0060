package models

import (
	"time"

	"folio/internal/uuid"

	"gorm.io/gorm"
)

// SnapshotEntry is one symbol's share of the scope's value at snapshot time.
type SnapshotEntry struct {
	Symbol     string  `json:"symbol"`
	Percentage float64 `json:"percentage"`
	Value      float64 `json:"value"`
}

// AllocationSnapshot records the symbol-allocation percentages for a scope.
// One is taken each time a sell plan reaches full completion. Immutable
// time-series data, so no Base embed and no soft deletes.
type AllocationSnapshot struct {
	ID         string          `gorm:"type:uuid;primaryKey" json:"id"`
	ScopeKey   string          `gorm:"not null;index" json:"scope_key"`
	RecordedAt time.Time       `gorm:"not null" json:"recorded_at"`
	Entries    []SnapshotEntry `gorm:"serializer:json" json:"entries"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (s *AllocationSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New()
	}
	return nil
}
