package models

import "time"

// IntelligenceRecordModel caches the structured intelligence extracted for an
// owner. The payload shape is owned by the extraction prompts; the core
// stores, loads and diffs it without interpreting individual fields.
//
// Exactly one record exists per owner. Previous keeps one generation of
// history: every successful re-extraction shifts Current into Previous and
// bumps Version.
type IntelligenceRecordModel struct {
	Base
	OwnerID     string                 `json:"owner_id"     gorm:"uniqueIndex:idx_intel_owner;not null"`
	OwnerType   OwnerType              `json:"owner_type"   gorm:"uniqueIndex:idx_intel_owner;not null"`
	Current     map[string]interface{} `json:"current"      gorm:"type:longtext;serializer:json;not null"`
	Previous    map[string]interface{} `json:"previous"     gorm:"type:longtext;serializer:json"`
	Version     int                    `json:"version"      gorm:"not null;default:0"`
	ExtractedAt time.Time              `json:"extracted_at"`
}

func (IntelligenceRecordModel) TableName() string { return "intelligence_records" }
