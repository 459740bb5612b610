package models

// PageRecordModel is a finalized decision page. An owner accumulates one per
// finished render; the record keeps the configuration it was rendered with
// and the intelligence version it consumed.
type PageRecordModel struct {
	Base
	OwnerID             string    `json:"owner_id"             gorm:"index;not null"`
	OwnerType           OwnerType `json:"owner_type"           gorm:"index;not null"`
	Style               string    `json:"style"                gorm:"not null"`
	Language            string    `json:"language"             gorm:"not null"`
	PageLimit           int       `json:"page_limit"           gorm:"default:2"`
	HTML                string    `json:"html"                 gorm:"type:longtext;not null"`
	IntelligenceVersion int       `json:"intelligence_version" gorm:"not null"`
	Edited              bool      `json:"edited"               gorm:"default:false"`
	ArchiveURL          string    `json:"archive_url,omitempty"`
	UserID              string    `json:"user_id"              gorm:"index"`
}

func (PageRecordModel) TableName() string { return "page_records" }
