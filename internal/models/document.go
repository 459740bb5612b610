package models

// DocumentModel holds the decoded text of an uploaded document.
// Binary formats (PDF/DOCX) are decoded upstream; the core only sees raw text.
type DocumentModel struct {
	Base
	Title      string `json:"title"       gorm:"not null"`
	RawText    string `json:"raw_text"    gorm:"type:longtext"`
	SourceName string `json:"source_name"`
	UserID     string `json:"user_id"     gorm:"index"`
}

func (DocumentModel) TableName() string { return "documents" }
