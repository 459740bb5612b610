package models

// MeetingModel holds the transcript of an uploaded meeting recording.
// Audio transcription happens upstream; the core only sees transcript text.
type MeetingModel struct {
	Base
	Title      string `json:"title"       gorm:"not null"`
	Transcript string `json:"transcript"  gorm:"type:longtext"`
	SourceName string `json:"source_name"`
	UserID     string `json:"user_id"     gorm:"index"`
}

func (MeetingModel) TableName() string { return "meetings" }
