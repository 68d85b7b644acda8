package model

import (
	"time"
)

// Feedback kinds
const (
	FeedbackNotImportant = "not_important"
	FeedbackImportant    = "important"
)

// FeedbackEvent records one user correction on a processed email's
// importance rating.
type FeedbackEvent struct {
	ID               uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ProcessedEmailID uint      `json:"processed_email_id" gorm:"not null;index"`
	FeedbackType     string    `json:"feedback_type" gorm:"type:varchar(20);not null;index"`
	OriginalScore    float64   `json:"original_score" gorm:"type:decimal(3,2)"`
	CreatedAt        time.Time `json:"created_at" gorm:"index"`
}

// TableName specifies the table name for FeedbackEvent
func (FeedbackEvent) TableName() string {
	return "feedback_events"
}
