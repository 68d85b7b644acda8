package model

import (
	"time"
)

// Learned pattern kinds
const (
	PatternTypeSender = "sender"
	PatternTypeDomain = "domain"
)

// LearnedPattern stores a feedback-derived score correction keyed by sender
// or domain. Updated in place as feedback accrues, never deleted.
type LearnedPattern struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	PatternType     string    `json:"pattern_type" gorm:"type:varchar(20);not null;uniqueIndex:uq_pattern_type_value"`
	PatternValue    string    `json:"pattern_value" gorm:"type:varchar(255);not null;uniqueIndex:uq_pattern_type_value"`
	ScoreAdjustment float64   `json:"score_adjustment" gorm:"type:decimal(3,2);not null"`
	FeedbackCount   int       `json:"feedback_count" gorm:"default:1"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for LearnedPattern
func (LearnedPattern) TableName() string {
	return "learned_patterns"
}
