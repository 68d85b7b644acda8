package model

import (
	"math"
	"time"
)

// ProcessedEmail records one triaged message per (account, message) pair.
// The unique index is the dedup gate: a message is classified at most once.
type ProcessedEmail struct {
	ID                 uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	AccountID          uint       `json:"account_id" gorm:"not null;uniqueIndex:uq_processed_account_message"`
	MessageID          string     `json:"message_id" gorm:"type:varchar(255);not null;uniqueIndex:uq_processed_account_message"`
	ThreadID           string     `json:"thread_id" gorm:"type:varchar(255)"`
	SenderEmail        string     `json:"sender_email" gorm:"type:varchar(255);not null;index"`
	SenderName         string     `json:"sender_name" gorm:"type:varchar(255)"`
	Subject            string     `json:"subject" gorm:"type:text"`
	ReceivedAt         *time.Time `json:"received_at" gorm:"index"`
	IsAllowlisted      bool       `json:"is_allowlisted" gorm:"default:false"`
	ImportanceScore    float64    `json:"importance_score" gorm:"type:decimal(3,2)"`
	ImportanceReason   string     `json:"importance_reason" gorm:"type:text"`
	NotificationSent   bool       `json:"notification_sent" gorm:"default:false;index"`
	NotificationSentAt *time.Time `json:"notification_sent_at"`
	DetectedDeadline   *time.Time `json:"detected_deadline"`
	DeadlineText       string     `json:"deadline_text" gorm:"type:varchar(255)"`
	DigestEligible     bool       `json:"digest_eligible" gorm:"default:false;index"`
	DigestSent         bool       `json:"digest_sent" gorm:"default:false;index"`
	DigestSentAt       *time.Time `json:"digest_sent_at"`
	ProcessedAt        time.Time  `json:"processed_at"`

	Account       *Account          `json:"-" gorm:"foreignKey:AccountID"`
	Notifications []NotificationLog `json:"-" gorm:"foreignKey:ProcessedEmailID"`
}

// TableName specifies the table name for ProcessedEmail
func (ProcessedEmail) TableName() string {
	return "processed_emails"
}

// RoundScore rounds an importance score to the two-decimal fixed point
// precision used by the decimal(3,2) columns. Scores are rounded at write
// time so they survive persistence without drift.
func RoundScore(score float64) float64 {
	return math.Round(score*100) / 100
}
