package model

import (
	"time"
)

// Notification log statuses
const (
	NotificationStatusSent   = "sent"
	NotificationStatusFailed = "failed"
)

// NotificationLog is the append-only audit trail of every notification
// attempt. The email reference is nullable so the log survives record
// deletion.
type NotificationLog struct {
	ID               uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ProcessedEmailID *uint     `json:"processed_email_id" gorm:"index"`
	Channel          string    `json:"channel" gorm:"type:varchar(20);default:pushover"`
	Title            string    `json:"title" gorm:"type:varchar(255)"`
	Message          string    `json:"message" gorm:"type:text"`
	Priority         int       `json:"priority" gorm:"default:0"`
	Status           string    `json:"status" gorm:"type:varchar(20);not null;index"`
	ErrorMsg         string    `json:"error_msg,omitempty" gorm:"type:text"`
	Receipt          string    `json:"receipt,omitempty" gorm:"type:varchar(50)"`
	CreatedAt        time.Time `json:"created_at" gorm:"index"`
}

// TableName specifies the table name for NotificationLog
func (NotificationLog) TableName() string {
	return "notification_logs"
}
