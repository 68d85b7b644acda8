package model

import (
	"time"
)

// Account stores OAuth credentials and sync state for each monitored mailbox
type Account struct {
	ID            uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Email         string     `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	DisplayName   string     `json:"display_name" gorm:"type:varchar(255)"`
	AccessToken   string     `json:"-" gorm:"type:text;not null"`
	RefreshToken  string     `json:"-" gorm:"type:text;not null"`
	TokenExpiry   *time.Time `json:"-"`
	IsActive      bool       `json:"is_active" gorm:"default:true;index"`
	LastCheck     *time.Time `json:"last_check"`
	LastHistoryID string     `json:"last_history_id" gorm:"type:varchar(50)"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "accounts"
}

// IsTokenExpired reports whether the access token needs a refresh.
func (a *Account) IsTokenExpired() bool {
	if a.TokenExpiry == nil {
		return true
	}
	return !time.Now().Before(*a.TokenExpiry)
}
