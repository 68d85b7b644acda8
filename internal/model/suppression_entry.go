package model

import (
	"time"
)

// Suppression lists
const (
	ListAllow = "allow"
	ListDeny  = "deny"
)

// Suppression entry kinds
const (
	EntryTypeEmail  = "email"
	EntryTypeDomain = "domain"
)

// SuppressionEntry is one allow-list or deny-list entry. Deny entries
// short-circuit the pipeline; allow entries boost classification.
type SuppressionEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	List      string    `json:"list" gorm:"type:varchar(10);not null;uniqueIndex:uq_suppression_list_type_value"`
	EntryType string    `json:"entry_type" gorm:"type:varchar(20);not null;uniqueIndex:uq_suppression_list_type_value"`
	Value     string    `json:"value" gorm:"type:varchar(255);not null;uniqueIndex:uq_suppression_list_type_value"`
	Notes     string    `json:"notes,omitempty" gorm:"type:text"`
	IsActive  bool      `json:"is_active" gorm:"default:true;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for SuppressionEntry
func (SuppressionEntry) TableName() string {
	return "suppression_entries"
}
