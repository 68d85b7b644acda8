// Package dedup provides the per-account idempotency check that keeps a
// message from being classified twice.
package dedup

import (
	"fmt"

	"gorm.io/gorm"

	"inbox-sentinel/internal/model"
)

// Gate checks whether a message was already processed for an account. It is
// bound to the handle it is given, so a gate over a run transaction sees the
// run's own uncommitted inserts.
type Gate struct {
	db *gorm.DB
}

// NewGate creates a new dedup gate
func NewGate(db *gorm.DB) *Gate {
	return &Gate{db: db}
}

// AlreadyProcessed reports whether a ProcessedEmail exists for the
// (account, message) pair. Checked before classification, which must never
// run twice for the same message.
func (g *Gate) AlreadyProcessed(accountID uint, messageID string) (bool, error) {
	var count int64
	err := g.db.Model(&model.ProcessedEmail{}).
		Where("account_id = ? AND message_id = ?", accountID, messageID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("database error checking processed email: %w", err)
	}
	return count > 0, nil
}
