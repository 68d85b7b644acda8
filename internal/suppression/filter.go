package suppression

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"inbox-sentinel/internal/model"
)

// Filter answers allow-list and deny-list lookups for sender addresses.
// Lookups are read-only; entries are managed through the HTTP API.
type Filter struct {
	db *gorm.DB
}

// NewFilter creates a new suppression filter
func NewFilter(db *gorm.DB) *Filter {
	return &Filter{db: db}
}

// Normalize lowercases and trims an address and derives its domain portion
// (the substring after the last '@', empty if absent).
func Normalize(address string) (email, domain string) {
	email = strings.ToLower(strings.TrimSpace(address))
	if i := strings.LastIndex(email, "@"); i >= 0 {
		domain = email[i+1:]
	}
	return email, domain
}

// IsDenied reports whether the sender is on the deny list. Denied senders
// short-circuit the pipeline entirely and must be checked before any
// classification call.
func (f *Filter) IsDenied(address string) (bool, error) {
	return f.matches(model.ListDeny, address)
}

// IsAllowed reports whether the sender is on the allow list. A deny match
// always wins; callers check IsDenied first.
func (f *Filter) IsAllowed(address string) (bool, error) {
	return f.matches(model.ListAllow, address)
}

func (f *Filter) matches(list, address string) (bool, error) {
	email, domain := Normalize(address)
	if email == "" {
		return false, nil
	}

	query := f.db.Model(&model.SuppressionEntry{}).
		Where("list = ? AND is_active = ?", list, true)

	if domain != "" {
		query = query.Where(
			"(entry_type = ? AND value = ?) OR (entry_type = ? AND value = ?)",
			model.EntryTypeEmail, email, model.EntryTypeDomain, domain,
		)
	} else {
		query = query.Where("entry_type = ? AND value = ?", model.EntryTypeEmail, email)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("database error checking %s list: %w", list, err)
	}
	return count > 0, nil
}
