package handler

import "time"

// SuppressionEntryRequest is the request body for creating a list entry.
type SuppressionEntryRequest struct {
	EntryType string `json:"entry_type" binding:"required,oneof=email domain"`
	Value     string `json:"value" binding:"required"`
	Notes     string `json:"notes"`
}

// ParseEntriesRequest is the request body for natural-language list input.
type ParseEntriesRequest struct {
	Input string `json:"input" binding:"required"`
}

// FeedbackRequest is the request body for submitting feedback on an email.
type FeedbackRequest struct {
	FeedbackType string `json:"feedback_type" binding:"required,oneof=important not_important"`
}

// TestNotificationRequest is the optional request body for a test push.
type TestNotificationRequest struct {
	Message string `json:"message"`
}

// StatsResponse summarizes pipeline activity.
type StatsResponse struct {
	TotalProcessed    int64   `json:"total_processed"`
	NotificationsSent int64   `json:"notifications_sent"`
	PendingDigest     int64   `json:"pending_digest"`
	DigestSent        int64   `json:"digest_sent"`
	AverageScore      float64 `json:"average_score"`
	ActiveAccounts    int64   `json:"active_accounts"`
	LearnedPatterns   int64   `json:"learned_patterns"`
}

// FeedbackStatsResponse summarizes accumulated feedback.
type FeedbackStatsResponse struct {
	TotalEvents  int64 `json:"total_events"`
	Important    int64 `json:"important"`
	NotImportant int64 `json:"not_important"`
	SenderCount  int64 `json:"sender_patterns"`
	DomainCount  int64 `json:"domain_patterns"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
