// Package fetch pulls new messages from monitored mailboxes. The Gmail
// fetcher tracks a per-account history checkpoint so each run only sees
// mail that arrived since the last one.
package fetch

import (
	"context"
	"time"

	"inbox-sentinel/internal/model"
)

// Message is a fetched email, normalized to the fields triage needs.
type Message struct {
	MessageID   string    `json:"message_id"`
	ThreadID    string    `json:"thread_id"`
	SenderEmail string    `json:"sender_email"`
	SenderName  string    `json:"sender_name"`
	Subject     string    `json:"subject"`
	Snippet     string    `json:"snippet"`
	BodyText    string    `json:"body_text"`
	ReceivedAt  time.Time `json:"received_at"`
}

// Fetcher retrieves new messages for a monitored account. The returned
// checkpoint replaces the one passed in; an empty checkpoint means a full
// fetch of recent mail. Implementations may refresh credentials and write
// them back onto the account.
type Fetcher interface {
	FetchNew(ctx context.Context, account *model.Account, checkpoint string, maxResults int) ([]Message, string, error)
}
