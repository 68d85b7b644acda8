// Package digest batches medium-importance emails into one low-priority
// summary notification.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"inbox-sentinel/internal/model"
	"inbox-sentinel/internal/notify"
)

// At most this many entries are rendered; the rest are summarized in a
// trailing "...and N more" line and stay pending for the next cycle.
const maxRenderedEntries = 10

const (
	senderTruncateLen  = 25
	subjectTruncateLen = 40
)

// Aggregator builds and sends the pending digest.
type Aggregator struct {
	db        *gorm.DB
	transport notify.Transport
}

// NewAggregator creates a new digest aggregator
func NewAggregator(db *gorm.DB, transport notify.Transport) *Aggregator {
	return &Aggregator{db: db, transport: transport}
}

// SendResult reports the outcome of one digest send.
type SendResult struct {
	Success        bool   `json:"success"`
	EmailsIncluded int    `json:"emails_included"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Stats summarizes digest state.
type Stats struct {
	PendingDigest int64 `json:"pending_digest"`
	TotalDigested int64 `json:"total_digested"`
}

// Pending returns all digest-eligible, unsent emails ordered by score
// descending, ties broken by arrival order.
func (a *Aggregator) Pending() ([]model.ProcessedEmail, error) {
	var emails []model.ProcessedEmail
	err := a.db.
		Where("digest_eligible = ? AND digest_sent = ?", true, false).
		Order("importance_score DESC, id ASC").
		Find(&emails).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load pending digest emails: %w", err)
	}
	return emails, nil
}

// Send builds and sends the digest for all pending emails. On success every
// selected email is marked digest-sent in one step; on failure the log row
// is still persisted and the emails stay pending for the next run.
func (a *Aggregator) Send(ctx context.Context) (*SendResult, error) {
	emails, err := a.Pending()
	if err != nil {
		return nil, err
	}

	if len(emails) == 0 {
		logrus.Info("No pending digest emails to send")
		return &SendResult{Success: true, Message: "No pending emails for digest"}, nil
	}

	message := BuildMessage(emails)
	title := fmt.Sprintf("Email Digest (%d emails)", len(emails))

	result := a.transport.Send(ctx, notify.Notification{
		Title:    title,
		Message:  message,
		Priority: notify.PriorityLow,
		Sound:    notify.SoundNone,
		HTML:     true,
	})

	status := model.NotificationStatusSent
	if !result.Success {
		status = model.NotificationStatusFailed
	}

	err = a.db.Transaction(func(tx *gorm.DB) error {
		entry := model.NotificationLog{
			Channel:   "digest",
			Title:     title,
			Message:   truncate(message, 1000),
			Priority:  notify.PriorityLow,
			Status:    status,
			ErrorMsg:  result.Error,
			Receipt:   result.Receipt,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to log digest notification: %w", err)
		}

		if !result.Success {
			return nil
		}

		ids := make([]uint, len(emails))
		for i, email := range emails {
			ids[i] = email.ID
		}
		now := time.Now().UTC()
		if err := tx.Model(&model.ProcessedEmail{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"digest_sent": true, "digest_sent_at": now}).Error; err != nil {
			return fmt.Errorf("failed to mark digest sent: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Success {
		logrus.Errorf("Failed to send digest: %s", result.Error)
		return &SendResult{Success: false, Error: result.Error}, nil
	}

	logrus.Infof("Digest sent successfully with %d emails", len(emails))
	return &SendResult{
		Success:        true,
		EmailsIncluded: len(emails),
		Message:        fmt.Sprintf("Digest sent with %d emails", len(emails)),
	}, nil
}

// BuildMessage renders the composite digest body: a header, up to ten
// entries, and an overflow line when more are pending.
func BuildMessage(emails []model.ProcessedEmail) string {
	if len(emails) == 0 {
		return ""
	}

	lines := []string{fmt.Sprintf("<b>%d notable emails</b>\n", len(emails))}

	rendered := emails
	if len(rendered) > maxRenderedEntries {
		rendered = rendered[:maxRenderedEntries]
	}

	for i, email := range rendered {
		sender := email.SenderName
		if sender == "" {
			sender = email.SenderEmail
		}

		line := fmt.Sprintf("%d. <b>%s</b>\n   %s\n   Score: %.0f%%",
			i+1,
			truncateEllipsis(sender, senderTruncateLen),
			truncateEllipsis(email.Subject, subjectTruncateLen),
			email.ImportanceScore*100,
		)
		if email.DeadlineText != "" {
			line += fmt.Sprintf("\n   Deadline: %s", email.DeadlineText)
		}
		lines = append(lines, line)
	}

	if len(emails) > maxRenderedEntries {
		lines = append(lines, fmt.Sprintf("\n...and %d more", len(emails)-maxRenderedEntries))
	}

	return strings.Join(lines, "\n\n")
}

// GetStats returns pending and total-digested counts.
func (a *Aggregator) GetStats() (*Stats, error) {
	var stats Stats
	err := a.db.Model(&model.ProcessedEmail{}).
		Where("digest_eligible = ? AND digest_sent = ?", true, false).
		Count(&stats.PendingDigest).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count pending digest emails: %w", err)
	}

	err = a.db.Model(&model.ProcessedEmail{}).
		Where("digest_sent = ?", true).
		Count(&stats.TotalDigested).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count digested emails: %w", err)
	}

	return &stats, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func truncateEllipsis(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
