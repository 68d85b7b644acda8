package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"inbox-sentinel/internal/model"
)

// Dispatcher formats and sends immediate alerts for notify-routed emails and
// records the outcome. There is no retry loop: a failed record stays un-sent
// and eligible for a manual resend.
type Dispatcher struct {
	transport Transport
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(transport Transport) *Dispatcher {
	return &Dispatcher{transport: transport}
}

// Dispatch sends one alert and always writes a NotificationLog row inside
// tx, linked to the record. The record's sent flag is set only on success.
func (d *Dispatcher) Dispatch(ctx context.Context, tx *gorm.DB, email *model.ProcessedEmail, accountEmail string) (*model.NotificationLog, error) {
	priority, sound := alertBand(email.ImportanceScore)

	sender := email.SenderName
	if sender == "" {
		sender = email.SenderEmail
	}

	title := "Important: " + truncateEllipsis(sender, 40)

	message := fmt.Sprintf("<b>Subject:</b> %s\n\n<b>Account:</b> %s\n\n<b>Why important:</b> %s",
		truncate(email.Subject, 200), accountEmail, email.ImportanceReason)

	if email.DetectedDeadline != nil && email.DeadlineText != "" {
		message += deadlineLine(*email.DetectedDeadline, email.DeadlineText, time.Now())
	}

	result := d.transport.Send(ctx, Notification{
		Title:    title,
		Message:  message,
		Priority: priority,
		Sound:    sound,
		HTML:     true,
	})

	status := model.NotificationStatusSent
	if !result.Success {
		status = model.NotificationStatusFailed
	}

	entry := model.NotificationLog{
		ProcessedEmailID: &email.ID,
		Channel:          "pushover",
		Title:            truncate(title, 255),
		Message:          truncate(fmt.Sprintf("Subject: %s\nReason: %s", email.Subject, email.ImportanceReason), 1000),
		Priority:         priority,
		Status:           status,
		ErrorMsg:         result.Error,
		Receipt:          result.Receipt,
		CreatedAt:        time.Now().UTC(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to log notification: %w", err)
	}

	if result.Success {
		now := time.Now().UTC()
		email.NotificationSent = true
		email.NotificationSentAt = &now
		if err := tx.Save(email).Error; err != nil {
			return nil, fmt.Errorf("failed to mark notification sent: %w", err)
		}
		logrus.Infof("Notification sent for %s (score %.2f)", email.MessageID, email.ImportanceScore)
	} else {
		logrus.Warnf("Notification failed for %s: %s", email.MessageID, result.Error)
	}

	return &entry, nil
}

// alertBand selects priority and sound from the importance score.
func alertBand(score float64) (int, string) {
	switch {
	case score >= 0.9:
		return PriorityHigh, SoundSiren
	case score >= 0.8:
		return PriorityHigh, SoundIncoming
	default:
		return PriorityNormal, SoundDefault
	}
}

// deadlineLine renders the deadline banner appended to an alert body.
func deadlineLine(deadline time.Time, text string, now time.Time) string {
	days := daysUntil(now, deadline)
	switch {
	case days < 0:
		return fmt.Sprintf("\n\n<b>OVERDUE:</b> %s (%d days ago!)", text, -days)
	case days == 0:
		return fmt.Sprintf("\n\n<b>DUE TODAY:</b> %s", text)
	case days <= 3:
		return fmt.Sprintf("\n\n<b>DEADLINE:</b> %s (%d days!)", text, days)
	default:
		return fmt.Sprintf("\n\n<b>Deadline:</b> %s (%d days)", text, days)
	}
}

// daysUntil is the whole-day difference between two timestamps, ignoring
// time of day.
func daysUntil(now, deadline time.Time) int {
	ny, nm, nd := now.Date()
	dy, dm, dd := deadline.Date()
	a := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	b := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func truncateEllipsis(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
