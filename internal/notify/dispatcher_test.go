package notify

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"inbox-sentinel/internal/model"
)

// fakeTransport records sends and returns a canned result.
type fakeTransport struct {
	result Result
	sent   []Notification
}

func (f *fakeTransport) Send(ctx context.Context, n Notification) Result {
	f.sent = append(f.sent, n)
	return f.result
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.ProcessedEmail{}, &model.NotificationLog{}))
	return db
}

func seedEmail(t *testing.T, db *gorm.DB, score float64) *model.ProcessedEmail {
	t.Helper()
	email := &model.ProcessedEmail{
		AccountID:        1,
		MessageID:        "msg-1",
		SenderEmail:      "boss@example.com",
		SenderName:       "The Boss",
		Subject:          "Quarterly numbers",
		ImportanceScore:  score,
		ImportanceReason: "Direct request from manager",
		ProcessedAt:      time.Now().UTC(),
	}
	require.NoError(t, db.Create(email).Error)
	return email
}

func TestDispatchSuccess(t *testing.T) {
	db := newTestDB(t)
	transport := &fakeTransport{result: Result{Success: true}}
	dispatcher := NewDispatcher(transport)
	email := seedEmail(t, db, 0.75)

	entry, err := dispatcher.Dispatch(context.Background(), db, email, "me@example.com")
	require.NoError(t, err)

	require.Len(t, transport.sent, 1)
	sent := transport.sent[0]
	assert.Equal(t, "Important: The Boss", sent.Title)
	assert.Contains(t, sent.Message, "Quarterly numbers")
	assert.Contains(t, sent.Message, "me@example.com")
	assert.Contains(t, sent.Message, "Direct request from manager")
	assert.Equal(t, PriorityNormal, sent.Priority)
	assert.Equal(t, SoundDefault, sent.Sound)
	assert.True(t, sent.HTML)

	assert.Equal(t, model.NotificationStatusSent, entry.Status)
	require.NotNil(t, entry.ProcessedEmailID)
	assert.Equal(t, email.ID, *entry.ProcessedEmailID)

	var reloaded model.ProcessedEmail
	require.NoError(t, db.First(&reloaded, email.ID).Error)
	assert.True(t, reloaded.NotificationSent)
	assert.NotNil(t, reloaded.NotificationSentAt)
}

func TestDispatchFailureStillLogs(t *testing.T) {
	db := newTestDB(t)
	transport := &fakeTransport{result: Result{Success: false, Error: "invalid token"}}
	dispatcher := NewDispatcher(transport)
	email := seedEmail(t, db, 0.75)

	entry, err := dispatcher.Dispatch(context.Background(), db, email, "me@example.com")
	require.NoError(t, err)

	assert.Equal(t, model.NotificationStatusFailed, entry.Status)
	assert.Equal(t, "invalid token", entry.ErrorMsg)

	var reloaded model.ProcessedEmail
	require.NoError(t, db.First(&reloaded, email.ID).Error)
	assert.False(t, reloaded.NotificationSent)
}

func TestAlertBands(t *testing.T) {
	priority, sound := alertBand(0.95)
	assert.Equal(t, PriorityHigh, priority)
	assert.Equal(t, SoundSiren, sound)

	priority, sound = alertBand(0.9)
	assert.Equal(t, PriorityHigh, priority)
	assert.Equal(t, SoundSiren, sound)

	priority, sound = alertBand(0.85)
	assert.Equal(t, PriorityHigh, priority)
	assert.Equal(t, SoundIncoming, sound)

	priority, sound = alertBand(0.75)
	assert.Equal(t, PriorityNormal, priority)
	assert.Equal(t, SoundDefault, sound)
}

func TestDeadlineLine(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	day := func(offset int) time.Time { return now.AddDate(0, 0, offset) }

	assert.Contains(t, deadlineLine(day(-2), "rent due", now), "OVERDUE")
	assert.Contains(t, deadlineLine(day(-2), "rent due", now), "2 days ago")
	assert.Contains(t, deadlineLine(day(0), "rent due", now), "DUE TODAY")
	assert.Contains(t, deadlineLine(day(2), "rent due", now), "DEADLINE:")
	assert.Contains(t, deadlineLine(day(2), "rent due", now), "(2 days!)")
	assert.Contains(t, deadlineLine(day(7), "rent due", now), "Deadline:")
	assert.Contains(t, deadlineLine(day(7), "rent due", now), "(7 days)")
}

func TestDispatchSenderFallbackAndTruncation(t *testing.T) {
	db := newTestDB(t)
	transport := &fakeTransport{result: Result{Success: true}}
	dispatcher := NewDispatcher(transport)

	email := &model.ProcessedEmail{
		AccountID:       1,
		MessageID:       "msg-2",
		SenderEmail:     "very-long-address-that-keeps-going-and-going@example.com",
		ImportanceScore: 0.72,
		ProcessedAt:     time.Now().UTC(),
	}
	require.NoError(t, db.Create(email).Error)

	_, err := dispatcher.Dispatch(context.Background(), db, email, "me@example.com")
	require.NoError(t, err)

	require.Len(t, transport.sent, 1)
	title := transport.sent[0].Title
	assert.True(t, len(title) <= len("Important: ")+43)
	assert.Contains(t, title, "very-long-address")
}
