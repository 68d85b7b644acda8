package triage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"inbox-sentinel/internal/classifier"
	"inbox-sentinel/internal/config"
	"inbox-sentinel/internal/feedback"
	"inbox-sentinel/internal/fetch"
	metricsPkg "inbox-sentinel/internal/metrics"
	"inbox-sentinel/internal/model"
	"inbox-sentinel/internal/notify"
	"inbox-sentinel/internal/suppression"
)

// Prometheus collectors register globally, so the package shares one set.
var testMetrics = metricsPkg.NewMetrics()

var testTriageConfig = config.TriageConfig{
	ImportanceThreshold: 0.7,
	DigestEnabled:       true,
	DigestThresholdLow:  0.5,
	DigestThresholdHigh: 0.69,
	MaxEmailsPerCheck:   50,
}

// fakeFetcher serves canned messages per account email.
type fakeFetcher struct {
	messages   map[string][]fetch.Message
	checkpoint string
	err        error
}

func (f *fakeFetcher) FetchNew(ctx context.Context, account *model.Account, checkpoint string, maxResults int) ([]fetch.Message, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.messages[account.Email], f.checkpoint, nil
}

// scriptedOracle returns a canned completion per subject and counts calls.
type scriptedOracle struct {
	bySubject map[string]string
	calls     int
}

func (o *scriptedOracle) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	o.calls++
	for subject, response := range o.bySubject {
		if strings.Contains(user, subject) {
			return response, nil
		}
	}
	return `{"score": 0.1, "reason": "Unremarkable"}`, nil
}

// errorOracle always fails at the transport level.
type errorOracle struct{}

func (errorOracle) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	return "", errors.New("rate limited")
}

// fakeTransport records sends.
type fakeTransport struct {
	result notify.Result
	sent   []notify.Notification
}

func (f *fakeTransport) Send(ctx context.Context, n notify.Notification) notify.Result {
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
	require.NoError(t, db.AutoMigrate(
		&model.Account{},
		&model.ProcessedEmail{},
		&model.NotificationLog{},
		&model.SuppressionEntry{},
		&model.LearnedPattern{},
		&model.FeedbackEvent{},
	))
	return db
}

func seedAccount(t *testing.T, db *gorm.DB, email string) *model.Account {
	t.Helper()
	account := &model.Account{
		Email:        email,
		AccessToken:  "access",
		RefreshToken: "refresh",
		IsActive:     true,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func newProcessor(db *gorm.DB, fetcher fetch.Fetcher, oracle classifier.Oracle, transport notify.Transport) *Processor {
	ledger := feedback.NewLedger(db)
	analyzer := classifier.NewAnalyzer(oracle, ledger, 300)
	dispatcher := notify.NewDispatcher(transport)
	filter := suppression.NewFilter(db)
	return NewProcessor(db, fetcher, analyzer, dispatcher, filter, testMetrics, testTriageConfig)
}

func message(id, sender, subject string) fetch.Message {
	return fetch.Message{
		MessageID:   id,
		ThreadID:    "thread-" + id,
		SenderEmail: sender,
		Subject:     subject,
		BodyText:    "body of " + subject,
		ReceivedAt:  time.Now().UTC(),
	}
}

func TestProcessAllowedSenderGetsBoostAndNotify(t *testing.T) {
	db := newTestDB(t)
	account := seedAccount(t, db, "me@example.com")
	require.NoError(t, db.Create(&model.SuppressionEntry{
		List: model.ListAllow, EntryType: model.EntryTypeDomain, Value: "trusted.org", IsActive: true,
	}).Error)

	fetcher := &fakeFetcher{
		messages: map[string][]fetch.Message{
			"me@example.com": {message("m1", "boss@trusted.org", "Need your sign-off")},
		},
		checkpoint: "12345",
	}
	oracle := &scriptedOracle{bySubject: map[string]string{
		"Need your sign-off": `{"score": 0.6, "reason": "Direct request"}`,
	}}
	transport := &fakeTransport{result: notify.Result{Success: true}}
	processor := newProcessor(db, fetcher, oracle, transport)

	summary, err := processor.ProcessAllAccounts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.AccountsProcessed)
	assert.Equal(t, 1, summary.EmailsProcessed)
	assert.Equal(t, 1, summary.NotificationsSent)
	assert.Empty(t, summary.Errors)

	var email model.ProcessedEmail
	require.NoError(t, db.Where("message_id = ?", "m1").First(&email).Error)
	// 0.6 + allow-list boost 0.15
	assert.InDelta(t, 0.75, email.ImportanceScore, 1e-9)
	assert.True(t, email.IsAllowlisted)
	assert.True(t, email.NotificationSent)
	assert.False(t, email.DigestEligible)

	require.Len(t, transport.sent, 1)

	var reloaded model.Account
	require.NoError(t, db.First(&reloaded, account.ID).Error)
	assert.Equal(t, "12345", reloaded.LastHistoryID)
	assert.NotNil(t, reloaded.LastCheck)
}

func TestProcessDeniedSenderSkipsClassifier(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "me@example.com")
	require.NoError(t, db.Create(&model.SuppressionEntry{
		List: model.ListDeny, EntryType: model.EntryTypeEmail, Value: "spam@junk.io", IsActive: true,
	}).Error)

	fetcher := &fakeFetcher{
		messages: map[string][]fetch.Message{
			"me@example.com": {message("m1", "spam@junk.io", "You won!!!")},
		},
		checkpoint: "1",
	}
	oracle := &scriptedOracle{}
	transport := &fakeTransport{result: notify.Result{Success: true}}
	processor := newProcessor(db, fetcher, oracle, transport)

	summary, err := processor.ProcessAllAccounts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Accounts[0].Suppressed)
	assert.Zero(t, summary.EmailsProcessed)
	assert.Zero(t, oracle.calls)

	var count int64
	db.Model(&model.ProcessedEmail{}).Count(&count)
	assert.Zero(t, count)
	assert.Empty(t, transport.sent)
}

func TestProcessDedupSecondRunIsNoop(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "me@example.com")

	fetcher := &fakeFetcher{
		messages: map[string][]fetch.Message{
			"me@example.com": {message("m1", "alice@example.com", "Lunch?")},
		},
		checkpoint: "1",
	}
	oracle := &scriptedOracle{bySubject: map[string]string{
		"Lunch?": `{"score": 0.6, "reason": "Social"}`,
	}}
	transport := &fakeTransport{result: notify.Result{Success: true}}
	processor := newProcessor(db, fetcher, oracle, transport)

	_, err := processor.ProcessAllAccounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, oracle.calls)

	summary, err := processor.ProcessAllAccounts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, oracle.calls)
	assert.Equal(t, 1, summary.Accounts[0].Skipped)

	var count int64
	db.Model(&model.ProcessedEmail{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestProcessDigestRoute(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "me@example.com")

	fetcher := &fakeFetcher{
		messages: map[string][]fetch.Message{
			"me@example.com": {message("m1", "alice@example.com", "Lunch?")},
		},
		checkpoint: "1",
	}
	oracle := &scriptedOracle{bySubject: map[string]string{
		"Lunch?": `{"score": 0.6, "reason": "Social"}`,
	}}
	transport := &fakeTransport{result: notify.Result{Success: true}}
	processor := newProcessor(db, fetcher, oracle, transport)

	summary, err := processor.ProcessAllAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DigestQueued)

	var email model.ProcessedEmail
	require.NoError(t, db.Where("message_id = ?", "m1").First(&email).Error)
	assert.True(t, email.DigestEligible)
	assert.False(t, email.NotificationSent)
	assert.Empty(t, transport.sent)
}

func TestProcessIgnoreRoute(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "me@example.com")

	fetcher := &fakeFetcher{
		messages: map[string][]fetch.Message{
			"me@example.com": {message("m1", "news@example.com", "Weekly digest")},
		},
		checkpoint: "1",
	}
	oracle := &scriptedOracle{}
	transport := &fakeTransport{result: notify.Result{Success: true}}
	processor := newProcessor(db, fetcher, oracle, transport)

	summary, err := processor.ProcessAllAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Accounts[0].Ignored)

	// Ignored emails are still recorded for dedup and feedback
	var email model.ProcessedEmail
	require.NoError(t, db.Where("message_id = ?", "m1").First(&email).Error)
	assert.False(t, email.DigestEligible)
	assert.False(t, email.NotificationSent)
}

func TestProcessOracleFailureIsolatesMessage(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "me@example.com")

	fetcher := &fakeFetcher{
		messages: map[string][]fetch.Message{
			"me@example.com": {
				message("m1", "alice@example.com", "First"),
				message("m2", "bob@example.com", "Second"),
			},
		},
		checkpoint: "1",
	}
	transport := &fakeTransport{result: notify.Result{Success: true}}
	processor := newProcessor(db, fetcher, errorOracle{}, transport)

	summary, err := processor.ProcessAllAccounts(context.Background())
	require.NoError(t, err)

	// Both messages failed classification but the run itself completed
	assert.Zero(t, summary.EmailsProcessed)
	var count int64
	db.Model(&model.ProcessedEmail{}).Count(&count)
	assert.Zero(t, count)

	// Each failure is reported per message, not just logged
	require.Len(t, summary.Accounts[0].Errors, 2)
	assert.Contains(t, summary.Accounts[0].Errors[0], "m1")
	assert.Contains(t, summary.Accounts[0].Errors[0], "rate limited")
	require.Len(t, summary.Errors, 2)
	assert.Contains(t, summary.Errors[0], "me@example.com")
}

// cancellingOracle answers the first call normally and cancels the run
// context, as if shutdown hit mid-account.
type cancellingOracle struct {
	cancel context.CancelFunc
}

func (o *cancellingOracle) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	o.cancel()
	return `{"score": 0.1, "reason": "Unremarkable"}`, nil
}

func TestProcessCancellationKeepsCheckpoint(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "me@example.com")

	fetcher := &fakeFetcher{
		messages: map[string][]fetch.Message{
			"me@example.com": {
				message("m1", "alice@example.com", "First"),
				message("m2", "bob@example.com", "Second"),
			},
		},
		checkpoint: "99",
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processor := newProcessor(db, fetcher, &cancellingOracle{cancel: cancel}, &fakeTransport{})

	summary, err := processor.ProcessAllAccounts(ctx)
	require.NoError(t, err)

	// m1 was triaged before the cancel, m2 never was
	var count int64
	db.Model(&model.ProcessedEmail{}).Count(&count)
	assert.Equal(t, int64(1), count)
	assert.Contains(t, summary.Accounts[0].Errors, "cancelled mid-account")

	// The checkpoint stays put so the next run refetches m2
	var account model.Account
	require.NoError(t, db.Where("email = ?", "me@example.com").First(&account).Error)
	assert.Empty(t, account.LastHistoryID)
	assert.Nil(t, account.LastCheck)
}

func TestProcessFetchFailureIsolatesAccount(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "broken@example.com")

	fetcher := &fakeFetcher{err: errors.New("token revoked")}
	transport := &fakeTransport{result: notify.Result{Success: true}}
	processor := newProcessor(db, fetcher, &scriptedOracle{}, transport)

	summary, err := processor.ProcessAllAccounts(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "broken@example.com")
	assert.Contains(t, summary.Errors[0], "fetch failed")

	// A failed fetch must not advance the checkpoint
	var account model.Account
	require.NoError(t, db.Where("email = ?", "broken@example.com").First(&account).Error)
	assert.Empty(t, account.LastHistoryID)
}

func TestProcessInactiveAccountSkipped(t *testing.T) {
	db := newTestDB(t)
	account := seedAccount(t, db, "paused@example.com")
	account.IsActive = false
	require.NoError(t, db.Save(account).Error)

	fetcher := &fakeFetcher{
		messages: map[string][]fetch.Message{
			"paused@example.com": {message("m1", "alice@example.com", "Hello")},
		},
		checkpoint: "1",
	}
	processor := newProcessor(db, fetcher, &scriptedOracle{}, &fakeTransport{})

	summary, err := processor.ProcessAllAccounts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.AccountsProcessed)
}

func TestProcessNotificationFailureRecorded(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "me@example.com")

	fetcher := &fakeFetcher{
		messages: map[string][]fetch.Message{
			"me@example.com": {message("m1", "boss@example.com", "Urgent")},
		},
		checkpoint: "1",
	}
	oracle := &scriptedOracle{bySubject: map[string]string{
		"Urgent": `{"score": 0.9, "reason": "Urgent request"}`,
	}}
	transport := &fakeTransport{result: notify.Result{Success: false, Error: "invalid token"}}
	processor := newProcessor(db, fetcher, oracle, transport)

	summary, err := processor.ProcessAllAccounts(context.Background())
	require.NoError(t, err)

	// The email is recorded even though the push failed, and the failure
	// is counted as such rather than as an ignore
	assert.Zero(t, summary.NotificationsSent)
	assert.Equal(t, 1, summary.NotificationFailures)
	assert.Equal(t, 1, summary.Accounts[0].NotificationFailures)
	assert.Zero(t, summary.Accounts[0].Ignored)
	var email model.ProcessedEmail
	require.NoError(t, db.Where("message_id = ?", "m1").First(&email).Error)
	assert.False(t, email.NotificationSent)

	var log model.NotificationLog
	require.NoError(t, db.First(&log).Error)
	assert.Equal(t, model.NotificationStatusFailed, log.Status)
}

func TestProcessMultipleAccounts(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "one@example.com")
	seedAccount(t, db, "two@example.com")

	fetcher := &fakeFetcher{
		messages: map[string][]fetch.Message{
			"one@example.com": {message("m1", "a@example.com", "One")},
			"two@example.com": {message("m2", "b@example.com", "Two")},
		},
		checkpoint: "1",
	}
	processor := newProcessor(db, fetcher, &scriptedOracle{}, &fakeTransport{})

	summary, err := processor.ProcessAllAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.AccountsProcessed)
	assert.Equal(t, 2, summary.EmailsFetched)
	require.Len(t, summary.Accounts, 2)

	// Messages land on the right accounts
	var emails []model.ProcessedEmail
	require.NoError(t, db.Order("message_id").Find(&emails).Error)
	require.Len(t, emails, 2)
	assert.NotEqual(t, emails[0].AccountID, emails[1].AccountID)
}
