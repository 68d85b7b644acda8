// Package triage runs the pipeline that turns fetched mail into routed,
// persisted records: dedup, suppression, classification, routing, dispatch.
package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"inbox-sentinel/internal/classifier"
	"inbox-sentinel/internal/config"
	"inbox-sentinel/internal/dedup"
	"inbox-sentinel/internal/fetch"
	"inbox-sentinel/internal/metrics"
	"inbox-sentinel/internal/model"
	"inbox-sentinel/internal/notify"
	"inbox-sentinel/internal/routing"
	"inbox-sentinel/internal/suppression"
)

// AccountResult is the per-account slice of a run summary. Errors collects
// every failure hit while working the account: the fetch, individual
// messages, the checkpoint save.
type AccountResult struct {
	AccountEmail         string   `json:"account_email"`
	EmailsFetched        int      `json:"emails_fetched"`
	EmailsProcessed      int      `json:"emails_processed"`
	Skipped              int      `json:"skipped"`
	Suppressed           int      `json:"suppressed"`
	NotificationsSent    int      `json:"notifications_sent"`
	NotificationFailures int      `json:"notification_failures"`
	DigestQueued         int      `json:"digest_queued"`
	Ignored              int      `json:"ignored"`
	Errors               []string `json:"errors,omitempty"`
}

// Summary reports one complete triage run.
type Summary struct {
	StartedAt            time.Time       `json:"started_at"`
	FinishedAt           time.Time       `json:"finished_at"`
	AccountsProcessed    int             `json:"accounts_processed"`
	EmailsFetched        int             `json:"emails_fetched"`
	EmailsProcessed      int             `json:"emails_processed"`
	NotificationsSent    int             `json:"notifications_sent"`
	NotificationFailures int             `json:"notification_failures"`
	DigestQueued         int             `json:"digest_queued"`
	Accounts             []AccountResult `json:"accounts"`
	Errors               []string        `json:"errors,omitempty"`
}

// Processor orchestrates one triage run across all active accounts.
type Processor struct {
	db         *gorm.DB
	fetcher    fetch.Fetcher
	analyzer   *classifier.Analyzer
	dispatcher *notify.Dispatcher
	filter     *suppression.Filter
	metrics    *metrics.Metrics
	cfg        config.TriageConfig
}

// NewProcessor creates a new triage processor
func NewProcessor(db *gorm.DB, fetcher fetch.Fetcher, analyzer *classifier.Analyzer,
	dispatcher *notify.Dispatcher, filter *suppression.Filter,
	m *metrics.Metrics, cfg config.TriageConfig) *Processor {
	return &Processor{
		db:         db,
		fetcher:    fetcher,
		analyzer:   analyzer,
		dispatcher: dispatcher,
		filter:     filter,
		metrics:    m,
		cfg:        cfg,
	}
}

// ProcessAllAccounts runs one triage pass over every active account inside
// a single transaction, committed at the end of the run. A failing account
// or message is isolated and recorded; only a failed commit loses the run.
func (p *Processor) ProcessAllAccounts(ctx context.Context) (*Summary, error) {
	summary := &Summary{StartedAt: time.Now().UTC()}
	p.metrics.TriageRuns.Inc()
	timer := time.Now()
	defer func() {
		p.metrics.TriageDuration.Observe(time.Since(timer).Seconds())
		summary.FinishedAt = time.Now().UTC()
	}()

	tx := p.db.Begin()
	if tx.Error != nil {
		return summary, fmt.Errorf("failed to begin triage transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var accounts []model.Account
	if err := tx.Where("is_active = ?", true).Order("id ASC").Find(&accounts).Error; err != nil {
		tx.Rollback()
		return summary, fmt.Errorf("failed to load active accounts: %w", err)
	}
	p.metrics.ActiveAccounts.Set(float64(len(accounts)))

	for i := range accounts {
		if ctx.Err() != nil {
			summary.Errors = append(summary.Errors, "triage run cancelled")
			break
		}

		result := p.processAccount(ctx, tx, &accounts[i])
		summary.Accounts = append(summary.Accounts, result)
		summary.AccountsProcessed++
		summary.EmailsFetched += result.EmailsFetched
		summary.EmailsProcessed += result.EmailsProcessed
		summary.NotificationsSent += result.NotificationsSent
		summary.NotificationFailures += result.NotificationFailures
		summary.DigestQueued += result.DigestQueued
		for _, msg := range result.Errors {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", result.AccountEmail, msg))
		}
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		summary.Errors = append(summary.Errors, fmt.Sprintf("database commit failed: %v", err))
		return summary, fmt.Errorf("failed to commit triage run: %w", err)
	}

	logrus.Infof("Triage run complete: %d accounts, %d fetched, %d processed, %d notified, %d queued for digest",
		summary.AccountsProcessed, summary.EmailsFetched, summary.EmailsProcessed,
		summary.NotificationsSent, summary.DigestQueued)

	return summary, nil
}

// processAccount fetches and triages one account. A fetch failure isolates
// the account; the checkpoint only advances when the fetch succeeded.
func (p *Processor) processAccount(ctx context.Context, tx *gorm.DB, account *model.Account) AccountResult {
	result := AccountResult{AccountEmail: account.Email}

	messages, checkpoint, err := p.fetcher.FetchNew(ctx, account, account.LastHistoryID, p.cfg.MaxEmailsPerCheck)
	if err != nil {
		logrus.Errorf("Failed to fetch mail for %s: %v", account.Email, err)
		result.Errors = append(result.Errors, fmt.Sprintf("fetch failed: %v", err))
		return result
	}

	result.EmailsFetched = len(messages)
	p.metrics.EmailsFetched.Add(float64(len(messages)))

	gate := dedup.NewGate(tx)
	cancelled := false
	for i := range messages {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, "cancelled mid-account")
			cancelled = true
			break
		}

		outcome, err := p.processMessage(ctx, tx, gate, account, &messages[i])
		if err != nil {
			logrus.Errorf("Failed to process message %s for %s: %v", messages[i].MessageID, account.Email, err)
			result.Errors = append(result.Errors, fmt.Sprintf("message %s: %v", messages[i].MessageID, err))
			continue
		}

		switch outcome {
		case outcomeSkipped:
			result.Skipped++
		case outcomeSuppressed:
			result.Suppressed++
		case outcomeNotified:
			result.EmailsProcessed++
			result.NotificationsSent++
		case outcomeNotifyFailed:
			result.EmailsProcessed++
			result.NotificationFailures++
		case outcomeDigestQueued:
			result.EmailsProcessed++
			result.DigestQueued++
		case outcomeIgnored:
			result.EmailsProcessed++
			result.Ignored++
		}
	}

	// A cancelled loop leaves fetched messages unprocessed; advancing the
	// checkpoint would skip them forever, so leave it where it was.
	if cancelled {
		return result
	}

	account.LastHistoryID = checkpoint
	now := time.Now().UTC()
	account.LastCheck = &now
	if err := tx.Save(account).Error; err != nil {
		logrus.Errorf("Failed to save checkpoint for %s: %v", account.Email, err)
		result.Errors = append(result.Errors, fmt.Sprintf("checkpoint save failed: %v", err))
	}

	return result
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSuppressed
	outcomeNotified
	outcomeNotifyFailed
	outcomeDigestQueued
	outcomeIgnored
)

// processMessage runs one message through the pipeline: dedup gate, deny
// check, classification, routing, persistence, and dispatch for the notify
// route. Denied senders never reach the classifier.
func (p *Processor) processMessage(ctx context.Context, tx *gorm.DB, gate *dedup.Gate,
	account *model.Account, msg *fetch.Message) (outcome, error) {

	processed, err := gate.AlreadyProcessed(account.ID, msg.MessageID)
	if err != nil {
		return outcomeSkipped, err
	}
	if processed {
		logrus.Debugf("Skipping already-processed message %s", msg.MessageID)
		return outcomeSkipped, nil
	}

	denied, err := p.filter.IsDenied(msg.SenderEmail)
	if err != nil {
		return outcomeSkipped, err
	}
	if denied {
		logrus.Infof("Suppressed email from denied sender %s", msg.SenderEmail)
		p.metrics.EmailsSuppressed.Inc()
		return outcomeSuppressed, nil
	}

	allowed, err := p.filter.IsAllowed(msg.SenderEmail)
	if err != nil {
		return outcomeSkipped, err
	}

	body := msg.BodyText
	if body == "" {
		body = msg.Snippet
	}

	analysis, err := p.analyzer.Analyze(ctx, msg.SenderEmail, msg.SenderName, msg.Subject, body, allowed)
	if err != nil {
		return outcomeSkipped, err
	}
	p.metrics.EmailsAnalyzed.Inc()

	decision := routing.Route(analysis.Score, p.cfg.DigestEnabled, routing.Thresholds{
		DigestLow:  p.cfg.DigestThresholdLow,
		DigestHigh: p.cfg.DigestThresholdHigh,
		Notify:     p.cfg.ImportanceThreshold,
	})

	receivedAt := msg.ReceivedAt
	email := model.ProcessedEmail{
		AccountID:        account.ID,
		MessageID:        msg.MessageID,
		ThreadID:         msg.ThreadID,
		SenderEmail:      msg.SenderEmail,
		SenderName:       msg.SenderName,
		Subject:          msg.Subject,
		ReceivedAt:       &receivedAt,
		IsAllowlisted:    allowed,
		ImportanceScore:  model.RoundScore(analysis.Score),
		ImportanceReason: analysis.Reason,
		DetectedDeadline: analysis.DeadlineDate,
		DeadlineText:     analysis.DeadlineText,
		DigestEligible:   decision == routing.Digest,
		ProcessedAt:      time.Now().UTC(),
	}
	if err := tx.Create(&email).Error; err != nil {
		return outcomeSkipped, fmt.Errorf("failed to persist processed email: %w", err)
	}

	logrus.Infof("Processed %s from %s: score %.2f -> %s",
		msg.MessageID, msg.SenderEmail, email.ImportanceScore, decision)

	switch decision {
	case routing.Notify:
		// The alert should go out even when the run is being cancelled;
		// the record is already in the transaction.
		if _, err := p.dispatcher.Dispatch(context.WithoutCancel(ctx), tx, &email, account.Email); err != nil {
			return outcomeNotifyFailed, err
		}
		if email.NotificationSent {
			p.metrics.NotificationsSent.Inc()
			return outcomeNotified, nil
		}
		p.metrics.NotificationFailures.Inc()
		return outcomeNotifyFailed, nil
	case routing.Digest:
		return outcomeDigestQueued, nil
	default:
		return outcomeIgnored, nil
	}
}
