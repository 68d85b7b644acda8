// Package scheduler drives the periodic triage runs and the daily digest.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"inbox-sentinel/internal/config"
	"inbox-sentinel/internal/digest"
	"inbox-sentinel/internal/metrics"
	"inbox-sentinel/internal/triage"
)

// TriageRunner runs one triage pass over all active accounts.
type TriageRunner interface {
	ProcessAllAccounts(ctx context.Context) (*triage.Summary, error)
}

// DigestSender sends the pending digest.
type DigestSender interface {
	Send(ctx context.Context) (*digest.SendResult, error)
}

// Scheduler manages the periodic triage and digest jobs.
type Scheduler struct {
	cron          *cron.Cron
	triageEntryID cron.EntryID
	digestEntryID cron.EntryID
	config        *config.SchedulerConfig
	processor     TriageRunner
	digester      DigestSender
	metrics       *metrics.Metrics
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	isRunning     bool
	mu            sync.RWMutex
}

// New creates a new scheduler
func New(cfg *config.SchedulerConfig, processor TriageRunner, digester DigestSender, m *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		config:    cfg,
		processor: processor,
		digester:  digester,
		metrics:   m,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	// A previous Stop cancelled the run context and left the old entries
	// registered; a restart needs fresh ones.
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.cron = cron.New(cron.WithSeconds())
	}

	triageSchedule := fmt.Sprintf("0 */%d * * * *", s.config.IntervalMinutes)
	triageID, err := s.cron.AddFunc(triageSchedule, s.runTriage)
	if err != nil {
		return fmt.Errorf("failed to add triage cron job: %w", err)
	}
	s.triageEntryID = triageID

	digestSchedule := fmt.Sprintf("0 0 %d * * *", s.config.DigestHour)
	digestID, err := s.cron.AddFunc(digestSchedule, s.runDigest)
	if err != nil {
		return fmt.Errorf("failed to add digest cron job: %w", err)
	}
	s.digestEntryID = digestID

	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started: triage every %d minutes, digest at %02d:00",
		s.config.IntervalMinutes, s.config.DigestHour)
	return nil
}

// Stop stops the scheduler and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// runTriage is the cron-invoked triage cycle.
func (s *Scheduler) runTriage() {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		logrus.Info("Scheduler not running, skipping triage cycle")
		return
	}
	s.mu.RUnlock()

	logrus.Info("Starting scheduled triage run")
	start := time.Now()

	summary, err := s.processor.ProcessAllAccounts(s.ctx)
	if err != nil {
		logrus.Errorf("Triage run failed: %v", err)
		return
	}

	logrus.Infof("Triage run finished in %v: %d emails processed across %d accounts",
		time.Since(start), summary.EmailsProcessed, summary.AccountsProcessed)
}

// runDigest is the cron-invoked daily digest send.
func (s *Scheduler) runDigest() {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		logrus.Info("Scheduler not running, skipping digest")
		return
	}
	s.mu.RUnlock()

	logrus.Info("Starting scheduled digest send")

	result, err := s.digester.Send(s.ctx)
	if err != nil {
		logrus.Errorf("Digest send failed: %v", err)
		return
	}
	if result.Success && result.EmailsIncluded > 0 {
		s.metrics.DigestsSent.Inc()
		s.metrics.DigestEmails.Add(float64(result.EmailsIncluded))
	}
}

// RunTriageOnce runs the triage pipeline once, for manual triggering.
func (s *Scheduler) RunTriageOnce(ctx context.Context) (*triage.Summary, error) {
	logrus.Info("Running triage once")
	return s.processor.ProcessAllAccounts(ctx)
}

// RunDigestOnce sends the digest once, for manual triggering.
func (s *Scheduler) RunDigestOnce(ctx context.Context) (*digest.SendResult, error) {
	logrus.Info("Sending digest once")
	result, err := s.digester.Send(ctx)
	if err == nil && result.Success && result.EmailsIncluded > 0 {
		s.metrics.DigestsSent.Inc()
		s.metrics.DigestEmails.Add(float64(result.EmailsIncluded))
	}
	return result, err
}

// GetNextRun returns the time of the next scheduled triage run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.triageEntryID).Next
}

// GetLastRun returns the time of the last triage run
func (s *Scheduler) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.triageEntryID).Prev
}

// GetNextDigest returns the time of the next scheduled digest send
func (s *Scheduler) GetNextDigest() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.digestEntryID).Next
}

// Wait waits for in-flight jobs to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
