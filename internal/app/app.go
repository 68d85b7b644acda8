// Package app wires the service together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"inbox-sentinel/internal/classifier"
	"inbox-sentinel/internal/config"
	"inbox-sentinel/internal/db"
	"inbox-sentinel/internal/digest"
	"inbox-sentinel/internal/feedback"
	"inbox-sentinel/internal/fetch"
	"inbox-sentinel/internal/handler"
	"inbox-sentinel/internal/metrics"
	"inbox-sentinel/internal/notify"
	"inbox-sentinel/internal/router"
	"inbox-sentinel/internal/scheduler"
	"inbox-sentinel/internal/suppression"
	"inbox-sentinel/internal/triage"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Inbox Sentinel")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	dbConn, err := db.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.NewMetrics()

	var fetcher fetch.Fetcher
	if cfg.IMAP.Enabled {
		fetcher = fetch.NewIMAPFetcher(&cfg.IMAP)
		logrus.Info("Using IMAP for email fetching")
	} else {
		fetcher = fetch.NewGmailFetcher(&cfg.Google)
		logrus.Info("Using Gmail API for email fetching")
	}

	oracle := classifier.NewAnthropicOracle(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
	ledger := feedback.NewLedger(dbConn)
	analyzer := classifier.NewAnalyzer(oracle, ledger, cfg.Anthropic.MaxTokens)
	filter := suppression.NewFilter(dbConn)
	entryParser := suppression.NewEntryParser(oracle)

	transport := notify.NewPushover(cfg.Pushover.UserKey, cfg.Pushover.APIToken)
	dispatcher := notify.NewDispatcher(transport)
	aggregator := digest.NewAggregator(dbConn, transport)

	processor := triage.NewProcessor(dbConn, fetcher, analyzer, dispatcher, filter, m, cfg.Triage)
	sched := scheduler.New(&cfg.Scheduler, processor, aggregator, m)

	h := handler.NewHandlers(dbConn, ledger, aggregator, entryParser, transport, sched, m)
	r := router.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
