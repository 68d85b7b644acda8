package feedback

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"inbox-sentinel/internal/model"
	"inbox-sentinel/internal/suppression"
)

// Score deltas applied per feedback event. The domain pattern gets half the
// sender adjustment because it is less specific.
const (
	NotImportantDelta = -0.15
	ImportantDelta    = 0.10
)

// Ledger stores per-sender and per-domain score adjustments learned from
// user corrections.
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a new feedback ledger
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// SubmitResult reports the outcome of one feedback submission.
type SubmitResult struct {
	FeedbackType     string  `json:"feedback_type"`
	SenderEmail      string  `json:"sender_email"`
	SenderAdjustment float64 `json:"sender_adjustment"`
}

// TotalAdjustment returns the combined sender and domain adjustment for an
// address, or 0 when no pattern exists for either.
func (l *Ledger) TotalAdjustment(address string) (float64, error) {
	email, domain := suppression.Normalize(address)

	var total float64

	pattern, err := l.lookup(l.db, model.PatternTypeSender, email)
	if err != nil {
		return 0, err
	}
	if pattern != nil {
		total += pattern.ScoreAdjustment
	}

	if domain != "" {
		pattern, err = l.lookup(l.db, model.PatternTypeDomain, domain)
		if err != nil {
			return 0, err
		}
		if pattern != nil {
			total += pattern.ScoreAdjustment
		}
	}

	return total, nil
}

// Submit records a user correction for a processed email: one feedback event
// row plus sender and domain pattern updates, committed atomically.
func (l *Ledger) Submit(emailID uint, feedbackType string) (*SubmitResult, error) {
	if feedbackType != model.FeedbackNotImportant && feedbackType != model.FeedbackImportant {
		return nil, fmt.Errorf("invalid feedback type: %s", feedbackType)
	}

	var result SubmitResult

	err := l.db.Transaction(func(tx *gorm.DB) error {
		var email model.ProcessedEmail
		if err := tx.First(&email, emailID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("processed email %d not found", emailID)
			}
			return fmt.Errorf("database error loading email: %w", err)
		}

		event := model.FeedbackEvent{
			ProcessedEmailID: email.ID,
			FeedbackType:     feedbackType,
			OriginalScore:    email.ImportanceScore,
			CreatedAt:        time.Now().UTC(),
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("failed to record feedback event: %w", err)
		}

		delta := NotImportantDelta
		if feedbackType == model.FeedbackImportant {
			delta = ImportantDelta
		}

		senderEmail, domain := suppression.Normalize(email.SenderEmail)

		senderPattern, err := record(tx, model.PatternTypeSender, senderEmail, delta)
		if err != nil {
			return err
		}

		if domain != "" {
			if _, err := record(tx, model.PatternTypeDomain, domain, delta*0.5); err != nil {
				return err
			}
		}

		result = SubmitResult{
			FeedbackType:     feedbackType,
			SenderEmail:      email.SenderEmail,
			SenderAdjustment: senderPattern.ScoreAdjustment,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.Infof("Feedback recorded: %s for %s (sender adjustment now %+.2f)",
		feedbackType, result.SenderEmail, result.SenderAdjustment)
	return &result, nil
}

// NextAdjustment applies one feedback delta to an existing adjustment using
// a weighted moving average. newCount is the feedback count after the event;
// the weight shrinks as feedback accrues and is capped at 0.5 so a single
// event never moves the adjustment by more than half the gap.
func NextAdjustment(old, delta float64, newCount int) float64 {
	weight := math.Min(0.5, 1/float64(newCount))
	return old*(1-weight) + delta*weight
}

// record creates or updates one learned pattern inside tx. The existing row
// is locked so concurrent feedback on the same key serializes the
// read-modify-write.
func record(tx *gorm.DB, patternType, patternValue string, delta float64) (*model.LearnedPattern, error) {
	query := tx
	if tx.Dialector.Name() == "mysql" {
		query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var pattern model.LearnedPattern
	err := query.
		Where("pattern_type = ? AND pattern_value = ?", patternType, patternValue).
		First(&pattern).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		pattern = model.LearnedPattern{
			PatternType:     patternType,
			PatternValue:    patternValue,
			ScoreAdjustment: model.RoundScore(delta),
			FeedbackCount:   1,
		}
		if err := tx.Create(&pattern).Error; err != nil {
			return nil, fmt.Errorf("failed to create learned pattern: %w", err)
		}
		return &pattern, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database error loading learned pattern: %w", err)
	}

	pattern.FeedbackCount++
	pattern.ScoreAdjustment = model.RoundScore(
		NextAdjustment(pattern.ScoreAdjustment, delta, pattern.FeedbackCount))

	if err := tx.Save(&pattern).Error; err != nil {
		return nil, fmt.Errorf("failed to update learned pattern: %w", err)
	}
	return &pattern, nil
}

func (l *Ledger) lookup(db *gorm.DB, patternType, patternValue string) (*model.LearnedPattern, error) {
	var pattern model.LearnedPattern
	err := db.
		Where("pattern_type = ? AND pattern_value = ?", patternType, patternValue).
		First(&pattern).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database error loading learned pattern: %w", err)
	}
	return &pattern, nil
}
