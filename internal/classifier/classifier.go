package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Oracle produces a raw completion for a system and user prompt pair.
// Transport failures are returned as errors; malformed completions are the
// caller's problem to recover from.
type Oracle interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// AdjustmentSource supplies the learned score adjustment for a sender
// address. The feedback ledger implements it.
type AdjustmentSource interface {
	TotalAdjustment(address string) (float64, error)
}

// Analysis is the adjusted importance verdict for one message.
type Analysis struct {
	Score           float64
	Reason          string
	Category        string
	SuggestedAction string
	DeadlineDate    *time.Time
	DeadlineText    string
}

// Analyzer wraps the oracle call: it builds the prompt, parses the
// completion, applies the allow-list boost and learned adjustments, and
// clamps the result to [0, 1].
type Analyzer struct {
	oracle    Oracle
	ledger    AdjustmentSource
	maxTokens int
}

// NewAnalyzer creates a new importance analyzer
func NewAnalyzer(oracle Oracle, ledger AdjustmentSource, maxTokens int) *Analyzer {
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &Analyzer{oracle: oracle, ledger: ledger, maxTokens: maxTokens}
}

// oracleResult mirrors the JSON the oracle is instructed to return. Score is
// a pointer so a missing field resolves to the neutral default rather than 0.
type oracleResult struct {
	Score           *float64        `json:"score"`
	Reason          string          `json:"reason"`
	Category        string          `json:"category"`
	SuggestedAction string          `json:"suggested_action"`
	Deadline        *oracleDeadline `json:"deadline"`
}

type oracleDeadline struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

// Analyze scores one message. Oracle transport errors propagate as retryable
// errors; a malformed completion yields the neutral fallback instead.
func (a *Analyzer) Analyze(ctx context.Context, senderEmail, senderName, subject, bodySnippet string, isAllowed bool) (*Analysis, error) {
	user := buildUserMessage(senderEmail, senderName, subject, bodySnippet, isAllowed)

	raw, err := a.oracle.Complete(ctx, systemPrompt, user, a.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("oracle request failed: %w", err)
	}

	text := StripCodeFences(strings.TrimSpace(raw))

	var result oracleResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		logrus.Errorf("Failed to parse oracle response: %v (response was: %s)", err, text)
		return fallbackAnalysis(isAllowed), nil
	}

	score := 0.5
	if result.Score != nil {
		score = *result.Score
	}

	if isAllowed {
		score = clamp(score + 0.15)
	}

	adjustment, err := a.ledger.TotalAdjustment(senderEmail)
	if err != nil {
		logrus.Warnf("Error getting learned adjustment for %s: %v", senderEmail, err)
		adjustment = 0
	}
	if adjustment != 0 {
		old := score
		score = clamp(score + adjustment)
		logrus.Infof("Applied learned adjustment %+.2f for %s: %.2f -> %.2f",
			adjustment, senderEmail, old, score)
	}

	analysis := &Analysis{
		Score:           clamp(score),
		Reason:          result.Reason,
		Category:        result.Category,
		SuggestedAction: result.SuggestedAction,
	}
	if analysis.Reason == "" {
		analysis.Reason = "Unable to determine importance"
	}
	if analysis.Category == "" {
		analysis.Category = "normal"
	}
	if analysis.SuggestedAction == "" {
		analysis.SuggestedAction = "Review when convenient"
	}

	if result.Deadline != nil {
		analysis.DeadlineText = result.Deadline.Text
		if result.Deadline.Date != "" {
			when, err := time.Parse("2006-01-02", result.Deadline.Date)
			if err != nil {
				logrus.Warnf("Could not parse deadline date: %s", result.Deadline.Date)
			} else {
				analysis.DeadlineDate = &when
			}
		}
	}

	return analysis, nil
}

// fallbackAnalysis is the neutral verdict used when the oracle returns
// something unparseable. Trusted senders land slightly above neutral.
func fallbackAnalysis(isAllowed bool) *Analysis {
	score := 0.5
	if isAllowed {
		score = 0.65
	}
	return &Analysis{
		Score:           score,
		Reason:          "Analysis parsing failed - manual review recommended",
		Category:        "normal",
		SuggestedAction: "Manual review recommended",
	}
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// StripCodeFences removes a surrounding markdown code block from an oracle
// completion, returning the text unchanged when no fence is present.
func StripCodeFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}

	var inner []string
	inBlock := false
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "```") && !inBlock:
			inBlock = true
		case strings.HasPrefix(line, "```") && inBlock:
			return strings.Join(inner, "\n")
		case inBlock:
			inner = append(inner, line)
		}
	}
	return strings.Join(inner, "\n")
}
