package suppression

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"inbox-sentinel/internal/classifier"
	"inbox-sentinel/internal/model"
)

// ParsedEntry is one email or domain extracted from free-form user input.
type ParsedEntry struct {
	EntryType string `json:"type"`
	Value     string `json:"value"`
}

const parserSystemPrompt = `You are a list entry parser. Extract email addresses and domains from user input.

Return a JSON array of objects with:
- "type": either "email" (for specific email addresses) or "domain" (for entire domains)
- "value": the email address or domain name (lowercase, no @ prefix for domains)

Rules:
- If input contains a full email address (has @), extract it as type "email"
- If input mentions a domain/company domain without @, extract as type "domain"
- Domain values should NOT have @ prefix (e.g., "example.com" not "@example.com")
- Handle common variations like "@domain.com", "domain.com", "emails from domain.com"
- Extract ALL email addresses and domains mentioned
- Ignore filler words and explanatory text

Respond ONLY with the JSON array, no other text.`

// EntryParser turns natural-language input ("trust acme.com and bob@x.org")
// into suppression entries using the classification oracle.
type EntryParser struct {
	oracle classifier.Oracle
}

// NewEntryParser creates a new entry parser
func NewEntryParser(oracle classifier.Oracle) *EntryParser {
	return &EntryParser{oracle: oracle}
}

// Parse extracts entries from user input. Oracle transport errors are
// returned; a malformed completion yields an empty result.
func (p *EntryParser) Parse(ctx context.Context, input string) ([]ParsedEntry, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}

	raw, err := p.oracle.Complete(ctx, parserSystemPrompt, input, 500)
	if err != nil {
		return nil, fmt.Errorf("oracle request failed: %w", err)
	}

	text := classifier.StripCodeFences(strings.TrimSpace(raw))

	var items []ParsedEntry
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		logrus.Errorf("Failed to parse oracle list response: %v", err)
		return nil, nil
	}

	var entries []ParsedEntry
	for _, item := range items {
		entryType := strings.ToLower(item.EntryType)
		value := strings.ToLower(strings.TrimSpace(item.Value))

		if entryType != model.EntryTypeEmail && entryType != model.EntryTypeDomain {
			logrus.Warnf("Invalid entry type from oracle: %s", item.EntryType)
			continue
		}
		if entryType == model.EntryTypeDomain {
			value = strings.TrimPrefix(value, "@")
		}
		if entryType == model.EntryTypeEmail && !strings.Contains(value, "@") {
			logrus.Warnf("Invalid email from oracle (no @): %s", value)
			continue
		}
		if value == "" {
			continue
		}

		entries = append(entries, ParsedEntry{EntryType: entryType, Value: value})
	}

	logrus.Infof("Parsed list input %q into %d entries", input, len(entries))
	return entries, nil
}
