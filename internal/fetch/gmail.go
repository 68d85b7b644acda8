package fetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"inbox-sentinel/internal/config"
	"inbox-sentinel/internal/model"
)

// Body text fed to the classifier is capped; anything past this point
// rarely changes the verdict.
const bodyTextLimit = 2000

// fallbackQuery is used when no history checkpoint exists or when the
// stored one has expired server-side.
const fallbackQuery = "in:inbox is:unread"

// fromHeaderRe splits `"Display Name" <addr@example.com>` style From
// headers into name and address.
var fromHeaderRe = regexp.MustCompile(`^"?([^"<]*)"?\s*<?([^>\s]+@[^>\s]+)>?$`)

// GmailFetcher fetches new mail through the Gmail API, one OAuth2 token
// source per account.
type GmailFetcher struct {
	cfg *config.GoogleConfig
}

// NewGmailFetcher creates a new Gmail fetcher
func NewGmailFetcher(cfg *config.GoogleConfig) *GmailFetcher {
	return &GmailFetcher{cfg: cfg}
}

// FetchNew returns messages that arrived since the checkpoint (a Gmail
// history ID). An empty or expired checkpoint falls back to listing recent
// unread inbox mail. Refreshed OAuth2 tokens are written back onto the
// account so the caller can persist them.
func (f *GmailFetcher) FetchNew(ctx context.Context, account *model.Account, checkpoint string, maxResults int) ([]Message, string, error) {
	tokenSource := f.tokenSource(ctx, account)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create Gmail service: %w", err)
	}

	var ids []string
	if checkpoint != "" {
		ids, err = f.listHistory(service, checkpoint, maxResults)
		if err != nil {
			if isHistoryExpired(err) {
				logrus.Warnf("History checkpoint %s expired for %s, falling back to full fetch", checkpoint, account.Email)
				ids, err = f.listRecent(service, maxResults)
			}
			if err != nil {
				return nil, "", err
			}
		}
	} else {
		ids, err = f.listRecent(service, maxResults)
		if err != nil {
			return nil, "", err
		}
	}

	var messages []Message
	for _, id := range ids {
		msg, err := service.Users.Messages.Get("me", id).Format("full").Do()
		if err != nil {
			logrus.Warnf("Failed to get message %s for %s: %v", id, account.Email, err)
			continue
		}
		messages = append(messages, parseGmailMessage(msg))
	}

	profile, err := service.Users.GetProfile("me").Do()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get Gmail profile: %w", err)
	}
	newCheckpoint := strconv.FormatUint(profile.HistoryId, 10)

	f.writeBackToken(tokenSource, account)

	return messages, newCheckpoint, nil
}

// tokenSource builds a self-refreshing token source from the account's
// stored OAuth2 credentials.
func (f *GmailFetcher) tokenSource(ctx context.Context, account *model.Account) oauth2.TokenSource {
	conf := &oauth2.Config{
		ClientID:     f.cfg.ClientID,
		ClientSecret: f.cfg.ClientSecret,
		Scopes:       []string{gmail.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
	}
	if account.TokenExpiry != nil {
		token.Expiry = *account.TokenExpiry
	}

	return conf.TokenSource(ctx, token)
}

// writeBackToken copies a refreshed access token back onto the account.
func (f *GmailFetcher) writeBackToken(source oauth2.TokenSource, account *model.Account) {
	token, err := source.Token()
	if err != nil {
		logrus.Warnf("Failed to read token for %s: %v", account.Email, err)
		return
	}
	if token.AccessToken == account.AccessToken {
		return
	}

	account.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		account.RefreshToken = token.RefreshToken
	}
	expiry := token.Expiry
	account.TokenExpiry = &expiry
	logrus.Debugf("Refreshed access token for %s", account.Email)
}

// listHistory returns the IDs of messages added since the given history
// checkpoint.
func (f *GmailFetcher) listHistory(service *gmail.Service, checkpoint string, maxResults int) ([]string, error) {
	startID, err := strconv.ParseUint(checkpoint, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid history checkpoint %q: %w", checkpoint, err)
	}

	response, err := service.Users.History.List("me").
		StartHistoryId(startID).
		HistoryTypes("messageAdded").
		MaxResults(int64(maxResults)).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, history := range response.History {
		for _, added := range history.MessagesAdded {
			if added.Message == nil || seen[added.Message.Id] {
				continue
			}
			seen[added.Message.Id] = true
			ids = append(ids, added.Message.Id)
			if len(ids) >= maxResults {
				return ids, nil
			}
		}
	}
	return ids, nil
}

// listRecent returns recent unread inbox message IDs, used for the first
// fetch of an account and as the expired-checkpoint fallback.
func (f *GmailFetcher) listRecent(service *gmail.Service, maxResults int) ([]string, error) {
	response, err := service.Users.Messages.List("me").
		Q(fallbackQuery).
		MaxResults(int64(maxResults)).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	ids := make([]string, 0, len(response.Messages))
	for _, msg := range response.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, nil
}

// isHistoryExpired reports whether the error is Gmail telling us the
// stored history ID is too old to resume from.
func isHistoryExpired(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 404
	}
	return false
}

// parseGmailMessage converts a full-format Gmail message into our
// normalized form.
func parseGmailMessage(msg *gmail.Message) Message {
	out := Message{
		MessageID:  msg.Id,
		ThreadID:   msg.ThreadId,
		Snippet:    msg.Snippet,
		ReceivedAt: time.Now().UTC(),
	}

	if msg.Payload == nil {
		return out
	}

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Subject":
			out.Subject = header.Value
		case "From":
			out.SenderName, out.SenderEmail = ParseFromHeader(header.Value)
		case "Date":
			if t, err := mail.ParseDate(header.Value); err == nil {
				out.ReceivedAt = t.UTC()
			}
		}
	}

	out.BodyText = extractPlainText(msg.Payload)
	if len(out.BodyText) > bodyTextLimit {
		out.BodyText = out.BodyText[:bodyTextLimit]
	}

	return out
}

// ParseFromHeader splits a From header into display name and address.
// A bare address comes back with an empty name.
func ParseFromHeader(from string) (name, email string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", ""
	}

	if matches := fromHeaderRe.FindStringSubmatch(from); matches != nil {
		return strings.TrimSpace(matches[1]), strings.ToLower(strings.TrimSpace(matches[2]))
	}

	if addr, err := mail.ParseAddress(from); err == nil {
		return addr.Name, strings.ToLower(addr.Address)
	}

	return "", strings.ToLower(from)
}

// extractPlainText walks the MIME tree and returns the first text/plain
// part, decoded.
func extractPlainText(part *gmail.MessagePart) string {
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			logrus.Debugf("Failed to decode message part: %v", err)
			return ""
		}
		return string(data)
	}

	for _, sub := range part.Parts {
		if text := extractPlainText(sub); text != "" {
			return text
		}
	}
	return ""
}
