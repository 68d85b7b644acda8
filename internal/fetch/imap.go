package fetch

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	"github.com/sirupsen/logrus"

	"inbox-sentinel/internal/config"
	"inbox-sentinel/internal/model"
)

// IMAPFetcher fetches mail over IMAP for deployments without Gmail API
// access. The checkpoint is the RFC 3339 time of the previous run.
type IMAPFetcher struct {
	cfg *config.IMAPConfig
}

// NewIMAPFetcher creates a new IMAP fetcher
func NewIMAPFetcher(cfg *config.IMAPConfig) *IMAPFetcher {
	return &IMAPFetcher{cfg: cfg}
}

// FetchNew connects, searches the inbox for mail since the checkpoint, and
// returns the fetch time as the next checkpoint. A missing or malformed
// checkpoint starts from 24 hours back.
func (f *IMAPFetcher) FetchNew(ctx context.Context, account *model.Account, checkpoint string, maxResults int) ([]Message, string, error) {
	since := time.Now().Add(-24 * time.Hour)
	if checkpoint != "" {
		parsed, err := time.Parse(time.RFC3339, checkpoint)
		if err != nil {
			logrus.Warnf("Invalid IMAP checkpoint %q for %s, using 24h window", checkpoint, account.Email)
		} else {
			since = parsed
		}
	}
	fetchedAt := time.Now().UTC()

	c, err := client.DialTLS(fmt.Sprintf("%s:%d", f.cfg.Host, f.cfg.Port), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer c.Logout()

	if err := c.Login(f.cfg.User, f.cfg.Password); err != nil {
		return nil, "", fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, "", fmt.Errorf("failed to select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since

	uids, err := c.Search(criteria)
	if err != nil {
		return nil, "", fmt.Errorf("failed to search messages: %w", err)
	}
	if len(uids) == 0 {
		return nil, fetchedAt.Format(time.RFC3339), nil
	}
	if len(uids) > maxResults {
		uids = uids[len(uids)-maxResults:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem(), imap.FetchUid}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	var out []Message
	for msg := range messages {
		parsed, err := parseIMAPMessage(msg, section)
		if err != nil {
			logrus.Warnf("Failed to parse IMAP message for %s: %v", account.Email, err)
			continue
		}
		out = append(out, parsed)
	}

	if err := <-done; err != nil {
		return nil, "", fmt.Errorf("failed to fetch messages: %w", err)
	}

	return out, fetchedAt.Format(time.RFC3339), nil
}

// parseIMAPMessage converts a fetched IMAP message into our normalized
// form.
func parseIMAPMessage(msg *imap.Message, section *imap.BodySectionName) (Message, error) {
	out := Message{ReceivedAt: time.Now().UTC()}

	if msg.Envelope != nil {
		out.MessageID = msg.Envelope.MessageId
		out.Subject = msg.Envelope.Subject
		if !msg.Envelope.Date.IsZero() {
			out.ReceivedAt = msg.Envelope.Date.UTC()
		}
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			out.SenderName = from.PersonalName
			out.SenderEmail = strings.ToLower(from.Address())
		}
	}
	if out.MessageID == "" {
		out.MessageID = fmt.Sprintf("imap-uid-%d", msg.Uid)
	}

	body, err := extractIMAPBody(msg, section)
	if err != nil {
		return out, err
	}
	if len(body) > bodyTextLimit {
		body = body[:bodyTextLimit]
	}
	out.BodyText = body
	if out.Snippet == "" && body != "" {
		snippet := body
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		out.Snippet = strings.Join(strings.Fields(snippet), " ")
	}

	return out, nil
}

// extractIMAPBody reads the message body section and returns the first
// text/plain part.
func extractIMAPBody(msg *imap.Message, section *imap.BodySectionName) (string, error) {
	r := msg.GetBody(section)
	if r == nil {
		return "", nil
	}

	entity, err := message.Read(r)
	if err != nil {
		return "", fmt.Errorf("failed to read message: %w", err)
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", fmt.Errorf("failed to read part: %w", err)
			}

			contentType := part.Header.Get("Content-Type")
			if strings.Contains(contentType, "text/plain") {
				content, err := io.ReadAll(part.Body)
				if err != nil {
					return "", fmt.Errorf("failed to read part body: %w", err)
				}
				return string(content), nil
			}
		}
		return "", nil
	}

	content, err := io.ReadAll(entity.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read message body: %w", err)
	}
	contentType := entity.Header.Get("Content-Type")
	if contentType == "" || strings.Contains(contentType, "text/plain") {
		return string(content), nil
	}
	return "", nil
}
