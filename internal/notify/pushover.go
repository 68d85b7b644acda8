package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Pushover priority levels
const (
	PriorityLowest    = -2
	PriorityLow       = -1
	PriorityNormal    = 0
	PriorityHigh      = 1
	PriorityEmergency = 2
)

// Pushover sounds used by the dispatcher and digest
const (
	SoundDefault  = "pushover"
	SoundIncoming = "incoming"
	SoundSiren    = "siren"
	SoundNone     = "none"
)

const defaultAPIURL = "https://api.pushover.net/1/messages.json"

// Result is the outcome of one notification send attempt.
type Result struct {
	Success bool   `json:"success"`
	Receipt string `json:"receipt,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Notification is one push message.
type Notification struct {
	Title    string
	Message  string
	Priority int
	Sound    string
	HTML     bool
	URL      string
	URLTitle string
}

// Transport sends a push notification. Failures are reported in the Result,
// never as a panic or error past this boundary.
type Transport interface {
	Send(ctx context.Context, n Notification) Result
}

// PushoverTransport sends notifications through the Pushover REST API.
type PushoverTransport struct {
	userKey    string
	apiToken   string
	apiURL     string
	httpClient *http.Client
}

// NewPushover creates a new Pushover transport
func NewPushover(userKey, apiToken string) *PushoverTransport {
	return &PushoverTransport{
		userKey:  userKey,
		apiToken: apiToken,
		apiURL:   defaultAPIURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type pushoverResponse struct {
	Status  int      `json:"status"`
	Receipt string   `json:"receipt"`
	Errors  []string `json:"errors"`
}

// Send posts one notification. Titles, messages, and URLs are truncated to
// the API limits.
func (t *PushoverTransport) Send(ctx context.Context, n Notification) Result {
	form := url.Values{}
	form.Set("token", t.apiToken)
	form.Set("user", t.userKey)
	form.Set("title", truncate(n.Title, 250))
	form.Set("message", truncate(n.Message, 1024))
	form.Set("priority", strconv.Itoa(n.Priority))

	sound := n.Sound
	if sound == "" {
		sound = SoundDefault
	}
	form.Set("sound", sound)

	if n.HTML {
		form.Set("html", "1")
	}
	if n.URL != "" {
		form.Set("url", truncate(n.URL, 512))
		if n.URLTitle != "" {
			form.Set("url_title", truncate(n.URLTitle, 100))
		}
	}

	// Emergency priority requires retry/expire
	if n.Priority == PriorityEmergency {
		form.Set("retry", "60")
		form.Set("expire", "3600")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		logrus.Errorf("Pushover request failed: %v", err)
		return Result{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	var body pushoverResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		logrus.Errorf("Pushover response decode failed: %v", err)
		return Result{Success: false, Error: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	if resp.StatusCode != http.StatusOK || body.Status != 1 {
		errMsg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if len(body.Errors) > 0 {
			errMsg = strings.Join(body.Errors, ", ")
		}
		logrus.Errorf("Pushover error: %s", errMsg)
		return Result{Success: false, Error: errMsg}
	}

	return Result{Success: true, Receipt: body.Receipt}
}

// SendTest sends a test notification to verify configuration.
func (t *PushoverTransport) SendTest(ctx context.Context) Result {
	return t.Send(ctx, Notification{
		Title:    "Inbox Sentinel Test",
		Message:  "If you received this, your Pushover configuration is working correctly!",
		Priority: PriorityNormal,
		Sound:    SoundDefault,
	})
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
