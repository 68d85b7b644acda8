package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransport(handler http.HandlerFunc) (*PushoverTransport, *httptest.Server) {
	server := httptest.NewServer(handler)
	transport := NewPushover("user-key", "api-token")
	transport.apiURL = server.URL
	return transport, server
}

func TestSendSuccess(t *testing.T) {
	var form map[string][]string
	transport, server := newTestTransport(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Write([]byte(`{"status": 1, "request": "abc"}`))
	})
	defer server.Close()

	result := transport.Send(context.Background(), Notification{
		Title:    "Important: Boss",
		Message:  "<b>Subject:</b> Q3 numbers",
		Priority: PriorityHigh,
		Sound:    SoundIncoming,
		HTML:     true,
	})

	assert.True(t, result.Success)
	assert.Equal(t, "api-token", form["token"][0])
	assert.Equal(t, "user-key", form["user"][0])
	assert.Equal(t, "Important: Boss", form["title"][0])
	assert.Equal(t, "1", form["priority"][0])
	assert.Equal(t, SoundIncoming, form["sound"][0])
	assert.Equal(t, "1", form["html"][0])
	assert.Empty(t, form["retry"])
}

func TestSendEmergencySetsRetry(t *testing.T) {
	var form map[string][]string
	transport, server := newTestTransport(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Write([]byte(`{"status": 1, "receipt": "r-123"}`))
	})
	defer server.Close()

	result := transport.Send(context.Background(), Notification{
		Title:    "Critical",
		Message:  "Server down",
		Priority: PriorityEmergency,
	})

	assert.True(t, result.Success)
	assert.Equal(t, "r-123", result.Receipt)
	assert.Equal(t, "60", form["retry"][0])
	assert.Equal(t, "3600", form["expire"][0])
}

func TestSendAPIError(t *testing.T) {
	transport, server := newTestTransport(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status": 0, "errors": ["user identifier is invalid"]}`))
	})
	defer server.Close()

	result := transport.Send(context.Background(), Notification{Title: "x", Message: "y"})

	assert.False(t, result.Success)
	assert.Equal(t, "user identifier is invalid", result.Error)
}

func TestSendConnectionError(t *testing.T) {
	transport, server := newTestTransport(func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	result := transport.Send(context.Background(), Notification{Title: "x", Message: "y"})
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestSendTruncatesLongFields(t *testing.T) {
	var form map[string][]string
	transport, server := newTestTransport(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Write([]byte(`{"status": 1}`))
	})
	defer server.Close()

	transport.Send(context.Background(), Notification{
		Title:   strings.Repeat("t", 300),
		Message: strings.Repeat("m", 2000),
	})

	assert.Len(t, form["title"][0], 250)
	assert.Len(t, form["message"][0], 1024)
}

func TestSendDefaultSound(t *testing.T) {
	var form map[string][]string
	transport, server := newTestTransport(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Write([]byte(`{"status": 1}`))
	})
	defer server.Close()

	transport.Send(context.Background(), Notification{Title: "x", Message: "y"})
	assert.Equal(t, SoundDefault, form["sound"][0])
}
