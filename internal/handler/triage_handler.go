package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inbox-sentinel/internal/notify"
)

// RunTriage runs one triage pass immediately.
func (h *Handlers) RunTriage(c *gin.Context) {
	summary, err := h.scheduler.RunTriageOnce(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "triage_error",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// SendDigest sends the pending digest immediately.
func (h *Handlers) SendDigest(c *gin.Context) {
	result, err := h.scheduler.RunDigestOnce(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "digest_error",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetDigestStats returns pending and delivered digest counts.
func (h *Handlers) GetDigestStats(c *gin.Context) {
	stats, err := h.aggregator.GetStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch digest stats",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// TestNotification sends a test push to verify the transport credentials.
func (h *Handlers) TestNotification(c *gin.Context) {
	var req TestNotificationRequest
	// Body is optional for this endpoint.
	_ = c.ShouldBindJSON(&req)

	message := req.Message
	if message == "" {
		message = "Test notification from Inbox Sentinel"
	}

	result := h.transport.Send(c.Request.Context(), notify.Notification{
		Title:    "Inbox Sentinel",
		Message:  message,
		Priority: notify.PriorityNormal,
		Sound:    notify.SoundDefault,
	})
	if !result.Success {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "notification_error",
			Message: result.Error,
			Code:    http.StatusBadGateway,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Test notification sent"})
}
