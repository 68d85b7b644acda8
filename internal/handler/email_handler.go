package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"inbox-sentinel/internal/model"
)

// GetRecentEmails returns processed emails, newest first, with pagination.
func (h *Handlers) GetRecentEmails(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	offset := (page - 1) * limit

	var emails []model.ProcessedEmail
	query := h.db.Order("processed_at DESC").Offset(offset).Limit(limit)

	if minScore := c.Query("min_score"); minScore != "" {
		if score, err := strconv.ParseFloat(minScore, 64); err == nil {
			query = query.Where("importance_score >= ?", score)
		}
	}

	if err := query.Find(&emails).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch emails",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	var total int64
	h.db.Model(&model.ProcessedEmail{}).Count(&total)

	c.JSON(http.StatusOK, gin.H{
		"emails": emails,
		"page":   page,
		"limit":  limit,
		"total":  total,
	})
}

// SubmitFeedback records a user correction on an email's importance rating.
func (h *Handlers) SubmitFeedback(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid email ID",
			Code:    http.StatusBadRequest,
		})
		return
	}

	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "feedback_type must be 'important' or 'not_important'",
			Code:    http.StatusBadRequest,
		})
		return
	}

	result, err := h.ledger.Submit(uint(id), req.FeedbackType)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "feedback_error",
			Message: err.Error(),
			Code:    http.StatusNotFound,
		})
		return
	}

	h.metrics.FeedbackEvents.Inc()
	c.JSON(http.StatusOK, result)
}

// GetStats returns summary statistics for the pipeline.
func (h *Handlers) GetStats(c *gin.Context) {
	var stats StatsResponse

	h.db.Model(&model.ProcessedEmail{}).Count(&stats.TotalProcessed)
	h.db.Model(&model.ProcessedEmail{}).Where("notification_sent = ?", true).Count(&stats.NotificationsSent)
	h.db.Model(&model.ProcessedEmail{}).
		Where("digest_eligible = ? AND digest_sent = ?", true, false).Count(&stats.PendingDigest)
	h.db.Model(&model.ProcessedEmail{}).Where("digest_sent = ?", true).Count(&stats.DigestSent)
	h.db.Model(&model.Account{}).Where("is_active = ?", true).Count(&stats.ActiveAccounts)
	h.db.Model(&model.LearnedPattern{}).Count(&stats.LearnedPatterns)

	if stats.TotalProcessed > 0 {
		var avg *float64
		h.db.Model(&model.ProcessedEmail{}).Select("AVG(importance_score)").Scan(&avg)
		if avg != nil {
			stats.AverageScore = model.RoundScore(*avg)
		}
	}

	c.JSON(http.StatusOK, stats)
}

// GetFeedbackStats returns accumulated feedback counts.
func (h *Handlers) GetFeedbackStats(c *gin.Context) {
	var stats FeedbackStatsResponse

	h.db.Model(&model.FeedbackEvent{}).Count(&stats.TotalEvents)
	h.db.Model(&model.FeedbackEvent{}).
		Where("feedback_type = ?", model.FeedbackImportant).Count(&stats.Important)
	h.db.Model(&model.FeedbackEvent{}).
		Where("feedback_type = ?", model.FeedbackNotImportant).Count(&stats.NotImportant)
	h.db.Model(&model.LearnedPattern{}).
		Where("pattern_type = ?", model.PatternTypeSender).Count(&stats.SenderCount)
	h.db.Model(&model.LearnedPattern{}).
		Where("pattern_type = ?", model.PatternTypeDomain).Count(&stats.DomainCount)

	c.JSON(http.StatusOK, stats)
}

// GetPatterns returns all learned score adjustments, strongest first.
func (h *Handlers) GetPatterns(c *gin.Context) {
	var patterns []model.LearnedPattern
	if err := h.db.Order("ABS(score_adjustment) DESC").Find(&patterns).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch patterns",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, patterns)
}
