package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"inbox-sentinel/internal/model"
	"inbox-sentinel/internal/suppression"
)

// listParam validates the :list path segment.
func listParam(c *gin.Context) (string, bool) {
	list := c.Param("list")
	if list != model.ListAllow && list != model.ListDeny {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_list",
			Message: "List must be 'allow' or 'deny'",
			Code:    http.StatusBadRequest,
		})
		return "", false
	}
	return list, true
}

// GetListEntries returns all active entries on a list.
func (h *Handlers) GetListEntries(c *gin.Context) {
	list, ok := listParam(c)
	if !ok {
		return
	}

	var entries []model.SuppressionEntry
	err := h.db.Where("list = ? AND is_active = ?", list, true).
		Order("value ASC").Find(&entries).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch list entries",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, entries)
}

// CreateListEntry adds one entry to a list.
func (h *Handlers) CreateListEntry(c *gin.Context) {
	list, ok := listParam(c)
	if !ok {
		return
	}

	var req SuppressionEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "entry_type must be 'email' or 'domain' and value is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	value := strings.ToLower(strings.TrimSpace(req.Value))
	if req.EntryType == model.EntryTypeDomain {
		value = strings.TrimPrefix(value, "@")
	}
	if req.EntryType == model.EntryTypeEmail && !strings.Contains(value, "@") {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Email entries must contain '@'",
			Code:    http.StatusBadRequest,
		})
		return
	}

	entry := model.SuppressionEntry{
		List:      list,
		EntryType: req.EntryType,
		Value:     value,
		Notes:     req.Notes,
		IsActive:  true,
	}

	if err := h.db.Create(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "duplicate_entry",
				Message: "Entry already exists on this list",
				Code:    http.StatusConflict,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to create list entry",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// ParseListEntries extracts entries from natural-language input and adds
// them to the list. Entries that already exist are reported as skipped.
func (h *Handlers) ParseListEntries(c *gin.Context) {
	list, ok := listParam(c)
	if !ok {
		return
	}

	var req ParseEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "input is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	parsed, err := h.entryParser.Parse(c.Request.Context(), req.Input)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "parser_error",
			Message: "Failed to parse input",
			Code:    http.StatusBadGateway,
		})
		return
	}

	var added []model.SuppressionEntry
	var skipped []suppression.ParsedEntry
	for _, item := range parsed {
		entry := model.SuppressionEntry{
			List:      list,
			EntryType: item.EntryType,
			Value:     item.Value,
			Notes:     "added via parse",
			IsActive:  true,
		}
		if err := h.db.Create(&entry).Error; err != nil {
			skipped = append(skipped, item)
			continue
		}
		added = append(added, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"added":   added,
		"skipped": skipped,
	})
}

// DeleteListEntry deactivates one list entry.
func (h *Handlers) DeleteListEntry(c *gin.Context) {
	list, ok := listParam(c)
	if !ok {
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid entry ID",
			Code:    http.StatusBadRequest,
		})
		return
	}

	var entry model.SuppressionEntry
	if err := h.db.Where("list = ?", list).First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Entry not found",
				Code:    http.StatusNotFound,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch entry",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	entry.IsActive = false
	if err := h.db.Save(&entry).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to deactivate entry",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Entry deactivated"})
}
