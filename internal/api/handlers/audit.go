package handlers

import (
	"net/http"
	"strconv"

	"authtrail/internal/audit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditHandler exposes read access to the audit streams for administrators.
type AuditHandler struct {
	store *audit.GormStore
}

func NewAuditHandler(store *audit.GormStore) *AuditHandler {
	return &AuditHandler{store: store}
}

// GetLoginAttempts lists recent login attempts, optionally filtered by
// email and success.
func (h *AuditHandler) GetLoginAttempts(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}

	filter := audit.LoginAttemptFilter{
		Email:  c.Query("email"),
		Limit:  limit,
		Offset: offset,
	}
	if raw := c.Query("success"); raw != "" {
		success, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid success filter"})
			return
		}
		filter.Success = &success
	}

	rows, err := h.store.ListLoginAttempts(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get login attempts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"login_attempts": rows})
}

// GetInteractions lists recent request interactions, optionally for one user.
func (h *AuditHandler) GetInteractions(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}

	filter := audit.InteractionFilter{Limit: limit, Offset: offset}
	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
			return
		}
		filter.UserID = &id
	}

	rows, err := h.store.ListInteractions(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get interactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"interactions": rows})
}

func pagination(c *gin.Context) (limit, offset int, ok bool) {
	var err error
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return 0, 0, false
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
			return 0, 0, false
		}
	}
	return limit, offset, true
}
