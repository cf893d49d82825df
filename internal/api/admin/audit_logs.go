// audit_logs.go implements read access to the audit trail. Support staff use
// it to answer "what happened to this code" without direct database access.
package admin

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/repositories"
)

// AuditLogHandlers handles audit log query endpoints
type AuditLogHandlers struct {
	auditRepo *repositories.AuditRepository
}

// NewAuditLogHandlers creates a new AuditLogHandlers instance
func NewAuditLogHandlers(db *sql.DB) *AuditLogHandlers {
	return &AuditLogHandlers{
		auditRepo: repositories.NewAuditRepository(db),
	}
}

// @Summary      List audit logs
// @Description  Lists audit log entries, newest first, with optional filters. Requires audit:read scope.
// @Tags         Audit
// @Security     OpsToken
// @Produce      json
// @Param        user_id        query  string  false  "Filter by acting user ID"
// @Param        action         query  string  false  "Filter by action, e.g. linking.consumed"
// @Param        resource_type  query  string  false  "Filter by resource type, e.g. linking_code"
// @Param        start_date     query  string  false  "Only entries at or after this time (RFC3339)"
// @Param        end_date       query  string  false  "Only entries at or before this time (RFC3339)"
// @Param        limit          query  int     false  "Max entries to return, max 500 (default 50)"
// @Param        offset         query  int     false  "Entries to skip (default 0)"
// @Success      200  {object}  map[string]interface{}  "logs: []models.AuditLog, total, limit, offset"
// @Failure      400  {object}  map[string]interface{}  "Invalid filter"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/audit-logs [get]
// ListAuditLogsHandler lists audit log entries with optional filters
// GET /api/v1/admin/audit-logs?action=linking.consumed&limit=50
func (h *AuditLogHandlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters repositories.AuditFilters

		if v := c.Query("user_id"); v != "" {
			filters.UserID = &v
		}
		if v := c.Query("action"); v != "" {
			filters.Action = &v
		}
		if v := c.Query("resource_type"); v != "" {
			filters.ResourceType = &v
		}
		if v := c.Query("start_date"); v != "" {
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date format. Use RFC3339"})
				return
			}
			filters.StartDate = &parsed
		}
		if v := c.Query("end_date"); v != "" {
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date format. Use RFC3339"})
				return
			}
			filters.EndDate = &parsed
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		if limit < 1 || limit > 500 {
			limit = 50
		}
		if offset < 0 {
			offset = 0
		}

		logs, total, err := h.auditRepo.ListAuditLogs(c.Request.Context(), filters, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list audit logs",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"logs":   logs,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		})
	}
}
