// stats.go implements handlers for aggregating and serving operator dashboard statistics.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// StatsHandler handles stats-related API requests
type StatsHandler struct {
	db *sqlx.DB
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(database *sqlx.DB) *StatsHandler {
	return &StatsHandler{
		db: database,
	}
}

// DashboardStats represents the response for dashboard statistics
type DashboardStats struct {
	Links          LinkStats          `json:"links"`
	Codes          CodeStats          `json:"codes"`
	Receipts       ReceiptStats       `json:"receipts"`
	Transactions   TransactionStats   `json:"transactions"`
	RecentActivity []RecentAuditEntry `json:"recent_activity"`
}

// LinkStats summarises account link health.
type LinkStats struct {
	Active      int64 `json:"active"`
	Deactivated int64 `json:"deactivated"`
}

// CodeStats summarises linking code lifecycle counts.
type CodeStats struct {
	Issued       int64 `json:"issued"`         // all codes still in the table
	Outstanding  int64 `json:"outstanding"`    // unused and not yet expired
	Used         int64 `json:"used"`
	BurnedNoLink int64 `json:"burned_no_link"` // used but no matching link; see /admin/reconciliation
}

// ReceiptStats summarises the scan pipeline.
type ReceiptStats struct {
	Total       int64 `json:"total"`
	Parsed      int64 `json:"parsed"`
	Unparseable int64 `json:"unparseable"`
}

// CategoryCount is the transaction count for one spending category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// TransactionStats summarises recorded transactions.
type TransactionStats struct {
	Total         int64           `json:"total"`
	FromReceipts  int64           `json:"from_receipts"`
	Last30Days    int64           `json:"last_30_days"`
	TopCategories []CategoryCount `json:"top_categories"`
}

// RecentAuditEntry is one recent linking-related audit event.
type RecentAuditEntry struct {
	Action     string    `json:"action"`
	ResourceID *string   `json:"resource_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// @Summary      Get dashboard statistics
// @Description  Returns aggregated statistics for the operator dashboard: link and code lifecycle counts, receipt scan outcomes, transaction totals, and recent linking activity.
// @Tags         Stats
// @Security     OpsToken
// @Produce      json
// @Success      200  {object}  DashboardStats
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/stats/dashboard [get]
// GetDashboardStats returns dashboard statistics using a single database round-trip
// for the core counts.
func (h *StatsHandler) GetDashboardStats(c *gin.Context) {
	ctx := c.Request.Context()

	// Core counts in one round-trip.
	query := `
		SELECT
			(SELECT COUNT(*) FROM account_links WHERE active = true) AS active_links,
			(SELECT COUNT(*) FROM account_links WHERE active = false) AS deactivated_links,
			(SELECT COUNT(*) FROM linking_codes) AS codes_issued,
			(SELECT COUNT(*) FROM linking_codes WHERE used = false AND expires_at >= NOW()) AS codes_outstanding,
			(SELECT COUNT(*) FROM linking_codes WHERE used = true) AS codes_used,
			(SELECT COUNT(*) FROM receipt_scans) AS scans_total,
			(SELECT COUNT(*) FROM receipt_scans WHERE status = 'parsed') AS scans_parsed,
			(SELECT COUNT(*) FROM transactions) AS txns_total
	`

	var stats DashboardStats

	err := h.db.QueryRowContext(ctx, query).Scan(
		&stats.Links.Active,
		&stats.Links.Deactivated,
		&stats.Codes.Issued,
		&stats.Codes.Outstanding,
		&stats.Codes.Used,
		&stats.Receipts.Total,
		&stats.Receipts.Parsed,
		&stats.Transactions.Total,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard statistics"})
		return
	}
	stats.Receipts.Unparseable = stats.Receipts.Total - stats.Receipts.Parsed

	// Secondary counts — graceful fallback to zero on error.
	_ = h.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM linking_codes lc
		WHERE lc.used = true
		  AND NOT EXISTS (
			SELECT 1 FROM account_links al
			WHERE al.web_user_id = lc.owner_user_id
			  AND al.external_chat_id = lc.used_by_external_id
		  )
	`).Scan(&stats.Codes.BurnedNoLink)
	_ = h.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE source = 'telegram_receipt'`,
	).Scan(&stats.Transactions.FromReceipts)
	_ = h.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE txn_date >= NOW() - INTERVAL '30 days'`,
	).Scan(&stats.Transactions.Last30Days)

	// Top categories — top 8, optional.
	stats.Transactions.TopCategories = []CategoryCount{}
	if catRows, catErr := h.db.QueryContext(ctx, `
		SELECT category, COUNT(*) AS count
		FROM transactions
		WHERE category IS NOT NULL
		GROUP BY category
		ORDER BY count DESC
		LIMIT 8
	`); catErr == nil {
		defer catRows.Close()
		for catRows.Next() {
			var entry CategoryCount
			if scanErr := catRows.Scan(&entry.Category, &entry.Count); scanErr == nil {
				stats.Transactions.TopCategories = append(stats.Transactions.TopCategories, entry)
			}
		}
	}

	// Recent linking activity — last 10 audit events, optional.
	stats.RecentActivity = []RecentAuditEntry{}
	if actRows, actErr := h.db.QueryContext(ctx, `
		SELECT action, resource_id, created_at
		FROM audit_logs
		WHERE action LIKE 'linking.%'
		ORDER BY created_at DESC
		LIMIT 10
	`); actErr == nil {
		defer actRows.Close()
		for actRows.Next() {
			var entry RecentAuditEntry
			if scanErr := actRows.Scan(&entry.Action, &entry.ResourceID, &entry.CreatedAt); scanErr == nil {
				stats.RecentActivity = append(stats.RecentActivity, entry)
			}
		}
	}

	c.JSON(http.StatusOK, stats)
}
