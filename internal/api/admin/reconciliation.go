// reconciliation.go implements the burned-code report and repair endpoints.
// A burned code is one that was consumed but whose account link was never
// written; the background reconciler only detects and reports these, so the
// repair here is the one place the missing link actually gets created.
package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/repositories"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/linking"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/services"
)

const (
	defaultReportLimit = 50
	maxReportLimit     = 500
)

// ReconciliationHandlers serves the burned-code report, repair, and the
// support code lookup.
type ReconciliationHandlers struct {
	svc      *services.LinkingService
	codeRepo *repositories.LinkingCodeRepository
}

// NewReconciliationHandlers creates the reconciliation handlers.
func NewReconciliationHandlers(svc *services.LinkingService, codeRepo *repositories.LinkingCodeRepository) *ReconciliationHandlers {
	return &ReconciliationHandlers{svc: svc, codeRepo: codeRepo}
}

// RepairRequest names the burned code to repair.
type RepairRequest struct {
	Code string `json:"code" binding:"required"`
}

// ValidateRequest names the code to look up.
type ValidateRequest struct {
	Code string `json:"code" binding:"required"`
}

// @Summary      Burned-code report
// @Description  Lists consumed codes that have no matching account link, oldest first. These are users who typed a valid code and got nothing; each one is a support case until repaired.
// @Tags         Reconciliation
// @Security     OpsToken
// @Produce      json
// @Param        limit  query  int  false  "Maximum entries to return (default 50, max 500)"
// @Success      200  {object}  map[string]interface{}  "total: overall count, codes: burned code records"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/reconciliation [get]
// GetReport lists burned-without-link codes
// GET /api/v1/admin/reconciliation
func (h *ReconciliationHandlers) GetReport(c *gin.Context) {
	limit := defaultReportLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if parsed > maxReportLimit {
			parsed = maxReportLimit
		}
		limit = parsed
	}

	// noted=true includes codes the reconciler has already written an audit
	// row for; the report covers everything still broken.
	codes, err := h.codeRepo.FindBurnedWithoutLink(c.Request.Context(), true, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load reconciliation report"})
		return
	}

	total, err := h.codeRepo.CountBurnedWithoutLink(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count burned codes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": total,
		"codes": codes,
	})
}

// @Summary      Repair burned code
// @Description  Creates the account link a burned code should have produced. Refuses when either side has since linked elsewhere; succeeds idempotently when the expected link already exists.
// @Tags         Reconciliation
// @Security     OpsToken
// @Accept       json
// @Produce      json
// @Param        body  body  RepairRequest  true  "Burned code to repair"
// @Success      200  {object}  map[string]interface{}  "message: confirmation, link: the created or existing link"
// @Failure      400  {object}  map[string]interface{}  "Missing code or code never consumed"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Code not found"
// @Failure      409  {object}  map[string]interface{}  "An identity has an active link elsewhere"
// @Failure      503  {object}  map[string]interface{}  "Storage unavailable"
// @Router       /api/v1/admin/reconciliation/repair [post]
// Repair creates the missing link for a burned code
// POST /api/v1/admin/reconciliation/repair
func (h *ReconciliationHandlers) Repair(c *gin.Context) {
	var req RepairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	link, err := h.svc.RepairBurnedCode(c.Request.Context(), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, linking.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Code not found", "reason": linking.ReasonNotFound})
		case errors.Is(err, linking.ErrAlreadyLinkedElsewhere):
			c.JSON(http.StatusConflict, gin.H{
				"error":  "An identity in this pairing has an active link elsewhere; disconnect it first",
				"reason": "conflict",
			})
		case errors.Is(err, linking.ErrStorageUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable", "reason": "storage_unavailable"})
		default:
			// Covers the never-consumed case; the message names the code.
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.Set("audit_resource_id", link.ID)
	c.Set("audit_external_chat_id", link.ExternalChatID)

	c.JSON(http.StatusOK, gin.H{
		"message": "Link repaired",
		"link":    link,
	})
}

// @Summary      Validate linking code
// @Description  Classifies a code exactly as the consume path would, without mutating anything. Support tooling for "my code doesn't work" reports.
// @Tags         Reconciliation
// @Security     OpsToken
// @Accept       json
// @Produce      json
// @Param        body  body  ValidateRequest  true  "Code to look up"
// @Success      200  {object}  map[string]interface{}  "valid: true, code: the code record"
// @Failure      400  {object}  map[string]interface{}  "Missing code"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "No such code"
// @Failure      409  {object}  map[string]interface{}  "Code already used"
// @Failure      410  {object}  map[string]interface{}  "Code expired"
// @Failure      422  {object}  map[string]interface{}  "Malformed code"
// @Failure      503  {object}  map[string]interface{}  "Storage unavailable"
// @Router       /api/v1/admin/linking/validate [post]
// ValidateCode classifies a code for support
// POST /api/v1/admin/linking/validate
func (h *ReconciliationHandlers) ValidateCode(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	code, err := h.svc.ValidateCode(c.Request.Context(), req.Code)
	if err != nil {
		status := validationStatus(err)
		body := gin.H{"valid": false, "error": validationMessage(err)}
		if reason := linking.Reason(err); reason != "" {
			body["reason"] = reason
		}
		c.JSON(status, body)
		return
	}

	c.Set("audit_resource_id", code.Code)

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"code":  code,
	})
}

// validationStatus maps a validation failure to its HTTP status. Used checked
// before expired upstream means a used-and-expired code reports 409, which is
// what support needs to see.
func validationStatus(err error) int {
	switch {
	case errors.Is(err, linking.ErrMalformed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, linking.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, linking.ErrAlreadyUsed):
		return http.StatusConflict
	case errors.Is(err, linking.ErrExpired):
		return http.StatusGone
	case errors.Is(err, linking.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, linking.ErrMalformed):
		return "Code does not match the KITA-XXXXXX-XXXXXXX format"
	case errors.Is(err, linking.ErrNotFound):
		return "No such code"
	case errors.Is(err, linking.ErrAlreadyUsed):
		return "Code has already been used"
	case errors.Is(err, linking.ErrExpired):
		return "Code has expired"
	case errors.Is(err, linking.ErrStorageUnavailable):
		return "Storage unavailable"
	default:
		return "Validation failed"
	}
}
