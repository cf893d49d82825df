// audit.go provides Gin middleware that records authenticated write operations
// to the audit log, with optional shipping to external audit destinations.
//
// Telegram webhook deliveries are excluded: they arrive once per message and
// carry no caller identity; linking and receipt events get service-level audit
// rows instead.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/audit"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/config"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/repositories"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/safego"
)

// AuditMiddleware logs authenticated actions to the database only
func AuditMiddleware(auditRepo *repositories.AuditRepository) gin.HandlerFunc {
	return AuditMiddlewareWithShipper(auditRepo, nil, nil)
}

// AuditMiddlewareWithShipper logs authenticated actions and ships to external destinations
func AuditMiddlewareWithShipper(auditRepo *repositories.AuditRepository, shipper audit.Shipper, auditCfg *config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request first
		c.Next()

		// Skip OPTIONS always
		if c.Request.Method == "OPTIONS" {
			return
		}

		// Webhook traffic is machine-to-machine and high-volume; skip it here.
		if contains(c.Request.URL.Path, "/telegram/webhook") {
			return
		}

		logReadOps := auditCfg != nil && auditCfg.LogReadOperations
		logFailedReqs := auditCfg != nil && auditCfg.LogFailedRequests

		isReadOp := c.Request.Method == "GET"
		isFailed := c.Writer.Status() >= 400

		// Default behavior: only log successful write operations
		if auditCfg == nil {
			if isReadOp || isFailed {
				return
			}
		} else {
			if isReadOp && !logReadOps {
				return
			}
			if isFailed && !logFailedReqs && isReadOp {
				return
			}
		}

		userID, _ := c.Get("user_id")
		authMethod, _ := c.Get("auth_method")
		opsTokenName, _ := c.Get("ops_token_name")

		action := fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path)
		ipAddress := c.ClientIP()

		auditLog := &models.AuditLog{
			Action:    action,
			IPAddress: &ipAddress,
			CreatedAt: time.Now(),
		}

		var userIDStr string
		if userID != nil {
			if uid, ok := userID.(string); ok {
				userIDStr = uid
				auditLog.UserID = &userIDStr
			}
		}

		// Set resource type based on URL path
		var resourceType string
		if contains(c.Request.URL.Path, "/reconciliation") {
			resourceType = "reconciliation"
			auditLog.ResourceType = &resourceType
			if contains(c.Request.URL.Path, "/repair") && c.Request.Method == "POST" {
				action = "reconciliation.repair_triggered"
			}
			auditLog.Action = action
		} else if contains(c.Request.URL.Path, "/linking/codes") {
			resourceType = "linking_code"
			auditLog.ResourceType = &resourceType
			if c.Request.Method == "POST" {
				action = "linking.code_requested"
			}
			auditLog.Action = action
		} else if contains(c.Request.URL.Path, "/linking") {
			resourceType = "account_link"
			auditLog.ResourceType = &resourceType
		} else if contains(c.Request.URL.Path, "/agents") {
			resourceType = "agent"
			auditLog.ResourceType = &resourceType
		} else if contains(c.Request.URL.Path, "/tokens") {
			resourceType = "ops_token"
			auditLog.ResourceType = &resourceType
			if c.Request.Method == "POST" {
				action = "ops_token.created"
			} else if c.Request.Method == "DELETE" {
				action = "ops_token.revoked"
			}
			auditLog.Action = action
		} else if contains(c.Request.URL.Path, "/audit-logs") {
			resourceType = "audit_log"
			auditLog.ResourceType = &resourceType
		}

		// Handlers may annotate the context with the touched resource so the
		// trail points at a concrete row, not just a path.
		var resourceIDStr string
		if resourceID, ok := c.Get("audit_resource_id"); ok {
			if rid, ok := resourceID.(string); ok && rid != "" {
				resourceIDStr = rid
				auditLog.ResourceID = &resourceIDStr
			}
		}
		var chatIDStr string
		if chatID, ok := c.Get("audit_external_chat_id"); ok {
			if cid, ok := chatID.(string); ok {
				chatIDStr = cid
			}
		}

		metadata := make(map[string]interface{})

		if authMethod != nil {
			metadata["auth_method"] = authMethod
		}
		if opsTokenName != nil {
			metadata["ops_token_name"] = opsTokenName
		}
		if requestID := RequestID(c); requestID != "" {
			metadata["request_id"] = requestID
		}
		metadata["status_code"] = c.Writer.Status()

		if len(metadata) > 0 {
			auditLog.Metadata = metadata
		}

		statusCode := c.Writer.Status()

		// Async log creation (non-blocking)
		safego.Go("audit.write", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if auditRepo != nil {
				if err := auditRepo.CreateAuditLog(ctx, auditLog); err != nil {
					slog.Warn("failed to create audit log in database", "error", err)
				}
			}

			if shipper != nil {
				authMethodStr := ""
				if am, ok := authMethod.(string); ok {
					authMethodStr = am
				}

				entry := &audit.LogEntry{
					Timestamp:      auditLog.CreatedAt,
					Action:         auditLog.Action,
					UserID:         userIDStr,
					ExternalChatID: chatIDStr,
					ResourceType:   resourceType,
					ResourceID:     resourceIDStr,
					IPAddress:      ipAddress,
					AuthMethod:     authMethodStr,
					StatusCode:     statusCode,
					Metadata:       metadata,
				}

				if err := shipper.Ship(ctx, entry); err != nil {
					slog.Warn("failed to ship audit log", "error", err)
				}
			}
		})
	}
}

// contains is a simple helper to check if a string contains a substring
func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(s) > len(substr) &&
		(s[:len(substr)] == substr || s[len(s)-len(substr):] == substr ||
			indexOf(s, substr) >= 0))
}

// indexOf returns the index of the first instance of substr in s, or -1 if substr is not present
func indexOf(s, substr string) int {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
