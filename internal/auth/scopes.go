// Package auth - scopes.go defines permission scope constants for the admin
// surface and provides HasScope, HasAnyScope, and HasAllScopes helper
// functions for scope checking.
package auth

import (
	"errors"
	"fmt"
)

// Scope represents a permission/scope type
type Scope string

const (
	// Dashboard scopes
	ScopeStatsRead Scope = "stats:read"

	// Account link scopes
	ScopeLinksRead   Scope = "links:read"   // View links and run read-only code validation
	ScopeLinksManage Scope = "links:manage" // Deactivate links on a user's behalf

	// Reconciliation scopes
	ScopeReconcileRead   Scope = "reconcile:read"   // View the burned-without-link report
	ScopeReconcileRepair Scope = "reconcile:repair" // Acknowledge or repair reported codes

	// Receipt scan scopes
	ScopeReceiptsRead Scope = "receipts:read" // View the unparseable backlog and fetch archived originals

	// Audit log scopes
	ScopeAuditRead Scope = "audit:read"

	// Ops token management scopes
	ScopeTokensManage Scope = "tokens:manage"

	// Admin scope (wildcard - all permissions)
	ScopeAdmin Scope = "admin"
)

// AllScopes returns all valid scopes
func AllScopes() []Scope {
	return []Scope{
		ScopeStatsRead,
		ScopeLinksRead,
		ScopeLinksManage,
		ScopeReconcileRead,
		ScopeReconcileRepair,
		ScopeReceiptsRead,
		ScopeAuditRead,
		ScopeTokensManage,
		ScopeAdmin,
	}
}

// ValidScopes returns a map of valid scope strings
func ValidScopes() map[string]bool {
	validScopes := make(map[string]bool)
	for _, scope := range AllScopes() {
		validScopes[string(scope)] = true
	}
	return validScopes
}

// ValidateScopes checks if all provided scopes are valid
func ValidateScopes(scopes []string) error {
	validScopes := ValidScopes()

	for _, scope := range scopes {
		if !validScopes[scope] {
			return fmt.Errorf("invalid scope: %s", scope)
		}
	}

	return nil
}

// HasScope checks if a token has a required scope
// Supports wildcard admin scope
func HasScope(tokenScopes []string, required Scope) bool {
	requiredStr := string(required)

	for _, scope := range tokenScopes {
		// Check for exact match
		if scope == requiredStr {
			return true
		}

		// Check for admin wildcard
		if scope == string(ScopeAdmin) {
			return true
		}

		// Manage/repair permission also grants the matching read permission
		if required == ScopeLinksRead && scope == string(ScopeLinksManage) {
			return true
		}
		if required == ScopeReconcileRead && scope == string(ScopeReconcileRepair) {
			return true
		}
	}

	return false
}

// HasAnyScope checks if a token has at least one of the required scopes
func HasAnyScope(tokenScopes []string, requiredScopes []Scope) bool {
	for _, required := range requiredScopes {
		if HasScope(tokenScopes, required) {
			return true
		}
	}
	return false
}

// HasAllScopes checks if a token has all of the required scopes
func HasAllScopes(tokenScopes []string, requiredScopes []Scope) bool {
	for _, required := range requiredScopes {
		if !HasScope(tokenScopes, required) {
			return false
		}
	}
	return true
}

// GetDefaultScopes returns default scopes for a new ops token
func GetDefaultScopes() []string {
	return []string{
		string(ScopeStatsRead),
		string(ScopeLinksRead),
		string(ScopeReconcileRead),
		string(ScopeAuditRead),
	}
}

// GetAdminScopes returns all scopes including admin
func GetAdminScopes() []string {
	scopes := make([]string, 0)
	for _, scope := range AllScopes() {
		scopes = append(scopes, string(scope))
	}
	return scopes
}

// ValidateScopeString validates a single scope string
func ValidateScopeString(scope string) error {
	validScopes := ValidScopes()
	if !validScopes[scope] {
		return errors.New("invalid scope")
	}
	return nil
}
