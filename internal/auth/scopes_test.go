package auth

import "testing"

func TestValidateScopes(t *testing.T) {
	tests := []struct {
		name    string
		scopes  []string
		wantErr bool
	}{
		{"empty list", []string{}, false},
		{"single valid scope", []string{"links:read"}, false},
		{"multiple valid scopes", []string{"stats:read", "reconcile:repair", "admin"}, false},
		{"all defined scopes", func() []string {
			s := make([]string, 0, len(AllScopes()))
			for _, sc := range AllScopes() {
				s = append(s, string(sc))
			}
			return s
		}(), false},
		{"invalid scope", []string{"not:a:scope"}, true},
		{"mixed valid and invalid", []string{"links:read", "invalid"}, true},
		{"empty string scope", []string{""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScopes(tt.scopes)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateScopes(%v) error = %v, wantErr %v", tt.scopes, err, tt.wantErr)
			}
		})
	}
}

func TestHasScope(t *testing.T) {
	tests := []struct {
		name        string
		tokenScopes []string
		required    Scope
		want        bool
	}{
		// Exact match
		{"exact match links:read", []string{"links:read"}, ScopeLinksRead, true},
		{"exact match admin", []string{"admin"}, ScopeAdmin, true},
		// Admin wildcard grants everything
		{"admin grants links:read", []string{"admin"}, ScopeLinksRead, true},
		{"admin grants reconcile:repair", []string{"admin"}, ScopeReconcileRepair, true},
		{"admin grants tokens:manage", []string{"admin"}, ScopeTokensManage, true},
		{"admin grants audit:read", []string{"admin"}, ScopeAuditRead, true},
		{"admin grants receipts:read", []string{"admin"}, ScopeReceiptsRead, true},
		// Manage/repair implies the matching read
		{"links:manage implies links:read", []string{"links:manage"}, ScopeLinksRead, true},
		{"reconcile:repair implies reconcile:read", []string{"reconcile:repair"}, ScopeReconcileRead, true},
		// Manage does NOT imply unrelated read
		{"links:manage does not imply reconcile:read", []string{"links:manage"}, ScopeReconcileRead, false},
		{"reconcile:repair does not imply links:read", []string{"reconcile:repair"}, ScopeLinksRead, false},
		// No match
		{"no scopes", []string{}, ScopeLinksRead, false},
		{"wrong scope", []string{"stats:read"}, ScopeLinksRead, false},
		{"read does not imply manage", []string{"links:read"}, ScopeLinksManage, false},
		{"read does not imply repair", []string{"reconcile:read"}, ScopeReconcileRepair, false},
		// Multiple scopes, one matches
		{"one of many matches", []string{"stats:read", "links:read"}, ScopeLinksRead, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HasScope(tt.tokenScopes, tt.required)
			if got != tt.want {
				t.Errorf("HasScope(%v, %q) = %v, want %v", tt.tokenScopes, tt.required, got, tt.want)
			}
		})
	}
}

func TestHasAnyScope(t *testing.T) {
	tests := []struct {
		name           string
		tokenScopes    []string
		requiredScopes []Scope
		want           bool
	}{
		{"matches first", []string{"links:read"}, []Scope{ScopeLinksRead, ScopeStatsRead}, true},
		{"matches second", []string{"stats:read"}, []Scope{ScopeLinksRead, ScopeStatsRead}, true},
		{"matches none", []string{"audit:read"}, []Scope{ScopeLinksRead, ScopeStatsRead}, false},
		{"empty required", []string{"links:read"}, []Scope{}, false},
		{"empty token scopes", []string{}, []Scope{ScopeLinksRead}, false},
		{"admin matches any", []string{"admin"}, []Scope{ScopeTokensManage, ScopeReconcileRepair}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HasAnyScope(tt.tokenScopes, tt.requiredScopes)
			if got != tt.want {
				t.Errorf("HasAnyScope(%v, %v) = %v, want %v", tt.tokenScopes, tt.requiredScopes, got, tt.want)
			}
		})
	}
}

func TestHasAllScopes(t *testing.T) {
	tests := []struct {
		name           string
		tokenScopes    []string
		requiredScopes []Scope
		want           bool
	}{
		{"has all", []string{"links:read", "stats:read"}, []Scope{ScopeLinksRead, ScopeStatsRead}, true},
		{"missing one", []string{"links:read"}, []Scope{ScopeLinksRead, ScopeStatsRead}, false},
		{"empty required", []string{"links:read"}, []Scope{}, true},
		{"empty token no requirements", []string{}, []Scope{}, true},
		{"empty token has requirements", []string{}, []Scope{ScopeLinksRead}, false},
		{"admin has all", []string{"admin"}, []Scope{ScopeLinksRead, ScopeReconcileRepair, ScopeTokensManage}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HasAllScopes(tt.tokenScopes, tt.requiredScopes)
			if got != tt.want {
				t.Errorf("HasAllScopes(%v, %v) = %v, want %v", tt.tokenScopes, tt.requiredScopes, got, tt.want)
			}
		})
	}
}

func TestValidateScopeString(t *testing.T) {
	tests := []struct {
		scope   string
		wantErr bool
	}{
		{"links:read", false},
		{"admin", false},
		{"audit:read", false},
		{"invalid", true},
		{"", true},
		{"links:delete", true},
	}

	for _, tt := range tests {
		t.Run(tt.scope, func(t *testing.T) {
			err := ValidateScopeString(tt.scope)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateScopeString(%q) error = %v, wantErr %v", tt.scope, err, tt.wantErr)
			}
		})
	}
}

func TestGetDefaultScopes(t *testing.T) {
	scopes := GetDefaultScopes()
	if len(scopes) == 0 {
		t.Fatal("GetDefaultScopes() returned empty slice")
	}
	// All returned scopes must be valid
	if err := ValidateScopes(scopes); err != nil {
		t.Errorf("GetDefaultScopes() returned invalid scopes: %v", err)
	}
	// Default tokens are read-only
	for _, sc := range scopes {
		if HasScope([]string{sc}, ScopeTokensManage) {
			t.Errorf("GetDefaultScopes() includes scope %q which grants tokens:manage", sc)
		}
		if HasScope([]string{sc}, ScopeReconcileRepair) {
			t.Errorf("GetDefaultScopes() includes scope %q which grants reconcile:repair", sc)
		}
	}
}

func TestGetAdminScopes(t *testing.T) {
	scopes := GetAdminScopes()
	if len(scopes) == 0 {
		t.Fatal("GetAdminScopes() returned empty slice")
	}
	// Must contain at least as many scopes as AllScopes()
	if len(scopes) != len(AllScopes()) {
		t.Errorf("GetAdminScopes() len = %d, want %d", len(scopes), len(AllScopes()))
	}
	if err := ValidateScopes(scopes); err != nil {
		t.Errorf("GetAdminScopes() returned invalid scopes: %v", err)
	}
}

func TestAllScopesUnique(t *testing.T) {
	seen := make(map[Scope]bool)
	for _, sc := range AllScopes() {
		if seen[sc] {
			t.Errorf("duplicate scope in AllScopes(): %q", sc)
		}
		seen[sc] = true
	}
}
