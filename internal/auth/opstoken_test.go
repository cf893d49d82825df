package auth

import (
	"strings"
	"testing"
)

func TestGenerateOpsToken(t *testing.T) {
	t.Run("returns three non-empty values", func(t *testing.T) {
		token, hash, prefix, err := GenerateOpsToken("kita_ops_")
		if err != nil {
			t.Fatalf("GenerateOpsToken() error: %v", err)
		}
		if token == "" {
			t.Error("GenerateOpsToken() returned empty token")
		}
		if hash == "" {
			t.Error("GenerateOpsToken() returned empty hash")
		}
		if prefix == "" {
			t.Error("GenerateOpsToken() returned empty displayPrefix")
		}
	})

	t.Run("token starts with configured prefix", func(t *testing.T) {
		token, _, _, err := GenerateOpsToken("kita_ops_")
		if err != nil {
			t.Fatalf("GenerateOpsToken() error: %v", err)
		}
		if !strings.HasPrefix(token, "kita_ops_") {
			t.Errorf("GenerateOpsToken() token = %q, want prefix %q", token, "kita_ops_")
		}
	})

	t.Run("display prefix matches token start", func(t *testing.T) {
		token, _, displayPrefix, err := GenerateOpsToken("kita_ops_")
		if err != nil {
			t.Fatalf("GenerateOpsToken() error: %v", err)
		}
		if !strings.HasPrefix(token, displayPrefix) {
			t.Errorf("token %q does not start with displayPrefix %q", token, displayPrefix)
		}
	})

	t.Run("display prefix length is capped at DisplayPrefixLength", func(t *testing.T) {
		_, _, displayPrefix, err := GenerateOpsToken("kita_ops_")
		if err != nil {
			t.Fatalf("GenerateOpsToken() error: %v", err)
		}
		if len(displayPrefix) > DisplayPrefixLength {
			t.Errorf("displayPrefix len = %d, want <= %d", len(displayPrefix), DisplayPrefixLength)
		}
	})

	t.Run("two calls produce different tokens", func(t *testing.T) {
		token1, _, _, _ := GenerateOpsToken("kita_ops_")
		token2, _, _, _ := GenerateOpsToken("kita_ops_")
		if token1 == token2 {
			t.Error("GenerateOpsToken() produced identical tokens on consecutive calls")
		}
	})

	t.Run("custom prefix is preserved", func(t *testing.T) {
		token, _, _, err := GenerateOpsToken("staging_")
		if err != nil {
			t.Fatalf("GenerateOpsToken() error: %v", err)
		}
		if !strings.HasPrefix(token, "staging_") {
			t.Errorf("GenerateOpsToken() token = %q, want prefix %q", token, "staging_")
		}
	})

	t.Run("empty prefix produces bare random token", func(t *testing.T) {
		token, _, _, err := GenerateOpsToken("")
		if err != nil {
			t.Fatalf("GenerateOpsToken() error: %v", err)
		}
		if token == "" {
			t.Error("GenerateOpsToken() returned empty token for empty prefix")
		}
		if strings.Contains(token, "_") {
			t.Errorf("GenerateOpsToken() token = %q, want no separator with empty prefix", token)
		}
	})
}

func TestValidateOpsToken(t *testing.T) {
	t.Run("correct token validates", func(t *testing.T) {
		token, hash, _, err := GenerateOpsToken("kita_ops_")
		if err != nil {
			t.Fatalf("GenerateOpsToken() error: %v", err)
		}
		if !ValidateOpsToken(token, hash) {
			t.Error("ValidateOpsToken() returned false for correct token")
		}
	})

	t.Run("wrong token does not validate", func(t *testing.T) {
		_, hash, _, err := GenerateOpsToken("kita_ops_")
		if err != nil {
			t.Fatalf("GenerateOpsToken() error: %v", err)
		}
		if ValidateOpsToken("kita_ops_wrongtoken", hash) {
			t.Error("ValidateOpsToken() returned true for wrong token")
		}
	})

	t.Run("empty provided token does not validate", func(t *testing.T) {
		_, hash, _, err := GenerateOpsToken("kita_ops_")
		if err != nil {
			t.Fatalf("GenerateOpsToken() error: %v", err)
		}
		if ValidateOpsToken("", hash) {
			t.Error("ValidateOpsToken() returned true for empty token")
		}
	})

	t.Run("empty hash does not validate", func(t *testing.T) {
		if ValidateOpsToken("some-token", "") {
			t.Error("ValidateOpsToken() returned true for empty hash")
		}
	})

	t.Run("different token from same prefix does not validate", func(t *testing.T) {
		token1, hash1, _, _ := GenerateOpsToken("kita_ops_")
		token2, _, _, _ := GenerateOpsToken("kita_ops_")
		if token1 == token2 {
			t.Skip("generated identical tokens, skipping")
		}
		if ValidateOpsToken(token2, hash1) {
			t.Error("ValidateOpsToken() returned true for a token from a different generation")
		}
	})
}

func TestExtractTokenFromHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid bearer token", "Bearer kita_ops_abc123xyz", "kita_ops_abc123xyz", false},
		{"bearer with extra spaces", "Bearer  kita_ops_abc123 ", "kita_ops_abc123", false},
		{"empty header", "", "", true},
		{"missing Bearer prefix", "kita_ops_abc123", "", true},
		{"Basic auth scheme", "Basic dXNlcjpwYXNz", "", true},
		{"Bearer with no token", "Bearer ", "", true},
		{"Bearer with only spaces", "Bearer    ", "", true},
		{"lowercase bearer rejected", "bearer kita_ops_abc123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractTokenFromHeader(tt.header)
			if (err != nil) != tt.wantErr {
				t.Errorf("ExtractTokenFromHeader(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ExtractTokenFromHeader(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
