// Package auth provides authentication primitives for the Kita-kita backend: JWTs
// for web users (issued at login, stateless verification) and ops tokens for the
// admin/support surface (long-lived bearer tokens with bcrypt hashing).
// See internal/middleware/auth.go for the request-time authentication logic that
// uses these primitives.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// OpsTokenLength is the length of the random part of the token in bytes
	OpsTokenLength = 32

	// DisplayPrefixLength is the number of characters to show in displays
	DisplayPrefixLength = 10

	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 12
)

// GenerateOpsToken creates a new random ops token with the given prefix
// Returns: full token (to show once), bcrypt hash (to store), display prefix
func GenerateOpsToken(prefix string) (token string, hash string, displayPrefix string, err error) {
	// Generate random bytes
	randomBytes := make([]byte, OpsTokenLength)
	_, err = rand.Read(randomBytes)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// Encode to base64 (URL-safe)
	randomPart := base64.RawURLEncoding.EncodeToString(randomBytes)

	// Construct full token: prefix + randomPart (prefix already ends in _)
	fullToken := prefix + randomPart

	// Hash the full token with bcrypt
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullToken), BcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to hash ops token: %w", err)
	}

	// Generate display prefix (first N characters of full token)
	displayPrefixStr := fullToken
	if len(fullToken) > DisplayPrefixLength {
		displayPrefixStr = fullToken[:DisplayPrefixLength]
	}

	return fullToken, string(hashBytes), displayPrefixStr, nil
}

// ValidateOpsToken checks if a provided token matches the stored hash
func ValidateOpsToken(providedToken, storedHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(providedToken))
	return err == nil
}

// ExtractTokenFromHeader extracts the bearer token from an Authorization header
// Expected format: "Bearer kita_ops_abc123xyz..." (or a JWT)
func ExtractTokenFromHeader(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header is empty")
	}

	// Check if it starts with "Bearer "
	if !strings.HasPrefix(header, "Bearer ") {
		return "", errors.New("authorization header must start with 'Bearer '")
	}

	// Extract the token (remove "Bearer " prefix)
	token := strings.TrimPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)

	if token == "" {
		return "", errors.New("token is empty after Bearer prefix")
	}

	return token, nil
}
