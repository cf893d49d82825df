// Package auth - jwt.go verifies the web-user JWTs minted by the main
// Kita-kita application at login. This service shares the signing secret but
// is a pure consumer of the tokens; GenerateJWT exists for the dev token
// script and tests, never for production traffic.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped into minted tokens and required of validated ones. A
// token from another issuer never authenticates here, even when signed with
// the same secret.
const Issuer = "kita-kita"

// clockSkewLeeway absorbs clock drift between the main application's token
// mint and this service's validation.
const clockSkewLeeway = 30 * time.Second

var (
	// jwtSecret holds the validated JWT secret
	jwtSecret     string
	jwtSecretOnce sync.Once
	jwtSecretErr  error
)

// Claims carries the web user identity issued at login.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// isDevMode checks if we're in development mode (duplicated here to avoid import cycle)
func isDevMode() bool {
	devMode := os.Getenv("DEV_MODE")
	nodeEnv := os.Getenv("NODE_ENV")
	ginMode := os.Getenv("GIN_MODE")

	return devMode == "true" || devMode == "1" ||
		nodeEnv == "development" ||
		ginMode == "debug"
}

// generateRandomSecret creates a cryptographically secure random secret
func generateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a less secure but functional secret
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// ValidateJWTSecret checks that the JWT secret is properly configured.
// In production this fails when KITA_JWT_SECRET is not set; in dev mode it
// generates a throwaway secret and warns. Call it once at startup.
//
// The secret must match the one the main application signs with — a mismatch
// does not fail here, it just rejects every web session at the middleware.
func ValidateJWTSecret() error {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv("KITA_JWT_SECRET")
		if secret == "" {
			// Unprefixed fallback for infra tooling that injects generic secret names.
			secret = os.Getenv("JWT_SECRET")
		}

		if secret == "" {
			if isDevMode() {
				jwtSecret = generateRandomSecret()
				log.Printf("WARNING: KITA_JWT_SECRET not set. Using a throwaway secret; tokens from the main app will not verify.")
				log.Printf("WARNING: Mint matching dev tokens with scripts/generate-token.go against this process only.")
			} else {
				jwtSecretErr = errors.New("SECURITY ERROR: KITA_JWT_SECRET environment variable is required in production. " +
					"Generate a secure secret with: openssl rand -hex 32")
			}
			return
		}

		if len(secret) < 32 {
			log.Printf("WARNING: KITA_JWT_SECRET is shorter than the recommended 32 characters.")
		}

		jwtSecret = secret
	})

	return jwtSecretErr
}

// GetJWTSecret retrieves the validated JWT secret.
// Panics if ValidateJWTSecret() hasn't been called or failed.
func GetJWTSecret() string {
	if jwtSecret == "" {
		// If ValidateJWTSecret wasn't called, try to validate now
		if err := ValidateJWTSecret(); err != nil {
			panic(err)
		}
	}
	return jwtSecret
}

// GenerateJWT mints a token the way the main application does at login:
// HS256, the kita-kita issuer, and the user id doubled into the subject.
// A zero expiresIn defaults to one hour.
func GenerateJWT(userID, email string, expiresIn time.Duration) (string, error) {
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
			Subject:   userID,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(GetJWTSecret()))
}

// ValidateJWT parses and verifies a token, returning its claims.
//
// Beyond the signature, validation requires the kita-kita issuer, accepts
// clockSkewLeeway of drift on the time claims, restricts the algorithm to
// HS256, and rejects tokens without a user id — every route behind the web
// middleware keys off that claim.
func ValidateJWT(tokenString string) (*Claims, error) {
	secret := GetJWTSecret()

	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(*jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(Issuer),
		jwt.WithLeeway(clockSkewLeeway),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token carries no user id")
	}

	return claims, nil
}
