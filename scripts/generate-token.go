// Package main is a development utility for minting a test web-user JWT so the
// linking endpoints can be exercised with curl against a local server. The web
// app normally issues these tokens at sign-in; this script signs one with the
// same secret resolution (KITA_JWT_SECRET, or the auto-generated dev secret
// when DEV_MODE=true). Do not use generated tokens in production — point real
// clients at the web app's sign-in flow instead.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/auth"
)

func main() {
	userID := "dev-user-1"
	email := "dev@kita.local"
	if len(os.Args) > 1 {
		userID = os.Args[1]
	}
	if len(os.Args) > 2 {
		email = os.Args[2]
	}

	if err := auth.ValidateJWTSecret(); err != nil {
		log.Fatalf("JWT secret: %v", err)
	}

	token, err := auth.GenerateJWT(userID, email, 24*time.Hour)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println("==========================================================")
	fmt.Println("Dev JWT Generated (valid 24h)")
	fmt.Println("==========================================================")
	fmt.Printf("\nUser ID: %s\nEmail:   %s\n", userID, email)
	fmt.Printf("\nToken: %s\n", token)
	fmt.Println("\n==========================================================")
	fmt.Println("Try it:")
	fmt.Println("==========================================================")
	fmt.Printf(`
curl -X POST http://localhost:8080/api/v1/linking/codes \
  -H "Authorization: Bearer %s"
`, token)
	fmt.Println("==========================================================")
}
