// Package main is a diagnostic tool for testing database connectivity and
// inspecting live linking data. It connects to the database, summarizes the
// linking_codes, account_links, receipt_scans, and transactions tables, and
// prints the counts to stdout. The binary exits with a non-zero code on any
// failure so it can be embedded in health checks or CI/CD pipeline steps to
// gate deployments on a reachable database.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	dbPassword := os.Getenv("DATABASE_PASSWORD")
	if dbPassword == "" {
		dbPassword = "kita"
	}

	connStr := fmt.Sprintf("host=localhost port=5432 user=kita password=%s dbname=kita_kita sslmode=disable", dbPassword)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	// Check linking codes
	fmt.Println("=== LINKING CODES ===")
	var active, used, expired int
	err = db.QueryRow(`
		SELECT
			COUNT(*) FILTER (WHERE used = false AND expires_at >= NOW()),
			COUNT(*) FILTER (WHERE used = true),
			COUNT(*) FILTER (WHERE used = false AND expires_at < NOW())
		FROM linking_codes`).Scan(&active, &used, &expired)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	fmt.Printf("Active: %d, Used: %d, Expired: %d\n", active, used, expired)

	// Burned codes with no link are the number the reconciler watches
	var burned int
	err = db.QueryRow(`
		SELECT COUNT(*) FROM linking_codes lc
		WHERE lc.used = true
		  AND NOT EXISTS (
			SELECT 1 FROM account_links al
			WHERE al.web_user_id = lc.owner_user_id
			  AND al.external_chat_id = lc.used_by_external_id
		  )`).Scan(&burned)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	if burned > 0 {
		fmt.Printf("WARNING: %d consumed code(s) have no account link\n", burned)
	}

	// Check account links
	fmt.Println("\n=== ACCOUNT LINKS ===")
	var activeLinks, inactiveLinks int
	err = db.QueryRow(`
		SELECT
			COUNT(*) FILTER (WHERE active = true),
			COUNT(*) FILTER (WHERE active = false)
		FROM account_links`).Scan(&activeLinks, &inactiveLinks)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	fmt.Printf("Active: %d, Disconnected: %d\n", activeLinks, inactiveLinks)

	// Check receipt scans
	fmt.Println("\n=== RECEIPT SCANS ===")
	rows, err := db.Query("SELECT status, COUNT(*) FROM receipt_scans GROUP BY status ORDER BY status")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	scanned := 0
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			log.Printf("Warning: failed to scan status row: %v", err)
			continue
		}
		fmt.Printf("%s: %d\n", status, count)
		scanned += count
	}
	if scanned == 0 {
		fmt.Println("No scans found!")
	}

	// Check transactions
	fmt.Println("\n=== TRANSACTIONS ===")
	var txns int
	err = db.QueryRow("SELECT COUNT(*) FROM transactions WHERE source = 'telegram_receipt'").Scan(&txns)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	fmt.Printf("From receipts: %d\n", txns)
}
