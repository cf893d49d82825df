// Package main repairs dirty migration state in the kita_kita database.
//
// golang-migrate marks a version dirty when a migration is interrupted — a
// crash or timeout mid-DDL — and from then on refuses to run, so the server
// fails its boot with "Dirty database version". Once the half-applied
// migration has been reconciled by hand, this tool re-stamps the
// schema_migrations bookkeeping row:
//
//	fix-migration        clear the dirty flag on the recorded version
//	fix-migration 5      force the recorded version to 5
//
// Connection settings come from the same config file (CONFIG_PATH) and KITA_*
// environment variables the server reads, so it can run from the same
// deployment environment without extra wiring.
package main

import (
	"log"
	"os"
	"strconv"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/config"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pool, err := db.Connect(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	version, dirty, err := db.GetMigrationVersion(pool)
	if err != nil {
		log.Fatalf("Failed to read migration state: %v", err)
	}
	log.Printf("Current migration state: version=%d, dirty=%v", version, dirty)

	target := int(version)
	if len(os.Args) > 1 {
		target, err = strconv.Atoi(os.Args[1])
		if err != nil {
			log.Fatalf("Invalid target version %q: %v", os.Args[1], err)
		}
	}

	if !dirty && target == int(version) {
		log.Println("Migration state is already clean")
		return
	}

	if err := db.ForceMigrationVersion(pool, target); err != nil {
		log.Fatalf("Failed to repair migration state: %v", err)
	}

	version, dirty, err = db.GetMigrationVersion(pool)
	if err != nil {
		log.Fatalf("Failed to re-read migration state: %v", err)
	}
	log.Printf("Migration state repaired: version=%d, dirty=%v", version, dirty)
}
