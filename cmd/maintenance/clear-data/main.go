package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/carenest/therapy-booking/internal/config"
	"github.com/carenest/therapy-booking/internal/database"
)

// bookingTables are cleared child-first; collaborator tables are kept unless -all is set
var bookingTables = []string{
	"booking_audit_logs",
	"refund_requests",
	"session_reviews",
	"session_journals",
	"session_bookings",
	"payments",
}

var collaboratorTables = []string{
	"time_slots",
	"children",
	"guardian_profiles",
	"providers",
}

func main() {
	var dbURLFlag string
	var all bool
	var yes bool
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.BoolVar(&all, "all", false, "also clear providers, guardians, children and slots")
	flag.BoolVar(&yes, "yes", false, "skip the production safety check")
	flag.Parse()

	// Try loading .env from current working directory (optional)
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}
	if os.Getenv("ENVIRONMENT") == "production" && !yes {
		log.Fatal("refusing to clear a production database without -yes")
	}

	// Build minimal database config without loading full app config
	dbCfg := config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     5,
		MaxIdleConnections: 2,
	}

	db, err := database.NewConnection(dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	tables := append([]string{}, bookingTables...)
	if all {
		tables = append(tables, collaboratorTables...)
	}

	fmt.Println("Connected to database. Truncating tables...")

	truncateSQL := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
	if _, err := db.Exec(truncateSQL); err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	// Slots keep their reservation counters otherwise
	if !all {
		if _, err := db.Exec(`UPDATE time_slots SET current_reservation_count = 0, updated_at = NOW()`); err != nil {
			log.Fatalf("failed to reset slot reservations: %v", err)
		}
	}

	fmt.Println("Booking data cleared successfully.")

	fmt.Println("Post-clear row counts:")
	for _, t := range tables {
		var count int
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&count); err != nil {
			fmt.Printf("  %s: error: %v\n", t, err)
			continue
		}
		fmt.Printf("  %s: %d\n", t, count)
	}
}
