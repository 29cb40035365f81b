package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"leadcourier/internal/config"
)

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// Command-line flags
var (
	dossiersCount = flag.Int("dossiers", 12, "Number of dossiers to create per tenant")
	clearData     = flag.Bool("clear", false, "Clear existing seed data before inserting")
	showHelp      = flag.Bool("help", false, "Show usage information")
)

// seedTenants are the orgs seeded with a quota row each. Tiers follow
// the WhatsApp Business messaging limits.
var seedTenants = []struct {
	orgID      string
	quotaLimit int
}{
	{"org-acme-estates", 1000},
	{"org-blueroof", 10000},
	{"org-casagrande", 100000},
}

func main() {
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	// Load .env file (ignore error if not present)
	_ = godotenv.Load()

	printInfo("=== LeadCourier Database Seeder ===\n")

	cfg, err := config.Load()
	if err != nil {
		printError(fmt.Sprintf("Failed to load configuration: %v", err))
		os.Exit(1)
	}

	printInfo("Connecting to database...")
	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		printError(fmt.Sprintf("Failed to open database connection: %v", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		printError(fmt.Sprintf("Failed to ping database: %v", err))
		os.Exit(1)
	}
	printSuccess("✓ Connected to database\n")

	if *clearData {
		if err := clearSeedData(db); err != nil {
			printError(fmt.Sprintf("Failed to clear seed data: %v", err))
			os.Exit(1)
		}
	}

	tenantsCreated, err := seedRateLimits(db)
	if err != nil {
		printError(fmt.Sprintf("Failed to seed rate limits: %v", err))
		os.Exit(1)
	}

	dossiersCreated, consentsCreated, err := seedDossiers(db, *dossiersCount)
	if err != nil {
		printError(fmt.Sprintf("Failed to seed dossiers: %v", err))
		os.Exit(1)
	}

	printInfo("\n=== Seeding Summary ===")
	printSuccess(fmt.Sprintf("✓ Tenant quotas created: %d", tenantsCreated))
	printSuccess(fmt.Sprintf("✓ Dossiers created: %d", dossiersCreated))
	printSuccess(fmt.Sprintf("✓ Consents created: %d", consentsCreated))
	printInfo("\nSeeding completed successfully!")
}

// clearSeedData removes existing seed data
func clearSeedData(db *sql.DB) error {
	printWarning("Clearing existing seed data...")

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Dossiers cascade to consents and inbound messages
	if _, err := tx.Exec("DELETE FROM dossiers WHERE lead_phone LIKE '+254700020%'"); err != nil {
		return fmt.Errorf("failed to delete dossiers: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM rate_limits WHERE org_id LIKE 'org-%'"); err != nil {
		return fmt.Errorf("failed to delete rate limits: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	printSuccess("✓ Seed data cleared\n")
	return nil
}

// seedRateLimits creates one quota row per seed tenant
func seedRateLimits(db *sql.DB) (int, error) {
	printInfo(fmt.Sprintf("Seeding %d tenant quotas...", len(seedTenants)))

	created := 0
	for _, tenant := range seedTenants {
		query := `
			INSERT INTO rate_limits (org_id, quota_limit, messages_sent, window_reset_at)
			VALUES ($1, $2, 0, $3)
			ON CONFLICT (org_id) DO NOTHING
		`

		result, err := db.Exec(query, tenant.orgID, tenant.quotaLimit, time.Now().Add(24*time.Hour))
		if err != nil {
			return created, fmt.Errorf("failed to insert rate limit for %s: %w", tenant.orgID, err)
		}

		rowsAffected, _ := result.RowsAffected()
		if rowsAffected > 0 {
			created++
		}
	}

	printSuccess(fmt.Sprintf("✓ Seeded %d tenant quotas (skipped %d existing)", created, len(seedTenants)-created))
	return created, nil
}

// seedDossiers generates dossiers with consent records per tenant
func seedDossiers(db *sql.DB, count int) (int, int, error) {
	printInfo(fmt.Sprintf("Seeding %d dossiers per tenant...", count))

	leadNames := []string{"Michael Kamau", "Sophia Wanjiku", "James Ochieng", "Olivia Atieno", "Daniel Mwangi", "Emma Akinyi", "Benjamin Kipchoge", "Ava Chebet", "Lucas Kiptoo", "Mia Jepchirchir", "Noah Mutua", "Isabella Mumbua"}
	sources := []string{"WhatsApp", "website", "referral", "walk-in"}
	statuses := []string{"new", "qualified", "visit", "offer", "won", "lost"}
	consentStatuses := []string{"granted", "granted", "granted", "denied", "revoked"}

	dossiers := 0
	consents := 0
	for t, tenant := range seedTenants {
		for i := 1; i <= count; i++ {
			phone := fmt.Sprintf("+254700020%d%02d", t, i)

			var name *string
			if i%5 != 0 { // some dossiers come in without a name
				name = stringPtr(leadNames[i%len(leadNames)])
			}

			var dossierID int
			query := `
				INSERT INTO dossiers (org_id, lead_phone, lead_name, lead_source, status)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id
			`
			err := db.QueryRow(query, tenant.orgID, phone, name, sources[i%len(sources)], statuses[i%len(statuses)]).Scan(&dossierID)
			if err != nil {
				return dossiers, consents, fmt.Errorf("failed to insert dossier %s: %w", phone, err)
			}
			dossiers++

			// Most dossiers carry a whatsapp consent record
			if i%4 != 0 {
				consentQuery := `
					INSERT INTO consents (org_id, dossier_id, channel, status)
					VALUES ($1, $2, 'whatsapp', $3)
				`
				if _, err := db.Exec(consentQuery, tenant.orgID, dossierID, consentStatuses[i%len(consentStatuses)]); err != nil {
					return dossiers, consents, fmt.Errorf("failed to insert consent for dossier %d: %w", dossierID, err)
				}
				consents++
			}
		}
	}

	printSuccess(fmt.Sprintf("✓ Seeded %d dossiers and %d consents", dossiers, consents))
	return dossiers, consents, nil
}

// stringPtr returns a pointer to a string
func stringPtr(s string) *string {
	return &s
}

// printSuccess prints a success message in green
func printSuccess(msg string) {
	fmt.Printf("%s%s%s\n", colorGreen, msg, colorReset)
}

// printError prints an error message in red
func printError(msg string) {
	fmt.Fprintf(os.Stderr, "%s%s%s\n", colorRed, msg, colorReset)
}

// printInfo prints an info message in cyan
func printInfo(msg string) {
	fmt.Printf("%s%s%s\n", colorCyan, msg, colorReset)
}

// printWarning prints a warning message in yellow
func printWarning(msg string) {
	fmt.Printf("%s%s%s\n", colorYellow, msg, colorReset)
}

// printUsage displays usage information
func printUsage() {
	printInfo("=== LeadCourier Database Seeder ===\n")
	fmt.Println("Usage: go run scripts/seed/main.go [flags]")
	fmt.Println("\nFlags:")
	flag.PrintDefaults()
	fmt.Println("\nExamples:")
	fmt.Println("  go run scripts/seed/main.go")
	fmt.Println("  go run scripts/seed/main.go -dossiers=20")
	fmt.Println("  go run scripts/seed/main.go -clear")
}
