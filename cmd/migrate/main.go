package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"relay-chat/config"
	"relay-chat/internal/repository"
	"relay-chat/pkg/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var confirmed bool

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Relay Chat database CLI",
	Long: `Manages the relay-chat schema: creating tables, reporting their state
and wiping data in development environments.`,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Create or update every table and index",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withDB(runMigrationsUp)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database connection status and row counts",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withDB(showStatus)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop all tables and re-run migrations (DANGEROUS)",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		requireConfirmation("reset")
		withDB(runReset)
	},
}

var truncateCmd = &cobra.Command{
	Use:   "truncate",
	Short: "Delete all rows from every table (DANGEROUS)",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		requireConfirmation("truncate")
		withDB(runTruncate)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVarP(&confirmed, "yes", "y", false, "confirm destructive commands")
	rootCmd.AddCommand(upCmd, statusCmd, resetCmd, truncateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func withDB(run func(db *gorm.DB)) {
	cfg := config.LoadConfig()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer database.Close(db)

	run(db)
}

func requireConfirmation(command string) {
	if confirmed {
		return
	}
	log.Fatalf("❌ %s destroys data; re-run with --yes to continue", command)
}

func runMigrationsUp(db *gorm.DB) {
	log.Println("🚀 Running migrations...")

	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Println("✅ Migrations completed successfully!")
}

func showStatus(db *gorm.DB) {
	log.Println("🔍 Checking database status...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := database.HealthCheck(ctx, db); err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	log.Println("✅ Database connection: OK")

	tables, err := repository.TableNames(db)
	if err != nil {
		log.Fatalf("❌ Failed to resolve tables: %v", err)
	}
	for _, table := range tables {
		if !db.Migrator().HasTable(table) {
			log.Printf("❌ Table %-20s does not exist", table)
			continue
		}
		var count int64
		if err := db.Table(table).Count(&count).Error; err != nil {
			log.Printf("⚠️  Error counting table %s: %v", table, err)
			continue
		}
		log.Printf("✅ Table %-20s exists (%d rows)", table, count)
	}
}

func runReset(db *gorm.DB) {
	log.Println("🗑️  Dropping all tables...")
	if err := repository.DropAll(db); err != nil {
		log.Fatalf("❌ Failed to drop tables: %v", err)
	}

	runMigrationsUp(db)
	log.Println("✅ Database reset completed!")
}

func runTruncate(db *gorm.DB) {
	log.Println("⚠️  Deleting every row...")

	if err := repository.TruncateAll(db); err != nil {
		log.Fatalf("❌ Truncate failed: %v", err)
	}

	log.Println("✅ All tables truncated!")
}
