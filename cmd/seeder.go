package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	userDatamodel "github.com/frahmantamala/qr-document/internal/core/datamodel/user"
	docserverPostgres "github.com/frahmantamala/qr-document/internal/docserver/postgres"
)

var clearData bool

// seedUsers are the stand-in directory entries, one per department.
var seedUsers = []userDatamodel.User{
	{ID: "u-finance-01", Name: "Fadhil", Department: "FINANCE", IsActive: true},
	{ID: "u-hr-01", Name: "Padil", Department: "HR", IsActive: true},
	{ID: "u-procurement-01", Name: "Rina", Department: "PROCUREMENT", IsActive: true},
	{ID: "u-general-01", Name: "Budi", Department: "GENERAL_AFFAIRS", IsActive: true},
	{ID: "u-inactive-01", Name: "Former Staff", Department: "FINANCE", IsActive: false},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the stand-in user directory with one user per department for development and testing.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		ctx := context.Background()

		if clearData {
			for _, table := range []string{"document_receipts", "documents", "users"} {
				if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared users, documents and receipts")
		}

		users := docserverPostgres.NewUserRepository(db)
		for i := range seedUsers {
			u := seedUsers[i]
			if err := users.Upsert(ctx, &u); err != nil {
				log.Fatalf("failed to seed user %s: %v", u.ID, err)
			}
			fmt.Printf("Seeded user %s (%s)\n", u.ID, u.Department)
		}

		fmt.Println("Users seeded successfully")
	},
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")
}
