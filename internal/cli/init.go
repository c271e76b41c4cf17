package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/surveyforge/internal/config"
	"github.com/example/surveyforge/internal/db"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the surveyforge database and config",
		Long:  `Initialize the draft database at ~/.surveyforge/surveyforge.db and write a config file in the current directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			companyID, _ := cmd.Flags().GetString("company")

			dbPath, err := db.GetDBPath()
			if err != nil {
				return fmt.Errorf("failed to get database path: %w", err)
			}

			fmt.Printf("Initializing draft database at %s\n", dbPath)

			if err := db.InitSchema(); err != nil {
				return fmt.Errorf("failed to initialize schema: %w", err)
			}

			fmt.Println("✓ Database initialized successfully")

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to determine working directory: %w", err)
			}

			cfg := config.DefaultConfig()
			cfg.UserID = userID
			cfg.CompanyID = companyID
			if err := config.SaveConfig(cwd, cfg); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Println("✓ Config written to .surveyforge/config.json")
			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  surveyforge wizard run")
			fmt.Println("  surveyforge status")

			return nil
		},
	}

	cmd.Flags().String("user", "local", "user ID for the draft owner scope")
	cmd.Flags().String("company", "local", "company ID for the draft owner scope")

	return cmd
}
