package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/surveyforge/internal/db"
	"github.com/example/surveyforge/internal/ports/secondary"
	"github.com/example/surveyforge/internal/wire"
)

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store configuration and any resumable draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := wire.Config()
			scope := wire.Scope()

			fmt.Printf("\nOwner:  %s @ %s\n", scope.UserID, scope.CompanyID)
			if cfg.StoreURL != "" {
				fmt.Printf("Store:  remote (%s)\n", cfg.StoreURL)
			} else {
				path, err := db.GetDBPath()
				if err != nil {
					return fmt.Errorf("failed to get database path: %w", err)
				}
				fmt.Printf("Store:  local (%s)\n", path)
			}
			fmt.Printf("Saves:  every %s of inactivity, drafts kept %s\n",
				cfg.Debounce(), cfg.MaxAge())

			record, err := wire.DraftStore().FetchByOwner(context.Background(), scope)
			if errors.Is(err, secondary.ErrNotFound) {
				fmt.Println("\nNo resumable draft.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to check for drafts: %w", err)
			}

			fmt.Printf("\nResumable draft: %s\n", record.ID)
			fmt.Printf("  Step:      %d\n", record.CurrentStep)
			fmt.Printf("  Version:   %d (%d autosaves)\n", record.Version, record.AutoSaveCount)
			fmt.Printf("  Updated:   %s\n", record.UpdatedAt)
			fmt.Println()
			fmt.Println("Resume it with: surveyforge wizard run")

			return nil
		},
	}
}
