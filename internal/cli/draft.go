package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/example/surveyforge/internal/adapters/sqlite"
	"github.com/example/surveyforge/internal/ports/secondary"
	"github.com/example/surveyforge/internal/wire"
)

// DraftCmd returns the draft command group
func DraftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Inspect and manage stored survey drafts",
	}

	cmd.AddCommand(draftListCmd())
	cmd.AddCommand(draftShowCmd())
	cmd.AddCommand(draftDiscardCmd())
	cmd.AddCommand(draftPurgeCmd())

	return cmd
}

// localRepo returns the SQLite repository or an error when the CLI is
// configured against a remote store.
func localRepo() (*sqlite.DraftRepository, error) {
	repo := wire.DraftRepository()
	if repo == nil {
		return nil, fmt.Errorf("draft housekeeping requires the local store (store_url is set)")
	}
	return repo, nil
}

func draftListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored drafts",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")

			repo, err := localRepo()
			if err != nil {
				return err
			}

			drafts, err := repo.List(cmd.Context(), sqlite.DraftFilters{Status: status, Limit: limit})
			if err != nil {
				return fmt.Errorf("failed to list drafts: %w", err)
			}

			if len(drafts) == 0 {
				fmt.Println("No drafts found")
				return nil
			}

			fmt.Printf("\n%-14s %-20s %-5s %-8s %-10s %s\n", "ID", "OWNER", "STEP", "VERSION", "STATUS", "UPDATED")
			fmt.Println("────────────────────────────────────────────────────────────────────────────")
			for _, d := range drafts {
				owner := d.Scope.UserID + "@" + d.Scope.CompanyID
				fmt.Printf("%-14s %-20s %-5d %-8d %-10s %s\n",
					d.ID, owner, d.CurrentStep, d.Version, d.Status, d.UpdatedAt)
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().String("status", "", "filter by status (active, recovered, discarded)")
	cmd.Flags().Int("limit", 0, "maximum number of drafts to show")

	return cmd
}

func draftShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [draft-id]",
		Short: "Show a draft's step data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := localRepo()
			if err != nil {
				return err
			}

			record, err := repo.GetByID(cmd.Context(), args[0])
			if errors.Is(err, secondary.ErrNotFound) {
				return fmt.Errorf("draft %s not found", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to get draft: %w", err)
			}

			fmt.Printf("\nDraft: %s\n", record.ID)
			fmt.Printf("Owner:    %s @ %s\n", record.Scope.UserID, record.Scope.CompanyID)
			fmt.Printf("Step:     %d\n", record.CurrentStep)
			fmt.Printf("Version:  %d (%d autosaves)\n", record.Version, record.AutoSaveCount)
			fmt.Printf("Status:   %s\n", record.Status)
			fmt.Printf("Created:  %s\n", record.CreatedAt)
			fmt.Printf("Updated:  %s\n", record.UpdatedAt)

			if len(record.StepData) > 0 {
				fmt.Println("\nStep data:")
				steps := make([]int, 0, len(record.StepData))
				for step := range record.StepData {
					steps = append(steps, step)
				}
				sort.Ints(steps)
				for _, step := range steps {
					pretty, err := prettyJSON(record.StepData[step])
					if err != nil {
						pretty = string(record.StepData[step])
					}
					fmt.Printf("  %d: %s\n", step, pretty)
				}
			}
			fmt.Println()

			return nil
		},
	}
}

func draftDiscardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard [draft-id]",
		Short: "Discard a draft so it is never offered for recovery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := wire.DraftStore().Discard(cmd.Context(), args[0])
			if errors.Is(err, secondary.ErrNotFound) {
				return fmt.Errorf("draft %s not found", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to discard draft: %w", err)
			}

			fmt.Printf("✓ Discarded draft %s\n", args[0])
			return nil
		},
	}
}

func draftPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete drafts older than the configured max age",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := localRepo()
			if err != nil {
				return err
			}

			maxAge := wire.Config().MaxAge()
			purged, err := repo.PurgeExpired(cmd.Context(), maxAge)
			if err != nil {
				return fmt.Errorf("failed to purge drafts: %w", err)
			}

			fmt.Printf("✓ Purged %d draft(s) older than %s\n", purged, maxAge)
			return nil
		},
	}
}

func prettyJSON(raw json.RawMessage) (string, error) {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", err
	}
	out, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
