package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered and banned users",
	Long: `List registered users in registration order, followed by banned users.

Examples:
  face-gate users
  face-gate users --json`,
	Args: cobra.NoArgs,
	RunE: runUsers,
}

func init() {
	rootCmd.AddCommand(usersCmd)

	usersCmd.Flags().Bool("json", false, "Output as JSON")
}

// UserEntry is one line of the users listing.
type UserEntry struct {
	Username     string `json:"username"`
	ID           string `json:"id,omitempty"`
	RegisteredAt string `json:"registered_at,omitempty"`
	BannedAt     string `json:"banned_at,omitempty"`
}

// UsersResult is the JSON output of the users command.
type UsersResult struct {
	Active   []UserEntry `json:"active"`
	Banned   []UserEntry `json:"banned"`
	Encoding int         `json:"encodings"`
}

func runUsers(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	active, err := a.store.LoadActive(ctx)
	if err != nil {
		return err
	}
	banned, err := a.store.LoadBanned(ctx)
	if err != nil {
		return err
	}
	encodings, err := a.store.CountEncodings(ctx)
	if err != nil {
		return err
	}

	result := UsersResult{Active: []UserEntry{}, Banned: []UserEntry{}, Encoding: encodings}
	for i := range active.Len() {
		name, rec, _ := active.At(i)
		result.Active = append(result.Active, UserEntry{
			Username:     name,
			ID:           rec.ID,
			RegisteredAt: formatTime(rec.RegisteredAt),
		})
	}
	for i := range banned.Len() {
		name, rec, _ := banned.At(i)
		result.Banned = append(result.Banned, UserEntry{
			Username:     name,
			ID:           rec.ID,
			RegisteredAt: formatTime(rec.RegisteredAt),
			BannedAt:     formatTime(rec.BannedAt),
		})
	}

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Printf("Registered users (%d):\n", len(result.Active))
	for i, u := range result.Active {
		fmt.Printf("  %d. %s", i+1, u.Username)
		if u.RegisteredAt != "" {
			fmt.Printf("  (registered %s)", u.RegisteredAt)
		}
		fmt.Println()
	}
	fmt.Printf("\nBanned users (%d):\n", len(result.Banned))
	for _, u := range result.Banned {
		fmt.Printf("  - %s", u.Username)
		if u.BannedAt != "" {
			fmt.Printf("  (banned %s)", u.BannedAt)
		}
		fmt.Println()
	}
	fmt.Printf("\nStored encodings: %d\n", result.Encoding)
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
