package cmd

import (
	"bufio"
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var banCmd = &cobra.Command{
	Use:   "ban",
	Short: "Ban a registered user's face",
	Long: `Move a registered user to the banned list. Their face can never log in
again, and the username cannot be registered again. There is no unban.

Without --user the registered users are listed and one is picked by number.

Examples:
  # Pick from a list
  face-gate ban

  # Ban a known user
  face-gate ban --user mallory`,
	Args: cobra.NoArgs,
	RunE: runBan,
}

func init() {
	rootCmd.AddCommand(banCmd)

	banCmd.Flags().String("user", "", "Username to ban")
}

func runBan(cmd *cobra.Command, args []string) error {
	username := mustGetString(cmd, "user")

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if username == "" {
		return a.banPrompt(ctx, bufio.NewReader(cmd.InOrStdin()))
	}

	rec, err := a.banner().BanUser(ctx, username)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "User %s has been banned.\n", rec.Username)
	return nil
}
