package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Register a new user from the webcam",
	Long: `Register a new user by capturing their face from the webcam.

After a short countdown the camera window opens. Press the capture key while
exactly one face is visible; frames with no face or several faces are ignored.

Examples:
  # Register alice
  face-gate register alice

  # Skip the countdown
  FACEGATE_COUNTDOWN=0 face-gate register alice`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	return a.register(ctx, args[0])
}
