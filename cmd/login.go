package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-gate/internal/auth"
	"github.com/spf13/cobra"
)

var errAccessDenied = errors.New("access denied")

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in by looking at the webcam",
	Long: `Scan webcam frames until a registered face is recognized.

Banned faces are checked first and are always denied. The command exits with a
non-zero status unless access is granted.

Examples:
  face-gate login

  # Give up after 30 seconds without a match
  FACEGATE_SCAN_TIMEOUT=30s face-gate login`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.login(ctx)
	if err != nil {
		return err
	}
	if res.State != auth.LoginAuthenticated {
		return fmt.Errorf("%w: %s", errAccessDenied, res.State)
	}
	return nil
}
