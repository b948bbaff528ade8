package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	dataDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "face-gate",
	Short: "Face-based login with enrollment and permanent bans",
	Long: `Face Gate registers a user's face from the local webcam, lets returning
users log in by looking at the camera, and bans faces so they can never log
in again, not even under a new username.

Run without a subcommand for the interactive menu.`,
	SilenceUsage: true,
	RunE:         runMenu,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for registries and face encodings (overrides FACEGATE_DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
