package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "bookexchange",
	Short: "Book exchange server and admin tools",
	Long: `bookexchange runs the book swap and sale HTTP API and the admin commands
that manage its database.

Configuration is read from config.yaml (see --config) with BOOKEX_*
environment overrides.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default config.yaml)")
	rootCmd.AddCommand(serveCmd, migrateCmd, createSuperuserCmd, deleteUserCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
