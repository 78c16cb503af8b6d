// Command labctl runs the lab desk workflows from a terminal against the configured store.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	timeout  time.Duration
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "labctl",
	Short:         "Operate the lab desk workflows",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the schema and create missing sheets",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runMigrations(cmd); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(activeUsersCmd)
	rootCmd.AddCommand(basketsCmd)
	rootCmd.AddCommand(exemptionsCmd)
	rootCmd.AddCommand(badgesCmd)
	rootCmd.AddCommand(emailsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
