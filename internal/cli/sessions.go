package cli

import (
	"fmt"
	"time"

	"github.com/harun/turnkit/internal/config"
	"github.com/harun/turnkit/pkg/session"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var pruneMaxAge time.Duration

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect archived sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived session ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := loadArchive()
		if err != nil {
			return err
		}
		ids, err := archive.List()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the archived tasks of a session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := loadArchive()
		if err != nil {
			return err
		}
		records, err := archive.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), records)
	},
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete archived sessions older than --max-age",
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := loadArchive()
		if err != nil {
			return err
		}
		removed, err := archive.Prune(pruneMaxAge)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d session(s)\n", removed)
		return nil
	},
}

func loadArchive() (*session.Archive, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return session.OpenArchive(cfg.Session.ArchiveDir, zerolog.Nop())
}

func init() {
	sessionsPruneCmd.Flags().DurationVar(&pruneMaxAge, "max-age", 30*24*time.Hour, "remove sessions not modified within this duration")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsPruneCmd)
	rootCmd.AddCommand(sessionsCmd)
}
