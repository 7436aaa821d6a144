package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bountyscope",
		Short:         "Collect bug bounty researcher activity and enrich it into profiles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(ingestCmd())
	root.AddCommand(enrichCmd())
	root.AddCommand(runCmd())
	root.AddCommand(daemonCmd())
	root.AddCommand(profilesCmd())
	root.AddCommand(profileCmd())
	root.AddCommand(stagedCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(deleteCmd())
	root.AddCommand(clearCmd())
	root.AddCommand(serveCmd())

	return root
}

func ingestCmd() *cobra.Command {
	var flags ingestFlags

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch one page of activity and stage it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, flags)
		},
	}

	cmd.Flags().IntVar(&flags.size, "size", 0, "page size (default: from config)")
	cmd.Flags().IntVar(&flags.offset, "offset", 0, "hacktivity offset (default: from config)")
	cmd.Flags().StringVar(&flags.source, "source", "", "hacktivity or leaderboard (default: from config)")
	cmd.Flags().StringVar(&flags.cursor, "cursor", "", "leaderboard cursor to resume after")
	return cmd
}

func enrichCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Fetch profiles for staged identities and upsert them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnrich(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "max identities to enrich, 0 for all (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var (
		flags ingestFlags
		limit int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run ingest then enrich once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, flags, limit)
		},
	}

	cmd.Flags().IntVar(&flags.size, "size", 0, "page size (default: from config)")
	cmd.Flags().IntVar(&flags.offset, "offset", 0, "hacktivity offset (default: from config)")
	cmd.Flags().StringVar(&flags.source, "source", "", "hacktivity or leaderboard (default: from config)")
	cmd.Flags().StringVar(&flags.cursor, "cursor", "", "leaderboard cursor to resume after")
	cmd.Flags().IntVar(&limit, "limit", 0, "max identities to enrich (default: from config)")
	return cmd
}

func daemonCmd() *cobra.Command {
	var (
		interval string
		port     int
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the pipeline on an interval and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(interval, port)
		},
	}

	cmd.Flags().StringVar(&interval, "interval", "", "run interval, e.g. 30m (default: from config)")
	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func profilesCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List stored profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfiles(limit, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max profiles to show, 0 for all")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func profileCmd() *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "profile [username]",
		Short: "Show one stored profile as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var username string
			if len(args) == 1 {
				username = args[0]
			}
			return runProfile(username, id)
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "profile id")
	return cmd
}

func stagedCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "staged [id]",
		Short: "List staged records, or show one by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runStagedRecord(args[0])
			}
			return runStaged(limit, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max records to show, 0 for all")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func searchCmd() *cobra.Command {
	var (
		field      string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search profiles by substring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(args[0], field, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&field, "field", "username", "username, name, location or github_handle")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func statsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database and profile statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func deleteCmd() *cobra.Command {
	var id, stagedID int64

	cmd := &cobra.Command{
		Use:   "delete [username]",
		Short: "Delete a profile by username or --id, or a staged record by --staged",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var username string
			if len(args) == 1 {
				username = args[0]
			}
			return runDelete(username, id, stagedID)
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "profile id")
	cmd.Flags().Int64Var(&stagedID, "staged", 0, "staged record id")
	return cmd
}

func clearCmd() *cobra.Command {
	var (
		yes   bool
		table string
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every staged record and profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(yes, table)
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	cmd.Flags().StringVar(&table, "only", "", "clear only \"staged\" or \"profiles\"")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
