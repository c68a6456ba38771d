package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lernio/studysync/internal/sync"
	"github.com/lernio/studysync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile local data with the cloud now",
	Long: `Run one bidirectional sync of all collections.

Records that exist only locally upload; records that exist only in the
cloud download. Goal completion follows the cloud. A record that fails
does not stop the rest of the batch.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newCLILogger()
		engine, cleanup, err := newEngine(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		fmt.Printf("%s Syncing...\n", ui.RenderAccent("🔄"))

		report, err := engine.SyncToCloud(cmd.Context(), "")
		if err != nil {
			if errors.Is(err, sync.ErrNoOwner) {
				fmt.Fprintf(os.Stderr, "Error: no owner configured (set owner in config or pass --owner)\n")
				os.Exit(1)
			}
			if report == nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			// Partial failure: some collections synced, some did not.
			fmt.Printf("%s Sync finished with errors: %v\n", ui.RenderWarn("⚠"), err)
		} else {
			fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"),
				report.Duration.Round(time.Millisecond))
		}

		printReport(report)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local data and last sync state",
	Run: func(cmd *cobra.Command, args []string) {
		logger := newCLILogger()
		local, err := openLocal(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer local.Close()

		who := owner()
		if who == "" {
			fmt.Fprintf(os.Stderr, "Error: no owner configured (set owner in config or pass --owner)\n")
			os.Exit(1)
		}

		ctx := cmd.Context()
		perf, err := local.CountPerformance(ctx, who)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		goals, err := local.CountGoals(ctx, who)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		ach, err := local.CountAchievements(ctx, who)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		qs, err := local.CountQuestions(ctx, who)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n%s %s\n\n", ui.RenderAccent("📊"),
			ui.RenderHeader(fmt.Sprintf("Local data for %s", who)))
		fmt.Printf("Database: %s\n", cfg.DBPath)
		fmt.Printf("Performance records: %d\n", perf)
		fmt.Printf("Study goals: %d\n", goals)
		fmt.Printf("Achievements: %d\n", ach)
		fmt.Printf("Open questions: %d\n", qs)
		fmt.Println()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compare local and cloud record counts",
	Run: func(cmd *cobra.Command, args []string) {
		logger := newCLILogger()
		engine, cleanup, err := newEngine(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		stats, err := engine.Stats(cmd.Context(), "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n%s Sync stats for %s\n\n", ui.RenderAccent("📊"), stats.OwnerID)
		fmt.Println(ui.RenderHeader(fmt.Sprintf("%-22s %8s %8s", "Collection", "Local", "Remote")))
		for _, c := range stats.Collections {
			marker := " "
			if c.Local != c.Remote {
				marker = ui.RenderWarn("!")
			}
			fmt.Printf("%-22s %8d %8d %s\n", c.Collection, c.Local, c.Remote, marker)
		}
		fmt.Println()
	},
}

// printReport prints per-collection reconciliation counts, skipping
// collections where nothing happened.
func printReport(report *sync.Report) {
	for _, c := range report.Collections() {
		if c.Err != nil {
			fmt.Printf("   %-14s %s\n", c.Collection, ui.RenderErr(c.Err.Error()))
			continue
		}
		if c.Uploaded == 0 && c.Downloaded == 0 && c.Updated == 0 && c.Failed() == 0 {
			continue
		}
		line := fmt.Sprintf("   %-14s up=%d down=%d updated=%d", c.Collection,
			c.Uploaded, c.Downloaded, c.Updated)
		if n := c.Failed(); n > 0 {
			line += " " + ui.RenderWarn(fmt.Sprintf("failed=%d", n))
		}
		fmt.Println(line)
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
}
