package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/lernio/studysync/internal/ui"
)

var pullYes bool

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace local data with the cloud copy",
	Long: `Restore local collections from the cloud store.

This is destructive: local records that were never synced are lost. The
cloud data is fetched in full before anything is deleted locally, so a
connection failure leaves local data untouched.

Use this to set up a new device or recover from local corruption.`,
	Run: func(cmd *cobra.Command, args []string) {
		if !pullYes {
			var confirmed bool
			prompt := huh.NewConfirm().
				Title("Replace local data with the cloud copy?").
				Description("Local records that were never synced will be lost.").
				Affirmative("Replace").
				Negative("Cancel").
				Value(&confirmed)
			if err := prompt.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if !confirmed {
				fmt.Println("Cancelled.")
				return
			}
		}

		logger := newCLILogger()
		engine, cleanup, err := newEngine(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		fmt.Printf("%s Pulling from cloud...\n", ui.RenderAccent("⬇"))
		start := time.Now()

		if err := engine.PullFromCloud(cmd.Context(), ""); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		status := engine.Status()
		fmt.Printf("%s Restore complete in %v\n", ui.RenderPass("✓"),
			time.Since(start).Round(time.Millisecond))
		if status.PendingDownloads > 0 {
			fmt.Printf("%s %d records could not be restored\n",
				ui.RenderWarn("⚠"), status.PendingDownloads)
		}
	},
}

func init() {
	pullCmd.Flags().BoolVar(&pullYes, "yes", false, "skip the confirmation prompt")
	rootCmd.AddCommand(pullCmd)
}
