package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lernio/studysync/internal/config"
	"github.com/lernio/studysync/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage studysync configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a starter config file with defaults and comments.

Refuses to overwrite an existing file. Pass --config to choose the
location.`,
	// The root pre-run loads config, which this command does not need.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		path := configPath
		if path == "" {
			var err error
			path, err = config.DefaultPath()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		if err := config.WriteDefault(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
		fmt.Println("Edit it to set your owner identity and cloud store.")
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Owner: %s\n", cfg.Owner)
		fmt.Printf("Database: %s\n", cfg.DBPath)
		fmt.Printf("Remote kind: %s\n", cfg.Remote.Kind)
		if cfg.Remote.Kind == config.RemoteTurso {
			fmt.Printf("Database URL: %s\n", cfg.Remote.DatabaseURL)
		} else {
			fmt.Printf("Base URL: %s\n", cfg.Remote.BaseURL)
		}
		fmt.Printf("Sync interval: %v\n", cfg.Sync.Interval)
		fmt.Printf("Fetch limit: %d\n", cfg.Sync.FetchLimit)
		fmt.Printf("Probe interval: %v\n", cfg.Sync.ProbeInterval)
		fmt.Printf("Diagnostics port: %d\n", cfg.Daemon.DiagPort)
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
