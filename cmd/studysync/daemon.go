package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lernio/studysync/internal/config"
	"github.com/lernio/studysync/internal/connectivity"
	"github.com/lernio/studysync/internal/diag"
	"github.com/lernio/studysync/internal/remote"
	"github.com/lernio/studysync/internal/sync"
	"github.com/lernio/studysync/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon (foreground)",
	Long: `Run the sync daemon in the foreground.

The daemon watches connectivity and syncs on a schedule while online.
Going offline stops the schedule; a sync already running is allowed to
finish. Coming back online resumes the schedule with an immediate sync.

With an HTTP cloud store it also listens for server change events and
syncs early instead of waiting for the next tick. A loopback diagnostics
server exposes /status and streams sync events over /ws.

Run under a process manager for production use; press Ctrl+C to stop.`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger := newDaemonLogger()

	who := owner()
	if who == "" {
		return fmt.Errorf("no owner configured (set owner in config or pass --owner)")
	}

	local, err := openLocal(logger)
	if err != nil {
		return err
	}
	defer local.Close()

	rs, closeRemote, err := openRemote(logger)
	if err != nil {
		return err
	}
	if closeRemote != nil {
		defer closeRemote()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connectivity: probe the cloud store's health endpoint. Without a
	// probe target the daemon assumes it is always online.
	var monitor *connectivity.Monitor
	online := func() bool { return true }
	if target := cfg.ProbeTarget(); target != "" {
		monitor = connectivity.New(&connectivity.HTTPProber{URL: target}, connectivity.Config{
			Interval: cfg.Sync.ProbeInterval,
			Logger:   logger,
		})
		online = monitor.Online
	}

	engine := sync.New(local, rs, sync.Config{
		Owner:      who,
		FetchLimit: cfg.Sync.FetchLimit,
		Online:     online,
		Logger:     logger,
	})

	// Diagnostics server, loopback only.
	var diagServer *diag.Server
	if cfg.Daemon.DiagPort > 0 {
		diagServer = diag.NewServer(func() any { return engine.Status() }, diag.Config{
			Port:   cfg.Daemon.DiagPort,
			Logger: logger,
		})
		if err := diagServer.Start(); err != nil {
			return err
		}
		defer func() {
			if err := diagServer.Stop(); err != nil {
				logger.Printf("Diagnostics shutdown error: %v", err)
			}
		}()

		engine.OnSyncStart(diagServer.BroadcastSyncStarted)
		engine.OnSyncDone(func(report *sync.Report, err error) {
			data := diag.SyncCompleteData{
				Uploaded:   report.Uploaded(),
				Downloaded: report.Downloaded(),
				Updated:    report.Updated(),
				DurationMS: report.Duration.Milliseconds(),
			}
			for _, c := range report.Collections() {
				data.Failed += c.Failed()
			}
			if err != nil {
				data.Error = err.Error()
			}
			diagServer.BroadcastSyncComplete(data)
		})
	}

	// syncNow runs an out-of-schedule sync, tolerating the states the
	// scheduler already handles.
	syncNow := func(reason string) {
		if _, err := engine.SyncToCloud(ctx, ""); err != nil {
			if errors.Is(err, sync.ErrSyncInProgress) || errors.Is(err, sync.ErrOffline) {
				return
			}
			logger.Printf("Sync (%s) failed: %v", reason, err)
		}
	}

	if monitor != nil {
		monitor.OnOnline(func() {
			if diagServer != nil {
				diagServer.BroadcastConnectivity(true)
			}
			engine.StartAutoSync(cfg.Sync.Interval)
			go syncNow("connectivity restored")
		})
		monitor.OnOffline(func() {
			if diagServer != nil {
				diagServer.BroadcastConnectivity(false)
			}
			engine.StopAutoSync()
		})
		monitor.Start(ctx)
		defer monitor.Stop()
	} else {
		engine.StartAutoSync(cfg.Sync.Interval)
		go syncNow("startup")
	}
	defer engine.StopAutoSync()

	// Server-pushed change events trigger an early sync for the HTTP
	// cloud store.
	if cfg.Remote.Kind == config.RemoteHTTP && cfg.Remote.BaseURL != "" {
		notifier := &remote.Notifier{
			BaseURL: cfg.Remote.BaseURL,
			APIKey:  cfg.Remote.APIKey,
			Logger:  logger,
		}
		go notifier.Listen(ctx, who, func(ev remote.ChangeEvent) {
			logger.Printf("Change event for %s, syncing early", ev.Collection)
			syncNow("change event")
		})
	}

	fmt.Printf("%s Sync daemon running for %s\n", ui.RenderAccent("🚀"), who)
	fmt.Printf("   Database: %s\n", cfg.DBPath)
	if cfg.Daemon.DiagPort > 0 {
		fmt.Printf("   Diagnostics: http://%s/status\n", diagServer.Addr())
	}
	fmt.Printf("\nPress Ctrl+C to stop\n\n")

	<-ctx.Done()
	logger.Printf("Shutting down")
	return nil
}

// newDaemonLogger logs to the configured file with rotation, or stderr.
func newDaemonLogger() *log.Logger {
	if cfg.Daemon.LogFile == "" {
		return log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	return log.New(&lumberjack.Logger{
		Filename:   cfg.Daemon.LogFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}, "[daemon] ", log.LstdFlags)
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
