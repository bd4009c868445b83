package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/birdwatch/internal/engine"
	"github.com/user/birdwatch/internal/maintenance"
	"github.com/user/birdwatch/internal/source"
	"github.com/user/birdwatch/internal/state"
	"github.com/user/birdwatch/internal/status"
	"github.com/user/birdwatch/internal/telegram"
	"github.com/user/birdwatch/internal/types"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the birdwatch daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "birdwatch.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Write PID file
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Stores
	watchlist := state.NewWatchList(filepath.Join(cfg.DataDir, "watchlist.json"))
	watchState, err := state.LoadWatchState(filepath.Join(cfg.DataDir, "state.json"))
	if err != nil {
		return fmt.Errorf("load watch state: %w", err)
	}

	// Activity source
	var src types.ActivitySource
	switch cfg.Monitoring.Source {
	case "search":
		src = source.NewSearch(cfg.API.Key, source.WithBaseURL(cfg.API.BaseURL))
	default:
		src = source.NewClient(cfg.API.Key, source.WithBaseURL(cfg.API.BaseURL))
	}

	// Telegram adapter
	alerts, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		return fmt.Errorf("create telegram adapter: %w", err)
	}

	// Engine and runner
	limiter := engine.NewRateLimiter(cfg.RateLimit())
	eng := engine.New(src, alerts, watchlist, limiter, watchState)

	statusSrv := status.NewServer(watchState, watchlist, cfg.Cooldown())

	runnerOpts := []engine.RunnerOption{
		engine.WithCycleObserver(statusSrv.SetLastReport),
	}
	if cfg.Monitoring.NotifyLifecycle {
		runnerOpts = append(runnerOpts, engine.WithLifecycleNotices())
	}
	runner := engine.NewRunner(eng, watchlist, alerts,
		cfg.CheckInterval(), cfg.RecentWindow(), cfg.Cooldown(), runnerOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("birdwatch started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"source", cfg.Monitoring.Source,
		"check_interval", cfg.CheckInterval(),
		"recent_window", cfg.RecentWindow(),
		"cooldown", cfg.Cooldown(),
		"pid_file", pidPath,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(ctx)
	})

	// Maintenance
	maint := maintenance.New(watchState, watchlist, alerts,
		cfg.Monitoring.MaxTrackedEvents, cfg.Cooldown(), cfg.Maintenance.Schedule)
	if err := maint.Start(); err != nil {
		cancel()
		g.Wait()
		return fmt.Errorf("start maintenance: %w", err)
	}
	defer maint.Stop()
	slog.Info("maintenance started", "schedule", cfg.Maintenance.Schedule)

	// Status HTTP server
	if cfg.HTTP.Enabled {
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: statusSrv,
		}
		go func() {
			slog.Info("status server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("status server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				// Re-write PID file since we failed to re-exec
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		runner.Shutdown()
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}
