package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/researchgraph/collabrelay/internal/bridge"
	"github.com/researchgraph/collabrelay/internal/relay"
	"github.com/researchgraph/collabrelay/internal/sweeper"
	"github.com/researchgraph/collabrelay/internal/ws"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the collabrelay daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "collabrelay.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional multi-instance bridge
	var br *bridge.Bridge
	var publisher relay.Publisher
	if cfg.Redis.Addr != "" {
		br, err = bridge.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connect bridge: %w", err)
		}
		publisher = br
	}

	rl := relay.New(publisher)

	if br != nil {
		br.Start(ctx, rl.DeliverRemote)
		defer br.Close()
	}

	// Presence sweeper
	sw := sweeper.New(rl.Registry(), rl.Evict,
		cfg.Presence.SweepSchedule,
		time.Duration(cfg.Presence.StaleAfterSec)*time.Second,
		time.Duration(cfg.Presence.IdleRoomSec)*time.Second,
	)
	if err := sw.Start(); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer sw.Stop()

	// Websocket server
	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: ws.NewServer(rl, cfg.AllowedOrigins),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	slog.Info("collabrelay started",
		"listen", cfg.Listen,
		"log_level", cfg.LogLevel,
		"bridge", cfg.Redis.Addr != "",
		"pid_file", pidPath,
	)

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
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		cancel()
		return g.Wait()
	}
}
