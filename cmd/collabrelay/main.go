package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/researchgraph/collabrelay/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "collabrelay",
	Short: "Real-time collaboration relay for ResearchGraph projects",
	Long: `collabrelay is the session/room-based event broadcaster that lets
multiple clients editing the same research artifact (an analysis, a
hypothesis, a knowledge graph) see each other's cursors, edits, and
comments live.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config",
		filepath.Join(os.Getenv("HOME"), ".collabrelay", "config.json"),
		"config file path")
}

// loadConfig loads the config or exits; commands assume a usable config.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
