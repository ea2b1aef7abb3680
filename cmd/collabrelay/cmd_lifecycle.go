package main

// Daemon lifecycle commands. serve writes its PID under the data directory;
// stop and restart locate the process from there and signal it.

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(stopCmd, restartCmd)
}

// runningDaemon resolves the serve process from the PID file and confirms
// it is alive with a zero signal before handing it back.
func runningDaemon() (*os.Process, int, error) {
	cfg := loadConfig()
	raw, err := os.ReadFile(filepath.Join(cfg.DataDir, "collabrelay.pid"))
	if os.IsNotExist(err) {
		return nil, 0, fmt.Errorf("relay daemon is not running (no PID file)")
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, 0, fmt.Errorf("malformed PID file: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err == nil {
		err = proc.Signal(syscall.Signal(0))
	}
	if err != nil {
		return nil, 0, fmt.Errorf("relay daemon is not running (stale PID %d)", pid)
	}
	return proc, pid, nil
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the relay daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, pid, err := runningDaemon()
		if err != nil {
			return err
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("signal pid %d: %w", pid, err)
		}
		fmt.Printf("stopping relay daemon (pid %d)\n", pid)
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the relay daemon in place",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, pid, err := runningDaemon()
		if err != nil {
			return err
		}
		if err := proc.Signal(syscall.SIGHUP); err != nil {
			return fmt.Errorf("signal pid %d: %w", pid, err)
		}
		fmt.Printf("relay daemon (pid %d) is re-execing\n", pid)
		return nil
	},
}
