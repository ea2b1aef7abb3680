package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(roomCmd)
	roomCmd.AddCommand(roomListCmd, roomShowCmd)
}

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Inspect live rooms on a running daemon",
}

// apiGet queries the daemon's debug API and decodes the JSON response.
func apiGet(path string, out any) error {
	cfg := loadConfig()
	url := "http://" + cfg.Listen + path

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("query daemon at %s (is it running?): %w", cfg.Listen, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("not found: %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var roomListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live rooms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var rooms []struct {
			ID           string `json:"id"`
			Type         string `json:"type"`
			Members      int    `json:"members"`
			LastActivity string `json:"last_activity"`
		}
		if err := apiGet("/api/rooms", &rooms); err != nil {
			return err
		}

		if len(rooms) == 0 {
			fmt.Println("No live rooms.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tMEMBERS\tLAST ACTIVITY")
		for _, r := range rooms {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.ID, r.Type, r.Members, r.LastActivity)
		}
		return w.Flush()
	},
}

var roomShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a room's full snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var snapshot map[string]any
		if err := apiGet("/api/rooms/"+args[0], &snapshot); err != nil {
			return err
		}
		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}
