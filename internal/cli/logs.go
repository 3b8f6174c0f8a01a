package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fabrik-io/fabrik/internal/logbuf"
)

var (
	logsLimit int
	logsLevel string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent daemon log records",
	RunE:  runLogs,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check daemon health",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := apiGet("/api/health")
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		return nil
	},
}

func init() {
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 100, "Max records")
	logsCmd.Flags().StringVarP(&logsLevel, "level", "l", "", "Minimum level (debug|info|warn|error)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(logsLimit))
	if logsLevel != "" {
		q.Set("level", logsLevel)
	}
	body, err := apiGet("/api/logs?" + q.Encode())
	if err != nil {
		return err
	}

	var records []logbuf.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return fmt.Errorf("unexpected response: %s", string(body))
	}
	for _, r := range records {
		line := fmt.Sprintf("%s %-5s %s", r.Time.Format("15:04:05"), r.Level, r.Message)
		for k, v := range r.Attrs {
			line += fmt.Sprintf(" %s=%v", k, v)
		}
		fmt.Println(line)
	}
	return nil
}
