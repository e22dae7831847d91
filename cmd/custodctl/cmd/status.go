package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registry status",
	Long:  `Retrieve the registry's status report: version, uptime, store backend, resource counts by state, and host load.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	status, err := c.SystemStatus(context.Background())
	if err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}

	if IsJSONOutput() {
		return printJSON(status)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Property", "Value")
	table.Append([]string{"Service", status.Service})
	table.Append([]string{"Version", status.Version})
	table.Append([]string{"Uptime", (time.Duration(status.UptimeSeconds) * time.Second).String()})
	table.Append([]string{"Store", status.StoreType})

	kinds := make([]string, 0, len(status.Resources))
	for kind := range status.Resources {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		table.Append([]string{fmt.Sprintf("Resources (%s)", kind), fmt.Sprintf("%d", status.Resources[kind])})
	}

	table.Append([]string{"Host", status.Host.Hostname})
	if status.Host.Platform != "" {
		table.Append([]string{"Platform", status.Host.Platform})
	}
	table.Append([]string{"CPUs", fmt.Sprintf("%d", status.Host.NumCPU)})
	table.Append([]string{"CPU Load", fmt.Sprintf("%.1f%%", status.Host.CPUPercent)})
	if status.Host.MemoryTotalBytes > 0 {
		totalGB := float64(status.Host.MemoryTotalBytes) / (1024 * 1024 * 1024)
		table.Append([]string{"Memory", fmt.Sprintf("%.2f GB (%.1f%% used)", totalGB, status.Host.MemoryUsedPercent)})
	}
	table.Render()

	return nil
}
