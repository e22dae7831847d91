package cmd

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

var (
	metricsURL    string
	metricsFilter string
)

// metricsCmd represents the metrics command
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Scrape and display the registry's metrics",
	Long: `Fetch the Prometheus metrics endpoint and render the samples as a
table. Useful for a quick look at transition counts and request rates
without a Prometheus server.`,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)

	metricsCmd.Flags().StringVar(&metricsURL, "metrics-url", "http://localhost:9090/metrics", "metrics endpoint to scrape")
	metricsCmd.Flags().StringVar(&metricsFilter, "filter", "custodian_", "only show metrics with this name prefix (empty for all)")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	httpClient := &http.Client{Timeout: timeout}
	resp, err := httpClient.Get(metricsURL)
	if err != nil {
		return fmt.Errorf("failed to scrape %s: %w", metricsURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scrape failed with status %d", resp.StatusCode)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse metrics: %w", err)
	}

	names := make([]string, 0, len(families))
	for name := range families {
		if metricsFilter != "" && !strings.HasPrefix(name, metricsFilter) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		fmt.Println("No matching metrics")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Type", "Labels", "Value")
	for _, name := range names {
		mf := families[name]
		kind := strings.ToLower(mf.GetType().String())

		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}

			var value string
			switch {
			case m.GetGauge() != nil:
				value = formatSample(m.GetGauge().GetValue())
			case m.GetCounter() != nil:
				value = formatSample(m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				value = fmt.Sprintf("count=%d sum=%s", h.GetSampleCount(), formatSample(h.GetSampleSum()))
			case m.GetSummary() != nil:
				s := m.GetSummary()
				value = fmt.Sprintf("count=%d sum=%s", s.GetSampleCount(), formatSample(s.GetSampleSum()))
			default:
				value = formatSample(m.GetUntyped().GetValue())
			}

			table.Append(name, kind, strings.Join(labels, ", "), value)
		}
	}
	table.Render()

	return nil
}

func formatSample(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.4f", v)
}
