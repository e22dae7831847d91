package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"

	"github.com/custodian-sh/custodian/internal/tlsutil"
	"github.com/custodian-sh/custodian/pkg/client"
	"github.com/custodian-sh/custodian/pkg/ownership"
)

var (
	cfgFile      string
	serverURL    string
	apiKey       string
	outputFormat string
	queryPath    string
	caFile       string
	certFile     string
	keyFile      string
	timeout      time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "custodctl",
	Short: "CLI for the custodian ownership registry",
	Long: `custodctl manages resources, owners and principals in a custodian
ownership registry. Ownership changes follow the registry's two-step
handover: the current owner proposes a successor, the successor accepts.`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.custodctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "registry URL (default from config or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key (default from config or CUSTODCTL_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&queryPath, "query", "", "gjson path applied to the JSON output, e.g. 'state.owner'")
	rootCmd.PersistentFlags().StringVar(&caFile, "ca-cert", "", "CA certificate for verifying the registry")
	rootCmd.PersistentFlags().StringVar(&certFile, "client-cert", "", "client certificate for mTLS")
	rootCmd.PersistentFlags().StringVar(&keyFile, "client-key", "", "client key for mTLS")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(filepath.Join(home, ".custodctl"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	viper.BindEnv("server", "CUSTODCTL_SERVER")
	viper.BindEnv("api_key", "CUSTODCTL_API_KEY")

	// Missing config files are fine; flags and env still apply.
	_ = viper.ReadInConfig()

	if serverURL == "" {
		serverURL = viper.GetString("server")
	}
	if apiKey == "" {
		apiKey = viper.GetString("api_key")
	}
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
}

// newClient builds the API client from the resolved configuration.
func newClient() (*client.Client, error) {
	base := strings.TrimRight(serverURL, "/")

	var c *client.Client
	if caFile != "" || certFile != "" {
		tlsConfig, err := tlsutil.LoadClientConfig(certFile, keyFile, caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		c = client.NewClientWithTLS(base, tlsConfig)
	} else {
		c = client.NewClient(base)
	}

	c.SetAPIKey(apiKey)
	c.SetTimeout(timeout)
	return c, nil
}

// IsJSONOutput returns true if JSON output is requested. A --query implies
// JSON since the path is evaluated against the JSON rendering.
func IsJSONOutput() bool {
	return outputFormat == "json" || queryPath != ""
}

// printJSON renders v as indented JSON, applying any --query path.
func printJSON(v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if queryPath != "" {
		result := gjson.GetBytes(output, queryPath)
		if !result.Exists() {
			return fmt.Errorf("query %q matched nothing", queryPath)
		}
		fmt.Println(result.String())
		return nil
	}

	fmt.Println(string(output))
	return nil
}

// describeState summarizes a snapshot in one word for table output.
func describeState(s ownership.Snapshot) string {
	switch {
	case s.Abolished:
		return "abolished"
	case !s.Initialized:
		return "uninitialized"
	case s.Proposed != "":
		return "handover pending"
	default:
		return "owned"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
