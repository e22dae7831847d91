package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/custodian-sh/custodian/pkg/client"
)

var (
	initOwner     string
	initAbolished bool
	historyLimit  int
)

// resourcesCmd represents the resources command
var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "Manage registered resources",
	Long:  `Commands for initializing, listing and inspecting the ownership records held by the registry.`,
}

var resourcesInitCmd = &cobra.Command{
	Use:   "init <resource>",
	Short: "Initialize a resource's ownership record",
	Long: `Initialize the ownership record for a resource. Exactly one of --owner
and --abolished must be given: --owner sets the first owner, --abolished
starts the record with the owner role permanently abolished.`,
	Args: cobra.ExactArgs(1),
	RunE: runResourcesInit,
}

var resourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered resources",
	RunE:  runResourcesList,
}

var resourcesShowCmd = &cobra.Command{
	Use:   "show <resource>...",
	Short: "Show ownership for one or more resources",
	Long:  `Fetch the current ownership snapshot for the given resources. Multiple resources are fetched concurrently.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResourcesShow,
}

var resourcesTransitionsCmd = &cobra.Command{
	Use:   "transitions <resource>",
	Short: "Show a resource's ownership history, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runResourcesTransitions,
}

func init() {
	rootCmd.AddCommand(resourcesCmd)
	resourcesCmd.AddCommand(resourcesInitCmd)
	resourcesCmd.AddCommand(resourcesListCmd)
	resourcesCmd.AddCommand(resourcesShowCmd)
	resourcesCmd.AddCommand(resourcesTransitionsCmd)

	resourcesInitCmd.Flags().StringVar(&initOwner, "owner", "", "principal to set as the first owner")
	resourcesInitCmd.Flags().BoolVar(&initAbolished, "abolished", false, "start with the owner role abolished")
	resourcesTransitionsCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum records to fetch (0 for all)")
}

func runResourcesInit(cmd *cobra.Command, args []string) error {
	if initAbolished && initOwner != "" {
		return fmt.Errorf("--owner and --abolished are mutually exclusive")
	}
	if !initAbolished && initOwner == "" {
		return fmt.Errorf("either --owner or --abolished is required")
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	var result *client.OwnershipResult
	if initAbolished {
		result, err = c.InitAbolished(context.Background(), args[0])
	} else {
		result, err = c.SetInitialOwner(context.Background(), args[0], initOwner)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize resource: %w", err)
	}

	return printOwnershipResult(result)
}

func runResourcesList(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	resources, err := c.ListResources(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list resources: %w", err)
	}

	if IsJSONOutput() {
		return printJSON(resources)
	}

	if len(resources) == 0 {
		fmt.Println("No resources registered")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Name", "State", "Owner", "Proposed", "Emergency", "Updated")
	for _, res := range resources {
		table.Append(
			res.Name,
			describeState(res.State),
			orDash(res.State.Owner),
			orDash(res.State.Proposed),
			orDash(res.State.EmergencyOwner),
			res.UpdatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	table.Render()
	fmt.Printf("\nTotal resources: %d\n", len(resources))

	return nil
}

func runResourcesShow(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	snapshots, err := c.Snapshots(context.Background(), args)
	if err != nil {
		return fmt.Errorf("failed to fetch snapshots: %w", err)
	}

	if IsJSONOutput() {
		return printJSON(snapshots)
	}

	names := make([]string, 0, len(snapshots))
	for name := range snapshots {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Name", "State", "Owner", "Proposed", "Emergency")
	for _, name := range names {
		snap := snapshots[name]
		table.Append(
			name,
			describeState(snap),
			orDash(snap.Owner),
			orDash(snap.Proposed),
			orDash(snap.EmergencyOwner),
		)
	}
	table.Render()

	return nil
}

func runResourcesTransitions(cmd *cobra.Command, args []string) error {
	if historyLimit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	transitions, err := c.ListTransitions(context.Background(), args[0], historyLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch transitions: %w", err)
	}

	if IsJSONOutput() {
		return printJSON(transitions)
	}

	if len(transitions) == 0 {
		fmt.Println("No transitions recorded")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Occurred", "Action", "Sender", "From", "To", "Owner", "Proposed")
	for _, tr := range transitions {
		table.Append(
			tr.OccurredAt.Format("2006-01-02 15:04:05"),
			tr.Action,
			tr.Sender,
			tr.FromKind,
			tr.ToKind,
			orDash(tr.Owner),
			orDash(tr.Proposed),
		)
	}
	table.Render()

	return nil
}
