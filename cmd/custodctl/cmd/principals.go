package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var principalRole string

// principalsCmd represents the principals command
var principalsCmd = &cobra.Command{
	Use:   "principals",
	Short: "Manage API principals",
	Long: `Commands for managing the principals that authenticate against the
registry. Creating a principal prints its API key exactly once; the
registry stores only a hash and cannot recover the key afterwards.`,
}

var principalsCreateCmd = &cobra.Command{
	Use:   "create <id>",
	Short: "Create a principal and print its API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrincipalsCreate,
}

var principalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all principals",
	RunE:  runPrincipalsList,
}

var principalsRevokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Revoke a principal and its API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrincipalsRevoke,
}

func init() {
	rootCmd.AddCommand(principalsCmd)
	principalsCmd.AddCommand(principalsCreateCmd)
	principalsCmd.AddCommand(principalsListCmd)
	principalsCmd.AddCommand(principalsRevokeCmd)

	principalsCreateCmd.Flags().StringVar(&principalRole, "role", "viewer", "role: admin, operator or viewer")
}

func runPrincipalsCreate(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	created, err := c.CreatePrincipal(context.Background(), args[0], principalRole)
	if err != nil {
		return fmt.Errorf("failed to create principal: %w", err)
	}

	if IsJSONOutput() {
		return printJSON(created)
	}

	fmt.Printf("Principal %q created with role %q\n\n", created.Principal.ID, created.Principal.Role)
	fmt.Printf("API key: %s\n\n", created.APIKey)
	fmt.Println("Store this key now. It cannot be shown again.")
	return nil
}

func runPrincipalsList(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	principals, err := c.ListPrincipals(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list principals: %w", err)
	}

	if IsJSONOutput() {
		return printJSON(principals)
	}

	if len(principals) == 0 {
		fmt.Println("No principals registered")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Role", "Created")
	for _, p := range principals {
		table.Append(p.ID, p.Role, p.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	table.Render()
	fmt.Printf("\nTotal principals: %d\n", len(principals))

	return nil
}

func runPrincipalsRevoke(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	if err := c.DeletePrincipal(context.Background(), args[0]); err != nil {
		return fmt.Errorf("failed to revoke principal: %w", err)
	}

	fmt.Printf("Principal %q revoked\n", args[0])
	return nil
}
