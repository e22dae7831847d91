package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/custodian-sh/custodian/pkg/client"
)

// ownerCmd represents the owner command
var ownerCmd = &cobra.Command{
	Use:   "owner",
	Short: "Drive ownership transitions",
	Long: `Commands for moving a resource's owner role through its lifecycle.
The registry authenticates you as a principal and dispatches every
transition with your principal ID as the sender, so for example only the
current owner can propose and only the proposed successor can accept.`,
}

var ownerProposeCmd = &cobra.Command{
	Use:   "propose <resource> <principal>",
	Short: "Propose a new owner for a resource",
	Args:  cobra.ExactArgs(2),
	RunE:  runOwnerPropose,
}

var ownerClearProposedCmd = &cobra.Command{
	Use:   "clear-proposed <resource>",
	Short: "Withdraw the pending ownership proposal",
	Args:  cobra.ExactArgs(1),
	RunE:  runOwnerClearProposed,
}

var ownerAcceptCmd = &cobra.Command{
	Use:   "accept <resource>",
	Short: "Accept a pending ownership proposal",
	Args:  cobra.ExactArgs(1),
	RunE:  runOwnerAccept,
}

var ownerAbolishCmd = &cobra.Command{
	Use:   "abolish <resource>",
	Short: "Abolish the owner role forever",
	Long: `Abolish the owner role for a resource. This is irreversible: once
abolished, no owner can ever be set again.`,
	Args: cobra.ExactArgs(1),
	RunE: runOwnerAbolish,
}

var ownerSetEmergencyCmd = &cobra.Command{
	Use:   "set-emergency <resource> <principal>",
	Short: "Grant the emergency owner role",
	Args:  cobra.ExactArgs(2),
	RunE:  runOwnerSetEmergency,
}

var ownerClearEmergencyCmd = &cobra.Command{
	Use:   "clear-emergency <resource>",
	Short: "Revoke the emergency owner role",
	Args:  cobra.ExactArgs(1),
	RunE:  runOwnerClearEmergency,
}

func init() {
	rootCmd.AddCommand(ownerCmd)
	ownerCmd.AddCommand(ownerProposeCmd)
	ownerCmd.AddCommand(ownerClearProposedCmd)
	ownerCmd.AddCommand(ownerAcceptCmd)
	ownerCmd.AddCommand(ownerAbolishCmd)
	ownerCmd.AddCommand(ownerSetEmergencyCmd)
	ownerCmd.AddCommand(ownerClearEmergencyCmd)
}

func runOwnerPropose(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	result, err := c.ProposeNewOwner(context.Background(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to propose owner: %w", err)
	}
	return printOwnershipResult(result)
}

func runOwnerClearProposed(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	result, err := c.ClearProposed(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to clear proposal: %w", err)
	}
	return printOwnershipResult(result)
}

func runOwnerAccept(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	result, err := c.AcceptProposed(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to accept proposal: %w", err)
	}
	return printOwnershipResult(result)
}

func runOwnerAbolish(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	result, err := c.AbolishOwnerRole(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to abolish owner role: %w", err)
	}
	return printOwnershipResult(result)
}

func runOwnerSetEmergency(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	result, err := c.SetEmergencyOwner(context.Background(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to set emergency owner: %w", err)
	}
	return printOwnershipResult(result)
}

func runOwnerClearEmergency(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	result, err := c.ClearEmergencyOwner(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to clear emergency owner: %w", err)
	}
	return printOwnershipResult(result)
}

// printOwnershipResult renders a mutation result as a table or JSON.
func printOwnershipResult(result *client.OwnershipResult) error {
	if IsJSONOutput() {
		return printJSON(result)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Property", "Value")
	table.Append([]string{"Resource", result.Resource})
	table.Append([]string{"State", describeState(result.State)})
	if result.State.Owner != "" {
		table.Append([]string{"Owner", result.State.Owner})
	}
	if result.State.Proposed != "" {
		table.Append([]string{"Proposed", result.State.Proposed})
	}
	if result.State.EmergencyOwner != "" {
		table.Append([]string{"Emergency Owner", result.State.EmergencyOwner})
	}
	if result.Attributes != nil {
		table.Append([]string{"Sender", result.Attributes.Sender})
	}
	table.Render()

	return nil
}
