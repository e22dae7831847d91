package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodian-sh/custodian/pkg/ownership"
)

var (
	watchOwner    string
	watchInterval time.Duration
	watchTimeout  time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <resource>",
	Short: "Watch a resource's ownership",
	Long: `Watch a resource's ownership record. With --owner the command blocks
until that principal holds the owner role, which is handy in handover
scripts:

  custodctl owner propose billing-db bob
  custodctl watch billing-db --owner bob --wait-timeout 1h

Without --owner it follows the record and prints every change until
interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchOwner, "owner", "", "block until this principal owns the resource")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "poll interval")
	watchCmd.Flags().DurationVar(&watchTimeout, "wait-timeout", 10*time.Minute, "give up waiting after this long (with --owner)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	resource := args[0]

	if watchOwner != "" {
		ctx, cancel := context.WithTimeout(context.Background(), watchTimeout)
		defer cancel()

		snap, err := c.WaitForOwner(ctx, resource, watchOwner, watchInterval)
		if err != nil {
			return fmt.Errorf("wait failed: %w", err)
		}
		fmt.Printf("%s is now owned by %s\n", resource, snap.Owner)
		return nil
	}

	// Follow mode: print the record every time it changes until interrupted.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	var last *ownership.Snapshot
	for {
		snap, err := c.GetOwnership(ctx, resource)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("watch failed: %w", err)
		}

		if last == nil || *snap != *last {
			fmt.Printf("%s  state=%s owner=%s proposed=%s emergency=%s\n",
				time.Now().Format("15:04:05"),
				describeState(*snap),
				orDash(snap.Owner),
				orDash(snap.Proposed),
				orDash(snap.EmergencyOwner))
			last = snap
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
