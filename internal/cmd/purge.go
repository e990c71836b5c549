package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func (f CommandFactory) CreatePurgeCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Purge all messages from a registered queue",
		Long:  `Purge all messages from a registered queue. AWS allows one purge per queue every 60 seconds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := f.CreateManager(ctx, flgs)
			if err != nil {
				return err
			}
			if err := manager.PurgeQueue(ctx, flgs.QueueID); err != nil {
				return err
			}
			fmt.Fprintf(f.stdout(), "Purged queue: %s\n", flgs.QueueID)
			return nil
		},
	}
}

func init() {
	c := defaultCommandFactory.CreatePurgeCommand(flgs)
	setDefaultFlags(c, flgs)
	setQueueIDFlag(c, flgs)
	root.AddCommand(c)
}
