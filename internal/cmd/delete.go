package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func (f CommandFactory) CreateDeleteCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove a registered queue",
		Long:  `Remove a registered queue. The SQS queue itself is left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := f.CreateManager(ctx, flgs)
			if err != nil {
				return err
			}
			if err := manager.RemoveQueue(ctx, flgs.QueueID); err != nil {
				return err
			}
			fmt.Fprintf(f.stdout(), "Removed queue: %s\n", flgs.QueueID)
			return nil
		},
	}
}

func init() {
	c := defaultCommandFactory.CreateDeleteCommand(flgs)
	setDefaultFlags(c, flgs)
	setQueueIDFlag(c, flgs)
	root.AddCommand(c)
}
