package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func (f CommandFactory) CreateDLQCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "dlq",
		Short: "Peek at messages in the dead-letter queue",
		Long:  `Peek at messages in the dead-letter queue of a registered queue. The messages are made visible again right away.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := f.CreateManager(ctx, flgs)
			if err != nil {
				return err
			}
			messages, err := manager.PeekDLQMessages(ctx, flgs.QueueID, flgs.Max)
			if err != nil {
				return err
			}
			printMessageWithData(f.stdout(), "", messages)
			return nil
		},
	}
}

func init() {
	c := defaultCommandFactory.CreateDLQCommand(flgs)
	setDefaultFlags(c, flgs)
	setQueueIDFlag(c, flgs)
	setMaxFlag(c, flgs)
	root.AddCommand(c)
}
