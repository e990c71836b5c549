package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func (f CommandFactory) CreateGetCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the configuration of a registered queue",
		Long:  `Show the configuration of a registered queue, including its dead-letter queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := f.CreateManager(ctx, flgs)
			if err != nil {
				return err
			}
			queue, err := manager.GetQueue(ctx, flgs.QueueID)
			if err != nil {
				return err
			}
			printMessageWithData(f.stdout(), "", queue)
			return nil
		},
	}
}

func init() {
	c := defaultCommandFactory.CreateGetCommand(flgs)
	setDefaultFlags(c, flgs)
	setQueueIDFlag(c, flgs)
	root.AddCommand(c)
}
