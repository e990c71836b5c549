package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func (f CommandFactory) CreateResetCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Change the visibility timeout of a received message",
		Long:  `Change the visibility timeout of a received message. The default of 0 makes the message visible again right away.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := f.CreateManager(ctx, flgs)
			if err != nil {
				return err
			}
			err = manager.ChangeVisibility(ctx, flgs.QueueID, flgs.ReceiptHandle, flgs.VisibilityTimeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(f.stdout(), "Visibility timeout changed to %d seconds\n", flgs.VisibilityTimeout)
			return nil
		},
	}
}

func init() {
	c := defaultCommandFactory.CreateResetCommand(flgs)
	setDefaultFlags(c, flgs)
	setQueueIDFlag(c, flgs)
	c.Flags().StringVar(&flgs.ReceiptHandle, flagMap.ReceiptHandle.Name, flagMap.ReceiptHandle.Value, flagMap.ReceiptHandle.Usage)
	c.Flags().IntVar(&flgs.VisibilityTimeout, flagMap.VisibilityTimeout.Name, flagMap.VisibilityTimeout.Value, flagMap.VisibilityTimeout.Usage)
	root.AddCommand(c)
}
