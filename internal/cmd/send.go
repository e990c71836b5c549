package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vvatanabe/sqsredrive"
)

func (f CommandFactory) CreateSendCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Send a message to a registered queue",
		Long:  `Send a message to a registered queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := f.CreateManager(ctx, flgs)
			if err != nil {
				return err
			}
			id, err := manager.SendMessage(ctx, flgs.QueueID, &sqsredrive.SendInput{Body: flgs.Body})
			if err != nil {
				return err
			}
			fmt.Fprintf(f.stdout(), "Sent message: %s\n", id)
			return nil
		},
	}
}

func init() {
	c := defaultCommandFactory.CreateSendCommand(flgs)
	setDefaultFlags(c, flgs)
	setQueueIDFlag(c, flgs)
	c.Flags().StringVar(&flgs.Body, flagMap.Body.Name, flagMap.Body.Value, flagMap.Body.Usage)
	root.AddCommand(c)
}
