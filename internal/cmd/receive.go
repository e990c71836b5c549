package cmd

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"
	"github.com/vvatanabe/sqsredrive"
)

func (f CommandFactory) CreateReceiveCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "receive",
		Short: "Receive messages from a registered queue",
		Long: `Receive messages from a registered queue, or from its dead-letter queue with --dlq.
Received messages stay invisible for the visibility timeout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := f.CreateManager(ctx, flgs)
			if err != nil {
				return err
			}
			params := &sqsredrive.ReceiveInput{MaxMessages: flgs.Max}
			if flgs.VisibilityTimeout > 0 {
				params.VisibilityTimeout = aws.Int32(int32(flgs.VisibilityTimeout))
			}
			receive := manager.ReceiveMessages
			if flgs.DLQ {
				receive = manager.ReceiveDLQMessages
			}
			messages, err := receive(ctx, flgs.QueueID, params)
			if err != nil {
				return err
			}
			printMessageWithData(f.stdout(), "", messages)
			return nil
		},
	}
}

func init() {
	c := defaultCommandFactory.CreateReceiveCommand(flgs)
	setDefaultFlags(c, flgs)
	setQueueIDFlag(c, flgs)
	setMaxFlag(c, flgs)
	c.Flags().BoolVar(&flgs.DLQ, flagMap.DLQ.Name, flagMap.DLQ.Value, flagMap.DLQ.Usage)
	c.Flags().IntVar(&flgs.VisibilityTimeout, flagMap.VisibilityTimeout.Name, flagMap.VisibilityTimeout.Value, flagMap.VisibilityTimeout.Usage)
	root.AddCommand(c)
}
