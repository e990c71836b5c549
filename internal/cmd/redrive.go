package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/vvatanabe/sqsredrive"
)

func (f CommandFactory) CreateRedriveCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "redrive",
		Short: "Move messages from the dead-letter queue back to the main queue",
		Long: `Move messages from the dead-letter queue back to the main queue.
Address a registered queue with --queue-id, or any pair of queues with --dlq-url and --queue-url.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			target := sqsredrive.Limit(flgs.Max)
			if flgs.All {
				target = sqsredrive.DrainAll()
			}
			result, err := f.redrive(ctx, flgs, target)
			if err != nil {
				return err
			}
			printMessageWithData(f.stdout(), "Redrive result:\n", result)
			return nil
		},
	}
}

func (f CommandFactory) redrive(ctx context.Context, flgs *Flags, target sqsredrive.RedriveTarget) (*sqsredrive.RedriveResult, error) {
	if flgs.DLQURL != "" || flgs.QueueURL != "" {
		gw, err := f.CreateGateway(ctx, flgs)
		if err != nil {
			return nil, err
		}
		return sqsredrive.NewRedriver(gw).RedriveBulk(ctx, &sqsredrive.RedriveBulkInput{
			DLQURL:       flgs.DLQURL,
			MainQueueURL: flgs.QueueURL,
			Target:       target,
		})
	}
	manager, err := f.CreateManager(ctx, flgs)
	if err != nil {
		return nil, err
	}
	return manager.RedriveBulk(ctx, flgs.QueueID, target)
}

func init() {
	c := defaultCommandFactory.CreateRedriveCommand(flgs)
	setDefaultFlags(c, flgs)
	setQueueIDFlag(c, flgs)
	setMaxFlag(c, flgs)
	c.Flags().BoolVar(&flgs.All, flagMap.All.Name, flagMap.All.Value, flagMap.All.Usage)
	c.Flags().StringVar(&flgs.DLQURL, flagMap.DLQURL.Name, flagMap.DLQURL.Value, flagMap.DLQURL.Usage)
	c.Flags().StringVar(&flgs.QueueURL, flagMap.QueueURL.Name, flagMap.QueueURL.Value, flagMap.QueueURL.Usage)
	root.AddCommand(c)
}
