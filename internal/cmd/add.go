package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/vvatanabe/sqsredrive"
)

func (f CommandFactory) CreateAddCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "add",
		Short: "Register a queue by name or URL",
		Long:  `Register a queue by name or URL. The dead-letter queue named by its redrive policy is registered with it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := f.CreateManager(ctx, flgs)
			if err != nil {
				return err
			}
			queue, err := manager.AddQueue(ctx, &sqsredrive.AddQueueInput{
				Identifier: flgs.Queue,
				Region:     flgs.Region,
			})
			if err != nil {
				return err
			}
			printMessageWithData(f.stdout(), "Registered queue:\n", queue)
			return nil
		},
	}
}

func init() {
	c := defaultCommandFactory.CreateAddCommand(flgs)
	setDefaultFlags(c, flgs)
	c.Flags().StringVar(&flgs.Queue, flagMap.Queue.Name, flagMap.Queue.Value, flagMap.Queue.Usage)
	root.AddCommand(c)
}
