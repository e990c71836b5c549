package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func (f CommandFactory) CreateLSCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List registered queues",
		Long:  `List registered queues.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := f.CreateManager(ctx, flgs)
			if err != nil {
				return err
			}
			queues, err := manager.ListQueues(ctx)
			if err != nil {
				return err
			}
			result := LSResult{Queues: []QueueSummary{}}
			for _, q := range queues {
				result.Queues = append(result.Queues, QueueSummary{
					ID:        q.ID,
					QueueName: q.QueueName,
					Region:    q.Region,
					DLQName:   q.DLQName,
				})
			}
			printMessageWithData(f.stdout(), "", result)
			return nil
		},
	}
}

type LSResult struct {
	Queues []QueueSummary `json:"queues"`
}

type QueueSummary struct {
	ID        string `json:"id"`
	QueueName string `json:"queue_name"`
	Region    string `json:"region"`
	DLQName   string `json:"dlq_name,omitempty"`
}

func init() {
	c := defaultCommandFactory.CreateLSCommand(flgs)
	setDefaultFlags(c, flgs)
	root.AddCommand(c)
}
