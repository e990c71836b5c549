package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/vvatanabe/sqsredrive"
)

func (f CommandFactory) CreateQueueStatCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "qstat",
		Short: "Refresh and show the attributes of a registered queue",
		Long:  `Refresh and show the attributes of a registered queue, such as the approximate number of messages.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			manager, err := f.CreateManager(ctx, flgs)
			if err != nil {
				return err
			}
			queue, err := manager.RefreshQueue(ctx, flgs.QueueID)
			if err != nil {
				return err
			}
			printMessageWithData(f.stdout(), "", newQueueStats(queue))
			return nil
		},
	}
}

type QueueStats struct {
	QueueName                     string `json:"queue_name"`
	DLQName                       string `json:"dlq_name,omitempty"`
	ApproximateNumberOfMessages   string `json:"approximate_number_of_messages"`
	ApproximateNumberOfNotVisible string `json:"approximate_number_of_messages_not_visible"`
	ApproximateNumberOfDelayed    string `json:"approximate_number_of_messages_delayed"`
	RedrivePolicy                 string `json:"redrive_policy,omitempty"`
}

func newQueueStats(q *sqsredrive.QueueConfiguration) QueueStats {
	return QueueStats{
		QueueName:                     q.QueueName,
		DLQName:                       q.DLQName,
		ApproximateNumberOfMessages:   q.Attributes["ApproximateNumberOfMessages"],
		ApproximateNumberOfNotVisible: q.Attributes["ApproximateNumberOfMessagesNotVisible"],
		ApproximateNumberOfDelayed:    q.Attributes["ApproximateNumberOfMessagesDelayed"],
		RedrivePolicy:                 q.Attributes["RedrivePolicy"],
	}
}

func init() {
	c := defaultCommandFactory.CreateQueueStatCommand(flgs)
	setDefaultFlags(c, flgs)
	setQueueIDFlag(c, flgs)
	root.AddCommand(c)
}
