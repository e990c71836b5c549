package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vvatanabe/sqsredrive"
)

type Interactive struct {
	Manager Manager
	Out     io.Writer
	// Queue is the queue selected with `use`.
	Queue *sqsredrive.QueueConfiguration
	// Received holds the DLQ messages of the last `receive-dlq`, consumed by `redrive-selected`.
	Received []sqsredrive.ReceivedMessage
}

func (c *Interactive) Run(ctx context.Context, command string, params []string) error {
	switch command {
	case "h", "?", "help":
		return c.help(ctx, params)
	case "ls":
		return c.ls(ctx, params)
	case "use", "id":
		return c.use(ctx, params)
	case "info":
		return c.info(ctx, params)
	case "qstat", "qstats":
		return c.qstat(ctx, params)
	case "dlq", "peek":
		return c.dlq(ctx, params)
	case "receive":
		return c.receive(ctx, params)
	case "receive-dlq":
		return c.receiveDLQ(ctx, params)
	case "send":
		return c.send(ctx, params)
	case "delete":
		return c.delete(ctx, params)
	case "reset":
		return c.reset(ctx, params)
	case "redrive":
		return c.redrive(ctx, params)
	case "redrive-selected":
		return c.redriveSelected(ctx, params)
	case "purge":
		return c.purge(ctx, params)
	case "profile":
		return c.profile(ctx, params)
	case "profiles":
		return c.profiles(ctx, params)
	default:
		return fmt.Errorf("unrecognized command: %s", command)
	}
}

func (c *Interactive) out() io.Writer {
	if c.Out == nil {
		return io.Discard
	}
	return c.Out
}

func (c *Interactive) help(_ context.Context, _ []string) error {
	fmt.Fprintln(c.out(), `... this is Interactive HELP!
  > ls                                            [List registered queues]
  > use | id <queue-id>                           [Select a registered queue; without an ID, go back to the standard mode]
    > info                                        [Print the configuration of the selected queue]
    > qstat | qstats                              [Refresh and print the queue attributes]
    > dlq | peek [n]                              [Peek at up to n DLQ messages; they become visible again right away]
    > receive [n]                                 [Receive up to n messages from the main queue]
    > receive-dlq [n]                             [Receive up to n DLQ messages and keep them for redrive-selected]
    > send <body>                                 [Send a message to the main queue]
    > delete <receipt-handle>                     [Delete a received message from the main queue]
    > reset <receipt-handle>                      [Make a received message visible again]
    > redrive [n|all]                             [Move n messages (default 1) or all messages from the DLQ to the main queue]
    > redrive-selected                            [Move the messages of the last receive-dlq to the main queue]
    > purge                                       [Purge all messages from the main queue]
  > profile [name]                                [Show or switch the AWS profile and verify its credentials]
  > profiles                                      [List the profiles in the shared AWS config and credentials files]
  > quit | q`)
	return nil
}

func (c *Interactive) ls(ctx context.Context, _ []string) error {
	queues, err := c.Manager.ListQueues(ctx)
	if err != nil {
		return err
	}
	if len(queues) == 0 {
		fmt.Fprintln(c.out(), "No queues registered!")
		return nil
	}
	fmt.Fprintln(c.out(), "Registered queues:")
	for _, q := range queues {
		fmt.Fprintf(c.out(), "* ID: %s, queue: %s, dlq: %s, region: %s\n", q.ID, q.QueueName, q.DLQName, q.Region)
	}
	return nil
}

func (c *Interactive) use(ctx context.Context, params []string) error {
	if len(params) == 0 {
		c.Queue = nil
		c.Received = nil
		fmt.Fprintln(c.out(), "Going back to standard Interactive mode!")
		return nil
	}
	queue, err := c.Manager.GetQueue(ctx, params[0])
	if err != nil {
		return err
	}
	c.Queue = queue
	c.Received = nil
	printMessageWithData(c.out(), fmt.Sprintf("Queue [%s] selected:\n", queue.QueueName), queue)
	return nil
}

func (c *Interactive) info(_ context.Context, _ []string) error {
	if c.Queue == nil {
		return errorQueueNotSelected("`info`")
	}
	printMessageWithData(c.out(), "Queue configuration:\n", c.Queue)
	return nil
}

func (c *Interactive) qstat(ctx context.Context, _ []string) error {
	if c.Queue == nil {
		return errorQueueNotSelected("`qstat`")
	}
	queue, err := c.Manager.RefreshQueue(ctx, c.Queue.ID)
	if err != nil {
		return err
	}
	c.Queue = queue
	printMessageWithData(c.out(), "Queue stats:\n", newQueueStats(queue))
	return nil
}

func (c *Interactive) dlq(ctx context.Context, params []string) error {
	if c.Queue == nil {
		return errorQueueNotSelected("`dlq`")
	}
	messages, err := c.Manager.PeekDLQMessages(ctx, c.Queue.ID, parseCount(params, 1))
	if err != nil {
		return err
	}
	printMessages(c.out(), "DLQ messages:\n", messages)
	return nil
}

func (c *Interactive) receive(ctx context.Context, params []string) error {
	if c.Queue == nil {
		return errorQueueNotSelected("`receive`")
	}
	messages, err := c.Manager.ReceiveMessages(ctx, c.Queue.ID, &sqsredrive.ReceiveInput{
		MaxMessages: parseCount(params, 1),
	})
	if err != nil {
		return err
	}
	printMessages(c.out(), "Received messages:\n", messages)
	return nil
}

func (c *Interactive) receiveDLQ(ctx context.Context, params []string) error {
	if c.Queue == nil {
		return errorQueueNotSelected("`receive-dlq`")
	}
	messages, err := c.Manager.ReceiveDLQMessages(ctx, c.Queue.ID, &sqsredrive.ReceiveInput{
		MaxMessages: parseCount(params, 1),
	})
	if err != nil {
		return err
	}
	c.Received = messages
	printMessages(c.out(), "Received DLQ messages:\n", messages)
	return nil
}

func (c *Interactive) send(ctx context.Context, params []string) error {
	if c.Queue == nil {
		return errorQueueNotSelected("`send`")
	}
	id, err := c.Manager.SendMessage(ctx, c.Queue.ID, &sqsredrive.SendInput{
		Body: strings.Join(params, " "),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out(), "Sent message: %s\n", id)
	return nil
}

func (c *Interactive) delete(ctx context.Context, params []string) error {
	if c.Queue == nil {
		return errorQueueNotSelected("`delete`")
	}
	if err := c.Manager.DeleteMessage(ctx, c.Queue.ID, firstParam(params)); err != nil {
		return err
	}
	fmt.Fprintln(c.out(), "Message deleted!")
	return nil
}

func (c *Interactive) reset(ctx context.Context, params []string) error {
	if c.Queue == nil {
		return errorQueueNotSelected("`reset`")
	}
	if err := c.Manager.ChangeVisibility(ctx, c.Queue.ID, firstParam(params), 0); err != nil {
		return err
	}
	fmt.Fprintln(c.out(), "Message is visible again!")
	return nil
}

func (c *Interactive) redrive(ctx context.Context, params []string) error {
	if c.Queue == nil {
		return errorQueueNotSelected("`redrive`")
	}
	target := sqsredrive.Limit(parseCount(params, 1))
	if firstParam(params) == "all" {
		target = sqsredrive.DrainAll()
	}
	result, err := c.Manager.RedriveBulk(ctx, c.Queue.ID, target)
	if err != nil {
		return err
	}
	printMessageWithData(c.out(), "Redrive result:\n", result)
	return nil
}

func (c *Interactive) redriveSelected(ctx context.Context, _ []string) error {
	if c.Queue == nil {
		return errorQueueNotSelected("`redrive-selected`")
	}
	snapshots := make([]sqsredrive.MessageSnapshot, 0, len(c.Received))
	for _, m := range c.Received {
		snapshots = append(snapshots, m.MessageSnapshot)
	}
	result, err := c.Manager.RedriveSelected(ctx, c.Queue.ID, snapshots)
	if err != nil {
		return err
	}
	c.Received = nil
	printMessageWithData(c.out(), "Redrive result:\n", result)
	return nil
}

func (c *Interactive) purge(ctx context.Context, _ []string) error {
	if c.Queue == nil {
		return errorQueueNotSelected("`purge`")
	}
	if err := c.Manager.PurgeQueue(ctx, c.Queue.ID); err != nil {
		return err
	}
	fmt.Fprintf(c.out(), "Queue [%s] purged!\n", c.Queue.QueueName)
	return nil
}

func (c *Interactive) profile(ctx context.Context, params []string) error {
	if len(params) > 0 {
		if err := c.Manager.SetProfile(ctx, params[0]); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.out(), "Profile: %s\n", c.Manager.Profile())
	identity, err := c.Manager.VerifyCredentials(ctx)
	if err != nil {
		return err
	}
	printMessageWithData(c.out(), "Caller identity:\n", identity)
	return nil
}

func (c *Interactive) profiles(_ context.Context, _ []string) error {
	profiles := c.Manager.Profiles()
	if len(profiles) == 0 {
		fmt.Fprintln(c.out(), "No profiles found!")
		return nil
	}
	active := c.Manager.Profile()
	for _, p := range profiles {
		if p == active {
			fmt.Fprintf(c.out(), "* %s\n", p)
			continue
		}
		fmt.Fprintf(c.out(), "  %s\n", p)
	}
	return nil
}

func printMessages(w io.Writer, message string, messages []sqsredrive.ReceivedMessage) {
	if len(messages) == 0 {
		fmt.Fprintln(w, "No messages available!")
		return
	}
	printMessageWithData(w, message, messages)
}

func firstParam(params []string) string {
	if len(params) == 0 {
		return ""
	}
	return params[0]
}

// parseCount reads an optional count argument, falling back to def when it is absent or not a number.
func parseCount(params []string, def int) int {
	n, err := strconv.Atoi(firstParam(params))
	if err != nil {
		return def
	}
	return n
}
