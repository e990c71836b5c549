package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/vvatanabe/sqsredrive"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("usage: example <dlq-url> <main-queue-url>")
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ------------------------------
	// Create Gateway
	// ------------------------------
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		panic("failed to load aws config")
	}
	gateway, err := sqsredrive.NewFromConfig(cfg)
	if err != nil {
		panic("AWS session could not be established!")
	}

	// ------------------------------
	// Redrive the whole DLQ
	// ------------------------------
	redriver := sqsredrive.NewRedriver(gateway, sqsredrive.WithRecorder(&Counter{}))
	result, err := redriver.RedriveBulk(ctx, &sqsredrive.RedriveBulkInput{
		DLQURL:       os.Args[1],
		MainQueueURL: os.Args[2],
		Target:       sqsredrive.DrainAll(),
	})
	if err != nil {
		fmt.Println("failed to redrive:", err)
		os.Exit(1)
	}
	fmt.Printf("processed: %d, succeeded: %d, failed: %d\n",
		result.ProcessedCount, result.SuccessCount, result.FailureCount)
	for _, f := range result.Failed {
		fmt.Printf("  %s: %s\n", f.MessageID, f.Error)
	}
	if result.ReceiveError != "" {
		fmt.Println("stopped early:", result.ReceiveError)
	}
}

// Counter prints every outcome as it happens.
type Counter struct {
	Value int
}

func (c *Counter) ObserveOutcome(mode sqsredrive.RedriveMode, o sqsredrive.Outcome) {
	c.Value++
	fmt.Printf("%s #%d: %s %s\n", mode, c.Value, o.MessageID, o.Kind)
}

func (c *Counter) ObserveRedrive(sqsredrive.RedriveMode, *sqsredrive.RedriveResult, time.Duration) {}
