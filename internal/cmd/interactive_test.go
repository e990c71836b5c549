package cmd_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vvatanabe/sqsredrive"
	"github.com/vvatanabe/sqsredrive/internal/cmd"
	"github.com/vvatanabe/sqsredrive/internal/mock"
	"github.com/vvatanabe/sqsredrive/internal/test"
)

var queueCommands = []struct {
	command string
	params  []string
}{
	{command: "info"},
	{command: "qstat"},
	{command: "dlq", params: []string{"2"}},
	{command: "receive"},
	{command: "receive-dlq", params: []string{"2"}},
	{command: "send", params: []string{"hello", "world"}},
	{command: "delete", params: []string{"receipt-m1"}},
	{command: "reset", params: []string{"receipt-m1"}},
	{command: "redrive", params: []string{"all"}},
	{command: "redrive-selected"},
	{command: "purge"},
}

func received() []sqsredrive.ReceivedMessage {
	return []sqsredrive.ReceivedMessage{{MessageSnapshot: test.NewMessage("m9")}}
}

func testRunInteractiveAll(t *testing.T, manager cmd.Manager, queue *sqsredrive.QueueConfiguration, wantErr bool) {
	for _, tt := range queueCommands {
		t.Run("run "+tt.command, func(t *testing.T) {
			c := &cmd.Interactive{
				Manager:  manager,
				Queue:    queue,
				Received: received(),
			}
			err := c.Run(context.Background(), tt.command, tt.params)
			if wantErr {
				if err == nil {
					t.Error("Run() error is nil")
				}
				return
			}
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		})
	}
}

func TestRunInteractiveAllShouldReturnErrorWithoutQueue(t *testing.T) {
	testRunInteractiveAll(t, newFixture().manager, nil, true)
}

func TestRunInteractiveAllShouldReturnManagerError(t *testing.T) {
	manager := sqsredrive.NewManager(mock.Registry{}, &mock.GatewaySource{})
	queue := test.NewQueueConfiguration("q1")
	for _, tt := range queueCommands {
		if tt.command == "info" {
			continue
		}
		t.Run("run "+tt.command, func(t *testing.T) {
			c := &cmd.Interactive{Manager: manager, Queue: queue, Received: received()}
			if err := c.Run(context.Background(), tt.command, tt.params); !errors.Is(err, mock.ErrNotImplemented) {
				t.Errorf("Run() error = %v, want %v", err, mock.ErrNotImplemented)
			}
		})
	}
}

func TestRunInteractiveAllShouldSucceed(t *testing.T) {
	fx := newFixture()
	testRunInteractiveAll(t, fx.manager, fx.queues["q1"], false)
}

func TestRunInteractiveStandardCommands(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		params     []string
		wantErr    bool
		wantOutput string
	}{
		{name: "help", command: "help", wantOutput: "this is Interactive HELP!"},
		{name: "ls", command: "ls", wantOutput: "* ID: q1, queue: orders, dlq: orders-dlq, region: us-east-1"},
		{name: "use", command: "use", params: []string{"q1"}, wantOutput: "Queue [orders] selected:"},
		{name: "use without id", command: "use", wantOutput: "Going back to standard Interactive mode!"},
		{name: "use unknown", command: "use", params: []string{"missing"}, wantErr: true},
		{name: "profile", command: "profile", params: []string{"dev"}, wantOutput: "Profile: dev"},
		{name: "profiles without shared files", command: "profiles", wantOutput: "No profiles found!"},
		{name: "unknown", command: "foo", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := &cmd.Interactive{Manager: newFixture().manager, Out: &out}
			err := c.Run(context.Background(), tt.command, tt.params)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(out.String(), tt.wantOutput) {
				t.Errorf("output = %s, want to contain %q", out.String(), tt.wantOutput)
			}
		})
	}
}

func TestRunInteractiveRedriveSelected(t *testing.T) {
	fx := newFixture()
	c := &cmd.Interactive{Manager: fx.manager}
	ctx := context.Background()
	for _, step := range []struct {
		command string
		params  []string
	}{
		{"use", []string{"q1"}},
		{"receive-dlq", []string{"2"}},
		{"redrive-selected", nil},
	} {
		if err := c.Run(ctx, step.command, step.params); err != nil {
			t.Fatalf("Run(%s) error = %v", step.command, err)
		}
	}
	if got := len(fx.gateway.CallsOf("receive")); got != 1 {
		t.Errorf("receives = %d, want 1", got)
	}
	deletes := fx.gateway.CallsOf("delete")
	if len(deletes) != 2 || deletes[0].ReceiptHandle != "receipt-m1" || deletes[1].ReceiptHandle != "receipt-m2" {
		t.Errorf("deletes = %+v", deletes)
	}
	if c.Received != nil {
		t.Errorf("Received = %+v, want nil after redrive", c.Received)
	}
}

func TestRunInteractiveRedriveSelectedWithoutReceive(t *testing.T) {
	fx := newFixture()
	c := &cmd.Interactive{Manager: fx.manager, Queue: fx.queues["q1"]}
	err := c.Run(context.Background(), "redrive-selected", nil)
	var want sqsredrive.EmptySelectionError
	if !errors.As(err, &want) {
		t.Errorf("Run() error = %v, want %T", err, want)
	}
}

func TestRunInteractiveProfiles(t *testing.T) {
	fx := newFixture()
	fx.source.AvailableProfiles = []string{"default", "dev", "prod"}
	var out bytes.Buffer
	c := &cmd.Interactive{Manager: fx.manager, Out: &out}
	if err := c.Run(context.Background(), "profiles", nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := "* default\n  dev\n  prod\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestRunInteractiveEmptyQueue(t *testing.T) {
	for _, command := range []string{"dlq", "receive", "receive-dlq"} {
		t.Run(command, func(t *testing.T) {
			fx := newFixture()
			fx.gateway.DLQ = nil
			var out bytes.Buffer
			c := &cmd.Interactive{Manager: fx.manager, Out: &out, Queue: fx.queues["q1"]}
			if err := c.Run(context.Background(), command, nil); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if !strings.Contains(out.String(), "No messages available!") {
				t.Errorf("output = %s, want to contain %q", out.String(), "No messages available!")
			}
			if len(fx.gateway.CallsOf("receive")) != 1 {
				t.Errorf("receives = %d, want 1", len(fx.gateway.CallsOf("receive")))
			}
		})
	}
}
