package sqsredrive_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vvatanabe/sqsredrive"
	"github.com/vvatanabe/sqsredrive/internal/mock"
	"github.com/vvatanabe/sqsredrive/internal/test"
)

type recorder struct {
	mu       sync.Mutex
	outcomes []sqsredrive.Outcome
	modes    []sqsredrive.RedriveMode
	results  []*sqsredrive.RedriveResult
}

func (r *recorder) ObserveOutcome(_ sqsredrive.RedriveMode, o sqsredrive.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recorder) ObserveRedrive(mode sqsredrive.RedriveMode, result *sqsredrive.RedriveResult, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modes = append(r.modes, mode)
	r.results = append(r.results, result)
}

func failBody(ids ...string) func(string) error {
	return func(body string) error {
		for _, id := range ids {
			if strings.Contains(body, fmt.Sprintf("%q", id)) {
				return test.ErrSendRejected
			}
		}
		return nil
	}
}

func ids(n int, prefix string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}

func assertConsistent(t *testing.T, r *sqsredrive.RedriveResult) {
	t.Helper()
	if r.ProcessedCount != r.SuccessCount+r.FailureCount {
		t.Errorf("processedCount %d != successCount %d + failureCount %d", r.ProcessedCount, r.SuccessCount, r.FailureCount)
	}
	if r.SuccessCount != len(r.Succeeded) {
		t.Errorf("successCount %d != len(succeeded) %d", r.SuccessCount, len(r.Succeeded))
	}
	if r.FailureCount != len(r.Failed) {
		t.Errorf("failureCount %d != len(failed) %d", r.FailureCount, len(r.Failed))
	}
}

func TestRedriveBulk(t *testing.T) {
	tests := []struct {
		name          string
		dlq           []string
		target        sqsredrive.RedriveTarget
		failSend      []string
		wantSucceeded []string
		wantFailed    []string
		wantBatches   []int
	}{
		{
			name:          "single message",
			dlq:           []string{"A"},
			target:        sqsredrive.Limit(1),
			wantSucceeded: []string{"A"},
			wantBatches:   []int{1},
		},
		{
			name:          "limit below dlq depth",
			dlq:           ids(15, "m"),
			target:        sqsredrive.Limit(12),
			wantSucceeded: ids(12, "m"),
			wantBatches:   []int{10, 2},
		},
		{
			name:          "limit above dlq depth stops on empty batch",
			dlq:           ids(3, "m"),
			target:        sqsredrive.Limit(5),
			wantSucceeded: ids(3, "m"),
			wantBatches:   []int{5, 2},
		},
		{
			name:          "drain all",
			dlq:           ids(25, "m"),
			target:        sqsredrive.DrainAll(),
			wantSucceeded: ids(25, "m"),
			wantBatches:   []int{10, 10, 10, 10},
		},
		{
			name:        "empty dlq",
			target:      sqsredrive.DrainAll(),
			wantBatches: []int{10},
		},
		{
			name:          "send failure keeps message in dlq and continues",
			dlq:           []string{"m1", "m2", "m3", "m4", "m5"},
			target:        sqsredrive.Limit(5),
			failSend:      []string{"m3"},
			wantSucceeded: []string{"m1", "m2", "m4", "m5"},
			wantFailed:    []string{"m3"},
			wantBatches:   []int{5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &test.Recording{DLQ: test.NewMessages(tt.dlq...), FailSend: failBody(tt.failSend...)}
			rec := &recorder{}
			r := sqsredrive.NewRedriver(gw, sqsredrive.WithRecorder(rec))
			got, err := r.RedriveBulk(context.Background(), &sqsredrive.RedriveBulkInput{
				DLQURL:       test.DLQURL,
				MainQueueURL: test.MainQueueURL,
				Target:       tt.target,
			})
			if err != nil {
				t.Fatalf("RedriveBulk() error = %v", err)
			}
			assertConsistent(t, got)
			if got.ProcessedCount != len(tt.wantSucceeded)+len(tt.wantFailed) {
				t.Errorf("processedCount = %d, want %d", got.ProcessedCount, len(tt.wantSucceeded)+len(tt.wantFailed))
			}
			var succeeded []string
			for _, s := range got.Succeeded {
				succeeded = append(succeeded, s.MessageID)
			}
			var failed []string
			for _, f := range got.Failed {
				failed = append(failed, f.MessageID)
				if f.Error != test.ErrSendRejected.Error() {
					t.Errorf("failed[%s].error = %q, want %q", f.MessageID, f.Error, test.ErrSendRejected.Error())
				}
			}
			if !reflect.DeepEqual(succeeded, tt.wantSucceeded) {
				t.Errorf("succeeded = %v, want %v", succeeded, tt.wantSucceeded)
			}
			if !reflect.DeepEqual(failed, tt.wantFailed) {
				t.Errorf("failed = %v, want %v", failed, tt.wantFailed)
			}
			var batches []int
			for _, c := range gw.CallsOf("receive") {
				if c.QueueURL != test.DLQURL {
					t.Errorf("receive from %s, want %s", c.QueueURL, test.DLQURL)
				}
				if c.MaxMessages < 1 || c.MaxMessages > 10 {
					t.Errorf("receive batch size %d out of [1, 10]", c.MaxMessages)
				}
				batches = append(batches, c.MaxMessages)
			}
			if !reflect.DeepEqual(batches, tt.wantBatches) {
				t.Errorf("batch sizes = %v, want %v", batches, tt.wantBatches)
			}
			if len(rec.outcomes) != got.ProcessedCount {
				t.Errorf("recorded outcomes = %d, want %d", len(rec.outcomes), got.ProcessedCount)
			}
			if !reflect.DeepEqual(rec.modes, []sqsredrive.RedriveMode{sqsredrive.RedriveModeBulk}) {
				t.Errorf("recorded modes = %v", rec.modes)
			}
		})
	}
}

func TestRedriveBulkDeleteFollowsSend(t *testing.T) {
	gw := &test.Recording{
		DLQ:      test.NewMessages("m1", "m2", "m3"),
		FailSend: failBody("m2"),
	}
	r := sqsredrive.NewRedriver(gw)
	_, err := r.RedriveBulk(context.Background(), &sqsredrive.RedriveBulkInput{
		DLQURL:       test.DLQURL,
		MainQueueURL: test.MainQueueURL,
		Target:       sqsredrive.Limit(3),
	})
	if err != nil {
		t.Fatalf("RedriveBulk() error = %v", err)
	}
	var ops []string
	for _, c := range gw.Calls {
		switch c.Op {
		case "send":
			ops = append(ops, "send:"+c.QueueURL+":"+c.MessageBody)
		case "delete":
			ops = append(ops, "delete:"+c.QueueURL+":"+c.ReceiptHandle)
		default:
			ops = append(ops, c.Op)
		}
	}
	want := []string{
		"receive",
		"send:" + test.MainQueueURL + `:{"order":"m1"}`,
		"delete:" + test.DLQURL + ":receipt-m1",
		"send:" + test.MainQueueURL + `:{"order":"m2"}`,
		"send:" + test.MainQueueURL + `:{"order":"m3"}`,
		"delete:" + test.DLQURL + ":receipt-m3",
	}
	if !reflect.DeepEqual(ops, want) {
		t.Errorf("calls = %v, want %v", ops, want)
	}
}

func TestRedriveBulkDeleteFailure(t *testing.T) {
	deleteErr := errors.New("receipt handle expired")
	gw := &test.Recording{
		DLQ: test.NewMessages("m1", "m2"),
		FailDelete: func(handle string) error {
			if handle == "receipt-m1" {
				return deleteErr
			}
			return nil
		},
	}
	r := sqsredrive.NewRedriver(gw)
	got, err := r.RedriveBulk(context.Background(), &sqsredrive.RedriveBulkInput{
		DLQURL:       test.DLQURL,
		MainQueueURL: test.MainQueueURL,
		Target:       sqsredrive.Limit(2),
	})
	if err != nil {
		t.Fatalf("RedriveBulk() error = %v", err)
	}
	want := &sqsredrive.RedriveResult{
		ProcessedCount: 2,
		SuccessCount:   1,
		FailureCount:   1,
		Succeeded:      []sqsredrive.SucceededMessage{{MessageID: "m2"}},
		Failed:         []sqsredrive.FailedMessage{{MessageID: "m1", Error: deleteErr.Error()}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RedriveBulk() = %+v, want %+v", got, want)
	}
}

func TestRedriveBulkReceiveError(t *testing.T) {
	gw := &test.Recording{ReceiveErr: errors.New("AccessDenied: not authorized")}
	r := sqsredrive.NewRedriver(gw)
	got, err := r.RedriveBulk(context.Background(), &sqsredrive.RedriveBulkInput{
		DLQURL:       test.DLQURL,
		MainQueueURL: test.MainQueueURL,
		Target:       sqsredrive.DrainAll(),
	})
	if err != nil {
		t.Fatalf("RedriveBulk() error = %v", err)
	}
	if got.ReceiveError != "AccessDenied: not authorized" {
		t.Errorf("receiveError = %q", got.ReceiveError)
	}
	if got.ProcessedCount != 0 {
		t.Errorf("processedCount = %d, want 0", got.ProcessedCount)
	}
	if len(gw.CallsOf("send")) != 0 {
		t.Error("send called after receive error")
	}
}

func TestRedriveBulkStopsAtPartialReceiveError(t *testing.T) {
	calls := 0
	gw := mock.Gateway{
		ReceiveMessagesFunc: func(_ context.Context, _ *sqsredrive.ReceiveMessagesInput) (*sqsredrive.ReceiveMessagesOutput, error) {
			calls++
			if calls == 1 {
				return &sqsredrive.ReceiveMessagesOutput{Messages: test.NewMessages(ids(10, "m")...)}, nil
			}
			return nil, errors.New("connection reset")
		},
		SendMessageFunc: func(_ context.Context, _ *sqsredrive.SendMessageInput) (*sqsredrive.SendMessageOutput, error) {
			return &sqsredrive.SendMessageOutput{}, nil
		},
		DeleteMessageFunc: func(_ context.Context, _ *sqsredrive.DeleteMessageInput) (*sqsredrive.DeleteMessageOutput, error) {
			return &sqsredrive.DeleteMessageOutput{}, nil
		},
	}
	r := sqsredrive.NewRedriver(gw)
	got, err := r.RedriveBulk(context.Background(), &sqsredrive.RedriveBulkInput{
		DLQURL:       test.DLQURL,
		MainQueueURL: test.MainQueueURL,
		Target:       sqsredrive.Limit(30),
	})
	if err != nil {
		t.Fatalf("RedriveBulk() error = %v", err)
	}
	if got.ProcessedCount != 10 || got.SuccessCount != 10 {
		t.Errorf("processed = %d, succeeded = %d, want 10, 10", got.ProcessedCount, got.SuccessCount)
	}
	if got.ReceiveError != "connection reset" {
		t.Errorf("receiveError = %q", got.ReceiveError)
	}
}

func TestRedriveBulkDrainContinuesPastShortBatch(t *testing.T) {
	gw := &test.Recording{
		Batches: [][]sqsredrive.MessageSnapshot{
			test.NewMessages("m1", "m2", "m3"),
			test.NewMessages("m4"),
			{},
		},
	}
	got, err := sqsredrive.NewRedriver(gw).RedriveBulk(context.Background(), &sqsredrive.RedriveBulkInput{
		DLQURL:       test.DLQURL,
		MainQueueURL: test.MainQueueURL,
		Target:       sqsredrive.DrainAll(),
	})
	if err != nil {
		t.Fatalf("RedriveBulk() error = %v", err)
	}
	assertConsistent(t, got)
	if got.ProcessedCount != 4 || got.SuccessCount != 4 {
		t.Errorf("processed = %d, succeeded = %d, want 4, 4", got.ProcessedCount, got.SuccessCount)
	}
	var batches []int
	for _, c := range gw.CallsOf("receive") {
		batches = append(batches, c.MaxMessages)
	}
	if want := []int{10, 10, 10}; !reflect.DeepEqual(batches, want) {
		t.Errorf("batch sizes = %v, want %v", batches, want)
	}
	if n := len(gw.CallsOf("delete")); n != 4 {
		t.Errorf("deletes = %d, want 4", n)
	}
	if got.ReceiveError != "" {
		t.Errorf("receiveError = %q, want empty", got.ReceiveError)
	}
}

func TestRedriveBulkDeterministic(t *testing.T) {
	run := func() *sqsredrive.RedriveResult {
		gw := &test.Recording{
			DLQ:      test.NewMessages(ids(23, "m")...),
			FailSend: failBody("m4", "m17"),
		}
		got, err := sqsredrive.NewRedriver(gw).RedriveBulk(context.Background(), &sqsredrive.RedriveBulkInput{
			DLQURL:       test.DLQURL,
			MainQueueURL: test.MainQueueURL,
			Target:       sqsredrive.Limit(20),
		})
		if err != nil {
			t.Fatalf("RedriveBulk() error = %v", err)
		}
		return got
	}
	first, second := run(), run()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\n%+v\n%+v", first, second)
	}
}

func TestRedriveBulkInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		params *sqsredrive.RedriveBulkInput
	}{
		{name: "nil input", params: nil},
		{name: "missing dlq", params: &sqsredrive.RedriveBulkInput{MainQueueURL: test.MainQueueURL}},
		{name: "missing main queue", params: &sqsredrive.RedriveBulkInput{DLQURL: test.DLQURL}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &test.Recording{DLQ: test.NewMessages("m1")}
			_, err := sqsredrive.NewRedriver(gw).RedriveBulk(context.Background(), tt.params)
			if !errors.Is(err, sqsredrive.QueueURLNotProvidedError{}) {
				t.Errorf("RedriveBulk() error = %v, want %v", err, sqsredrive.QueueURLNotProvidedError{})
			}
			if len(gw.Calls) != 0 {
				t.Errorf("queue calls = %v, want none", gw.Calls)
			}
		})
	}
}

func TestRedriveSelected(t *testing.T) {
	messages := test.NewMessages("m1", "m2", "m3", "m4", "m5")
	gw := &test.Recording{FailSend: failBody("m3")}
	rec := &recorder{}
	got, err := sqsredrive.NewRedriver(gw, sqsredrive.WithRecorder(rec)).RedriveSelected(context.Background(), &sqsredrive.RedriveSelectedInput{
		DLQURL:       test.DLQURL,
		MainQueueURL: test.MainQueueURL,
		Messages:     messages,
	})
	if err != nil {
		t.Fatalf("RedriveSelected() error = %v", err)
	}
	want := &sqsredrive.RedriveResult{
		ProcessedCount: 5,
		SuccessCount:   4,
		FailureCount:   1,
		Succeeded: []sqsredrive.SucceededMessage{
			{MessageID: "m1"}, {MessageID: "m2"}, {MessageID: "m4"}, {MessageID: "m5"},
		},
		Failed: []sqsredrive.FailedMessage{{MessageID: "m3", Error: test.ErrSendRejected.Error()}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RedriveSelected() = %+v, want %+v", got, want)
	}
	if n := len(gw.CallsOf("receive")); n != 0 {
		t.Errorf("receive calls = %d, want 0", n)
	}
	var handles []string
	for _, c := range gw.CallsOf("delete") {
		handles = append(handles, c.ReceiptHandle)
	}
	if !reflect.DeepEqual(handles, []string{"receipt-m1", "receipt-m2", "receipt-m4", "receipt-m5"}) {
		t.Errorf("deleted handles = %v", handles)
	}
	for i, c := range gw.CallsOf("send") {
		if !reflect.DeepEqual(c.Attributes, messages[i].Attributes) {
			t.Errorf("send[%d] attributes = %v, want %v", i, c.Attributes, messages[i].Attributes)
		}
	}
	if !reflect.DeepEqual(rec.modes, []sqsredrive.RedriveMode{sqsredrive.RedriveModeSelective}) {
		t.Errorf("recorded modes = %v", rec.modes)
	}
}

func TestRedriveSelectedInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		params  *sqsredrive.RedriveSelectedInput
		wantErr error
	}{
		{
			name:    "missing dlq",
			params:  &sqsredrive.RedriveSelectedInput{MainQueueURL: test.MainQueueURL, Messages: test.NewMessages("m1")},
			wantErr: sqsredrive.QueueURLNotProvidedError{},
		},
		{
			name:    "empty selection",
			params:  &sqsredrive.RedriveSelectedInput{DLQURL: test.DLQURL, MainQueueURL: test.MainQueueURL},
			wantErr: sqsredrive.EmptySelectionError{},
		},
		{
			name: "missing receipt handle",
			params: &sqsredrive.RedriveSelectedInput{
				DLQURL:       test.DLQURL,
				MainQueueURL: test.MainQueueURL,
				Messages: []sqsredrive.MessageSnapshot{
					test.NewMessage("m1"),
					{ID: "m2", Body: "x"},
				},
			},
			wantErr: sqsredrive.ReceiptHandleNotProvidedError{MessageID: "m2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &test.Recording{}
			_, err := sqsredrive.NewRedriver(gw).RedriveSelected(context.Background(), tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RedriveSelected() error = %v, want %v", err, tt.wantErr)
			}
			if !sqsredrive.IsContractViolation(err) {
				t.Errorf("IsContractViolation(%v) = false", err)
			}
			if len(gw.Calls) != 0 {
				t.Errorf("queue calls = %v, want none", gw.Calls)
			}
		})
	}
}

func TestRedriveAttributesRoundTrip(t *testing.T) {
	raw := map[string]any{
		"tenant":  map[string]any{"dataType": "String", "stringValue": "acme"},
		"retry":   map[string]any{"dataType": "Number", "stringValue": "3"},
		"blob":    map[string]any{"dataType": "Binary", "binaryValue": "aGVsbG8="},
		"garbage": "not an attribute",
	}
	gw := &test.Recording{}
	_, err := sqsredrive.NewRedriver(gw).RedriveSelected(context.Background(), &sqsredrive.RedriveSelectedInput{
		DLQURL:       test.DLQURL,
		MainQueueURL: test.MainQueueURL,
		Messages: []sqsredrive.MessageSnapshot{{
			ID:            "m1",
			Body:          "hello",
			ReceiptHandle: "rh-1",
			Attributes:    sqsredrive.ConvertAttributes(raw),
		}},
	})
	if err != nil {
		t.Fatalf("RedriveSelected() error = %v", err)
	}
	sends := gw.CallsOf("send")
	if len(sends) != 1 {
		t.Fatalf("send calls = %d, want 1", len(sends))
	}
	tenant, retry := "acme", "3"
	want := map[string]sqsredrive.MessageAttributeValue{
		"tenant": {DataType: "String", StringValue: &tenant},
		"retry":  {DataType: "Number", StringValue: &retry},
	}
	if !reflect.DeepEqual(sends[0].Attributes, want) {
		t.Errorf("sent attributes = %+v, want %+v", sends[0].Attributes, want)
	}
}

func TestRedriveTarget(t *testing.T) {
	intPtr := func(n int) *int { return &n }
	tests := []struct {
		name          string
		target        sqsredrive.RedriveTarget
		wantUnbounded bool
		wantCount     int
		wantString    string
	}{
		{name: "zero value", target: sqsredrive.RedriveTarget{}, wantCount: 1, wantString: "1"},
		{name: "limit", target: sqsredrive.Limit(7), wantCount: 7, wantString: "7"},
		{name: "limit clamps zero", target: sqsredrive.Limit(0), wantCount: 1, wantString: "1"},
		{name: "limit clamps negative", target: sqsredrive.Limit(-4), wantCount: 1, wantString: "1"},
		{name: "drain all", target: sqsredrive.DrainAll(), wantUnbounded: true, wantCount: 1, wantString: "all"},
		{name: "request default", target: sqsredrive.TargetFromRequest(nil, false), wantCount: 1, wantString: "1"},
		{name: "request max", target: sqsredrive.TargetFromRequest(intPtr(25), false), wantCount: 25, wantString: "25"},
		{name: "request all wins", target: sqsredrive.TargetFromRequest(intPtr(25), true), wantUnbounded: true, wantCount: 1, wantString: "all"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.target.IsUnbounded(); got != tt.wantUnbounded {
				t.Errorf("IsUnbounded() = %v, want %v", got, tt.wantUnbounded)
			}
			if got := tt.target.Count(); got != tt.wantCount {
				t.Errorf("Count() = %d, want %d", got, tt.wantCount)
			}
			if got := tt.target.String(); got != tt.wantString {
				t.Errorf("String() = %s, want %s", got, tt.wantString)
			}
		})
	}
}

func TestRedriverConcurrentInvocations(t *testing.T) {
	gw := &lockedQueues{queues: map[string][]sqsredrive.MessageSnapshot{
		"https://sqs.us-east-1.amazonaws.com/123456789012/a-dlq": test.NewMessages(ids(12, "a")...),
		"https://sqs.us-east-1.amazonaws.com/123456789012/b-dlq": test.NewMessages(ids(7, "b")...),
	}}
	r := sqsredrive.NewRedriver(gw)
	var wg sync.WaitGroup
	results := make(map[string]*sqsredrive.RedriveResult)
	var mu sync.Mutex
	for dlq := range gw.queues {
		wg.Add(1)
		go func(dlq string) {
			defer wg.Done()
			got, err := r.RedriveBulk(context.Background(), &sqsredrive.RedriveBulkInput{
				DLQURL:       dlq,
				MainQueueURL: test.MainQueueURL,
				Target:       sqsredrive.DrainAll(),
			})
			if err != nil {
				t.Errorf("RedriveBulk(%s) error = %v", dlq, err)
				return
			}
			mu.Lock()
			results[dlq] = got
			mu.Unlock()
		}(dlq)
	}
	wg.Wait()
	if got := results["https://sqs.us-east-1.amazonaws.com/123456789012/a-dlq"]; got == nil || got.SuccessCount != 12 {
		t.Errorf("a-dlq result = %+v", got)
	}
	if got := results["https://sqs.us-east-1.amazonaws.com/123456789012/b-dlq"]; got == nil || got.SuccessCount != 7 {
		t.Errorf("b-dlq result = %+v", got)
	}
}

type lockedQueues struct {
	mock.Gateway
	mu     sync.Mutex
	queues map[string][]sqsredrive.MessageSnapshot
}

func (g *lockedQueues) ReceiveMessages(_ context.Context, params *sqsredrive.ReceiveMessagesInput) (*sqsredrive.ReceiveMessagesOutput, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	q := g.queues[params.QueueURL]
	n := min(params.MaxNumberOfMessages, len(q))
	batch := append([]sqsredrive.MessageSnapshot(nil), q[:n]...)
	g.queues[params.QueueURL] = q[n:]
	return &sqsredrive.ReceiveMessagesOutput{Messages: batch}, nil
}

func (g *lockedQueues) SendMessage(context.Context, *sqsredrive.SendMessageInput) (*sqsredrive.SendMessageOutput, error) {
	return &sqsredrive.SendMessageOutput{}, nil
}

func (g *lockedQueues) DeleteMessage(context.Context, *sqsredrive.DeleteMessageInput) (*sqsredrive.DeleteMessageOutput, error) {
	return &sqsredrive.DeleteMessageOutput{}, nil
}
