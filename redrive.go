package sqsredrive

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vvatanabe/sqsredrive/internal/clock"
	"github.com/vvatanabe/sqsredrive/internal/constant"
)

type RedriveMode string

const (
	RedriveModeBulk      RedriveMode = "bulk"
	RedriveModeSelective RedriveMode = "selective"
)

// Recorder observes redrive activity. Implementations must be safe for concurrent use
// because independent invocations may run in parallel.
type Recorder interface {
	ObserveOutcome(mode RedriveMode, o Outcome)
	ObserveRedrive(mode RedriveMode, result *RedriveResult, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOutcome(RedriveMode, Outcome) {}

func (nopRecorder) ObserveRedrive(RedriveMode, *RedriveResult, time.Duration) {}

// RedriveTarget is how many messages a bulk redrive tries to move:
// either a bounded count (Limit) or everything the DLQ yields (DrainAll).
// The zero value is a limit of one message.
type RedriveTarget struct {
	count     int
	unbounded bool
}

// Limit returns a bounded target. Counts below one are raised to one.
func Limit(n int) RedriveTarget {
	return RedriveTarget{count: max(n, 1)}
}

// DrainAll returns a target that keeps going until the DLQ returns an empty batch.
func DrainAll() RedriveTarget {
	return RedriveTarget{unbounded: true}
}

// TargetFromRequest maps the caller-facing pair (maxMessages, redriveAll) to a target.
// redriveAll takes precedence; a missing maxMessages means one message.
func TargetFromRequest(maxMessages *int, redriveAll bool) RedriveTarget {
	if redriveAll {
		return DrainAll()
	}
	if maxMessages == nil {
		return Limit(1)
	}
	return Limit(*maxMessages)
}

func (t RedriveTarget) IsUnbounded() bool {
	return t.unbounded
}

// Count returns the bounded count. It is meaningless when IsUnbounded is true.
func (t RedriveTarget) Count() int {
	return max(t.count, 1)
}

func (t RedriveTarget) String() string {
	if t.unbounded {
		return "all"
	}
	return fmt.Sprintf("%d", t.Count())
}

func (t RedriveTarget) reached(processed int) bool {
	if t.unbounded {
		return false
	}
	return processed >= t.Count()
}

func (t RedriveTarget) batchSize(processed int) int {
	if t.unbounded {
		return constant.MaxReceiveBatchSize
	}
	return min(constant.MaxReceiveBatchSize, t.Count()-processed)
}

// RedriverOptions defines configuration options for the redrive engine.
type RedriverOptions struct {
	Logger   logrus.FieldLogger
	Recorder Recorder
	Clock    clock.Clock
}

func WithLogger(logger logrus.FieldLogger) func(*RedriverOptions) {
	return func(o *RedriverOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

func WithRecorder(recorder Recorder) func(*RedriverOptions) {
	return func(o *RedriverOptions) {
		if recorder != nil {
			o.Recorder = recorder
		}
	}
}

func WithClock(c clock.Clock) func(*RedriverOptions) {
	return func(o *RedriverOptions) {
		if c != nil {
			o.Clock = c
		}
	}
}

// Redriver moves messages from a dead-letter queue back to its main queue.
// A Redriver holds no per-invocation state, so one instance can serve concurrent invocations.
type Redriver struct {
	gateway  Gateway
	logger   logrus.FieldLogger
	recorder Recorder
	clock    clock.Clock
}

func NewRedriver(gateway Gateway, optFns ...func(*RedriverOptions)) *Redriver {
	o := &RedriverOptions{
		Logger:   discardLogger(),
		Recorder: nopRecorder{},
		Clock:    clock.RealClock{},
	}
	for _, opt := range optFns {
		opt(o)
	}
	return &Redriver{
		gateway:  gateway,
		logger:   o.Logger,
		recorder: o.Recorder,
		clock:    o.Clock,
	}
}

type RedriveBulkInput struct {
	DLQURL       string
	MainQueueURL string
	Target       RedriveTarget
}

// RedriveBulk receives batches from the DLQ and moves each message to the main queue until the
// target is reached or the DLQ returns an empty batch. A failed receive ends the loop; the partial
// result is returned with ReceiveError set.
func (r *Redriver) RedriveBulk(ctx context.Context, params *RedriveBulkInput) (*RedriveResult, error) {
	if params == nil {
		params = &RedriveBulkInput{}
	}
	if params.DLQURL == "" || params.MainQueueURL == "" {
		return nil, QueueURLNotProvidedError{}
	}
	start := r.clock.Now()
	logger := r.logger.WithFields(logrus.Fields{
		"mode":   RedriveModeBulk,
		"dlq":    params.DLQURL,
		"queue":  params.MainQueueURL,
		"target": params.Target.String(),
	})
	result := NewRedriveResult()
	for !params.Target.reached(result.ProcessedCount) {
		out, err := r.gateway.ReceiveMessages(ctx, &ReceiveMessagesInput{
			QueueURL:            params.DLQURL,
			MaxNumberOfMessages: params.Target.batchSize(result.ProcessedCount),
		})
		if err != nil {
			logger.WithError(err).Warn("stopped redrive: failed to receive from DLQ")
			result.ReceiveError = err.Error()
			break
		}
		if len(out.Messages) == 0 {
			break
		}
		for _, m := range out.Messages {
			r.process(ctx, logger, RedriveModeBulk, params.DLQURL, params.MainQueueURL, m, result)
		}
	}
	r.finish(logger, RedriveModeBulk, result, start)
	return result, nil
}

type RedriveSelectedInput struct {
	DLQURL       string
	MainQueueURL string
	// Messages are snapshots from an earlier receive. Their receipt handles are used as given.
	Messages []MessageSnapshot
}

// RedriveSelected moves exactly the given messages, in order, using their own receipt handles.
// It never receives from the DLQ. Invalid input is rejected before any queue call.
func (r *Redriver) RedriveSelected(ctx context.Context, params *RedriveSelectedInput) (*RedriveResult, error) {
	if params == nil {
		params = &RedriveSelectedInput{}
	}
	if params.DLQURL == "" || params.MainQueueURL == "" {
		return nil, QueueURLNotProvidedError{}
	}
	if len(params.Messages) == 0 {
		return nil, EmptySelectionError{}
	}
	for _, m := range params.Messages {
		if m.ReceiptHandle == "" {
			return nil, ReceiptHandleNotProvidedError{MessageID: m.ID}
		}
	}
	start := r.clock.Now()
	logger := r.logger.WithFields(logrus.Fields{
		"mode":  RedriveModeSelective,
		"dlq":   params.DLQURL,
		"queue": params.MainQueueURL,
	})
	result := NewRedriveResult()
	for _, m := range params.Messages {
		r.process(ctx, logger, RedriveModeSelective, params.DLQURL, params.MainQueueURL, m, result)
	}
	r.finish(logger, RedriveModeSelective, result, start)
	return result, nil
}

func (r *Redriver) process(ctx context.Context, logger logrus.FieldLogger, mode RedriveMode,
	dlqURL, mainQueueURL string, m MessageSnapshot, result *RedriveResult) {
	result.markProcessed()
	o := r.move(ctx, dlqURL, mainQueueURL, m)
	if o.Kind == OutcomeFailure {
		logger.WithField("message_id", o.MessageID).Warn(o.Detail)
	}
	result.Record(o)
	r.recorder.ObserveOutcome(mode, o)
}

// move sends the message to the main queue and deletes it from the DLQ only after the send succeeded.
func (r *Redriver) move(ctx context.Context, dlqURL, mainQueueURL string, m MessageSnapshot) Outcome {
	_, err := r.gateway.SendMessage(ctx, &SendMessageInput{
		QueueURL:   mainQueueURL,
		Body:       m.Body,
		Attributes: m.Attributes,
	})
	if err != nil {
		return Failed(m.ID, err)
	}
	_, err = r.gateway.DeleteMessage(ctx, &DeleteMessageInput{
		QueueURL:      dlqURL,
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		return Failed(m.ID, err)
	}
	return Succeeded(m.ID)
}

func (r *Redriver) finish(logger logrus.FieldLogger, mode RedriveMode, result *RedriveResult, start time.Time) {
	elapsed := clock.Since(r.clock, start)
	logger.WithFields(logrus.Fields{
		"processed": result.ProcessedCount,
		"succeeded": result.SuccessCount,
		"failed":    result.FailureCount,
		"elapsed":   elapsed,
	}).Info("redrive finished")
	r.recorder.ObserveRedrive(mode, result, elapsed)
}
