package sqsredrive

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"
	"github.com/vvatanabe/sqsredrive/internal/constant"
	"github.com/vvatanabe/sqsredrive/internal/log"
)

// Gateway is the set of SQS primitives used by the redrive engine and the queue manager.
type Gateway interface {
	// ReceiveMessages retrieves up to ten messages from a queue. An empty result means the queue has nothing visible.
	ReceiveMessages(ctx context.Context, params *ReceiveMessagesInput) (*ReceiveMessagesOutput, error)
	// SendMessage enqueues a message body with its attributes.
	SendMessage(ctx context.Context, params *SendMessageInput) (*SendMessageOutput, error)
	// DeleteMessage deletes the message identified by a receipt handle.
	DeleteMessage(ctx context.Context, params *DeleteMessageInput) (*DeleteMessageOutput, error)
	// ChangeMessageVisibility changes the visibility timeout of a received message.
	ChangeMessageVisibility(ctx context.Context, params *ChangeMessageVisibilityInput) (*ChangeMessageVisibilityOutput, error)
	// PurgeQueue deletes every message in a queue.
	PurgeQueue(ctx context.Context, params *PurgeQueueInput) (*PurgeQueueOutput, error)
	// GetQueueURL resolves a queue name to its URL. URLs are returned unchanged.
	GetQueueURL(ctx context.Context, params *GetQueueURLInput) (*GetQueueURLOutput, error)
	// GetQueueAttributes returns every attribute of a queue.
	GetQueueAttributes(ctx context.Context, params *GetQueueAttributesInput) (*GetQueueAttributesOutput, error)
}

// SQSAPI is the subset of *sqs.Client used by GatewayImpl.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	PurgeQueue(ctx context.Context, params *sqs.PurgeQueueInput, optFns ...func(*sqs.Options)) (*sqs.PurgeQueueOutput, error)
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// GatewayOptions defines configuration options for the SQS gateway.
type GatewayOptions struct {
	// SQS is the SQS client used for all queue operations. When nil, one is created from the AWS config.
	SQS SQSAPI
	// BaseEndpoint is the base endpoint URL for SQS requests, e.g. a local emulator.
	BaseEndpoint string
	// RetryMaxAttempts is the maximum number of attempts for a failed SQS call made by the SDK.
	RetryMaxAttempts int
	// Logger receives warnings for best-effort operations. Defaults to a discarding logger.
	Logger logrus.FieldLogger
}

// WithAWSSQSClient sets a pre-configured SQS client. Endpoint and retry options are ignored when it is set.
func WithAWSSQSClient(client SQSAPI) func(*GatewayOptions) {
	return func(o *GatewayOptions) {
		o.SQS = client
	}
}

func WithAWSBaseEndpoint(baseEndpoint string) func(*GatewayOptions) {
	return func(o *GatewayOptions) {
		o.BaseEndpoint = baseEndpoint
	}
}

func WithAWSRetryMaxAttempts(retryMaxAttempts int) func(*GatewayOptions) {
	return func(o *GatewayOptions) {
		o.RetryMaxAttempts = retryMaxAttempts
	}
}

func WithGatewayLogger(logger logrus.FieldLogger) func(*GatewayOptions) {
	return func(o *GatewayOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// NewFromConfig creates a Gateway backed by Amazon SQS.
func NewFromConfig(cfg aws.Config, optFns ...func(*GatewayOptions)) (Gateway, error) {
	o := &GatewayOptions{
		RetryMaxAttempts: constant.DefaultRetryMaxAttempts,
		Logger:           discardLogger(),
	}
	for _, opt := range optFns {
		opt(o)
	}
	g := &GatewayImpl{
		sqs:    o.SQS,
		logger: o.Logger,
	}
	if g.sqs != nil {
		return g, nil
	}
	g.sqs = sqs.NewFromConfig(cfg, func(options *sqs.Options) {
		options.RetryMaxAttempts = o.RetryMaxAttempts
		if o.BaseEndpoint != "" {
			options.BaseEndpoint = aws.String(o.BaseEndpoint)
		}
	})
	return g, nil
}

// GatewayImpl is the SQS implementation of Gateway. Use NewFromConfig to create one.
type GatewayImpl struct {
	sqs    SQSAPI
	logger logrus.FieldLogger
}

type ReceiveMessagesInput struct {
	QueueURL string
	// MaxNumberOfMessages defaults to 10 when zero. Values above 10 are rejected.
	MaxNumberOfMessages int
	// VisibilityTimeout overrides the queue's visibility timeout when set.
	VisibilityTimeout *int32
	// WaitTimeSeconds enables long polling when set.
	WaitTimeSeconds *int32
	// ResetVisibility makes received messages visible again right away, so that receiving acts as a peek.
	ResetVisibility bool
}

type ReceiveMessagesOutput struct {
	Messages []MessageSnapshot
}

func (g *GatewayImpl) ReceiveMessages(ctx context.Context, params *ReceiveMessagesInput) (*ReceiveMessagesOutput, error) {
	if params == nil {
		params = &ReceiveMessagesInput{}
	}
	if params.QueueURL == "" {
		return &ReceiveMessagesOutput{}, QueueURLNotProvidedError{}
	}
	maxMessages := params.MaxNumberOfMessages
	if maxMessages == 0 {
		maxMessages = constant.MaxReceiveBatchSize
	}
	if maxMessages < 0 || maxMessages > constant.MaxReceiveBatchSize {
		return &ReceiveMessagesOutput{}, InvalidBatchSizeError{Size: maxMessages}
	}
	in := &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(params.QueueURL),
		MaxNumberOfMessages:   int32(maxMessages),
		AttributeNames:        []types.QueueAttributeName{types.QueueAttributeNameAll},
		MessageAttributeNames: []string{"All"},
	}
	if params.VisibilityTimeout != nil {
		in.VisibilityTimeout = *params.VisibilityTimeout
	}
	if params.WaitTimeSeconds != nil {
		in.WaitTimeSeconds = *params.WaitTimeSeconds
	}
	out, err := g.sqs.ReceiveMessage(ctx, in)
	if err != nil {
		return &ReceiveMessagesOutput{}, handleSQSError(err, params.QueueURL)
	}
	messages := make([]MessageSnapshot, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, newMessageSnapshot(m))
	}
	if params.ResetVisibility {
		g.resetVisibility(ctx, params.QueueURL, messages)
	}
	return &ReceiveMessagesOutput{Messages: messages}, nil
}

func (g *GatewayImpl) resetVisibility(ctx context.Context, queueURL string, messages []MessageSnapshot) {
	for _, m := range messages {
		_, err := g.ChangeMessageVisibility(ctx, &ChangeMessageVisibilityInput{
			QueueURL:          queueURL,
			ReceiptHandle:     m.ReceiptHandle,
			VisibilityTimeout: 0,
		})
		if err != nil {
			g.logger.WithFields(logrus.Fields{
				"queue":      queueURL,
				"message_id": m.ID,
			}).WithError(err).Warn("failed to reset visibility")
		}
	}
}

type SendMessageInput struct {
	QueueURL     string
	Body         string
	Attributes   map[string]MessageAttributeValue
	DelaySeconds *int32
}

type SendMessageOutput struct {
	MessageID string
}

func (g *GatewayImpl) SendMessage(ctx context.Context, params *SendMessageInput) (*SendMessageOutput, error) {
	if params == nil {
		params = &SendMessageInput{}
	}
	if params.QueueURL == "" {
		return &SendMessageOutput{}, QueueURLNotProvidedError{}
	}
	in := &sqs.SendMessageInput{
		QueueUrl:          aws.String(params.QueueURL),
		MessageBody:       aws.String(params.Body),
		MessageAttributes: toSQSAttributes(params.Attributes),
	}
	if params.DelaySeconds != nil {
		in.DelaySeconds = *params.DelaySeconds
	}
	out, err := g.sqs.SendMessage(ctx, in)
	if err != nil {
		return &SendMessageOutput{}, handleSQSError(err, params.QueueURL)
	}
	return &SendMessageOutput{
		MessageID: aws.ToString(out.MessageId),
	}, nil
}

type DeleteMessageInput struct {
	QueueURL      string
	ReceiptHandle string
}

type DeleteMessageOutput struct{}

func (g *GatewayImpl) DeleteMessage(ctx context.Context, params *DeleteMessageInput) (*DeleteMessageOutput, error) {
	if params == nil {
		params = &DeleteMessageInput{}
	}
	out := &DeleteMessageOutput{}
	if params.QueueURL == "" {
		return out, QueueURLNotProvidedError{}
	}
	if params.ReceiptHandle == "" {
		return out, ReceiptHandleNotProvidedError{}
	}
	_, err := g.sqs.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(params.QueueURL),
		ReceiptHandle: aws.String(params.ReceiptHandle),
	})
	if err != nil {
		return out, handleSQSError(err, params.QueueURL)
	}
	return out, nil
}

type ChangeMessageVisibilityInput struct {
	QueueURL          string
	ReceiptHandle     string
	VisibilityTimeout int
}

type ChangeMessageVisibilityOutput struct{}

func (g *GatewayImpl) ChangeMessageVisibility(ctx context.Context, params *ChangeMessageVisibilityInput) (*ChangeMessageVisibilityOutput, error) {
	if params == nil {
		params = &ChangeMessageVisibilityInput{}
	}
	out := &ChangeMessageVisibilityOutput{}
	if params.QueueURL == "" {
		return out, QueueURLNotProvidedError{}
	}
	if params.ReceiptHandle == "" {
		return out, ReceiptHandleNotProvidedError{}
	}
	if params.VisibilityTimeout < 0 || params.VisibilityTimeout > constant.MaxVisibilityTimeoutInSeconds {
		return out, InvalidVisibilityTimeoutError{VisibilityTimeout: params.VisibilityTimeout}
	}
	_, err := g.sqs.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(params.QueueURL),
		ReceiptHandle:     aws.String(params.ReceiptHandle),
		VisibilityTimeout: int32(params.VisibilityTimeout),
	})
	if err != nil {
		return out, handleSQSError(err, params.QueueURL)
	}
	return out, nil
}

type PurgeQueueInput struct {
	QueueURL string
}

type PurgeQueueOutput struct{}

func (g *GatewayImpl) PurgeQueue(ctx context.Context, params *PurgeQueueInput) (*PurgeQueueOutput, error) {
	if params == nil {
		params = &PurgeQueueInput{}
	}
	out := &PurgeQueueOutput{}
	if params.QueueURL == "" {
		return out, QueueURLNotProvidedError{}
	}
	_, err := g.sqs.PurgeQueue(ctx, &sqs.PurgeQueueInput{
		QueueUrl: aws.String(params.QueueURL),
	})
	if err != nil {
		var inProgress *types.PurgeQueueInProgress
		if errors.As(err, &inProgress) {
			return out, PurgeInProgressError{Cause: err}
		}
		return out, handleSQSError(err, params.QueueURL)
	}
	return out, nil
}

type GetQueueURLInput struct {
	// Identifier is either a queue name or a queue URL.
	Identifier string
}

type GetQueueURLOutput struct {
	QueueURL string
}

func (g *GatewayImpl) GetQueueURL(ctx context.Context, params *GetQueueURLInput) (*GetQueueURLOutput, error) {
	if params == nil {
		params = &GetQueueURLInput{}
	}
	if params.Identifier == "" {
		return &GetQueueURLOutput{}, QueueURLNotProvidedError{}
	}
	if IsQueueURL(params.Identifier) {
		return &GetQueueURLOutput{QueueURL: params.Identifier}, nil
	}
	out, err := g.sqs.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(params.Identifier),
	})
	if err != nil {
		return &GetQueueURLOutput{}, handleSQSError(err, params.Identifier)
	}
	return &GetQueueURLOutput{QueueURL: aws.ToString(out.QueueUrl)}, nil
}

type GetQueueAttributesInput struct {
	QueueURL string
}

type GetQueueAttributesOutput struct {
	Attributes map[string]string
}

func (g *GatewayImpl) GetQueueAttributes(ctx context.Context, params *GetQueueAttributesInput) (*GetQueueAttributesOutput, error) {
	if params == nil {
		params = &GetQueueAttributesInput{}
	}
	if params.QueueURL == "" {
		return &GetQueueAttributesOutput{}, QueueURLNotProvidedError{}
	}
	out, err := g.sqs.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(params.QueueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameAll},
	})
	if err != nil {
		return &GetQueueAttributesOutput{}, handleSQSError(err, params.QueueURL)
	}
	attributes := out.Attributes
	if attributes == nil {
		attributes = make(map[string]string)
	}
	return &GetQueueAttributesOutput{Attributes: attributes}, nil
}

// IsQueueURL reports whether identifier is already a queue URL rather than a queue name.
func IsQueueURL(identifier string) bool {
	return strings.HasPrefix(identifier, "https://") || strings.HasPrefix(identifier, "http://")
}

func handleSQSError(err error, identifier string) error {
	var notExist *types.QueueDoesNotExist
	if errors.As(err, &notExist) {
		return QueueNotFoundError{Identifier: identifier, Cause: err}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode() == "AWS.SimpleQueueService.NonExistentQueue" {
			return QueueNotFoundError{Identifier: identifier, Cause: err}
		}
		return SQSAPIError{Code: apiErr.ErrorCode(), Cause: err}
	}
	return SQSAPIError{Cause: err}
}

func discardLogger() logrus.FieldLogger {
	return log.Discard()
}
