package sqsredrive

import (
	"context"
	"errors"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/vvatanabe/sqsredrive/internal/clock"
	"github.com/vvatanabe/sqsredrive/internal/constant"
)

const (
	itemKindQueue      = "queue"
	itemKindPreference = "preference"
	preferenceIDPrefix = "preference#"
)

// Registry persists queue configurations and user preferences.
type Registry interface {
	// SaveQueue stores a configuration. Saving a queue URL that is already registered returns the stored configuration unchanged.
	SaveQueue(ctx context.Context, queue *QueueConfiguration) (*QueueConfiguration, error)
	// LoadQueue returns the configuration with the given ID, or nil when there is none.
	LoadQueue(ctx context.Context, id string) (*QueueConfiguration, error)
	// LoadAllQueues returns every configuration ordered by save time.
	LoadAllQueues(ctx context.Context) ([]*QueueConfiguration, error)
	// UpdateQueue overwrites the stored fields that are non-empty in patch.
	UpdateQueue(ctx context.Context, id string, patch *QueueConfiguration) (*QueueConfiguration, error)
	RemoveQueue(ctx context.Context, id string) error
	SavePreference(ctx context.Context, key, value string) error
	// GetPreference reports false when the preference was never saved.
	GetPreference(ctx context.Context, key string) (string, bool, error)
}

// DynamoDBAPI is the subset of *dynamodb.Client used by DynamoDBRegistry.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// RegistryOptions defines configuration options for DynamoDBRegistry.
//
// Clock, IDGenerator, MarshalMap, UnmarshalMap, UnmarshalListOfMaps and BuildExpression exist so
// tests can stub them. Leave them unset in normal use.
type RegistryOptions struct {
	// DynamoDB is the DynamoDB client used for persistence. When nil, one is created from the AWS config.
	DynamoDB DynamoDBAPI
	// TableName is the name of the DynamoDB table. Defaults to "sqs-redrive-table".
	TableName string
	// BaseEndpoint is the base endpoint URL for DynamoDB requests.
	BaseEndpoint string
	// RetryMaxAttempts is the maximum number of attempts for a failed DynamoDB call.
	RetryMaxAttempts int

	Clock               clock.Clock
	IDGenerator         func() string
	MarshalMap          func(in interface{}) (map[string]types.AttributeValue, error)
	UnmarshalMap        func(m map[string]types.AttributeValue, out interface{}) error
	UnmarshalListOfMaps func(l []map[string]types.AttributeValue, out interface{}) error
	BuildExpression     func(b expression.Builder) (expression.Expression, error)
}

// WithTableName sets the table the registry reads and writes.
func WithTableName(tableName string) func(*RegistryOptions) {
	return func(o *RegistryOptions) {
		if tableName != "" {
			o.TableName = tableName
		}
	}
}

// WithAWSDynamoDBClient sets a pre-configured DynamoDB client. Endpoint and retry options are ignored when it is set.
func WithAWSDynamoDBClient(client DynamoDBAPI) func(*RegistryOptions) {
	return func(o *RegistryOptions) {
		o.DynamoDB = client
	}
}

func WithDynamoDBBaseEndpoint(baseEndpoint string) func(*RegistryOptions) {
	return func(o *RegistryOptions) {
		o.BaseEndpoint = baseEndpoint
	}
}

func WithRegistryClock(c clock.Clock) func(*RegistryOptions) {
	return func(o *RegistryOptions) {
		if c != nil {
			o.Clock = c
		}
	}
}

func WithIDGenerator(gen func() string) func(*RegistryOptions) {
	return func(o *RegistryOptions) {
		if gen != nil {
			o.IDGenerator = gen
		}
	}
}

// NewRegistryFromConfig creates a Registry backed by a DynamoDB table with hash key "id".
func NewRegistryFromConfig(cfg aws.Config, optFns ...func(*RegistryOptions)) (Registry, error) {
	o := &RegistryOptions{
		TableName:           constant.DefaultTableName,
		RetryMaxAttempts:    constant.DefaultRetryMaxAttempts,
		Clock:               clock.RealClock{},
		IDGenerator:         uuid.NewString,
		MarshalMap:          attributevalue.MarshalMap,
		UnmarshalMap:        attributevalue.UnmarshalMap,
		UnmarshalListOfMaps: attributevalue.UnmarshalListOfMaps,
		BuildExpression: func(b expression.Builder) (expression.Expression, error) {
			return b.Build()
		},
	}
	for _, opt := range optFns {
		opt(o)
	}
	r := &DynamoDBRegistry{
		dynamoDB:            o.DynamoDB,
		tableName:           o.TableName,
		clock:               o.Clock,
		idGenerator:         o.IDGenerator,
		marshalMap:          o.MarshalMap,
		unmarshalMap:        o.UnmarshalMap,
		unmarshalListOfMaps: o.UnmarshalListOfMaps,
		buildExpression:     o.BuildExpression,
	}
	if r.dynamoDB != nil {
		return r, nil
	}
	r.dynamoDB = dynamodb.NewFromConfig(cfg, func(options *dynamodb.Options) {
		options.RetryMaxAttempts = o.RetryMaxAttempts
		if o.BaseEndpoint != "" {
			options.BaseEndpoint = aws.String(o.BaseEndpoint)
		}
	})
	return r, nil
}

// DynamoDBRegistry stores queue configurations and preferences as items of one table,
// told apart by the "kind" attribute. Use NewRegistryFromConfig to create one.
type DynamoDBRegistry struct {
	dynamoDB            DynamoDBAPI
	tableName           string
	clock               clock.Clock
	idGenerator         func() string
	marshalMap          func(in interface{}) (map[string]types.AttributeValue, error)
	unmarshalMap        func(m map[string]types.AttributeValue, out interface{}) error
	unmarshalListOfMaps func(l []map[string]types.AttributeValue, out interface{}) error
	buildExpression     func(b expression.Builder) (expression.Expression, error)
}

type queueItem struct {
	QueueConfiguration
	Kind string `dynamodbav:"kind"`
}

type preferenceItem struct {
	ID      string `dynamodbav:"id"`
	Kind    string `dynamodbav:"kind"`
	Key     string `dynamodbav:"key"`
	Value   string `dynamodbav:"value"`
	SavedAt string `dynamodbav:"saved_at"`
}

func (r *DynamoDBRegistry) SaveQueue(ctx context.Context, queue *QueueConfiguration) (*QueueConfiguration, error) {
	if queue == nil || queue.QueueURL == "" {
		return nil, QueueURLNotProvidedError{}
	}
	existing, err := r.findQueueByURL(ctx, queue.QueueURL)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	item := queueItem{
		QueueConfiguration: *queue,
		Kind:               itemKindQueue,
	}
	if item.ID == "" {
		item.ID = r.idGenerator()
	}
	if item.Attributes == nil {
		item.Attributes = make(map[string]string)
	}
	item.SavedAt = clock.FormatRFC3339(r.clock.Now())
	av, err := r.marshalMap(item)
	if err != nil {
		return nil, MarshalingAttributeError{Cause: err}
	}
	expr, err := r.buildExpression(expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("id"))))
	if err != nil {
		return nil, BuildingExpressionError{Cause: err}
	}
	_, err = r.dynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, handleDynamoDBError(err)
	}
	saved := item.QueueConfiguration
	return &saved, nil
}

func (r *DynamoDBRegistry) findQueueByURL(ctx context.Context, queueURL string) (*QueueConfiguration, error) {
	queues, err := r.scanQueues(ctx, expression.Name("queue_url").Equal(expression.Value(queueURL)))
	if err != nil {
		return nil, err
	}
	if len(queues) == 0 {
		return nil, nil
	}
	return queues[0], nil
}

func (r *DynamoDBRegistry) LoadQueue(ctx context.Context, id string) (*QueueConfiguration, error) {
	if id == "" {
		return nil, nil
	}
	out, err := r.dynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, handleDynamoDBError(err)
	}
	if out.Item == nil {
		return nil, nil
	}
	item := queueItem{}
	if err := r.unmarshalMap(out.Item, &item); err != nil {
		return nil, UnmarshalingAttributeError{Cause: err}
	}
	if item.Kind != itemKindQueue {
		return nil, nil
	}
	return &item.QueueConfiguration, nil
}

func (r *DynamoDBRegistry) LoadAllQueues(ctx context.Context) ([]*QueueConfiguration, error) {
	return r.scanQueues(ctx)
}

func (r *DynamoDBRegistry) scanQueues(ctx context.Context, filters ...expression.ConditionBuilder) ([]*QueueConfiguration, error) {
	cond := expression.Name("kind").Equal(expression.Value(itemKindQueue))
	for _, f := range filters {
		cond = cond.And(f)
	}
	expr, err := r.buildExpression(expression.NewBuilder().WithFilter(cond))
	if err != nil {
		return nil, BuildingExpressionError{Cause: err}
	}
	var (
		exclusiveStartKey map[string]types.AttributeValue
		queues            []*QueueConfiguration
	)
	for {
		out, err := r.dynamoDB.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(r.tableName),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         exclusiveStartKey,
			ConsistentRead:            aws.Bool(true),
		})
		if err != nil {
			return nil, handleDynamoDBError(err)
		}
		var items []queueItem
		if err := r.unmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, UnmarshalingAttributeError{Cause: err}
		}
		for i := range items {
			queues = append(queues, &items[i].QueueConfiguration)
		}
		exclusiveStartKey = out.LastEvaluatedKey
		if exclusiveStartKey == nil {
			break
		}
	}
	sort.SliceStable(queues, func(i, j int) bool {
		if queues[i].SavedAt == queues[j].SavedAt {
			return queues[i].ID < queues[j].ID
		}
		return clock.RFC3339ToUnixMilli(queues[i].SavedAt) < clock.RFC3339ToUnixMilli(queues[j].SavedAt)
	})
	if queues == nil {
		queues = make([]*QueueConfiguration, 0)
	}
	return queues, nil
}

func (r *DynamoDBRegistry) UpdateQueue(ctx context.Context, id string, patch *QueueConfiguration) (*QueueConfiguration, error) {
	if patch == nil {
		patch = &QueueConfiguration{}
	}
	update, ok := queueUpdate(patch)
	if !ok {
		current, err := r.LoadQueue(ctx, id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, QueueConfigNotFoundError{ID: id}
		}
		return current, nil
	}
	expr, err := r.buildExpression(expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("id")).
			And(expression.Name("kind").Equal(expression.Value(itemKindQueue)))))
	if err != nil {
		return nil, BuildingExpressionError{Cause: err}
	}
	out, err := r.dynamoDB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		err = handleDynamoDBError(err)
		var conditionalCheckFailedError ConditionalCheckFailedError
		if errors.As(err, &conditionalCheckFailedError) {
			return nil, QueueConfigNotFoundError{ID: id}
		}
		return nil, err
	}
	item := queueItem{}
	if err := r.unmarshalMap(out.Attributes, &item); err != nil {
		return nil, UnmarshalingAttributeError{Cause: err}
	}
	return &item.QueueConfiguration, nil
}

func queueUpdate(patch *QueueConfiguration) (expression.UpdateBuilder, bool) {
	var (
		update  expression.UpdateBuilder
		changed bool
	)
	set := func(name string, value any) {
		update = update.Set(expression.Name(name), expression.Value(value))
		changed = true
	}
	if patch.QueueURL != "" {
		set("queue_url", patch.QueueURL)
	}
	if patch.QueueName != "" {
		set("queue_name", patch.QueueName)
	}
	if patch.Region != "" {
		set("region", patch.Region)
	}
	if patch.Attributes != nil {
		set("attributes", patch.Attributes)
	}
	if patch.DLQURL != "" {
		set("dlq_url", patch.DLQURL)
	}
	if patch.DLQName != "" {
		set("dlq_name", patch.DLQName)
	}
	return update, changed
}

func (r *DynamoDBRegistry) RemoveQueue(ctx context.Context, id string) error {
	_, err := r.dynamoDB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return handleDynamoDBError(err)
	}
	return nil
}

func (r *DynamoDBRegistry) SavePreference(ctx context.Context, key, value string) error {
	av, err := r.marshalMap(preferenceItem{
		ID:      preferenceIDPrefix + key,
		Kind:    itemKindPreference,
		Key:     key,
		Value:   value,
		SavedAt: clock.FormatRFC3339(r.clock.Now()),
	})
	if err != nil {
		return MarshalingAttributeError{Cause: err}
	}
	_, err = r.dynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return handleDynamoDBError(err)
	}
	return nil
}

func (r *DynamoDBRegistry) GetPreference(ctx context.Context, key string) (string, bool, error) {
	out, err := r.dynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: preferenceIDPrefix + key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, handleDynamoDBError(err)
	}
	if out.Item == nil {
		return "", false, nil
	}
	item := preferenceItem{}
	if err := r.unmarshalMap(out.Item, &item); err != nil {
		return "", false, UnmarshalingAttributeError{Cause: err}
	}
	return item.Value, true, nil
}

func handleDynamoDBError(err error) error {
	var cause *types.ConditionalCheckFailedException
	if errors.As(err, &cause) {
		return ConditionalCheckFailedError{Cause: cause}
	}
	return DynamoDBAPIError{Cause: err}
}
