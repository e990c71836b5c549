package mock

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/vvatanabe/sqsredrive"
)

var ErrNotImplemented = errors.New("not implemented")

type Gateway struct {
	ReceiveMessagesFunc         func(ctx context.Context, params *sqsredrive.ReceiveMessagesInput) (*sqsredrive.ReceiveMessagesOutput, error)
	SendMessageFunc             func(ctx context.Context, params *sqsredrive.SendMessageInput) (*sqsredrive.SendMessageOutput, error)
	DeleteMessageFunc           func(ctx context.Context, params *sqsredrive.DeleteMessageInput) (*sqsredrive.DeleteMessageOutput, error)
	ChangeMessageVisibilityFunc func(ctx context.Context, params *sqsredrive.ChangeMessageVisibilityInput) (*sqsredrive.ChangeMessageVisibilityOutput, error)
	PurgeQueueFunc              func(ctx context.Context, params *sqsredrive.PurgeQueueInput) (*sqsredrive.PurgeQueueOutput, error)
	GetQueueURLFunc             func(ctx context.Context, params *sqsredrive.GetQueueURLInput) (*sqsredrive.GetQueueURLOutput, error)
	GetQueueAttributesFunc      func(ctx context.Context, params *sqsredrive.GetQueueAttributesInput) (*sqsredrive.GetQueueAttributesOutput, error)
}

func (m Gateway) ReceiveMessages(ctx context.Context, params *sqsredrive.ReceiveMessagesInput) (*sqsredrive.ReceiveMessagesOutput, error) {
	if m.ReceiveMessagesFunc != nil {
		return m.ReceiveMessagesFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Gateway) SendMessage(ctx context.Context, params *sqsredrive.SendMessageInput) (*sqsredrive.SendMessageOutput, error) {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Gateway) DeleteMessage(ctx context.Context, params *sqsredrive.DeleteMessageInput) (*sqsredrive.DeleteMessageOutput, error) {
	if m.DeleteMessageFunc != nil {
		return m.DeleteMessageFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Gateway) ChangeMessageVisibility(ctx context.Context, params *sqsredrive.ChangeMessageVisibilityInput) (*sqsredrive.ChangeMessageVisibilityOutput, error) {
	if m.ChangeMessageVisibilityFunc != nil {
		return m.ChangeMessageVisibilityFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Gateway) PurgeQueue(ctx context.Context, params *sqsredrive.PurgeQueueInput) (*sqsredrive.PurgeQueueOutput, error) {
	if m.PurgeQueueFunc != nil {
		return m.PurgeQueueFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Gateway) GetQueueURL(ctx context.Context, params *sqsredrive.GetQueueURLInput) (*sqsredrive.GetQueueURLOutput, error) {
	if m.GetQueueURLFunc != nil {
		return m.GetQueueURLFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

func (m Gateway) GetQueueAttributes(ctx context.Context, params *sqsredrive.GetQueueAttributesInput) (*sqsredrive.GetQueueAttributesOutput, error) {
	if m.GetQueueAttributesFunc != nil {
		return m.GetQueueAttributesFunc(ctx, params)
	}
	return nil, ErrNotImplemented
}

type Registry struct {
	SaveQueueFunc      func(ctx context.Context, queue *sqsredrive.QueueConfiguration) (*sqsredrive.QueueConfiguration, error)
	LoadQueueFunc      func(ctx context.Context, id string) (*sqsredrive.QueueConfiguration, error)
	LoadAllQueuesFunc  func(ctx context.Context) ([]*sqsredrive.QueueConfiguration, error)
	UpdateQueueFunc    func(ctx context.Context, id string, patch *sqsredrive.QueueConfiguration) (*sqsredrive.QueueConfiguration, error)
	RemoveQueueFunc    func(ctx context.Context, id string) error
	SavePreferenceFunc func(ctx context.Context, key, value string) error
	GetPreferenceFunc  func(ctx context.Context, key string) (string, bool, error)
}

func (m Registry) SaveQueue(ctx context.Context, queue *sqsredrive.QueueConfiguration) (*sqsredrive.QueueConfiguration, error) {
	if m.SaveQueueFunc != nil {
		return m.SaveQueueFunc(ctx, queue)
	}
	return nil, ErrNotImplemented
}

func (m Registry) LoadQueue(ctx context.Context, id string) (*sqsredrive.QueueConfiguration, error) {
	if m.LoadQueueFunc != nil {
		return m.LoadQueueFunc(ctx, id)
	}
	return nil, ErrNotImplemented
}

func (m Registry) LoadAllQueues(ctx context.Context) ([]*sqsredrive.QueueConfiguration, error) {
	if m.LoadAllQueuesFunc != nil {
		return m.LoadAllQueuesFunc(ctx)
	}
	return nil, ErrNotImplemented
}

func (m Registry) UpdateQueue(ctx context.Context, id string, patch *sqsredrive.QueueConfiguration) (*sqsredrive.QueueConfiguration, error) {
	if m.UpdateQueueFunc != nil {
		return m.UpdateQueueFunc(ctx, id, patch)
	}
	return nil, ErrNotImplemented
}

func (m Registry) RemoveQueue(ctx context.Context, id string) error {
	if m.RemoveQueueFunc != nil {
		return m.RemoveQueueFunc(ctx, id)
	}
	return ErrNotImplemented
}

func (m Registry) SavePreference(ctx context.Context, key, value string) error {
	if m.SavePreferenceFunc != nil {
		return m.SavePreferenceFunc(ctx, key, value)
	}
	return ErrNotImplemented
}

func (m Registry) GetPreference(ctx context.Context, key string) (string, bool, error) {
	if m.GetPreferenceFunc != nil {
		return m.GetPreferenceFunc(ctx, key)
	}
	return "", false, ErrNotImplemented
}

// GatewaySource hands out Default for every region unless GatewayFunc is set.
type GatewaySource struct {
	Default               sqsredrive.Gateway
	Region                string
	ActiveProfile         string
	AvailableProfiles     []string
	GatewayFunc           func(ctx context.Context, region string) (sqsredrive.Gateway, error)
	SetProfileFunc        func(profile string)
	VerifyCredentialsFunc func(ctx context.Context, region string) (*sqsredrive.CallerIdentity, error)
	RequestedRegions      []string
}

func (m *GatewaySource) Gateway(ctx context.Context, region string) (sqsredrive.Gateway, error) {
	m.RequestedRegions = append(m.RequestedRegions, region)
	if m.GatewayFunc != nil {
		return m.GatewayFunc(ctx, region)
	}
	if m.Default != nil {
		return m.Default, nil
	}
	return nil, ErrNotImplemented
}

func (m *GatewaySource) DefaultRegion() string {
	if m.Region == "" {
		return "us-east-1"
	}
	return m.Region
}

func (m *GatewaySource) Profile() string {
	return m.ActiveProfile
}

func (m *GatewaySource) SetProfile(profile string) {
	m.ActiveProfile = profile
	if m.SetProfileFunc != nil {
		m.SetProfileFunc(profile)
	}
}

func (m *GatewaySource) Profiles() []string {
	if m.AvailableProfiles == nil {
		return []string{}
	}
	return m.AvailableProfiles
}

func (m *GatewaySource) VerifyCredentials(ctx context.Context, region string) (*sqsredrive.CallerIdentity, error) {
	if m.VerifyCredentialsFunc != nil {
		return m.VerifyCredentialsFunc(ctx, region)
	}
	return nil, ErrNotImplemented
}

type SQS struct {
	ReceiveMessageFunc          func(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	SendMessageFunc             func(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	DeleteMessageFunc           func(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibilityFunc func(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	PurgeQueueFunc              func(ctx context.Context, params *sqs.PurgeQueueInput, optFns ...func(*sqs.Options)) (*sqs.PurgeQueueOutput, error)
	GetQueueUrlFunc             func(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	GetQueueAttributesFunc      func(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

func (m SQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if m.ReceiveMessageFunc != nil {
		return m.ReceiveMessageFunc(ctx, params, optFns...)
	}
	return nil, ErrNotImplemented
}

func (m SQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, params, optFns...)
	}
	return nil, ErrNotImplemented
}

func (m SQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	if m.DeleteMessageFunc != nil {
		return m.DeleteMessageFunc(ctx, params, optFns...)
	}
	return nil, ErrNotImplemented
}

func (m SQS) ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	if m.ChangeMessageVisibilityFunc != nil {
		return m.ChangeMessageVisibilityFunc(ctx, params, optFns...)
	}
	return nil, ErrNotImplemented
}

func (m SQS) PurgeQueue(ctx context.Context, params *sqs.PurgeQueueInput, optFns ...func(*sqs.Options)) (*sqs.PurgeQueueOutput, error) {
	if m.PurgeQueueFunc != nil {
		return m.PurgeQueueFunc(ctx, params, optFns...)
	}
	return nil, ErrNotImplemented
}

func (m SQS) GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	if m.GetQueueUrlFunc != nil {
		return m.GetQueueUrlFunc(ctx, params, optFns...)
	}
	return nil, ErrNotImplemented
}

func (m SQS) GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	if m.GetQueueAttributesFunc != nil {
		return m.GetQueueAttributesFunc(ctx, params, optFns...)
	}
	return nil, ErrNotImplemented
}

type STS struct {
	GetCallerIdentityFunc func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

func (m STS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if m.GetCallerIdentityFunc != nil {
		return m.GetCallerIdentityFunc(ctx, params, optFns...)
	}
	return nil, ErrNotImplemented
}

type Clock struct {
	T time.Time
}

func (m Clock) Now() time.Time {
	return m.T
}
