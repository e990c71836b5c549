package sqsredrive

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/vvatanabe/sqsredrive/internal/constant"
)

// GatewaySource resolves gateways per region and owns the active credentials profile.
// *GatewayProvider is the production implementation.
type GatewaySource interface {
	Gateway(ctx context.Context, region string) (Gateway, error)
	DefaultRegion() string
	Profile() string
	SetProfile(profile string)
	Profiles() []string
	VerifyCredentials(ctx context.Context, region string) (*CallerIdentity, error)
}

// ManagerOptions defines configuration options for Manager.
type ManagerOptions struct {
	Logger          logrus.FieldLogger
	RedriverOptions []func(*RedriverOptions)
}

func WithManagerLogger(logger logrus.FieldLogger) func(*ManagerOptions) {
	return func(o *ManagerOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

func WithRedriverOptions(optFns ...func(*RedriverOptions)) func(*ManagerOptions) {
	return func(o *ManagerOptions) {
		o.RedriverOptions = append(o.RedriverOptions, optFns...)
	}
}

// Manager runs queue, message and redrive operations against registered queues, addressed by their registry ID.
type Manager struct {
	registry     Registry
	gateways     GatewaySource
	logger       logrus.FieldLogger
	redriverOpts []func(*RedriverOptions)
}

func NewManager(registry Registry, gateways GatewaySource, optFns ...func(*ManagerOptions)) *Manager {
	o := &ManagerOptions{
		Logger: discardLogger(),
	}
	for _, opt := range optFns {
		opt(o)
	}
	return &Manager{
		registry:     registry,
		gateways:     gateways,
		logger:       o.Logger,
		redriverOpts: append([]func(*RedriverOptions){WithLogger(o.Logger)}, o.RedriverOptions...),
	}
}

// Restore applies the profile persisted by a previous SetProfile.
func (m *Manager) Restore(ctx context.Context) error {
	profile, ok, err := m.registry.GetPreference(ctx, constant.ProfilePreferenceKey)
	if err != nil {
		return err
	}
	if ok && profile != m.gateways.Profile() {
		m.gateways.SetProfile(profile)
		m.logger.WithField("profile", profile).Info("restored AWS profile")
	}
	return nil
}

type AddQueueInput struct {
	// Identifier is a queue name or a queue URL.
	Identifier string
	Region     string
}

// AddQueue resolves the queue, reads its attributes and registers it together with its DLQ, if any.
func (m *Manager) AddQueue(ctx context.Context, params *AddQueueInput) (*QueueConfiguration, error) {
	if params == nil {
		params = &AddQueueInput{}
	}
	if params.Identifier == "" {
		return nil, QueueURLNotProvidedError{}
	}
	region := params.Region
	if region == "" {
		region = m.gateways.DefaultRegion()
	}
	gw, err := m.gateways.Gateway(ctx, region)
	if err != nil {
		return nil, err
	}
	resolved, err := gw.GetQueueURL(ctx, &GetQueueURLInput{Identifier: params.Identifier})
	if err != nil {
		return nil, err
	}
	attrs, err := gw.GetQueueAttributes(ctx, &GetQueueAttributesInput{QueueURL: resolved.QueueURL})
	if err != nil {
		return nil, err
	}
	queue := &QueueConfiguration{
		QueueURL:   resolved.QueueURL,
		QueueName:  ExtractQueueName(resolved.QueueURL),
		Region:     region,
		Attributes: attrs.Attributes,
	}
	if dlqURL, ok := ExtractDLQURL(attrs.Attributes); ok {
		queue.DLQURL = dlqURL
		queue.DLQName = ExtractQueueName(dlqURL)
	}
	saved, err := m.registry.SaveQueue(ctx, queue)
	if err != nil {
		return nil, err
	}
	m.logger.WithFields(logrus.Fields{
		"queue_id": saved.ID,
		"queue":    saved.QueueName,
	}).Info("registered queue")
	return saved, nil
}

func (m *Manager) ListQueues(ctx context.Context) ([]*QueueConfiguration, error) {
	return m.registry.LoadAllQueues(ctx)
}

func (m *Manager) GetQueue(ctx context.Context, id string) (*QueueConfiguration, error) {
	queue, err := m.registry.LoadQueue(ctx, id)
	if err != nil {
		return nil, err
	}
	if queue == nil {
		return nil, QueueConfigNotFoundError{ID: id}
	}
	return queue, nil
}

// RefreshQueue re-reads the queue attributes and DLQ linkage and stores them.
func (m *Manager) RefreshQueue(ctx context.Context, id string) (*QueueConfiguration, error) {
	queue, gw, err := m.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	attrs, err := gw.GetQueueAttributes(ctx, &GetQueueAttributesInput{QueueURL: queue.QueueURL})
	if err != nil {
		return nil, err
	}
	patch := &QueueConfiguration{Attributes: attrs.Attributes}
	if dlqURL, ok := ExtractDLQURL(attrs.Attributes); ok {
		patch.DLQURL = dlqURL
		patch.DLQName = ExtractQueueName(dlqURL)
	}
	return m.registry.UpdateQueue(ctx, id, patch)
}

func (m *Manager) RemoveQueue(ctx context.Context, id string) error {
	if _, err := m.GetQueue(ctx, id); err != nil {
		return err
	}
	return m.registry.RemoveQueue(ctx, id)
}

func (m *Manager) PurgeQueue(ctx context.Context, id string) error {
	queue, gw, err := m.resolve(ctx, id)
	if err != nil {
		return err
	}
	_, err = gw.PurgeQueue(ctx, &PurgeQueueInput{QueueURL: queue.QueueURL})
	return err
}

type ReceiveInput struct {
	MaxMessages       int
	VisibilityTimeout *int32
	WaitTimeSeconds   *int32
}

// ReceivedMessage is a received message plus a display form of its body.
type ReceivedMessage struct {
	MessageSnapshot
	BodyFormatted string `json:"bodyFormatted"`
	IsJSON        bool   `json:"isJson"`
}

func (m *Manager) ReceiveMessages(ctx context.Context, id string, params *ReceiveInput) ([]ReceivedMessage, error) {
	if params == nil {
		params = &ReceiveInput{}
	}
	queue, gw, err := m.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return receive(ctx, gw, &ReceiveMessagesInput{
		QueueURL:            queue.QueueURL,
		MaxNumberOfMessages: params.MaxMessages,
		VisibilityTimeout:   params.VisibilityTimeout,
		WaitTimeSeconds:     params.WaitTimeSeconds,
	})
}

// ReceiveDLQMessages receives from the queue's DLQ. The returned receipt handles can be passed to RedriveSelected.
func (m *Manager) ReceiveDLQMessages(ctx context.Context, id string, params *ReceiveInput) ([]ReceivedMessage, error) {
	if params == nil {
		params = &ReceiveInput{}
	}
	queue, gw, err := m.resolveWithDLQ(ctx, id)
	if err != nil {
		return nil, err
	}
	return receive(ctx, gw, &ReceiveMessagesInput{
		QueueURL:            queue.DLQURL,
		MaxNumberOfMessages: params.MaxMessages,
		VisibilityTimeout:   params.VisibilityTimeout,
	})
}

// PeekDLQMessages receives from the queue's DLQ and makes the messages visible again right away.
func (m *Manager) PeekDLQMessages(ctx context.Context, id string, maxMessages int) ([]ReceivedMessage, error) {
	queue, gw, err := m.resolveWithDLQ(ctx, id)
	if err != nil {
		return nil, err
	}
	return receive(ctx, gw, &ReceiveMessagesInput{
		QueueURL:            queue.DLQURL,
		MaxNumberOfMessages: maxMessages,
		ResetVisibility:     true,
	})
}

func receive(ctx context.Context, gw Gateway, params *ReceiveMessagesInput) ([]ReceivedMessage, error) {
	out, err := gw.ReceiveMessages(ctx, params)
	if err != nil {
		return nil, err
	}
	messages := make([]ReceivedMessage, 0, len(out.Messages))
	for _, snapshot := range out.Messages {
		messages = append(messages, ReceivedMessage{
			MessageSnapshot: snapshot,
			BodyFormatted:   PrettyPrintJSON(snapshot.Body),
			IsJSON:          IsValidJSON(snapshot.Body),
		})
	}
	return messages, nil
}

type SendInput struct {
	Body         string
	Attributes   map[string]MessageAttributeValue
	DelaySeconds *int32
}

func (m *Manager) SendMessage(ctx context.Context, id string, params *SendInput) (string, error) {
	if params == nil {
		params = &SendInput{}
	}
	queue, gw, err := m.resolve(ctx, id)
	if err != nil {
		return "", err
	}
	out, err := gw.SendMessage(ctx, &SendMessageInput{
		QueueURL:     queue.QueueURL,
		Body:         params.Body,
		Attributes:   params.Attributes,
		DelaySeconds: params.DelaySeconds,
	})
	if err != nil {
		return "", err
	}
	return out.MessageID, nil
}

func (m *Manager) DeleteMessage(ctx context.Context, id, receiptHandle string) error {
	if receiptHandle == "" {
		return ReceiptHandleNotProvidedError{}
	}
	queue, gw, err := m.resolve(ctx, id)
	if err != nil {
		return err
	}
	_, err = gw.DeleteMessage(ctx, &DeleteMessageInput{
		QueueURL:      queue.QueueURL,
		ReceiptHandle: receiptHandle,
	})
	return err
}

func (m *Manager) ChangeVisibility(ctx context.Context, id, receiptHandle string, visibilityTimeout int) error {
	if receiptHandle == "" {
		return ReceiptHandleNotProvidedError{}
	}
	if visibilityTimeout < 0 || visibilityTimeout > constant.MaxVisibilityTimeoutInSeconds {
		return InvalidVisibilityTimeoutError{VisibilityTimeout: visibilityTimeout}
	}
	queue, gw, err := m.resolve(ctx, id)
	if err != nil {
		return err
	}
	_, err = gw.ChangeMessageVisibility(ctx, &ChangeMessageVisibilityInput{
		QueueURL:          queue.QueueURL,
		ReceiptHandle:     receiptHandle,
		VisibilityTimeout: visibilityTimeout,
	})
	return err
}

// RedriveBulk moves messages from the queue's DLQ back to the queue.
func (m *Manager) RedriveBulk(ctx context.Context, id string, target RedriveTarget) (*RedriveResult, error) {
	queue, gw, err := m.resolveWithDLQ(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewRedriver(gw, m.redriverOpts...).RedriveBulk(ctx, &RedriveBulkInput{
		DLQURL:       queue.DLQURL,
		MainQueueURL: queue.QueueURL,
		Target:       target,
	})
}

// RedriveSelected moves the given DLQ messages back to the queue using their own receipt handles.
func (m *Manager) RedriveSelected(ctx context.Context, id string, messages []MessageSnapshot) (*RedriveResult, error) {
	queue, gw, err := m.resolveWithDLQ(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewRedriver(gw, m.redriverOpts...).RedriveSelected(ctx, &RedriveSelectedInput{
		DLQURL:       queue.DLQURL,
		MainQueueURL: queue.QueueURL,
		Messages:     messages,
	})
}

// SetProfile switches the AWS profile, drops cached clients and persists the choice.
func (m *Manager) SetProfile(ctx context.Context, profile string) error {
	m.gateways.SetProfile(profile)
	m.logger.WithField("profile", profile).Info("switched AWS profile")
	return m.registry.SavePreference(ctx, constant.ProfilePreferenceKey, profile)
}

func (m *Manager) Profile() string {
	return m.gateways.Profile()
}

// Profiles lists the credentials profiles that SetProfile can switch to.
func (m *Manager) Profiles() []string {
	return m.gateways.Profiles()
}

func (m *Manager) VerifyCredentials(ctx context.Context) (*CallerIdentity, error) {
	return m.gateways.VerifyCredentials(ctx, m.gateways.DefaultRegion())
}

func (m *Manager) resolve(ctx context.Context, id string) (*QueueConfiguration, Gateway, error) {
	queue, err := m.GetQueue(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	gw, err := m.gateways.Gateway(ctx, queue.Region)
	if err != nil {
		return nil, nil, err
	}
	return queue, gw, nil
}

func (m *Manager) resolveWithDLQ(ctx context.Context, id string) (*QueueConfiguration, Gateway, error) {
	queue, gw, err := m.resolve(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !queue.HasDLQ() {
		return nil, nil, DLQNotConfiguredError{ID: id}
	}
	return queue, gw, nil
}
