package sqsredrive

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/vvatanabe/sqsredrive/internal/constant"
	"golang.org/x/sync/singleflight"
)

// ConfigLoader loads the AWS configuration for a region and a shared-config profile.
// An empty profile means the default credential chain.
type ConfigLoader func(ctx context.Context, region, profile string) (aws.Config, error)

// LoadDefaultConfig is the default ConfigLoader.
func LoadDefaultConfig(ctx context.Context, region, profile string) (aws.Config, error) {
	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if profile != "" {
		optFns = append(optFns, config.WithSharedConfigProfile(profile))
	}
	return config.LoadDefaultConfig(ctx, optFns...)
}

type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// ProviderOptions defines configuration options for GatewayProvider.
type ProviderOptions struct {
	// DefaultRegion is used when a caller asks for a gateway without naming a region.
	DefaultRegion string
	// Profile is the initial shared-config profile.
	Profile string
	// ConfigLoader loads aws.Config per region and profile. Defaults to LoadDefaultConfig.
	ConfigLoader ConfigLoader
	// GatewayOptions are passed to NewFromConfig for every gateway the provider creates.
	GatewayOptions []func(*GatewayOptions)
	// STSBaseEndpoint overrides the STS endpoint used by VerifyCredentials.
	STSBaseEndpoint string
	// SharedConfigFiles are scanned by Profiles. Defaults to the SDK's shared config
	// and shared credentials files.
	SharedConfigFiles []string

	NewGateway func(cfg aws.Config, optFns ...func(*GatewayOptions)) (Gateway, error)
	NewSTS     func(cfg aws.Config) STSAPI
}

func WithDefaultRegion(region string) func(*ProviderOptions) {
	return func(o *ProviderOptions) {
		if region != "" {
			o.DefaultRegion = region
		}
	}
}

func WithProfile(profile string) func(*ProviderOptions) {
	return func(o *ProviderOptions) {
		o.Profile = profile
	}
}

func WithConfigLoader(loader ConfigLoader) func(*ProviderOptions) {
	return func(o *ProviderOptions) {
		if loader != nil {
			o.ConfigLoader = loader
		}
	}
}

func WithGatewayOptions(optFns ...func(*GatewayOptions)) func(*ProviderOptions) {
	return func(o *ProviderOptions) {
		o.GatewayOptions = append(o.GatewayOptions, optFns...)
	}
}

func WithSharedConfigFiles(files ...string) func(*ProviderOptions) {
	return func(o *ProviderOptions) {
		o.SharedConfigFiles = files
	}
}

func WithSTSBaseEndpoint(baseEndpoint string) func(*ProviderOptions) {
	return func(o *ProviderOptions) {
		o.STSBaseEndpoint = baseEndpoint
	}
}

// GatewayProvider hands out one Gateway per region and caches it until the profile changes.
// It is safe for concurrent use.
type GatewayProvider struct {
	mu            sync.RWMutex
	profile       string
	gateways      map[string]Gateway
	group         singleflight.Group
	defaultRegion string
	loadConfig    ConfigLoader
	gatewayOptFns []func(*GatewayOptions)
	stsEndpoint   string
	sharedFiles   []string
	newGateway    func(cfg aws.Config, optFns ...func(*GatewayOptions)) (Gateway, error)
	newSTS        func(cfg aws.Config) STSAPI
}

func NewGatewayProvider(optFns ...func(*ProviderOptions)) *GatewayProvider {
	o := &ProviderOptions{
		DefaultRegion: constant.DefaultRegion,
		ConfigLoader:  LoadDefaultConfig,
		NewGateway:    NewFromConfig,
		SharedConfigFiles: []string{
			config.DefaultSharedConfigFilename(),
			config.DefaultSharedCredentialsFilename(),
		},
	}
	for _, opt := range optFns {
		opt(o)
	}
	p := &GatewayProvider{
		profile:       o.Profile,
		gateways:      make(map[string]Gateway),
		defaultRegion: o.DefaultRegion,
		loadConfig:    o.ConfigLoader,
		gatewayOptFns: o.GatewayOptions,
		stsEndpoint:   o.STSBaseEndpoint,
		sharedFiles:   o.SharedConfigFiles,
		newGateway:    o.NewGateway,
		newSTS:        o.NewSTS,
	}
	if p.newSTS == nil {
		p.newSTS = p.defaultSTS
	}
	return p
}

func (p *GatewayProvider) defaultSTS(cfg aws.Config) STSAPI {
	return sts.NewFromConfig(cfg, func(options *sts.Options) {
		if p.stsEndpoint != "" {
			options.BaseEndpoint = aws.String(p.stsEndpoint)
		}
	})
}

func (p *GatewayProvider) DefaultRegion() string {
	return p.defaultRegion
}

func (p *GatewayProvider) Profile() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.profile
}

// Profiles lists the profile names declared in the shared config files.
func (p *GatewayProvider) Profiles() []string {
	return ListProfiles(p.sharedFiles...)
}

// SetProfile switches the shared-config profile and drops every cached gateway.
func (p *GatewayProvider) SetProfile(profile string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profile = profile
	p.gateways = make(map[string]Gateway)
}

// Clear drops every cached gateway.
func (p *GatewayProvider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gateways = make(map[string]Gateway)
}

// Gateway returns the gateway for region, creating it on first use.
// Concurrent first calls for the same region share one creation.
func (p *GatewayProvider) Gateway(ctx context.Context, region string) (Gateway, error) {
	if region == "" {
		region = p.defaultRegion
	}
	p.mu.RLock()
	gw, ok := p.gateways[region]
	profile := p.profile
	p.mu.RUnlock()
	if ok {
		return gw, nil
	}
	// The creation is shared by every waiter, so one caller's cancellation must not fail the rest.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := p.group.Do(profile+"@"+region, func() (interface{}, error) {
		cfg, err := p.loadConfig(loadCtx, region, profile)
		if err != nil {
			return nil, CredentialsError{Cause: err}
		}
		gw, err := p.newGateway(cfg, p.gatewayOptFns...)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.profile == profile {
			if cached, ok := p.gateways[region]; ok {
				return cached, nil
			}
			p.gateways[region] = gw
		}
		return gw, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Gateway), nil
}

type CallerIdentity struct {
	Account string `json:"account"`
	ARN     string `json:"arn"`
	UserID  string `json:"userId"`
	Profile string `json:"profile"`
}

// VerifyCredentials asks STS who the active credentials belong to.
func (p *GatewayProvider) VerifyCredentials(ctx context.Context, region string) (*CallerIdentity, error) {
	if region == "" {
		region = p.defaultRegion
	}
	profile := p.Profile()
	cfg, err := p.loadConfig(ctx, region, profile)
	if err != nil {
		return nil, CredentialsError{Cause: err}
	}
	out, err := p.newSTS(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, CredentialsError{Cause: err}
	}
	return &CallerIdentity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
		Profile: profile,
	}, nil
}
