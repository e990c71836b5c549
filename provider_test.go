package sqsredrive_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/vvatanabe/sqsredrive"
	"github.com/vvatanabe/sqsredrive/internal/mock"
)

type loaderCall struct {
	region  string
	profile string
}

func newTestProvider(loads *[]loaderCall, mu *sync.Mutex, created *atomic.Int32, optFns ...func(*sqsredrive.ProviderOptions)) *sqsredrive.GatewayProvider {
	base := []func(*sqsredrive.ProviderOptions){
		sqsredrive.WithDefaultRegion("ap-northeast-1"),
		sqsredrive.WithConfigLoader(func(_ context.Context, region, profile string) (aws.Config, error) {
			mu.Lock()
			defer mu.Unlock()
			*loads = append(*loads, loaderCall{region: region, profile: profile})
			return aws.Config{Region: region}, nil
		}),
		func(o *sqsredrive.ProviderOptions) {
			o.NewGateway = func(cfg aws.Config, _ ...func(*sqsredrive.GatewayOptions)) (sqsredrive.Gateway, error) {
				created.Add(1)
				return &mock.Gateway{}, nil
			}
		},
	}
	return sqsredrive.NewGatewayProvider(append(base, optFns...)...)
}

func TestGatewayProviderCachesPerRegion(t *testing.T) {
	var (
		loads   []loaderCall
		mu      sync.Mutex
		created atomic.Int32
	)
	p := newTestProvider(&loads, &mu, &created)
	ctx := context.Background()

	first, err := p.Gateway(ctx, "")
	if err != nil {
		t.Fatalf("Gateway() error = %v", err)
	}
	second, err := p.Gateway(ctx, "ap-northeast-1")
	if err != nil {
		t.Fatalf("Gateway() error = %v", err)
	}
	if first != second {
		t.Error("default region gateway was not reused")
	}
	if _, err := p.Gateway(ctx, "eu-west-1"); err != nil {
		t.Fatalf("Gateway() error = %v", err)
	}
	if got := created.Load(); got != 2 {
		t.Errorf("gateways created = %d, want 2", got)
	}
	if loads[0].region != "ap-northeast-1" || loads[1].region != "eu-west-1" {
		t.Errorf("loads = %+v", loads)
	}
}

func TestGatewayProviderConcurrentFirstUse(t *testing.T) {
	var (
		loads   []loaderCall
		mu      sync.Mutex
		created atomic.Int32
	)
	p := newTestProvider(&loads, &mu, &created)
	var wg sync.WaitGroup
	gateways := make([]sqsredrive.Gateway, 16)
	for i := range gateways {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			gw, err := p.Gateway(context.Background(), "us-west-2")
			if err != nil {
				t.Errorf("Gateway() error = %v", err)
				return
			}
			gateways[i] = gw
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(gateways); i++ {
		if gateways[i] != gateways[0] {
			t.Fatalf("gateway %d differs from gateway 0", i)
		}
	}
}

func TestGatewayProviderSetProfileClearsCache(t *testing.T) {
	var (
		loads   []loaderCall
		mu      sync.Mutex
		created atomic.Int32
	)
	p := newTestProvider(&loads, &mu, &created, sqsredrive.WithProfile("dev"))
	ctx := context.Background()
	if _, err := p.Gateway(ctx, "us-east-1"); err != nil {
		t.Fatal(err)
	}
	p.SetProfile("prod")
	if p.Profile() != "prod" {
		t.Errorf("Profile() = %s, want prod", p.Profile())
	}
	if _, err := p.Gateway(ctx, "us-east-1"); err != nil {
		t.Fatal(err)
	}
	if created.Load() != 2 {
		t.Errorf("gateways created = %d, want 2", created.Load())
	}
	want := []loaderCall{{"us-east-1", "dev"}, {"us-east-1", "prod"}}
	for i, l := range want {
		if loads[i] != l {
			t.Errorf("load[%d] = %+v, want %+v", i, loads[i], l)
		}
	}
	p.Clear()
	if _, err := p.Gateway(ctx, "us-east-1"); err != nil {
		t.Fatal(err)
	}
	if created.Load() != 3 {
		t.Errorf("gateways created after Clear = %d, want 3", created.Load())
	}
}

func TestGatewayProviderLoaderError(t *testing.T) {
	p := sqsredrive.NewGatewayProvider(sqsredrive.WithConfigLoader(func(context.Context, string, string) (aws.Config, error) {
		return aws.Config{}, errors.New("failed to get shared config profile, missing")
	}))
	_, err := p.Gateway(context.Background(), "")
	var credErr sqsredrive.CredentialsError
	if !errors.As(err, &credErr) {
		t.Errorf("Gateway() error = %v, want CredentialsError", err)
	}
	if p.DefaultRegion() != "us-east-1" {
		t.Errorf("DefaultRegion() = %s, want us-east-1", p.DefaultRegion())
	}
}

func TestGatewayProviderVerifyCredentials(t *testing.T) {
	tests := []struct {
		name    string
		sts     mock.STS
		want    *sqsredrive.CallerIdentity
		wantErr bool
	}{
		{
			name: "valid",
			sts: mock.STS{
				GetCallerIdentityFunc: func(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
					return &sts.GetCallerIdentityOutput{
						Account: aws.String("123456789012"),
						Arn:     aws.String("arn:aws:iam::123456789012:user/dev"),
						UserId:  aws.String("AIDAEXAMPLE"),
					}, nil
				},
			},
			want: &sqsredrive.CallerIdentity{
				Account: "123456789012",
				ARN:     "arn:aws:iam::123456789012:user/dev",
				UserID:  "AIDAEXAMPLE",
				Profile: "dev",
			},
		},
		{
			name:    "invalid",
			sts:     mock.STS{},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sqsredrive.NewGatewayProvider(
				sqsredrive.WithProfile("dev"),
				sqsredrive.WithConfigLoader(func(_ context.Context, region, _ string) (aws.Config, error) {
					return aws.Config{Region: region}, nil
				}),
				func(o *sqsredrive.ProviderOptions) {
					o.NewSTS = func(aws.Config) sqsredrive.STSAPI { return tt.sts }
				},
			)
			got, err := p.VerifyCredentials(context.Background(), "")
			if (err != nil) != tt.wantErr {
				t.Fatalf("VerifyCredentials() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, mock.ErrNotImplemented) {
					t.Errorf("VerifyCredentials() error = %v, want wrapped %v", err, mock.ErrNotImplemented)
				}
				return
			}
			if *got != *tt.want {
				t.Errorf("VerifyCredentials() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGatewayProviderSharedCreationIgnoresCallerCancel(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	p := sqsredrive.NewGatewayProvider(
		sqsredrive.WithConfigLoader(func(ctx context.Context, region, _ string) (aws.Config, error) {
			once.Do(func() { close(entered) })
			<-release
			if err := ctx.Err(); err != nil {
				return aws.Config{}, err
			}
			return aws.Config{Region: region}, nil
		}),
		func(o *sqsredrive.ProviderOptions) {
			o.NewGateway = func(aws.Config, ...func(*sqsredrive.GatewayOptions)) (sqsredrive.Gateway, error) {
				return &mock.Gateway{}, nil
			}
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 2)
	go func() {
		_, err := p.Gateway(ctx, "us-east-1")
		errs <- err
	}()
	<-entered
	go func() {
		_, err := p.Gateway(context.Background(), "us-east-1")
		errs <- err
	}()
	cancel()
	close(release)

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Errorf("Gateway() error = %v, want nil", err)
		}
	}
}

func writeSharedFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestListProfiles(t *testing.T) {
	configFile := writeSharedFile(t, "config", `[default]
region = us-east-1

[profile dev]
region = ap-northeast-1

  [profile staging]  
output = json

[sso-session corp]
sso_region = us-east-1

[services local]
sqs =
  endpoint_url = http://localhost:4566
`)
	credentialsFile := writeSharedFile(t, "credentials", `[default]
aws_access_key_id = AKIDEXAMPLE

[prod]
aws_access_key_id = AKIDEXAMPLE
# [commented]
[dev]
aws_access_key_id = AKIDEXAMPLE
`)
	missing := filepath.Join(t.TempDir(), "missing")

	tests := []struct {
		name  string
		files []string
		want  []string
	}{
		{
			name:  "config and credentials",
			files: []string{configFile, credentialsFile},
			want:  []string{"default", "dev", "prod", "staging"},
		},
		{
			name:  "missing file is skipped",
			files: []string{missing, credentialsFile},
			want:  []string{"default", "dev", "prod"},
		},
		{
			name:  "nothing readable",
			files: []string{missing},
			want:  []string{},
		},
		{
			name: "no files",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sqsredrive.ListProfiles(tt.files...)
			if got == nil {
				t.Fatal("ListProfiles() = nil, want non-nil slice")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ListProfiles() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGatewayProviderProfiles(t *testing.T) {
	credentialsFile := writeSharedFile(t, "credentials", "[prod]\n[default]\n")
	p := sqsredrive.NewGatewayProvider(sqsredrive.WithSharedConfigFiles(credentialsFile))
	if got, want := p.Profiles(), []string{"default", "prod"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Profiles() = %v, want %v", got, want)
	}
}
