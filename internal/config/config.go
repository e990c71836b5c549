// Package config loads settings with precedence: defaults, then a YAML file, then environment variables.
// Command line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/vvatanabe/sqsredrive/internal/constant"
	"github.com/vvatanabe/sqsredrive/internal/log"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "SQSREDRIVE_"

// DefaultPaths are searched in order when no config file is named.
var DefaultPaths = []string{"./config.yaml", "config/config.yaml"}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	AWS      AWSConfig      `yaml:"aws"`
	Registry RegistryConfig `yaml:"registry"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type AWSConfig struct {
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"`
	// SQSEndpointURL points SQS and STS at an emulator such as LocalStack.
	SQSEndpointURL   string `yaml:"sqs_endpoint_url"`
	RetryMaxAttempts int    `yaml:"retry_max_attempts"`
}

type RegistryConfig struct {
	TableName   string `yaml:"table_name"`
	EndpointURL string `yaml:"endpoint_url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            constant.DefaultServerAddr,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0,
			ShutdownTimeout: constant.DefaultShutdownTimeout,
		},
		AWS: AWSConfig{
			Region:           constant.DefaultRegion,
			RetryMaxAttempts: constant.DefaultRetryMaxAttempts,
		},
		Registry: RegistryConfig{
			TableName: constant.DefaultTableName,
		},
		Log: LogConfig{
			Level:  "info",
			Format: log.FormatText,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    constant.DefaultMetricsPath,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path and the environment.
// An empty path searches DefaultPaths and tolerates their absence; a named file must exist.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	if path != "" {
		return c.decodeFile(path)
	}
	for _, p := range DefaultPaths {
		err := c.decodeFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return err
	}
	return nil
}

func (c *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from SQSREDRIVE_* variables. AWS_REGION, AWS_PROFILE and LOG_LEVEL are
// honoured too, with the prefixed names taking precedence.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	setString := func(dst *string, names ...string) {
		for _, name := range names {
			if v := getenv(name); v != "" {
				*dst = v
				return
			}
		}
	}
	setString(&c.Server.Addr, EnvPrefix+"ADDR")
	setString(&c.AWS.Region, EnvPrefix+"REGION", "AWS_REGION")
	setString(&c.AWS.Profile, EnvPrefix+"PROFILE", "AWS_PROFILE")
	setString(&c.AWS.SQSEndpointURL, EnvPrefix+"SQS_ENDPOINT_URL")
	setString(&c.Registry.TableName, EnvPrefix+"TABLE_NAME")
	setString(&c.Registry.EndpointURL, EnvPrefix+"DYNAMODB_ENDPOINT_URL")
	setString(&c.Log.Level, EnvPrefix+"LOG_LEVEL", "LOG_LEVEL")
	setString(&c.Log.Format, EnvPrefix+"LOG_FORMAT")
	setString(&c.Metrics.Path, EnvPrefix+"METRICS_PATH")

	if v := getenv(EnvPrefix + "RETRY_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRETRY_MAX_ATTEMPTS: %w", EnvPrefix, err)
		}
		c.AWS.RetryMaxAttempts = n
	}
	if v := getenv(EnvPrefix + "METRICS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sMETRICS_ENABLED: %w", EnvPrefix, err)
		}
		c.Metrics.Enabled = b
	}
	if v := getenv(EnvPrefix + "SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSHUTDOWN_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Server.ShutdownTimeout = d
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.AWS.Region == "" {
		errs = append(errs, errors.New("aws.region is required"))
	}
	if c.AWS.RetryMaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("aws.retry_max_attempts must not be negative: %d", c.AWS.RetryMaxAttempts))
	}
	if c.Registry.TableName == "" {
		errs = append(errs, errors.New("registry.table_name is required"))
	}
	switch c.Log.Format {
	case log.FormatText, log.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format must be %q or %q: %q", log.FormatText, log.FormatJSON, c.Log.Format))
	}
	if c.Metrics.Enabled && (c.Metrics.Path == "" || c.Metrics.Path[0] != '/') {
		errs = append(errs, fmt.Errorf("metrics.path must start with '/': %q", c.Metrics.Path))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	return errors.Join(errs...)
}
