package cmd

import (
	"github.com/spf13/cobra"
	"github.com/vvatanabe/sqsredrive/internal/config"
	"github.com/vvatanabe/sqsredrive/internal/constant"
)

var flgs = &Flags{}

type Flags struct {
	ConfigPath          string
	Region              string
	Profile             string
	EndpointURL         string
	TableName           string
	DynamoDBEndpointURL string
	LogLevel            string
	LogFormat           string
	Addr                string

	QueueID           string
	Queue             string
	QueueURL          string
	DLQURL            string
	ReceiptHandle     string
	Body              string
	Max               int
	All               bool
	DLQ               bool
	VisibilityTimeout int
}

var flagMap = FlagMap{
	ConfigPath: FlagSet[string]{
		Name:  "config",
		Usage: "Path to a YAML config file. Defaults to ./config.yaml or config/config.yaml when present.",
		Value: "",
	},
	Region: FlagSet[string]{
		Name:  "region",
		Usage: "AWS region used when a queue does not name one.",
		Value: "",
	},
	Profile: FlagSet[string]{
		Name:  "profile",
		Usage: "AWS shared config profile. Overrides the profile saved in the registry.",
		Value: "",
	},
	EndpointURL: FlagSet[string]{
		Name:  "endpoint-url",
		Usage: "Override the SQS and STS endpoint URL, e.g. for LocalStack.",
		Value: "",
	},
	TableName: FlagSet[string]{
		Name:  "table-name",
		Usage: "The name of the DynamoDB table that stores registered queues. (default \"" + constant.DefaultTableName + "\")",
		Value: "",
	},
	DynamoDBEndpointURL: FlagSet[string]{
		Name:  "dynamodb-endpoint-url",
		Usage: "Override the DynamoDB endpoint URL.",
		Value: "",
	},
	LogLevel: FlagSet[string]{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn or error.",
		Value: "",
	},
	LogFormat: FlagSet[string]{
		Name:  "log-format",
		Usage: "Log format: text or json.",
		Value: "",
	},
	Addr: FlagSet[string]{
		Name:  "addr",
		Usage: "Address the API server listens on. (default \"" + constant.DefaultServerAddr + "\")",
		Value: "",
	},
	QueueID: FlagSet[string]{
		Name:  "queue-id",
		Usage: "ID of a registered queue.",
		Value: "",
	},
	Queue: FlagSet[string]{
		Name:  "queue",
		Usage: "Queue name or URL to register.",
		Value: "",
	},
	QueueURL: FlagSet[string]{
		Name:  "queue-url",
		Usage: "URL of the main queue messages are moved back to.",
		Value: "",
	},
	DLQURL: FlagSet[string]{
		Name:  "dlq-url",
		Usage: "URL of the dead-letter queue messages are moved from.",
		Value: "",
	},
	ReceiptHandle: FlagSet[string]{
		Name:  "receipt-handle",
		Usage: "Receipt handle of a received message.",
		Value: "",
	},
	Body: FlagSet[string]{
		Name:  "body",
		Usage: "Message body.",
		Value: "",
	},
	Max: FlagSet[int]{
		Name:  "max",
		Usage: "Maximum number of messages.",
		Value: 1,
	},
	All: FlagSet[bool]{
		Name:  "all",
		Usage: "Redrive every message in the DLQ. Takes precedence over --max.",
		Value: false,
	},
	DLQ: FlagSet[bool]{
		Name:  "dlq",
		Usage: "Operate on the dead-letter queue of the registered queue.",
		Value: false,
	},
	VisibilityTimeout: FlagSet[int]{
		Name:  "visibility-timeout",
		Usage: "Visibility timeout in seconds.",
		Value: 0,
	},
}

type FlagSet[T any] struct {
	Name  string
	Usage string
	Value T
}

type FlagMap struct {
	ConfigPath          FlagSet[string]
	Region              FlagSet[string]
	Profile             FlagSet[string]
	EndpointURL         FlagSet[string]
	TableName           FlagSet[string]
	DynamoDBEndpointURL FlagSet[string]
	LogLevel            FlagSet[string]
	LogFormat           FlagSet[string]
	Addr                FlagSet[string]
	QueueID             FlagSet[string]
	Queue               FlagSet[string]
	QueueURL            FlagSet[string]
	DLQURL              FlagSet[string]
	ReceiptHandle       FlagSet[string]
	Body                FlagSet[string]
	Max                 FlagSet[int]
	All                 FlagSet[bool]
	DLQ                 FlagSet[bool]
	VisibilityTimeout   FlagSet[int]
}

func setDefaultFlags(c *cobra.Command, flgs *Flags) {
	c.Flags().StringVar(&flgs.ConfigPath, flagMap.ConfigPath.Name, flagMap.ConfigPath.Value, flagMap.ConfigPath.Usage)
	c.Flags().StringVar(&flgs.Region, flagMap.Region.Name, flagMap.Region.Value, flagMap.Region.Usage)
	c.Flags().StringVar(&flgs.Profile, flagMap.Profile.Name, flagMap.Profile.Value, flagMap.Profile.Usage)
	c.Flags().StringVar(&flgs.EndpointURL, flagMap.EndpointURL.Name, flagMap.EndpointURL.Value, flagMap.EndpointURL.Usage)
	c.Flags().StringVar(&flgs.TableName, flagMap.TableName.Name, flagMap.TableName.Value, flagMap.TableName.Usage)
	c.Flags().StringVar(&flgs.DynamoDBEndpointURL, flagMap.DynamoDBEndpointURL.Name, flagMap.DynamoDBEndpointURL.Value, flagMap.DynamoDBEndpointURL.Usage)
	c.Flags().StringVar(&flgs.LogLevel, flagMap.LogLevel.Name, flagMap.LogLevel.Value, flagMap.LogLevel.Usage)
	c.Flags().StringVar(&flgs.LogFormat, flagMap.LogFormat.Name, flagMap.LogFormat.Value, flagMap.LogFormat.Usage)
}

func setQueueIDFlag(c *cobra.Command, flgs *Flags) {
	c.Flags().StringVar(&flgs.QueueID, flagMap.QueueID.Name, flagMap.QueueID.Value, flagMap.QueueID.Usage)
}

func setMaxFlag(c *cobra.Command, flgs *Flags) {
	c.Flags().IntVar(&flgs.Max, flagMap.Max.Name, flagMap.Max.Value, flagMap.Max.Usage)
}

// Config resolves the effective configuration: defaults, config file, environment, then the flags that were set.
func (f *Flags) Config(getenv func(string) string) (*config.Config, error) {
	cfg, err := config.Load(f.ConfigPath, getenv)
	if err != nil {
		return nil, err
	}
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.AWS.Region, f.Region)
	override(&cfg.AWS.Profile, f.Profile)
	override(&cfg.AWS.SQSEndpointURL, f.EndpointURL)
	override(&cfg.Registry.TableName, f.TableName)
	override(&cfg.Registry.EndpointURL, f.DynamoDBEndpointURL)
	override(&cfg.Log.Level, f.LogLevel)
	override(&cfg.Log.Format, f.LogFormat)
	override(&cfg.Server.Addr, f.Addr)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
