package constant

import "time"

const (
	DefaultTableName                  = "sqs-redrive-table"
	DefaultRetryMaxAttempts           = 10
	DefaultRegion                     = "us-east-1"
	DefaultServerAddr                 = ":8080"
	DefaultShutdownTimeout            = 10 * time.Second
	DefaultMetricsPath                = "/metrics"
	MaxReceiveBatchSize               = 10
	MaxVisibilityTimeoutInSeconds     = 43200
	DefaultVisibilityTimeoutInSeconds = 30
	ProfilePreferenceKey              = "aws.profile"
)
