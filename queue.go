package sqsredrive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// QueueConfiguration is a registered queue: a pointer to an SQS queue with its cached attributes and DLQ linkage.
type QueueConfiguration struct {
	ID         string            `json:"id" dynamodbav:"id"`
	QueueURL   string            `json:"queueUrl" dynamodbav:"queue_url"`
	QueueName  string            `json:"queueName" dynamodbav:"queue_name"`
	Region     string            `json:"region" dynamodbav:"region"`
	Attributes map[string]string `json:"attributes" dynamodbav:"attributes"`
	DLQURL     string            `json:"dlqUrl,omitempty" dynamodbav:"dlq_url,omitempty"`
	DLQName    string            `json:"dlqName,omitempty" dynamodbav:"dlq_name,omitempty"`
	SavedAt    string            `json:"savedAt" dynamodbav:"saved_at"`
}

func (q *QueueConfiguration) HasDLQ() bool {
	return q.DLQURL != ""
}

// ExtractQueueName returns the last path segment of a queue URL.
func ExtractQueueName(queueURL string) string {
	queueURL = strings.TrimRight(queueURL, "/")
	if i := strings.LastIndex(queueURL, "/"); i >= 0 {
		return queueURL[i+1:]
	}
	return queueURL
}

type redrivePolicy struct {
	DeadLetterTargetARN string `json:"deadLetterTargetArn"`
}

// ExtractDLQURL reads the RedrivePolicy attribute of a queue and converts its dead-letter target ARN
// (arn:aws:sqs:<region>:<account>:<name>) into a queue URL. It reports false when the queue has no
// usable redrive policy.
func ExtractDLQURL(attributes map[string]string) (string, bool) {
	raw := attributes["RedrivePolicy"]
	if raw == "" {
		return "", false
	}
	var policy redrivePolicy
	if err := json.Unmarshal([]byte(raw), &policy); err != nil {
		return "", false
	}
	parts := strings.Split(policy.DeadLetterTargetARN, ":")
	if len(parts) < 6 || parts[0] != "arn" || parts[2] != "sqs" {
		return "", false
	}
	region, account, name := parts[3], parts[4], parts[5]
	if region == "" || account == "" || name == "" {
		return "", false
	}
	return fmt.Sprintf("https://sqs.%s.amazonaws.com/%s/%s", region, account, name), true
}

// PrettyPrintJSON indents body when it is valid JSON and returns it unchanged otherwise.
func PrettyPrintJSON(body string) string {
	if !IsValidJSON(body) {
		return body
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(body), "", "  "); err != nil {
		return body
	}
	return buf.String()
}

func IsValidJSON(body string) bool {
	return json.Valid([]byte(body))
}
