package sqsredrive

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

type QueueURLNotProvidedError struct{}

func (e QueueURLNotProvidedError) Error() string {
	return "Queue URL was not provided."
}

type EmptySelectionError struct{}

func (e EmptySelectionError) Error() string {
	return "No messages provided for selective redrive."
}

type ReceiptHandleNotProvidedError struct {
	MessageID string
}

func (e ReceiptHandleNotProvidedError) Error() string {
	return fmt.Sprintf("Receipt handle is required for message: %s.", e.MessageID)
}

type InvalidBatchSizeError struct {
	Size int
}

func (e InvalidBatchSizeError) Error() string {
	return fmt.Sprintf("Batch size must be between 1 and 10: %d.", e.Size)
}

type InvalidVisibilityTimeoutError struct {
	VisibilityTimeout int
}

func (e InvalidVisibilityTimeoutError) Error() string {
	return fmt.Sprintf("Visibility timeout must be between 0 and 43200 seconds: %d.", e.VisibilityTimeout)
}

type QueueNotFoundError struct {
	Identifier string
	Cause      error
}

func (e QueueNotFoundError) Error() string {
	return fmt.Sprintf("Queue not found: %s.", e.Identifier)
}

func (e QueueNotFoundError) Unwrap() error {
	return e.Cause
}

type PurgeInProgressError struct {
	Cause error
}

func (e PurgeInProgressError) Error() string {
	return "Queue was recently purged. AWS allows purge operations once every 60 seconds."
}

func (e PurgeInProgressError) Unwrap() error {
	return e.Cause
}

type SQSAPIError struct {
	Code  string
	Cause error
}

func (e SQSAPIError) Error() string {
	return fmt.Sprintf("Failed SQS API: %v.", e.Cause)
}

func (e SQSAPIError) Unwrap() error {
	return e.Cause
}

type DynamoDBAPIError struct {
	Cause error
}

func (e DynamoDBAPIError) Error() string {
	return fmt.Sprintf("Failed DynamoDB API: %v.", e.Cause)
}

func (e DynamoDBAPIError) Unwrap() error {
	return e.Cause
}

type BuildingExpressionError struct {
	Cause error
}

func (e BuildingExpressionError) Error() string {
	return fmt.Sprintf("Failed to build expression: %v.", e.Cause)
}

type UnmarshalingAttributeError struct {
	Cause error
}

func (e UnmarshalingAttributeError) Error() string {
	return fmt.Sprintf("Failed to unmarshal: %v.", e.Cause)
}

type MarshalingAttributeError struct {
	Cause error
}

func (e MarshalingAttributeError) Error() string {
	return fmt.Sprintf("Failed to marshal: %v.", e.Cause)
}

type QueueConfigNotFoundError struct {
	ID string
}

func (e QueueConfigNotFoundError) Error() string {
	return fmt.Sprintf("Queue configuration was not found: %s.", e.ID)
}

type DLQNotConfiguredError struct {
	ID string
}

func (e DLQNotConfiguredError) Error() string {
	return fmt.Sprintf("Queue does not have a DLQ configured: %s.", e.ID)
}

type CredentialsError struct {
	Cause error
}

func (e CredentialsError) Error() string {
	return fmt.Sprintf("Failed to verify AWS credentials: %v.", e.Cause)
}

func (e CredentialsError) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the AWS error code carried by err, or "" when err did not come from an AWS API.
func ErrorCode(err error) string {
	var sqsAPIError SQSAPIError
	if errors.As(err, &sqsAPIError) && sqsAPIError.Code != "" {
		return sqsAPIError.Code
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsContractViolation reports whether err was caused by invalid caller input rather than by the queue service.
func IsContractViolation(err error) bool {
	var (
		queueURLNotProvidedError      QueueURLNotProvidedError
		emptySelectionError           EmptySelectionError
		receiptHandleNotProvidedError ReceiptHandleNotProvidedError
		invalidBatchSizeError         InvalidBatchSizeError
		invalidVisibilityTimeoutError InvalidVisibilityTimeoutError
	)
	switch {
	case errors.As(err, &queueURLNotProvidedError),
		errors.As(err, &emptySelectionError),
		errors.As(err, &receiptHandleNotProvidedError),
		errors.As(err, &invalidBatchSizeError),
		errors.As(err, &invalidVisibilityTimeoutError):
		return true
	default:
		return false
	}
}

type ConditionalCheckFailedError struct {
	Cause error
}

func (e ConditionalCheckFailedError) Error() string {
	return fmt.Sprintf("Condition on the queue configuration was not met: %v.", e.Cause)
}

func (e ConditionalCheckFailedError) Unwrap() error {
	return e.Cause
}
