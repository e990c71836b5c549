package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/vvatanabe/sqsredrive"
)

const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeQueueNotFound   = "QUEUE_NOT_FOUND"
	CodeAccessDenied    = "ACCESS_DENIED"
	CodeThrottled       = "THROTTLED"
	CodePurgeInProgress = "PURGE_IN_PROGRESS"
	CodeAWS             = "AWS_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	ErrorCode string  `json:"errorCode"`
	Message   string  `json:"message"`
	Details   *string `json:"details"`
}

type badRequestError struct {
	msg string
}

func (e badRequestError) Error() string {
	return e.msg
}

var (
	accountIDPattern = regexp.MustCompile(`\d{12}`)
	accessKeyPattern = regexp.MustCompile(`AKIA[0-9A-Z]{16}`)
)

// Redact masks AWS account IDs and access key IDs.
func Redact(s string) string {
	s = accountIDPattern.ReplaceAllString(s, "************")
	return accessKeyPattern.ReplaceAllString(s, "AKIA****************")
}

func redacted(err error) *string {
	s := Redact(err.Error())
	return &s
}

func classify(err error) (int, ErrorResponse) {
	var (
		badRequest     badRequestError
		configNotFound sqsredrive.QueueConfigNotFoundError
		dlqMissing     sqsredrive.DLQNotConfiguredError
		queueNotFound  sqsredrive.QueueNotFoundError
		purging        sqsredrive.PurgeInProgressError
	)
	switch {
	case errors.As(err, &badRequest), sqsredrive.IsContractViolation(err), errors.As(err, &dlqMissing):
		return http.StatusBadRequest, ErrorResponse{ErrorCode: CodeValidation, Message: err.Error()}
	case errors.As(err, &configNotFound):
		return http.StatusNotFound, ErrorResponse{ErrorCode: CodeQueueNotFound, Message: "Queue not found."}
	case errors.As(err, &queueNotFound):
		return http.StatusNotFound, ErrorResponse{
			ErrorCode: CodeQueueNotFound,
			Message:   "Queue not found. Verify the queue name and your AWS permissions.",
			Details:   redacted(err),
		}
	case errors.As(err, &purging):
		return http.StatusTooManyRequests, ErrorResponse{ErrorCode: CodePurgeInProgress, Message: purging.Error()}
	}
	switch code := sqsredrive.ErrorCode(err); code {
	case "":
		return http.StatusInternalServerError, ErrorResponse{
			ErrorCode: CodeInternal,
			Message:   "An error occurred.",
			Details:   redacted(err),
		}
	case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation":
		return http.StatusForbidden, ErrorResponse{
			ErrorCode: CodeAccessDenied,
			Message:   "Access denied. Check your AWS credentials and permissions.",
			Details:   redacted(err),
		}
	case "Throttling", "ThrottlingException", "RequestLimitExceeded", "RequestThrottled":
		return http.StatusTooManyRequests, ErrorResponse{
			ErrorCode: CodeThrottled,
			Message:   "Request throttled. Please try again later.",
			Details:   redacted(err),
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			ErrorCode: CodeAWS,
			Message:   "AWS service error.",
			Details:   redacted(err),
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	entry := s.logger.WithError(err).WithField("path", r.URL.Path)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
