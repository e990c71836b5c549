package sqsredrive

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is the result of moving a single message: Succeeded(id) or Failed(id, detail).
type Outcome struct {
	Kind      OutcomeKind
	MessageID string
	Detail    string
}

func Succeeded(messageID string) Outcome {
	return Outcome{Kind: OutcomeSuccess, MessageID: messageID}
}

func Failed(messageID string, err error) Outcome {
	o := Outcome{Kind: OutcomeFailure, MessageID: messageID}
	if err != nil {
		o.Detail = err.Error()
	}
	return o
}

type SucceededMessage struct {
	MessageID string `json:"messageId"`
}

type FailedMessage struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

// RedriveResult accumulates the outcomes of one redrive invocation.
// It is not safe for concurrent use; each invocation owns its own result.
type RedriveResult struct {
	ProcessedCount int                `json:"processedCount"`
	SuccessCount   int                `json:"successCount"`
	FailureCount   int                `json:"failureCount"`
	Succeeded      []SucceededMessage `json:"succeeded"`
	Failed         []FailedMessage    `json:"failed"`
	// ReceiveError is set when a bulk redrive stopped early because the DLQ could not be read.
	ReceiveError string `json:"receiveError,omitempty"`
}

func NewRedriveResult() *RedriveResult {
	return &RedriveResult{
		Succeeded: make([]SucceededMessage, 0),
		Failed:    make([]FailedMessage, 0),
	}
}

func (r *RedriveResult) RecordSuccess(messageID string) {
	r.SuccessCount++
	r.Succeeded = append(r.Succeeded, SucceededMessage{MessageID: messageID})
}

func (r *RedriveResult) RecordFailure(messageID, detail string) {
	r.FailureCount++
	r.Failed = append(r.Failed, FailedMessage{MessageID: messageID, Error: detail})
}

func (r *RedriveResult) Record(o Outcome) {
	switch o.Kind {
	case OutcomeSuccess:
		r.RecordSuccess(o.MessageID)
	case OutcomeFailure:
		r.RecordFailure(o.MessageID, o.Detail)
	}
}

func (r *RedriveResult) markProcessed() {
	r.ProcessedCount++
}

// Redact returns a copy of the result whose failure details have been passed through fn.
func (r *RedriveResult) Redact(fn func(string) string) *RedriveResult {
	cp := *r
	cp.Succeeded = append(make([]SucceededMessage, 0, len(r.Succeeded)), r.Succeeded...)
	cp.Failed = make([]FailedMessage, 0, len(r.Failed))
	for _, f := range r.Failed {
		cp.Failed = append(cp.Failed, FailedMessage{MessageID: f.MessageID, Error: fn(f.Error)})
	}
	if cp.ReceiveError != "" {
		cp.ReceiveError = fn(cp.ReceiveError)
	}
	return &cp
}
