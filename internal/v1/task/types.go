// Package task implements the SLA-bounded asynchronous processing core:
// the task registry, the synthetic processor, and the dispatcher that
// races processing against the response deadline.
package task

// Status is the lifecycle state of a task. Transitions are one-way:
// PROCESSING moves to exactly one of COMPLETED or FAILED.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

const (
	// MinComplexity and MaxComplexity bound the accepted complexity scale.
	MinComplexity = 1
	MaxComplexity = 10
)

// Request is the accepted processing request. Immutable after Normalize.
type Request struct {
	Data       string `json:"data"`
	Complexity int    `json:"complexity"`
}

// Normalize clamps the complexity onto the [1,10] scale. A missing or
// out-of-range value is pulled to the nearest bound.
func (r *Request) Normalize() {
	if r.Complexity < MinComplexity {
		r.Complexity = MinComplexity
	}
	if r.Complexity > MaxComplexity {
		r.Complexity = MaxComplexity
	}
}

// Result is the outcome of a successfully processed request.
type Result struct {
	ProcessedData string `json:"processedData"`
	Message       string `json:"message"`
	Timestamp     int64  `json:"timestamp"`
	Complexity    int    `json:"complexity"`
}

// Record tracks one accepted request through its lifecycle. Timestamps are
// epoch milliseconds. CompletedAt is set exactly when the status turns
// terminal.
type Record struct {
	TaskID          string  `json:"taskId"`
	Status          Status  `json:"status"`
	Result          *Result `json:"result,omitempty"`
	ErrorMessage    string  `json:"errorMessage,omitempty"`
	CreatedAt       int64   `json:"createdAt"`
	CompletedAt     *int64  `json:"completedAt,omitempty"`
	OriginalRequest Request `json:"originalRequest"`
}
