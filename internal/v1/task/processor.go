package task

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrCancelled is returned when processing is interrupted by processor
// shutdown. Request cancellation never reaches the processor.
var ErrCancelled = errors.New("processing cancelled")

const resultMessage = "Data processed successfully"

// ProcessingDuration maps a complexity on the [1,10] scale to a synthetic
// work duration. Complexity 1 yields 6s, complexity 10 yields 60s.
func ProcessingDuration(complexity int) time.Duration {
	factor := float64(complexity-1)/9.0*0.9 + 0.1
	ms := int64(math.Ceil(factor * 60000))
	return time.Duration(ms) * time.Millisecond
}

// Processor executes one unit of synthetic work. The clock and sleep are
// injectable so tests run without real delays.
type Processor struct {
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewProcessor creates a processor backed by the wall clock.
func NewProcessor() *Processor {
	return &Processor{
		now:   time.Now,
		sleep: sleepContext,
	}
}

// Run performs the synthetic workload for a normalized request. The context
// belongs to the processor's own lifecycle; cancelling it aborts the sleep
// and yields ErrCancelled.
func (p *Processor) Run(ctx context.Context, req Request) (*Result, error) {
	if err := p.sleep(ctx, ProcessingDuration(req.Complexity)); err != nil {
		return nil, err
	}

	return &Result{
		ProcessedData: req.Data + " - processed",
		Message:       resultMessage,
		Timestamp:     p.now().UnixMilli(),
		Complexity:    req.Complexity,
	}, nil
}

// sleepContext blocks for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ErrCancelled
	}
}
