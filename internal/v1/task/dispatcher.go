package task

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streamhub-labs/streamhub/internal/v1/logging"
	"github.com/streamhub-labs/streamhub/internal/v1/metrics"
)

// Runner executes the synthetic workload for one request.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// Dispatcher accepts processing requests, runs the processor in the
// background, and answers within the SLA deadline either with the finished
// record or with a PROCESSING handle. Background work is tied to the
// dispatcher's lifecycle, never to the request: a client timeout or
// disconnect must not interrupt processing.
type Dispatcher struct {
	table *Table
	proc  Runner
	sla   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

// NewDispatcher creates a dispatcher around the given table and processor.
func NewDispatcher(table *Table, proc Runner, sla time.Duration) *Dispatcher {
	d := &Dispatcher{
		table: table,
		proc:  proc,
		sla:   sla,
		now:   time.Now,
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Submit registers the request, starts background processing, and waits for
// the earlier of completion and the SLA deadline. The returned HTTP status
// is 200 (completed), 500 (failed), or 202 (still processing; the record is
// a handle for polling).
func (d *Dispatcher) Submit(ctx context.Context, req Request) (int, Record) {
	req.Normalize()

	taskID := "task-" + uuid.NewString()
	ctx = context.WithValue(ctx, logging.TaskIDKey, taskID)

	rec := Record{
		TaskID:          taskID,
		Status:          StatusProcessing,
		CreatedAt:       d.now().UnixMilli(),
		OriginalRequest: req,
	}
	if err := d.table.InsertInitial(rec); err != nil {
		// uuid collision is not a realistic branch; surface it as a failure
		logging.Error(ctx, "Failed to register task", zap.Error(err))
		rec.Status = StatusFailed
		rec.ErrorMessage = err.Error()
		return http.StatusInternalServerError, rec
	}

	logging.Info(ctx, "Task initialized",
		zap.Int("complexity", req.Complexity),
		zap.Duration("estimatedDuration", ProcessingDuration(req.Complexity)))

	done := d.launch(taskID, req)

	timer := time.NewTimer(d.sla)
	defer timer.Stop()

	select {
	case err := <-done:
		current, _ := d.table.Get(taskID)
		if err != nil {
			return http.StatusInternalServerError, current
		}
		logging.Info(ctx, "Task completed within SLA", zap.Duration("sla", d.sla))
		return http.StatusOK, current
	case <-timer.C:
		logging.Info(ctx, "Task exceeded SLA, returning handle for background processing", zap.Duration("sla", d.sla))
		metrics.TaskSLAExceeded.Inc()
		current, _ := d.table.Get(taskID)
		return http.StatusAccepted, current
	case <-ctx.Done():
		// Client gave up early. Processing continues untouched; the handle
		// is still the right answer for anyone who reads the response.
		current, _ := d.table.Get(taskID)
		return http.StatusAccepted, current
	}
}

// launch starts the background processing goroutine. The goroutine observes
// only the dispatcher's own context, so request cancellation cannot stop it.
func (d *Dispatcher) launch(taskID string, req Request) <-chan error {
	done := make(chan error, 1)
	bgCtx := context.WithValue(d.ctx, logging.TaskIDKey, taskID)

	metrics.TasksInFlight.Inc()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer metrics.TasksInFlight.Dec()

		started := d.now()
		result, err := d.proc.Run(bgCtx, req)
		metrics.TaskProcessingDuration.Observe(d.now().Sub(started).Seconds())

		if err != nil {
			logging.Error(bgCtx, "Background processing failed", zap.Error(err))
			d.table.MarkFailed(taskID, "Processing failed: "+err.Error(), d.now().UnixMilli())
			metrics.TasksTotal.WithLabelValues(string(StatusFailed)).Inc()
			done <- err
			return
		}

		logging.Info(bgCtx, "Background processing completed")
		d.table.MarkCompleted(taskID, *result, d.now().UnixMilli())
		metrics.TasksTotal.WithLabelValues(string(StatusCompleted)).Inc()
		done <- nil
	}()
	return done
}

// Shutdown waits for in-flight processing to finish. When the grace context
// expires first, remaining work is cancelled and the context error returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		d.wg.Wait()
	}()

	select {
	case <-finished:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}
