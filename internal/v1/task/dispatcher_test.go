package task

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner lets tests control when and how processing finishes.
type stubRunner struct {
	result  *Result
	err     error
	release chan struct{} // Run blocks here when set
}

func (r *stubRunner) Run(ctx context.Context, req Request) (*Result, error) {
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ErrCancelled
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.result != nil {
		return r.result, nil
	}
	return &Result{
		ProcessedData: req.Data + " - processed",
		Message:       "Data processed successfully",
		Timestamp:     time.Now().UnixMilli(),
		Complexity:    req.Complexity,
	}, nil
}

func drain(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
}

func TestSubmitCompletedWithinSLA(t *testing.T) {
	table := NewTable()
	d := NewDispatcher(table, &stubRunner{}, time.Second)

	status, rec := d.Submit(context.Background(), Request{Data: "x", Complexity: 1})
	drain(t, d)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, StatusCompleted, rec.Status)
	require.NotNil(t, rec.Result)
	assert.Equal(t, "x - processed", rec.Result.ProcessedData)
	assert.Equal(t, 1, rec.Result.Complexity)
	assert.True(t, strings.HasPrefix(rec.TaskID, "task-"))
	require.NotNil(t, rec.CompletedAt)
}

func TestSubmitFailedWithinSLA(t *testing.T) {
	table := NewTable()
	d := NewDispatcher(table, &stubRunner{err: errors.New("disk on fire")}, time.Second)

	status, rec := d.Submit(context.Background(), Request{Data: "x", Complexity: 1})
	drain(t, d)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "disk on fire")
	assert.Nil(t, rec.Result)
}

func TestSubmitReturnsHandleAfterSLA(t *testing.T) {
	table := NewTable()
	release := make(chan struct{})
	d := NewDispatcher(table, &stubRunner{release: release}, 20*time.Millisecond)

	status, rec := d.Submit(context.Background(), Request{Data: "y", Complexity: 10})

	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, StatusProcessing, rec.Status)
	assert.Nil(t, rec.Result)
	assert.Nil(t, rec.CompletedAt)

	// The handle resolves to the same task id on later polls
	polled, ok := table.Get(rec.TaskID)
	require.True(t, ok)
	assert.Equal(t, rec.TaskID, polled.TaskID)

	// Background work keeps running and eventually completes the record
	close(release)
	assert.Eventually(t, func() bool {
		polled, ok := table.Get(rec.TaskID)
		return ok && polled.Status == StatusCompleted
	}, time.Second, 5*time.Millisecond)

	polled, _ = table.Get(rec.TaskID)
	require.NotNil(t, polled.Result)
	assert.Equal(t, "y - processed", polled.Result.ProcessedData)
	drain(t, d)
}

func TestSubmitClientCancelDoesNotStopProcessing(t *testing.T) {
	table := NewTable()
	release := make(chan struct{})
	d := NewDispatcher(table, &stubRunner{release: release}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, rec := d.Submit(ctx, Request{Data: "z", Complexity: 5})
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, StatusProcessing, rec.Status)

	// The background task never observed the request context
	close(release)
	assert.Eventually(t, func() bool {
		polled, ok := table.Get(rec.TaskID)
		return ok && polled.Status == StatusCompleted
	}, time.Second, 5*time.Millisecond)
	drain(t, d)
}

func TestSubmitClampsComplexity(t *testing.T) {
	table := NewTable()
	d := NewDispatcher(table, &stubRunner{}, time.Second)

	_, rec := d.Submit(context.Background(), Request{Data: "z", Complexity: 15})
	drain(t, d)

	assert.Equal(t, 10, rec.OriginalRequest.Complexity)
	require.NotNil(t, rec.Result)
	assert.Equal(t, 10, rec.Result.Complexity)
}

func TestSubmitUniqueTaskIDs(t *testing.T) {
	table := NewTable()
	d := NewDispatcher(table, &stubRunner{}, time.Second)

	seen := make(map[string]bool)
	for range 20 {
		_, rec := d.Submit(context.Background(), Request{Data: "x", Complexity: 1})
		assert.False(t, seen[rec.TaskID], "duplicate task id %s", rec.TaskID)
		seen[rec.TaskID] = true
	}
	drain(t, d)
}

func TestShutdownGraceExpires(t *testing.T) {
	table := NewTable()
	release := make(chan struct{})
	d := NewDispatcher(table, &stubRunner{release: release}, 10*time.Millisecond)

	_, rec := d.Submit(context.Background(), Request{Data: "x", Complexity: 10})
	require.Equal(t, StatusProcessing, rec.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Shutdown cancelled the lingering work; the record turns FAILED
	assert.Eventually(t, func() bool {
		polled, ok := table.Get(rec.TaskID)
		return ok && polled.Status == StatusFailed
	}, time.Second, 5*time.Millisecond)
}
