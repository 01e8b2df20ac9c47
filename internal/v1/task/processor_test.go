package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessorRun(t *testing.T) {
	var slept time.Duration
	p := &Processor{
		now: func() time.Time { return time.UnixMilli(5000) },
		sleep: func(_ context.Context, d time.Duration) error {
			slept = d
			return nil
		},
	}

	result, err := p.Run(context.Background(), Request{Data: "hello", Complexity: 3})
	require.NoError(t, err)

	assert.Equal(t, ProcessingDuration(3), slept)
	assert.Equal(t, "hello - processed", result.ProcessedData)
	assert.Equal(t, "Data processed successfully", result.Message)
	assert.Equal(t, int64(5000), result.Timestamp)
	assert.Equal(t, 3, result.Complexity)
}

func TestProcessorRunIsDeterministic(t *testing.T) {
	p := &Processor{
		now:   time.Now,
		sleep: func(context.Context, time.Duration) error { return nil },
	}

	first, err := p.Run(context.Background(), Request{Data: "x", Complexity: 2})
	require.NoError(t, err)
	second, err := p.Run(context.Background(), Request{Data: "x", Complexity: 2})
	require.NoError(t, err)

	assert.Equal(t, first.ProcessedData, second.ProcessedData)
}

func TestProcessorRunCancelled(t *testing.T) {
	p := NewProcessor()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Run(ctx, Request{Data: "x", Complexity: 10})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestSleepContextCompletes(t *testing.T) {
	err := sleepContext(context.Background(), time.Millisecond)
	assert.NoError(t, err)
}
