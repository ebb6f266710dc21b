package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueRunsSubmittedTasks(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]int)
	done := make(chan struct{}, 4)

	q := NewQueue("test", func(_ context.Context, task Task) error {
		mu.Lock()
		seen[task.ID]++
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, Options{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Submit(Task{ID: id, Kind: "render"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for tasks")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, seen)
}

func TestQueueRetriesUntilBudgetExhausted(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{}, 8)

	q := NewQueue("test", func(_ context.Context, _ Task) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		done <- struct{}{}
		return errors.New("render failed")
	}, Options{Workers: 1, MaxRetries: 2, RetryBackoff: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Submit(Task{ID: "a", Kind: "render"}))

	// Initial attempt plus two retries.
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for attempts")
		}
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, attempts)
}

func TestSubmitFailsWhenStopped(t *testing.T) {
	q := NewQueue("test", func(_ context.Context, _ Task) error { return nil }, Options{})
	require.Error(t, q.Submit(Task{ID: "a"}))

	q.Start(context.Background())
	q.Stop()
	require.Error(t, q.Submit(Task{ID: "a"}))
}
