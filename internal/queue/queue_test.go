package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupQueueFIFO(t *testing.T) {
	q := NewDedupQueue()
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		added, err := q.Push(&Task{Key: key})
		require.NoError(t, err)
		assert.True(t, added)
	}
	assert.Equal(t, 3, q.Size())

	for _, want := range []string{"a", "b", "c"} {
		task, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, task.Key)
		assert.False(t, task.CreatedAt.IsZero())
	}

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestDedupQueueRejectsSeenKeys(t *testing.T) {
	q := NewDedupQueue()
	ctx := context.Background()

	added, err := q.Push(&Task{Key: "https://www.wildberries.ru/catalog/1/detail.aspx"})
	require.NoError(t, err)
	assert.True(t, added)

	_, err = q.Pop(ctx)
	require.NoError(t, err)

	added, err = q.Push(&Task{Key: "https://www.wildberries.ru/catalog/1/detail.aspx"})
	require.NoError(t, err)
	assert.False(t, added)
	assert.Zero(t, q.Size())
}

func TestDedupQueueRetry(t *testing.T) {
	q := NewDedupQueue()
	ctx := context.Background()

	_, err := q.Push(&Task{Key: "a"})
	require.NoError(t, err)
	_, err = q.Push(&Task{Key: "b"})
	require.NoError(t, err)

	task, err := q.Pop(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Retry(task))

	next, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", next.Key)

	again, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Key)
	assert.Equal(t, 1, again.Retries)
}

func TestDedupQueueClosed(t *testing.T) {
	q := NewDedupQueue()
	require.NoError(t, q.Close())

	_, err := q.Push(&Task{Key: "a"})
	assert.ErrorIs(t, err, ErrQueueClosed)

	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDedupQueueCancelledContext(t *testing.T) {
	q := NewDedupQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
