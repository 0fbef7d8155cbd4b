package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

// Task is a product discovered on a listing or category page.
type Task struct {
	Key       string
	WBID      int64
	URL       string
	Name      string
	Retries   int
	CreatedAt time.Time
}

// DedupQueue is a FIFO that accepts each task key once for its lifetime,
// even after the task has been popped.
type DedupQueue struct {
	tasks  []*Task
	seen   map[string]struct{}
	mu     sync.Mutex
	closed bool
}

func NewDedupQueue() *DedupQueue {
	return &DedupQueue{
		tasks: make([]*Task, 0),
		seen:  make(map[string]struct{}),
	}
}

// Push enqueues task and reports whether it was new.
func (q *DedupQueue) Push(task *Task) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrQueueClosed
	}

	if _, ok := q.seen[task.Key]; ok {
		return false, nil
	}
	q.seen[task.Key] = struct{}{}

	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	q.tasks = append(q.tasks, task)

	return true, nil
}

// Retry puts a popped task back at the end of the queue.
func (q *DedupQueue) Retry(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	task.Retries++
	q.tasks = append(q.tasks, task)
	return nil
}

// Pop returns the oldest task without blocking.
func (q *DedupQueue) Pop(ctx context.Context) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		if q.closed {
			return nil, ErrQueueClosed
		}
		return nil, ErrQueueEmpty
	}

	task := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]

	return task, nil
}

func (q *DedupQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *DedupQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	return nil
}
