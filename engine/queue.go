package engine

import (
	"context"
	"sync"
)

// commandQueue is an unbounded FIFO with a single consumer. Enqueue never
// blocks; Dequeue waits for an item or for ctx to end.
type commandQueue struct {
	mu     sync.Mutex
	queue  []Command
	cond   *sync.Cond
	closed bool
}

func newCommandQueue() *commandQueue {
	q := &commandQueue{
		queue: make([]Command, 0),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *commandQueue) Enqueue(cmd Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrEngineOffline
	}
	q.queue = append(q.queue, cmd)
	q.cond.Signal()
	return nil
}

func (q *commandQueue) Dequeue(ctx context.Context) (Command, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return Command{}, ctx.Err()
		default:
		}

		if q.closed {
			return Command{}, ErrEngineOffline
		}

		if len(q.queue) > 0 {
			cmd := q.queue[0]
			q.queue[0] = Command{}
			q.queue = q.queue[1:]
			return cmd, nil
		}

		// Wait for an item
		done := make(chan struct{})
		stop := context.AfterFunc(ctx, func() {
			q.mu.Lock()
			defer q.mu.Unlock()
			q.cond.Broadcast()
			close(done)
		})
		q.cond.Wait()
		if !stop() {
			// The context ended while waiting: wait for the callback so
			// done is closed before we report it.
			q.mu.Unlock()
			<-done
			q.mu.Lock()
			return Command{}, ctx.Err()
		}
	}
}

// Close wakes the consumer and rejects further commands. Pending commands
// are dropped.
func (q *commandQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.queue = nil
	q.cond.Broadcast()
}

func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}
