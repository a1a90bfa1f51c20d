package host

import (
	"fmt"
	"sync"
	"time"
)

// queue is the only structure shared between callers and the worker. It is unbounded so
// that plugin callbacks made on the worker goroutine itself can never block on it.
type queue struct {
	mu      sync.Mutex
	pending []command
	closed  bool
	err     error

	notify chan struct{}
	done   chan struct{}
}

func newQueue() *queue {
	return &queue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (q *queue) push(c command) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return q.closedErr()
	}
	q.pending = append(q.pending, c)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// drain takes every pending command in FIFO order without blocking.
func (q *queue) drain() []command {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmds := q.pending
	q.pending = nil
	return cmds
}

// wait blocks until a command is pushed or d elapses.
func (q *queue) wait(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-q.notify:
	case <-t.C:
	}
}

// terminate closes the queue for good. Commands still pending are answered with the
// terminal error so that no caller stays blocked.
func (q *queue) terminate(err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.err = err
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, c := range pending {
		if ch := replyChan(c); ch != nil {
			ch <- failedReply{err: q.closedErr()}
		}
	}
	close(q.done)
}

func (q *queue) cause() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

func (q *queue) closedErr() error {
	if q.err != nil {
		return fmt.Errorf("%w: %w", ErrSessionClosed, q.err)
	}
	return ErrSessionClosed
}

// call pushes c and waits for its reply. The worker terminating is reported as
// ErrSessionClosed.
func (q *queue) call(c command, ch chan reply) (reply, error) {
	if err := q.push(c); err != nil {
		return nil, err
	}
	select {
	case r := <-ch:
		return r, nil
	case <-q.done:
		select {
		case r := <-ch:
			return r, nil
		default:
		}
		q.mu.Lock()
		defer q.mu.Unlock()
		return nil, q.closedErr()
	}
}
