package memconn

import (
	"context"
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Listener accepts connections over a shared memory region, one at a time.
type Listener struct {
	region *region
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	ops    sync.WaitGroup
}

var _ net.Listener = (*Listener)(nil)

// Listen maps the file at path and resets its header. Invalid parameters panic.
func Listen(path string, ringSize int, offset int, logger *zap.Logger) (*Listener, error) {
	checkParams(path, ringSize, offset)
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("memconn")

	r, err := openRegion(path, ringSize, offset, logger)
	if err != nil {
		return nil, err
	}
	r.setConnected(0, false)
	r.setConnected(1, false)
	for i := 0; i < 2; i++ {
		atomic.StoreUint64(r.readIndex(i), 0)
		atomic.StoreUint64(r.writeIndex(i), 0)
	}
	atomic.StoreUint64(r.challenge(), 0)
	atomic.StoreUint64(r.answer(), 0)
	return &Listener{region: r, logger: logger}, nil
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Accept waits for the previous connection to end, posts a challenge and returns once a
// dialer answered it.
func (l *Listener) Accept() (net.Conn, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	l.ops.Add(1)
	l.mu.Unlock()
	defer l.ops.Done()

	r := l.region
	if r.anyConnected() {
		l.logger.Debug("handshake: wait for end of previous conn")
		for r.anyConnected() {
			if l.isClosed() {
				return nil, ErrClosed
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	challenge := uint64(rand.Uint32()) + 1
	l.logger.Debug("handshake: posting challenge", zap.Uint64("challenge", challenge))
	atomic.StoreUint64(r.challenge(), challenge)
	for atomic.LoadUint64(r.answer()) != challenge+challengeDelta {
		if l.isClosed() {
			return nil, ErrClosed
		}
		time.Sleep(10 * time.Millisecond)
	}
	l.logger.Debug("handshake: got challenge answer", zap.Uint64("challenge", challenge))

	for i := 0; i < 2; i++ {
		atomic.StoreUint64(r.readIndex(i), atomic.LoadUint64(r.writeIndex(i)))
	}
	r.setConnected(0, true)
	r.setConnected(1, true)
	return newConn(r, 0, l.logger), nil
}

// Close stops accepting. Accepted connections stay usable until closed.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.ops.Wait()
	return l.region.release()
}

func (l *Listener) Addr() net.Addr { return addr(l.region.path) }

// Dialer returns a dial function suitable for grpc.WithContextDialer. Every dial maps
// the file at path, answers the listener's challenge and waits until the listener
// marked the connection established. Invalid parameters panic.
func Dialer(path string, ringSize int, offset int, logger *zap.Logger) func(ctx context.Context, address string) (net.Conn, error) {
	checkParams(path, ringSize, offset)
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("memconn")

	return func(ctx context.Context, _ string) (net.Conn, error) {
		r, err := openRegion(path, ringSize, offset, logger)
		if err != nil {
			return nil, err
		}
		// the conn takes its own reference
		defer r.release()

		wait := func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Millisecond):
				return nil
			}
		}

		if r.anyConnected() {
			logger.Debug("handshake: wait for end of previous conn")
			for r.anyConnected() {
				if err := wait(); err != nil {
					return nil, err
				}
			}
		}

		logger.Debug("handshake: answer challenge and wait for connected")
		var challenge uint64
		for !(r.isConnected(0) && r.isConnected(1)) {
			challenge = atomic.LoadUint64(r.challenge())
			if challenge != 0 {
				atomic.StoreUint64(r.answer(), challenge+challengeDelta)
			}
			if err := wait(); err != nil {
				return nil, err
			}
		}
		logger.Debug("handshake: done", zap.Uint64("challenge", challenge))
		return newConn(r, 1, logger), nil
	}
}
