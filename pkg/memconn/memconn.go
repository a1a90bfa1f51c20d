// Package memconn implements a net.Conn over a shared memory file, such as an ivshmem
// device exposed to a virtual machine or a file under /dev/shm.
//
// The region starts with a fixed header followed, after an optional offset, by two byte
// rings, one per direction:
//
//	0   challenge    u64
//	8   answer       u64
//	16  connected    u32 (listener side)
//	20  connected    u32 (dialer side)
//	24  read index   u64 x2
//	40  write index  u64 x2
//	64  offset bytes, ring 0, ring 1
//
// The listener reads ring 0 and writes ring 1. One connection is served at a time.
package memconn

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"go.uber.org/zap"
)

const (
	headerSize = 64

	offChallenge  = 0
	offAnswer     = 8
	offConnected  = 16
	offReadIndex  = 24
	offWriteIndex = 40

	// challengeDelta is what the dialer adds to the challenge to answer it.
	challengeDelta = 42
)

var pollInterval = time.Millisecond

var (
	ErrClosed      = fmt.Errorf("memconn: %w", net.ErrClosed)
	ErrTooSmall    = errors.New("memconn: shared memory too small")
	ErrUnsupported = errors.New("memconn: shared memory is not supported on this platform")
)

// readLen is the number of bytes readable from a ring of the given size.
func readLen(writeIndex, readIndex, size uint64) uint64 {
	checkIndices(writeIndex, readIndex, size)
	return (writeIndex + size - readIndex) % size
}

// writeLen is the number of bytes writable to a ring of the given size. One byte is kept
// free to tell a full ring from an empty one.
func writeLen(writeIndex, readIndex, size uint64) uint64 {
	checkIndices(writeIndex, readIndex, size)
	return size - 1 - (writeIndex+size-readIndex)%size
}

func checkIndices(writeIndex, readIndex, size uint64) {
	if size < 2 || writeIndex >= size || readIndex >= size {
		panic(fmt.Sprint("invalid ring indices: write: ", writeIndex, ", read: ", readIndex, ", size: ", size))
	}
}

// region is a mapped shared memory file. It is unmapped when the last user releases it.
type region struct {
	path     string
	mem      []byte
	ringSize int
	offset   int
	refs     atomic.Int32
}

func checkParams(path string, ringSize, offset int) {
	if len(path) == 0 || offset < 0 || ringSize < 4 || ringSize%2 != 0 {
		panic(fmt.Sprint("invalid parameter(s): path: ", path, ", ringSize: ", ringSize, ", offset: ", offset))
	}
}

func openRegion(path string, ringSize, offset int, logger *zap.Logger) (*region, error) {
	mem, err := mapFile(path)
	if err != nil {
		return nil, fmt.Errorf("memconn: map %s: %w", path, err)
	}
	logger.Debug("shared memory mapped",
		zap.String("path", path),
		zap.Int("sizeKiB", len(mem)/1024),
		zap.Int("offsetB", offset),
		zap.Int("ringSizeB", ringSize),
	)
	if need := headerSize + offset + 2*ringSize; need > len(mem) {
		_ = unmap(mem)
		return nil, fmt.Errorf("%w: %d bytes needed, %d available", ErrTooSmall, need, len(mem))
	}
	r := &region{path: path, mem: mem, ringSize: ringSize, offset: offset}
	r.refs.Store(1)
	return r, nil
}

func (r *region) acquire() { r.refs.Add(1) }

func (r *region) release() error {
	if r.refs.Add(-1) == 0 {
		return unmap(r.mem)
	}
	return nil
}

func (r *region) u64(off int) *uint64 { return (*uint64)(unsafe.Pointer(&r.mem[off])) }
func (r *region) u32(off int) *uint32 { return (*uint32)(unsafe.Pointer(&r.mem[off])) }

func (r *region) challenge() *uint64          { return r.u64(offChallenge) }
func (r *region) answer() *uint64             { return r.u64(offAnswer) }
func (r *region) connected(side int) *uint32  { return r.u32(offConnected + 4*side) }
func (r *region) readIndex(ring int) *uint64  { return r.u64(offReadIndex + 8*ring) }
func (r *region) writeIndex(ring int) *uint64 { return r.u64(offWriteIndex + 8*ring) }

func (r *region) ring(i int) []byte {
	start := headerSize + r.offset + i*r.ringSize
	return r.mem[start : start+r.ringSize]
}

func (r *region) isConnected(side int) bool { return atomic.LoadUint32(r.connected(side)) != 0 }

func (r *region) anyConnected() bool { return r.isConnected(0) || r.isConnected(1) }

func (r *region) setConnected(side int, v bool) {
	var n uint32
	if v {
		n = 1
	}
	atomic.StoreUint32(r.connected(side), n)
}

// Conn is one end of a shared memory connection.
type Conn struct {
	region *region
	// side is 0 for the listener end and 1 for the dialer end. The end reads ring side
	// and writes the other one.
	side   int
	logger *zap.Logger

	mu            sync.Mutex
	closed        bool
	ops           sync.WaitGroup
	readDeadline  time.Time
	writeDeadline time.Time
}

var _ net.Conn = (*Conn)(nil)

func newConn(r *region, side int, logger *zap.Logger) *Conn {
	r.acquire()
	return &Conn{region: r, side: side, logger: logger}
}

func (c *Conn) readRing() int  { return c.side }
func (c *Conn) writeRing() int { return 1 - c.side }
func (c *Conn) peer() int      { return 1 - c.side }

// begin registers a Read or Write so that Close waits for it before unmapping.
func (c *Conn) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	c.ops.Add(1)
	return nil
}

// state reports whether c is closed and whether the given deadline has passed.
func (c *Conn) state(deadline func(*Conn) time.Time) (closed bool, expired bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := deadline(c)
	return c.closed, !d.IsZero() && !time.Now().Before(d)
}

func readDeadline(c *Conn) time.Time  { return c.readDeadline }
func writeDeadline(c *Conn) time.Time { return c.writeDeadline }

func (c *Conn) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if err := c.begin(); err != nil {
		return 0, err
	}
	defer c.ops.Done()

	r := c.region
	ring := c.readRing()
	size := uint64(r.ringSize)
	data := r.ring(ring)

	var avail, rd uint64
	for {
		closed, expired := c.state(readDeadline)
		if closed {
			return 0, net.ErrClosed
		}
		if expired {
			return 0, os.ErrDeadlineExceeded
		}
		// sampled before the indices so that data written just before the peer closed
		// is still read
		gone := !r.isConnected(c.peer())
		rd = atomic.LoadUint64(r.readIndex(ring))
		avail = readLen(atomic.LoadUint64(r.writeIndex(ring)), rd, size)
		if avail > 0 {
			break
		}
		if gone {
			return 0, io.EOF
		}
		time.Sleep(pollInterval)
	}

	n := min(avail, uint64(len(buf)))
	first := min(n, size-rd)
	copy(buf, data[rd:rd+first])
	copy(buf[first:n], data[:n-first])
	atomic.StoreUint64(r.readIndex(ring), (rd+n)%size)
	return int(n), nil
}

func (c *Conn) Write(buf []byte) (int, error) {
	if err := c.begin(); err != nil {
		return 0, err
	}
	defer c.ops.Done()

	r := c.region
	ring := c.writeRing()
	size := uint64(r.ringSize)
	data := r.ring(ring)

	written := 0
	for written < len(buf) {
		closed, expired := c.state(writeDeadline)
		if closed {
			return written, net.ErrClosed
		}
		if expired {
			return written, os.ErrDeadlineExceeded
		}
		if !r.isConnected(c.peer()) {
			return written, io.ErrClosedPipe
		}
		wr := atomic.LoadUint64(r.writeIndex(ring))
		space := writeLen(wr, atomic.LoadUint64(r.readIndex(ring)), size)
		if space == 0 {
			time.Sleep(pollInterval)
			continue
		}

		n := min(space, uint64(len(buf)-written))
		src := buf[written : written+int(n)]
		first := min(n, size-wr)
		copy(data[wr:wr+first], src[:first])
		copy(data[:n-first], src[first:])
		atomic.StoreUint64(r.writeIndex(ring), (wr+n)%size)
		written += int(n)
	}
	return written, nil
}

// Close marks this end disconnected. The peer reads what is left in its ring and then
// gets io.EOF.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.ops.Wait()
	c.logger.Debug("conn closed", zap.Int("side", c.side))
	c.region.setConnected(c.side, false)
	return c.region.release()
}

func (c *Conn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDeadline, c.writeDeadline = t, t
	return nil
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDeadline = t
	return nil
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeDeadline = t
	return nil
}

func (c *Conn) LocalAddr() net.Addr  { return addr(c.region.path) }
func (c *Conn) RemoteAddr() net.Addr { return addr(c.region.path) }
