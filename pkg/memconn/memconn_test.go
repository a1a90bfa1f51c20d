package memconn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()
	if os.Getenv("DEBUG") != "true" {
		return zap.NewNop()
	}
	conf := zap.NewDevelopmentConfig()
	if len(os.Getenv("LOGFILE")) > 0 {
		conf.OutputPaths = []string{os.Getenv("LOGFILE")}
	}
	logger, err := conf.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Sync() })
	return logger
}

// shmFile creates a zeroed file large enough for two rings of ringSize after offset.
func shmFile(t *testing.T, ringSize, offset int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ivshmem")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(int64(headerSize+offset+2*ringSize)))
	require.NoError(t, f.Close())
	return path
}

func TestMemconn(t *testing.T) {
	sizes := []int{4, 8, 16, 32, 42, 64, 128, 138, 256, 420, 512, 1024, 2048, 4096}
	logger := testLogger(t)
	tLog := logger.Named("test")

	for _, ringSize := range sizes {
		tLog.Debug("new test group", zap.Int("ringSize", ringSize))

		path := shmFile(t, ringSize, 16)
		clientConn, serverConn, closeConn := testingConnPair(t, path, ringSize, 16, logger)

		runs := 200

		done := make(chan struct{})
		go func() {
			testConnWrite(t, runs, serverConn, clientConn, fmt.Sprint("Hello conn 1-", ringSize), logger.Named("server"))
			close(done)
		}()

		testConnWrite(t, runs, clientConn, serverConn, fmt.Sprint("Hello conn 2-", ringSize), logger.Named("client"))

		<-done
		closeConn()
	}
}

func TestWriteLen(t *testing.T) {
	require.Equal(t, uint64(1), writeLen(0, 0, 2))
	require.Equal(t, uint64(0), writeLen(1, 0, 2))
	require.Equal(t, uint64(0), writeLen(0, 1, 2))
	require.Equal(t, uint64(1), writeLen(1, 1, 2))

	require.Equal(t, uint64(7), writeLen(0, 0, 8))
	require.Equal(t, uint64(4), writeLen(5, 2, 8))
	require.Equal(t, uint64(4), writeLen(1, 6, 8))
	require.Equal(t, uint64(6), writeLen(0, 7, 8))
	require.Equal(t, uint64(0), writeLen(7, 0, 8))
	require.Equal(t, uint64(0), writeLen(0, 1, 8))

	require.Panics(t, func() { _ = writeLen(8, 0, 8) })
	require.Panics(t, func() { _ = writeLen(0, 8, 8) })
	require.Panics(t, func() { _ = writeLen(21, 0, 8) })
	require.Panics(t, func() { _ = writeLen(0, 21, 8) })
	require.Panics(t, func() { _ = writeLen(0, 0, 0) })
	require.Panics(t, func() { _ = writeLen(0, 0, 1) })
}

func TestReadLen(t *testing.T) {
	require.Equal(t, uint64(0), readLen(0, 0, 2))
	require.Equal(t, uint64(1), readLen(1, 0, 2))
	require.Equal(t, uint64(1), readLen(0, 1, 2))
	require.Equal(t, uint64(0), readLen(1, 1, 2))

	require.Equal(t, uint64(0), readLen(0, 0, 8))
	require.Equal(t, uint64(3), readLen(5, 2, 8))
	require.Equal(t, uint64(3), readLen(1, 6, 8))
	require.Equal(t, uint64(1), readLen(0, 7, 8))
	require.Equal(t, uint64(7), readLen(7, 0, 8))
	require.Equal(t, uint64(7), readLen(0, 1, 8))

	require.Panics(t, func() { _ = readLen(8, 0, 8) })
	require.Panics(t, func() { _ = readLen(0, 8, 8) })
	require.Panics(t, func() { _ = readLen(21, 0, 8) })
	require.Panics(t, func() { _ = readLen(0, 21, 8) })
	require.Panics(t, func() { _ = readLen(0, 0, 0) })
	require.Panics(t, func() { _ = readLen(0, 0, 1) })
}

func TestInvalidParameters(t *testing.T) {
	logger := testLogger(t)
	require.Panics(t, func() { _, _ = Listen("", 64, 0, logger) })
	require.Panics(t, func() { _, _ = Listen("/dev/shm/x", 63, 0, logger) })
	require.Panics(t, func() { _, _ = Listen("/dev/shm/x", 2, 0, logger) })
	require.Panics(t, func() { _ = Dialer("/dev/shm/x", 64, -1, logger) })
}

func TestRegionTooSmall(t *testing.T) {
	path := shmFile(t, 64, 0)
	_, err := Listen(path, 128, 0, testLogger(t))
	require.ErrorIs(t, err, ErrTooSmall)

	_, err = Listen(filepath.Join(t.TempDir(), "missing"), 64, 0, testLogger(t))
	require.Error(t, err)
}

func TestEOFAfterPeerClose(t *testing.T) {
	path := shmFile(t, 64, 0)
	client, server, closeConn := testingConnPair(t, path, 64, 0, testLogger(t))
	defer closeConn()

	_, err := client.Write([]byte("last words"))
	require.NoError(t, err)
	require.NoError(t, client.Close())

	// buffered data is still delivered
	buf, err := io.ReadAll(server)
	require.NoError(t, err)
	require.Equal(t, "last words", string(buf))

	_, err = server.Write([]byte("anyone?"))
	require.ErrorIs(t, err, io.ErrClosedPipe)

	_, err = client.Read(make([]byte, 1))
	require.ErrorIs(t, err, net.ErrClosed)
}

func TestDeadlines(t *testing.T) {
	path := shmFile(t, 8, 0)
	client, server, closeConn := testingConnPair(t, path, 8, 0, testLogger(t))
	defer closeConn()

	require.NoError(t, server.SetReadDeadline(time.Now().Add(20*time.Millisecond)))
	_, err := server.Read(make([]byte, 4))
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)

	// a ring of 8 holds 7 bytes
	require.NoError(t, client.SetWriteDeadline(time.Now().Add(20*time.Millisecond)))
	n, err := client.Write(make([]byte, 16))
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)
	require.Equal(t, 7, n)

	require.NoError(t, client.SetDeadline(time.Time{}))
	require.NoError(t, server.SetDeadline(time.Time{}))
	buf := make([]byte, 7)
	_, err = io.ReadFull(server, buf)
	require.NoError(t, err)
}

func TestReconnect(t *testing.T) {
	path := shmFile(t, 64, 0)
	logger := testLogger(t)
	l, err := Listen(path, 64, 0, logger)
	require.NoError(t, err)
	defer l.Close()
	dial := Dialer(path, 64, 0, logger)

	for i := 0; i < 3; i++ {
		accepted := make(chan net.Conn, 1)
		go func() {
			c, err := l.Accept()
			assert.NoError(t, err)
			accepted <- c
		}()
		client, err := dial(context.Background(), "memconn")
		require.NoError(t, err)
		server := <-accepted

		msg := fmt.Sprint("round ", i)
		_, err = client.Write([]byte(msg))
		require.NoError(t, err)
		buf := make([]byte, len(msg))
		_, err = io.ReadFull(server, buf)
		require.NoError(t, err)
		require.Equal(t, msg, string(buf))

		require.NoError(t, client.Close())
		require.NoError(t, server.Close())
	}
	require.Equal(t, "memconn", l.Addr().Network())
	require.Equal(t, path, l.Addr().String())
}

func TestAcceptAfterClose(t *testing.T) {
	path := shmFile(t, 64, 0)
	l, err := Listen(path, 64, 0, testLogger(t))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := l.Accept()
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, l.Close())
	require.ErrorIs(t, <-done, net.ErrClosed)

	_, err = l.Accept()
	require.ErrorIs(t, err, ErrClosed)
	require.NoError(t, l.Close())
}

func TestDialCancelled(t *testing.T) {
	path := shmFile(t, 64, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := Dialer(path, 64, 0, testLogger(t))(ctx, "memconn")
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func testConnWrite(t *testing.T, runs int, in net.Conn, out net.Conn, testStr string, logger *zap.Logger) {
	t.Helper()

	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < runs; i++ {
			testStr := fmt.Sprint(testStr, "-", i)
			buf := make([]byte, len(testStr))
			logger.Debug("waiting on read")
			n, err := io.ReadFull(out, buf)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, n, len(testStr))
			assert.Equal(t, testStr, string(buf))
		}
	}()

	for i := 0; i < runs; i++ {
		testStr := fmt.Sprint(testStr, "-", i)
		n, err := in.Write([]byte(testStr))
		assert.NoError(t, err)
		assert.Equal(t, len(testStr), n)
	}

	<-done
}

func testingConnPair(t *testing.T, path string, ringSize, offset int, logger *zap.Logger) (net.Conn, net.Conn, func()) {
	t.Helper()

	l, err := Listen(path, ringSize, offset, logger.Named("server"))
	require.NoError(t, err)

	ch := make(chan net.Conn, 1)
	go func() {
		serverConn, err := l.Accept()
		assert.NoError(t, err)
		ch <- serverConn
	}()

	dial := Dialer(path, ringSize, offset, logger.Named("client"))

	ctx, cancel := context.WithCancel(context.Background())

	clientConn, err := dial(ctx, "memconn")
	require.NotNil(t, clientConn)
	require.NoError(t, err)

	serverConn := <-ch
	require.NotNil(t, serverConn)

	closeConn := func() {
		require.NoError(t, serverConn.Close())
		require.NoError(t, clientConn.Close())
		require.NoError(t, l.Close())
		cancel()
	}

	return clientConn, serverConn, closeConn
}
