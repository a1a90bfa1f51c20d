package bridge

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"

	"github.com/n0izn0iz/plughost/pkg/host"
	"github.com/n0izn0iz/plughost/pkg/plugin"
	"github.com/n0izn0iz/plughost/pkg/plugin/plugintest"
)

func testLogger(t *testing.T) *zap.Logger {
	if os.Getenv("DEBUG") == "true" {
		return zaptest.NewLogger(t)
	}
	return zap.NewNop()
}

var testConfig = plugin.AudioConfiguration{SampleRate: 48000, MinFramesCount: 1, MaxFramesCount: 4096}

type fixture struct {
	handle *host.Handle
	server *Server
	client *Client
}

func setup(t *testing.T, opts plugintest.Options) *fixture {
	t.Helper()
	logger := testLogger(t)

	h, err := host.Run(plugintest.NewBundle("test.clap", opts), testConfig, host.WithLogger(logger), host.WithGUIAPI("", false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(ServerOptions(logger)...)
	srv := NewServer(h, logger)
	srv.Register(s)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Watch(ctx)

	dial := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	cc, err := grpc.NewClient("passthrough:///bufconn", append(DialOptions(logger), grpc.WithContextDialer(dial))...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })

	return &fixture{handle: h, server: srv, client: NewClient(cc)}
}

func callCtx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func stereo(n int, v float32) [][]float32 {
	l, r := make([]float32, n), make([]float32, n)
	for i := range l {
		l[i], r[i] = v, -v
	}
	return [][]float32{l, r}
}

func TestBridgeProcessAudio(t *testing.T) {
	f := setup(t, plugintest.Options{Gain: 0.5, EchoEvents: true})

	events := testEvents()
	out, outEvents, err := f.client.ProcessAudio(callCtx(t), stereo(64, 1), events...)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Len(t, out[0], 64)
	require.Equal(t, float32(0.5), out[0][10])
	require.Equal(t, float32(-0.5), out[1][10])
	require.Equal(t, events, outEvents)

	for i := 0; i < 9; i++ {
		_, _, err := f.client.ProcessAudio(callCtx(t), stereo(64, 1))
		require.NoError(t, err)
	}
	st, err := f.client.SteadyTime(callCtx(t))
	require.NoError(t, err)
	require.Equal(t, uint64(640), st)

	require.NoError(t, f.client.Restart(callCtx(t)))
	st, err = f.client.SteadyTime(callCtx(t))
	require.NoError(t, err)
	require.Zero(t, st)
}

func TestBridgeContractViolation(t *testing.T) {
	f := setup(t, plugintest.Options{})

	_, _, err := f.client.ProcessAudio(callCtx(t), nil)
	require.ErrorIs(t, err, host.ErrContractViolation)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, _, err = f.client.ProcessAudio(callCtx(t), stereo(4096, 1))
	require.ErrorIs(t, err, host.ErrContractViolation)

	// the session survives
	_, _, err = f.client.ProcessAudio(callCtx(t), stereo(32, 1))
	require.NoError(t, err)
}

func TestBridgeMalformedFrame(t *testing.T) {
	f := setup(t, plugintest.Options{})
	_, _, err := f.client.ProcessAudio(callCtx(t), [][]float32{{1, 2}, {1}})
	require.ErrorIs(t, err, ErrMalformedFrame)

	_, err = f.server.ProcessAudio(callCtx(t), nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	// an event without a body only fails on the server side
	req := newFrameMessage()
	require.NoError(t, proto.Unmarshal(append(embed(nil, 1, channel(1, 2)), embed(nil, 2, varint(nil, 1, 5))...), req))
	err = f.client.invoke(callCtx(t), methodProcessAudio, req, newFrameMessage())
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	require.Contains(t, err.Error(), "event without body")

	_, _, err = f.client.ProcessAudio(callCtx(t), stereo(32, 1))
	require.NoError(t, err)
}

func TestBridgeStateAndParams(t *testing.T) {
	f := setup(t, plugintest.Options{State: true, Params: map[uint32]float64{7: 0.75}})

	require.NoError(t, f.client.SetState(callCtx(t), []byte("preset")))
	data, err := f.client.State(callCtx(t))
	require.NoError(t, err)
	require.Equal(t, []byte("preset"), data)

	v, err := f.client.ParamValue(callCtx(t), 7)
	require.NoError(t, err)
	require.Equal(t, 0.75, v)

	_, err = f.client.ParamValue(callCtx(t), 8)
	require.ErrorIs(t, err, host.ErrContractViolation)
}

func TestBridgeSessionClosed(t *testing.T) {
	f := setup(t, plugintest.Options{})

	serving, err := f.client.Serving(callCtx(t))
	require.NoError(t, err)
	require.True(t, serving)

	require.NoError(t, f.handle.Close())

	_, err = f.client.SteadyTime(callCtx(t))
	require.ErrorIs(t, err, host.ErrSessionClosed)

	require.Eventually(t, func() bool {
		serving, err := f.client.Serving(callCtx(t))
		return err == nil && !serving
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStatusMapping(t *testing.T) {
	for _, tc := range []struct {
		err  error
		code codes.Code
	}{
		{host.ErrSessionClosed, codes.Unavailable},
		{host.ErrContractViolation, codes.InvalidArgument},
		{ErrMalformedFrame, codes.InvalidArgument},
		{host.ErrConcurrentProcess, codes.FailedPrecondition},
		{host.ErrUnsupported, codes.Unimplemented},
		{host.ErrPluginFailure, codes.Internal},
	} {
		err := toStatus(tc.err)
		require.Equal(t, tc.code, status.Code(err), tc.err.Error())
		if tc.code != codes.Internal && tc.err != ErrMalformedFrame {
			require.ErrorIs(t, fromStatus(err), tc.err)
		}
	}
	require.NoError(t, toStatus(nil))
	require.NoError(t, fromStatus(nil))
	plain := errors.New("plain")
	require.Equal(t, plain, fromStatus(plain))
}
