package host

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

func TestQueueFIFO(t *testing.T) {
	q := newQueue()
	require.NoError(t, q.push(setStateCmd{data: []byte{1}}))
	require.NoError(t, q.push(restartCmd{}))
	require.NoError(t, q.push(shutdownCmd{}))

	cmds := q.drain()
	require.Len(t, cmds, 3)
	require.IsType(t, setStateCmd{}, cmds[0])
	require.IsType(t, restartCmd{}, cmds[1])
	require.IsType(t, shutdownCmd{}, cmds[2])
	require.Empty(t, q.drain())
}

func TestQueueWaitWakesOnPush(t *testing.T) {
	q := newQueue()
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.push(runMainThreadCallbackCmd{})
	}()
	start := time.Now()
	q.wait(5 * time.Second)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, q.drain(), 1)
}

func TestQueueTerminateAnswersPending(t *testing.T) {
	q := newQueue()
	ch := make(chan reply, 1)
	require.NoError(t, q.push(getSteadyTimeCmd{reply: ch}))

	cause := errors.New("boom")
	q.terminate(cause)
	q.terminate(nil)

	r := <-ch
	require.IsType(t, failedReply{}, r)
	require.ErrorIs(t, r.(failedReply).err, ErrSessionClosed)
	require.ErrorIs(t, r.(failedReply).err, cause)

	_, err := q.call(getSteadyTimeCmd{reply: ch}, ch)
	require.ErrorIs(t, err, cause)
	require.Equal(t, cause, q.cause())
}

func TestQueueCallAfterCleanShutdown(t *testing.T) {
	q := newQueue()
	q.terminate(nil)
	ch := make(chan reply, 1)
	_, err := q.call(restartCmd{reply: ch}, ch)
	require.Equal(t, ErrSessionClosed, err)
}

func TestHandlers(t *testing.T) {
	q := newQueue()
	timers := NewTimers(MinTimerInterval)
	h := hostHandler{
		&sharedHandler{q: q, logger: zaptest.NewLogger(t)},
		&mainThreadHandler{timers: timers, logger: zaptest.NewLogger(t)},
	}

	id, err := h.RegisterTimer(5)
	require.NoError(t, err)
	d, _ := timers.Interval(id)
	require.Equal(t, MinTimerInterval, d)
	require.NoError(t, h.UnregisterTimer(id))
	require.ErrorIs(t, h.UnregisterTimer(id), ErrUnknownTimer)

	h.GUIResizeHintsChanged()
	require.True(t, h.guiHintsChanged.Load())
	require.True(t, h.GUIRequestShow())
	require.True(t, h.GUIRequestResize(plugin.GUISize{Width: 1, Height: 2}))
	h.RequestCallback()
	h.GUIClosed(false)
	h.MarkStateDirty()
	require.True(t, h.stateDirty)
	for _, sev := range []plugin.LogSeverity{plugin.LogDebug, plugin.LogInfo, plugin.LogWarning, plugin.LogPluginMisbehaving} {
		h.Log(sev, "hello")
	}

	cmds := q.drain()
	require.Equal(t, []command{
		guiResizeRequestedCmd{size: plugin.GUISize{Width: 1, Height: 2}},
		runMainThreadCallbackCmd{},
		guiClosedCmd{},
	}, cmds)

	q.terminate(nil)
	require.False(t, h.GUIRequestResize(plugin.GUISize{}))
	h.RequestCallback()
}
