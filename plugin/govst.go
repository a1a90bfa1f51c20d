// Command govst is built with -buildmode=c-shared and linked into a C VST wrapper running
// inside the guest. Every call is forwarded over the memconn bridge to the host.
package main

import "C"

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/n0izn0iz/plughost/pkg/bridge"
	"github.com/n0izn0iz/plughost/pkg/memconn"
	"github.com/n0izn0iz/plughost/pkg/plugin"
)

const (
	channels = 2
	// callTimeout bounds one bridged call so that a dead host does not hang the audio thread.
	callTimeout = time.Second
)

type shim struct {
	c         *bridge.Client
	l         *zap.Logger
	ctx       context.Context
	cancelCtx context.CancelFunc
	conn      *grpc.ClientConn

	mu      sync.Mutex
	pending []plugin.Event
}

var (
	mu      sync.Mutex
	bridges = make(map[uintptr]*shim)
)

func lookup(cplug uintptr) (*shim, bool) {
	mu.Lock()
	defer mu.Unlock()
	b, ok := bridges[cplug]
	return b, ok
}

func envInt(name string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(name)); err == nil {
		return v
	}
	return def
}

//export NewBridge
func NewBridge(cplug uintptr) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Println("failed to init zap logger", cplug)
		logger = zap.NewNop()
	}
	logger.Debug("NewBridge", zap.Uintptr("cplug", cplug))

	mu.Lock()
	defer mu.Unlock()
	if bridges[cplug] != nil {
		logger.Error("bridge already allocated", zap.Uintptr("cplug", cplug))
		panic("bridge already allocated")
	}

	path := os.Getenv("PLUGHOST_SHMEM_PATH")
	if path == "" {
		path = "/dev/shm/ivshmem"
	}
	dialer := memconn.Dialer(path, envInt("PLUGHOST_RING_SIZE", 1<<20), envInt("PLUGHOST_OFFSET", 0), logger)

	ctx, cancelCtx := context.WithCancel(context.Background())
	conn, err := grpc.NewClient("passthrough:///memconn", append(bridge.DialOptions(logger), grpc.WithContextDialer(dialer))...)
	if err != nil {
		cancelCtx()
		logger.Error("failed to dial", zap.Error(err))
		panic(err)
	}

	bridges[cplug] = &shim{
		c:         bridge.NewClient(conn),
		l:         logger,
		ctx:       ctx,
		cancelCtx: cancelCtx,
		conn:      conn,
	}
}

//export CloseBridge
func CloseBridge(cplug uintptr) {
	mu.Lock()
	b, ok := bridges[cplug]
	delete(bridges, cplug)
	mu.Unlock()
	if !ok {
		fmt.Println("warning: tried to close unallocated bridge", cplug)
		return
	}
	b.l.Debug("CloseBridge", zap.Uintptr("cplug", cplug))

	if err := b.conn.Close(); err != nil {
		b.l.Error("failed to close conn", zap.Error(err))
	}
	b.cancelCtx()
	_ = b.l.Sync()
}

func (b *shim) call() (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.ctx, callTimeout)
}

//export GetParameter
func GetParameter(cplug uintptr, index int32) float32 {
	b, ok := lookup(cplug)
	if !ok {
		return 0.5
	}
	ctx, cancel := b.call()
	defer cancel()
	v, err := b.c.ParamValue(ctx, uint32(index))
	if err != nil {
		b.l.Error("GetParameter", zap.Error(err))
		return 0.5
	}
	return float32(v)
}

// SetParameter queues a parameter change, sent with the next processed block.
//
//export SetParameter
func SetParameter(cplug uintptr, index int32, value float32) {
	b, ok := lookup(cplug)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, plugin.ParamValueEvent{
		ParamID:   uint32(index),
		NoteID:    plugin.Wildcard,
		PortIndex: -1,
		Channel:   -1,
		Key:       -1,
		Value:     float64(value),
	})
}

func (b *shim) takePending() []plugin.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.pending
	b.pending = nil
	return events
}

func (b *shim) process(inputs [][]float32) [][]float32 {
	ctx, cancel := b.call()
	defer cancel()
	events := b.takePending()
	outputs, _, err := b.c.ProcessAudio(ctx, inputs, events...)
	if err != nil {
		b.l.Error("ProcessAudio", zap.Error(err), zap.Int("droppedEvents", len(events)))
		return nil
	}
	if len(outputs) < channels {
		b.l.Error("ProcessAudio", zap.Int("channels", len(outputs)))
		return nil
	}
	return outputs
}

//export ProcessReplacing
func ProcessReplacing(cplug uintptr, inputs **float32, outputs **float32, sampleFrames int32) {
	b, ok := lookup(cplug)
	if !ok || sampleFrames <= 0 {
		return
	}
	n := int(sampleFrames)

	ins := unsafe.Slice(inputs, channels)
	data := make([][]float32, channels)
	for c := range data {
		data[c] = append([]float32(nil), unsafe.Slice(ins[c], n)...)
	}

	res := b.process(data)
	if res == nil {
		return
	}

	outs := unsafe.Slice(outputs, channels)
	for c := 0; c < channels; c++ {
		copy(unsafe.Slice(outs[c], n), res[c])
	}
}

//export ProcessDoubleReplacing
func ProcessDoubleReplacing(cplug uintptr, inputs **float64, outputs **float64, sampleFrames int32) {
	b, ok := lookup(cplug)
	if !ok || sampleFrames <= 0 {
		return
	}
	n := int(sampleFrames)

	ins := unsafe.Slice(inputs, channels)
	data := make([][]float32, channels)
	for c := range data {
		data[c] = make([]float32, n)
		for i, s := range unsafe.Slice(ins[c], n) {
			data[c][i] = float32(s)
		}
	}

	res := b.process(data)
	if res == nil {
		return
	}

	outs := unsafe.Slice(outputs, channels)
	for c := 0; c < channels; c++ {
		out := unsafe.Slice(outs[c], n)
		for i, s := range res[c][:min(n, len(res[c]))] {
			out[i] = float64(s)
		}
	}
}

func main() {}
