// Command testclient renders a WAV file through a plugin served by the host.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-audio/wav"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/n0izn0iz/plughost/pkg/bridge"
	"github.com/n0izn0iz/plughost/pkg/memconn"
)

type options struct {
	transport string
	addr      string
	shmemPath string
	ringSize  int
	offset    int
	in, out   string
	block     int
}

func main() {
	var o options
	flag.IntVar(&o.offset, "offset", 0, "offset of the ring buffer in the ivshmem")
	flag.IntVar(&o.ringSize, "ring-size", 1<<20, "size of the ring buffer")
	flag.StringVar(&o.shmemPath, "shmem-path", "/dev/shm/ivshmem", "path to the shared memory file")
	flag.StringVar(&o.transport, "transport", "memconn", "bridge transport: memconn, unix or tcp")
	flag.StringVar(&o.addr, "addr", "", "socket address of the unix and tcp transports")
	flag.StringVar(&o.in, "in", "in.wav", "WAV file to render")
	flag.StringVar(&o.out, "out", "out.wav", "rendered WAV file")
	flag.IntVar(&o.block, "block", 512, "frames per block")
	var debug bool
	flag.BoolVar(&debug, "debug", false, "development logging")

	flag.Parse()

	logger := zap.NewNop()
	if debug {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			panic(err)
		}
	}
	defer logger.Sync() // flushes buffer, if any

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := runClient(ctx, o, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}

func dial(o options, logger *zap.Logger) (*grpc.ClientConn, error) {
	opts := bridge.DialOptions(logger)
	var target string
	switch o.transport {
	case "memconn":
		target = "passthrough:///memconn"
		opts = append(opts, grpc.WithContextDialer(memconn.Dialer(o.shmemPath, o.ringSize, o.offset, logger)))
	case "unix":
		target = "unix:" + o.addr
	case "tcp":
		target = "passthrough:///" + o.addr
	default:
		return nil, fmt.Errorf("unknown transport %q", o.transport)
	}
	return grpc.NewClient(target, opts...)
}

func runClient(ctx context.Context, o options, logger *zap.Logger) error {
	conn, err := dial(o, logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	client := bridge.NewClient(conn)

	in, err := os.Open(o.in)
	if err != nil {
		return err
	}
	defer in.Close()
	dec := wav.NewDecoder(in)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return fmt.Errorf("%s is not a valid WAV file", o.in)
	}

	out, err := os.Create(o.out)
	if err != nil {
		return err
	}
	defer out.Close()
	enc := wav.NewEncoder(out, int(dec.SampleRate), int(dec.BitDepth), int(dec.NumChans), 1)

	frames, err := render(ctx, client, dec, enc, o.block)
	if err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	st, err := client.SteadyTime(ctx)
	if err != nil {
		return err
	}
	logger.Info("rendered", zap.Int("frames", frames), zap.String("out", o.out))
	fmt.Println("steady time:", st)
	return nil
}
