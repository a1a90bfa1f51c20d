package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/n0izn0iz/plughost/pkg/bridge"
	"github.com/n0izn0iz/plughost/pkg/clap"
	"github.com/n0izn0iz/plughost/pkg/discovery"
	"github.com/n0izn0iz/plughost/pkg/host"
	"github.com/n0izn0iz/plughost/pkg/plugin"
)

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a plugin session and serve it until it ends",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() // flushes buffer, if any
			return run(cmd.Context(), c, logger)
		},
	}
}

// openBundle opens the configured plugin, or the first discovered one.
func openBundle(ctx context.Context, c config, logger *zap.Logger) (plugin.Bundle, error) {
	if c.Plugin != "" {
		return clap.Open(c.Plugin, logger)
	}
	s := discovery.CLAP()
	bundles, err := discovery.Find(ctx, s.Roots(), s, clap.Open, logger)
	if err != nil {
		return nil, err
	}
	if len(bundles) == 0 {
		return nil, errors.New("no plugin found, use --plugin")
	}
	for _, b := range bundles[1:] {
		_ = b.Close()
	}
	logger.Info("using discovered plugin", zap.String("path", bundles[0].Path()))
	return bundles[0], nil
}

func run(ctx context.Context, c config, logger *zap.Logger) (err error) {
	bundle, err := openBundle(ctx, c, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := bundle.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	h, err := host.Run(bundle, c.Audio,
		host.WithLogger(logger),
		host.WithRegisterer(reg),
		host.WithPluginID(c.PluginID),
	)
	if err != nil {
		return err
	}
	logger.Info("session started",
		zap.String("session", h.Session()),
		zap.String("plugin", h.Descriptor().ID),
		zap.String("transport", c.Transport),
	)

	lis, err := listen(c, logger)
	if err != nil {
		return errors.Join(fmt.Errorf("listen: %w", err), h.Close())
	}

	s := grpc.NewServer(bridge.ServerOptions(logger)...)
	srv := bridge.NewServer(h, logger)
	srv.Register(s)

	var metrics *http.Server
	if c.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metrics = &http.Server{Addr: c.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Serve(lis)
	})
	g.Go(func() error {
		srv.Watch(ctx)
		return nil
	})
	if metrics != nil {
		g.Go(func() error {
			if err := metrics.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		select {
		case <-h.Done():
			logger.Info("session ended", zap.Error(h.Err()))
		case <-ctx.Done():
			logger.Info("shutting down")
		}
		s.Stop()
		if metrics != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metrics.Shutdown(sctx)
		}
		return h.Close()
	})
	return g.Wait()
}
