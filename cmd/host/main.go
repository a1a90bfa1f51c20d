// Command host runs a plugin session and serves it over the bridge.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "plughost",
		Short:         "Host a CLAP plugin and bridge it to another process",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	setupFlags(root.PersistentFlags())
	root.AddCommand(runCommand(), listCommand())
	return root
}

// setup resolves the configuration of cmd and builds the logger.
func setup(cmd *cobra.Command) (config, *zap.Logger, error) {
	v, err := newViper(cmd.Flags())
	if err != nil {
		return config{}, nil, err
	}
	c, err := loadConfig(v)
	if err != nil {
		return config{}, nil, err
	}
	logger, err := newLogger(c.Debug)
	if err != nil {
		return config{}, nil, err
	}
	return c, logger, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
