package main

import (
	"errors"
	"io/fs"
	"net"
	"os"

	"go.uber.org/zap"

	"github.com/n0izn0iz/plughost/pkg/memconn"
)

func listen(c config, logger *zap.Logger) (net.Listener, error) {
	switch c.Transport {
	case "memconn":
		return memconn.Listen(c.ShmemPath, c.RingSize, c.Offset, logger)
	case "unix":
		// a socket left by a previous run
		if err := os.Remove(c.Listen); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return net.Listen("unix", c.Listen)
	}
	return net.Listen("tcp", c.Listen)
}
