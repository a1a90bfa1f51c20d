//go:build !((darwin || (linux && !android)) && (amd64 || arm64))

package clap

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

// Open always fails on this platform.
func Open(path string, logger *zap.Logger) (plugin.Bundle, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, path)
}
