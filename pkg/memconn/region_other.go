//go:build !unix

package memconn

import "fmt"

func mapFile(path string) ([]byte, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
}

func unmap([]byte) error { return nil }
