// Package clap loads CLAP plugin modules and exposes them through the interfaces of
// pkg/plugin. Modules are opened with the platform dynamic loader through purego, so the
// package builds without cgo.
//
// A Bundle stays loaded until Close. Every Instance created from it must be destroyed
// before the bundle is closed.
package clap

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Extension is the file extension of CLAP modules. On macOS modules are bundle
// directories carrying this extension.
const Extension = ".clap"

var (
	ErrUnsupportedPlatform = errors.New("clap: native modules are not supported on this platform")
	ErrNoEntry             = errors.New("clap: module exports no clap_entry")
	ErrIncompatible        = errors.New("clap: incompatible interface version")
	ErrInit                = errors.New("clap: module initialization failed")
	ErrNoFactory           = errors.New("clap: module has no plugin factory")
	ErrCreate              = errors.New("clap: plugin creation failed")
	ErrCall                = errors.New("clap: plugin call failed")
)

// binaryPath returns the loadable file of a module. A bundle directory resolves to the
// binary under Contents/MacOS.
func binaryPath(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !fi.IsDir() {
		return path, nil
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	bin := filepath.Join(path, "Contents", "MacOS", name)
	if _, err := os.Stat(bin); err != nil {
		return "", err
	}
	return bin, nil
}
