package clap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinaryPath(t *testing.T) {
	dir := t.TempDir()

	file := filepath.Join(dir, "gain.clap")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	got, err := binaryPath(file)
	require.NoError(t, err)
	require.Equal(t, file, got)

	bundle := filepath.Join(dir, "Synth.clap")
	bin := filepath.Join(bundle, "Contents", "MacOS", "Synth")
	require.NoError(t, os.MkdirAll(filepath.Dir(bin), 0o755))
	require.NoError(t, os.WriteFile(bin, nil, 0o755))
	got, err = binaryPath(bundle)
	require.NoError(t, err)
	require.Equal(t, bin, got)

	empty := filepath.Join(dir, "Empty.clap")
	require.NoError(t, os.Mkdir(empty, 0o755))
	_, err = binaryPath(empty)
	require.Error(t, err)

	_, err = binaryPath(filepath.Join(dir, "missing.clap"))
	require.Error(t, err)
}
