package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

func testViperConfig(t *testing.T, args ...string) (config, error) {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	setupFlags(flags)
	require.NoError(t, flags.Parse(args))
	v, err := newViper(flags)
	if err != nil {
		return config{}, err
	}
	return loadConfig(v)
}

func TestConfigDefaults(t *testing.T) {
	c, err := testViperConfig(t)
	require.NoError(t, err)
	require.Equal(t, plugin.AudioConfiguration{SampleRate: 48000, MinFramesCount: 1, MaxFramesCount: 4096}, c.Audio)
	require.Equal(t, "memconn", c.Transport)
	require.Equal(t, "/dev/shm/ivshmem", c.ShmemPath)
	require.Equal(t, 1<<20, c.RingSize)
	require.Zero(t, c.Offset)
	require.Empty(t, c.MetricsAddr)
	require.False(t, c.Debug)
}

func TestConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plughost.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sample-rate: 44100\ntransport: tcp\nlisten: 127.0.0.1:0\nmax-frames: 512\n"), 0o644))
	t.Setenv("PLUGHOST_MAX_FRAMES", "1024")

	c, err := testViperConfig(t, "--config", path, "--plugin", "/tmp/gain.clap")
	require.NoError(t, err)
	require.Equal(t, 44100.0, c.Audio.SampleRate)
	require.Equal(t, uint32(1024), c.Audio.MaxFramesCount)
	require.Equal(t, "tcp", c.Transport)
	require.Equal(t, "/tmp/gain.clap", c.Plugin)

	t.Setenv("PLUGHOST_TRANSPORT", "unix")
	c, err = testViperConfig(t, "--config", path, "--transport", "memconn")
	require.NoError(t, err)
	require.Equal(t, "memconn", c.Transport)
}

func TestConfigInvalid(t *testing.T) {
	for name, args := range map[string][]string{
		"frame range":      {"--min-frames", "10", "--max-frames", "5"},
		"sample rate":      {"--sample-rate", "0"},
		"unknown":          {"--transport", "pigeon"},
		"tcp without addr": {"--transport", "tcp"},
		"odd ring":         {"--ring-size", "63"},
		"negative offset":  {"--offset", "-1"},
		"missing config":   {"--config", "/nonexistent/plughost.yaml"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := testViperConfig(t, args...)
			require.Error(t, err)
		})
	}
}

func TestListen(t *testing.T) {
	lis, err := listen(config{Transport: "tcp", Listen: "127.0.0.1:0"}, nil)
	require.NoError(t, err)
	require.Equal(t, "tcp", lis.Addr().Network())
	require.NoError(t, lis.Close())

	sock := filepath.Join(t.TempDir(), "plughost.sock")
	require.NoError(t, os.WriteFile(sock, nil, 0o600))
	lis, err = listen(config{Transport: "unix", Listen: sock}, nil)
	require.NoError(t, err)
	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.NoError(t, lis.Close())
}

func TestListCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.clap"), []byte("not a module"), 0o644))

	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"list", dir})
	require.NoError(t, cmd.Execute())
	require.Empty(t, out.String())
}
