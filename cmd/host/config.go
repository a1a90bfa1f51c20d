package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

const envPrefix = "PLUGHOST"

type config struct {
	Plugin      string
	PluginID    string
	Audio       plugin.AudioConfiguration
	Transport   string
	Listen      string
	ShmemPath   string
	RingSize    int
	Offset      int
	MetricsAddr string
	Debug       bool
}

func setupFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "config file (yaml, toml or json)")
	flags.Bool("debug", false, "development logging")
	flags.String("plugin", "", "path of the plugin bundle, the first discovered one when empty")
	flags.String("plugin-id", "", "id of the plugin to instantiate, the first one of the bundle when empty")
	flags.Float64("sample-rate", 48000, "sample rate")
	flags.Uint32("min-frames", 1, "minimum frames per block")
	flags.Uint32("max-frames", 4096, "maximum frames per block")
	flags.String("transport", "memconn", "bridge transport: memconn, unix or tcp")
	flags.String("listen", "", "socket address of the unix and tcp transports")
	flags.String("shmem-path", "/dev/shm/ivshmem", "path to the shared memory file")
	flags.Int("ring-size", 1<<20, "size of each ring buffer in the shared memory")
	flags.Int("offset", 0, "offset of the ring buffers in the shared memory")
	flags.String("metrics-addr", "", "address of the prometheus endpoint, disabled when empty")
}

// newViper binds flags, PLUGHOST_* environment variables and the optional config file, in
// decreasing precedence.
func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

func loadConfig(v *viper.Viper) (config, error) {
	c := config{
		Plugin:   v.GetString("plugin"),
		PluginID: v.GetString("plugin-id"),
		Audio: plugin.AudioConfiguration{
			SampleRate:     v.GetFloat64("sample-rate"),
			MinFramesCount: v.GetUint32("min-frames"),
			MaxFramesCount: v.GetUint32("max-frames"),
		},
		Transport:   v.GetString("transport"),
		Listen:      v.GetString("listen"),
		ShmemPath:   v.GetString("shmem-path"),
		RingSize:    v.GetInt("ring-size"),
		Offset:      v.GetInt("offset"),
		MetricsAddr: v.GetString("metrics-addr"),
		Debug:       v.GetBool("debug"),
	}
	return c, c.validate()
}

func (c config) validate() error {
	if err := c.Audio.Validate(); err != nil {
		return err
	}
	switch c.Transport {
	case "memconn":
		if c.ShmemPath == "" {
			return errors.New("memconn transport needs shmem-path")
		}
		if c.RingSize < 4 || c.RingSize%2 != 0 || c.Offset < 0 {
			return fmt.Errorf("invalid ring-size %d or offset %d", c.RingSize, c.Offset)
		}
	case "unix", "tcp":
		if c.Listen == "" {
			return fmt.Errorf("%s transport needs listen", c.Transport)
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	return nil
}
