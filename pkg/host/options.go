package host

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

type options struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
	info       plugin.HostInfo
	pluginID   string
	clock      func() time.Time
	waitFloor  time.Duration
	defaultAPI func() (plugin.GUIAPI, bool)
}

func defaultOptions() options {
	return options{
		logger:     zap.NewNop(),
		info:       plugin.HostInfo{Name: "plughost", Vendor: "n0izn0iz", URL: "https://github.com/n0izn0iz/plughost", Version: "0.1.0"},
		clock:      time.Now,
		waitFloor:  MinTimerInterval,
		defaultAPI: plugin.DefaultGUIAPI,
	}
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRegisterer registers the session metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

func WithHostInfo(info plugin.HostInfo) Option {
	return func(o *options) { o.info = info }
}

// WithPluginID selects the descriptor to instantiate. The first one is used by default.
func WithPluginID(id string) Option {
	return func(o *options) { o.pluginID = id }
}

// WithClock replaces the time source used to tick timers.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithWaitFloor bounds how long the worker sleeps between iterations and sets the timer
// resolution.
func WithWaitFloor(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitFloor = d
		}
	}
}

// WithGUIAPI overrides the platform windowing API used for negotiation. ok=false
// simulates a platform without any.
func WithGUIAPI(api plugin.GUIAPI, ok bool) Option {
	return func(o *options) {
		o.defaultAPI = func() (plugin.GUIAPI, bool) { return api, ok }
	}
}
