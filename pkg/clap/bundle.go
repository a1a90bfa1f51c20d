//go:build (darwin || (linux && !android)) && (amd64 || arm64)

package clap

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

type entryFuncs struct {
	init       func(path string) bool
	deinit     func()
	getFactory func(id string) unsafe.Pointer
}

type factoryFuncs struct {
	count        func(f *clapPluginFactory) uint32
	descriptor   func(f *clapPluginFactory, index uint32) *clapPluginDescriptor
	createPlugin func(f *clapPluginFactory, host *clapHost, id string) *clapPlugin
}

// Bundle is an opened CLAP module.
type Bundle struct {
	path    string
	lib     uintptr
	entry   entryFuncs
	factory *clapPluginFactory
	fn      factoryFuncs
	descs   []plugin.Descriptor
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
}

var _ plugin.Bundle = (*Bundle)(nil)

// bind makes fptr call the native function at cfn. A null cfn leaves fptr nil.
func bind(fptr any, cfn uintptr) {
	if cfn != 0 {
		purego.RegisterFunc(fptr, cfn)
	}
}

// Open loads the module at path, initializes it and reads its descriptors.
func Open(path string, logger *zap.Logger) (plugin.Bundle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("clap").With(zap.String("path", path))

	bin, err := binaryPath(path)
	if err != nil {
		return nil, err
	}
	lib, err := purego.Dlopen(bin, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("clap: open %s: %w", bin, err)
	}
	b := &Bundle{path: path, lib: lib, logger: logger}
	if err := b.load(); err != nil {
		_ = purego.Dlclose(lib)
		return nil, err
	}
	logger.Debug("module loaded", zap.Int("plugins", len(b.descs)))
	return b, nil
}

func (b *Bundle) load() error {
	sym, err := purego.Dlsym(b.lib, "clap_entry")
	if err != nil || sym == 0 {
		return fmt.Errorf("%w: %s", ErrNoEntry, b.path)
	}
	entry := (*clapPluginEntry)(unsafe.Pointer(sym))
	if !entry.ClapVersion.compatible() {
		return fmt.Errorf("%w: %d.%d.%d", ErrIncompatible, entry.ClapVersion.Major, entry.ClapVersion.Minor, entry.ClapVersion.Revision)
	}
	bind(&b.entry.init, entry.Init)
	bind(&b.entry.deinit, entry.Deinit)
	bind(&b.entry.getFactory, entry.GetFactory)
	if b.entry.init == nil || b.entry.getFactory == nil {
		return fmt.Errorf("%w: incomplete entry", ErrNoEntry)
	}

	if !b.entry.init(b.path) {
		return fmt.Errorf("%w: %s", ErrInit, b.path)
	}
	b.factory = (*clapPluginFactory)(b.entry.getFactory(factoryID))
	if b.factory == nil {
		b.deinit()
		return fmt.Errorf("%w: %s", ErrNoFactory, b.path)
	}
	bind(&b.fn.count, b.factory.GetPluginCount)
	bind(&b.fn.descriptor, b.factory.GetPluginDescriptor)
	bind(&b.fn.createPlugin, b.factory.CreatePlugin)
	if b.fn.count == nil || b.fn.descriptor == nil || b.fn.createPlugin == nil {
		b.deinit()
		return fmt.Errorf("%w: incomplete factory", ErrNoFactory)
	}

	n := b.fn.count(b.factory)
	for i := uint32(0); i < n; i++ {
		d := b.fn.descriptor(b.factory, i)
		if d == nil {
			continue
		}
		b.descs = append(b.descs, readDescriptor(d))
	}
	return nil
}

func readDescriptor(d *clapPluginDescriptor) plugin.Descriptor {
	return plugin.Descriptor{
		ID:       goString(d.ID),
		Name:     goString(d.Name),
		Vendor:   goString(d.Vendor),
		Version:  goString(d.Version),
		Features: goStrings(d.Features),
	}
}

func (b *Bundle) deinit() {
	if b.entry.deinit != nil {
		b.entry.deinit()
	}
}

func (b *Bundle) Path() string { return b.path }

func (b *Bundle) Descriptors() []plugin.Descriptor { return b.descs }

// Instantiate creates and initializes the plugin id. It must be called on the thread
// that will drive the instance.
func (b *Bundle) Instantiate(id string, info plugin.HostInfo, host plugin.Host) (plugin.Instance, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("clap: bundle %s is closed", b.path)
	}

	var desc plugin.Descriptor
	found := false
	for _, d := range b.descs {
		if d.ID == id {
			desc, found = d, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", plugin.ErrUnknownPlugin, id)
	}

	inst := newInstance(desc, info, host, b.logger.With(zap.String("plugin", id)))
	p := b.fn.createPlugin(b.factory, inst.host, id)
	if p == nil {
		inst.release()
		return nil, fmt.Errorf("%w: %s", ErrCreate, id)
	}
	inst.bindPlugin(p)
	if inst.fn.init == nil || !inst.fn.init(p) {
		if inst.fn.destroy != nil {
			inst.fn.destroy(p)
		}
		inst.release()
		return nil, fmt.Errorf("%w: init %s", ErrCreate, id)
	}
	return inst, nil
}

// Close deinitializes and unloads the module.
func (b *Bundle) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.deinit()
	return purego.Dlclose(b.lib)
}
