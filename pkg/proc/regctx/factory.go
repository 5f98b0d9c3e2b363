package regctx

import (
	"github.com/go-delve/nativethread/pkg/logflags"
	"github.com/go-delve/nativethread/pkg/proc/reglayout"
)

// Factory owns the register context of a thread. The context is built on
// first use and rebuilt after the thread execs a new image.
type Factory struct {
	tid         int
	arch        Arch
	hostPtrSize int
	io          RegisterIO
	stops       *StopCounter

	table *reglayout.Table
	ctx   *Context
}

// NewFactory resolves the register layout of a thread of the given
// architecture. An unsupported architecture is reported here, a Factory
// always produces a usable context.
func NewFactory(tid int, arch Arch, hostPtrSize int, io RegisterIO, stops *StopCounter) (*Factory, error) {
	table, err := LayoutFor(arch, hostPtrSize)
	if err != nil {
		return nil, err
	}
	return &Factory{tid: tid, arch: arch, hostPtrSize: hostPtrSize, io: io, stops: stops, table: table}, nil
}

// Arch returns the architecture of the thread.
func (f *Factory) Arch() Arch {
	return f.arch
}

// Table returns the register table of the thread.
func (f *Factory) Table() *reglayout.Table {
	return f.table
}

// RegisterContext returns the context of the thread, creating it if needed.
func (f *Factory) RegisterContext() *Context {
	if f.ctx == nil {
		f.ctx = New(f.tid, f.table, f.io, f.stops)
		if logflags.Regs() {
			logflags.RegsLogger().Debugf("tid %d: created %s register context", f.tid, f.table.Name)
		}
	}
	return f.ctx
}

// Rebuild discards the current context, the next call to RegisterContext
// creates a new one.
func (f *Factory) Rebuild() {
	f.ctx = nil
}
