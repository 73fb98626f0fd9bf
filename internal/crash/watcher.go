package crash

import (
	"sync"

	"faulttrace/internal/amx"
	"faulttrace/internal/hook"
	"faulttrace/internal/pathfind"
	"faulttrace/internal/sym"
)

// hookOwner identifies this module at the exec interception site.
const hookOwner = "faulttrace"

// Options tunes per-handler behavior.
type Options struct {
	// MaxDepth caps stack walks; 0 picks the segment's frame capacity.
	MaxDepth int
	// RingSize is the tracked position history length; 0 disables it.
	RingSize int
}

// Watcher owns the fault-handling lifecycle for a set of machines: it
// claims the exec interception site once at startup, creates a handler per
// loaded machine, and routes process faults to the machine that was
// executing when they hit.
type Watcher struct {
	reg    *Registry
	finder *pathfind.Finder
	point  *hook.ExecPoint
	sink   Sink
	opts   Options

	mu     sync.Mutex
	active []*Handler // stack of executing handlers, innermost last
}

// NewWatcher wires a watcher to an interception site and a path finder.
func NewWatcher(point *hook.ExecPoint, finder *pathfind.Finder, sink Sink, opts Options) *Watcher {
	if finder == nil {
		finder = pathfind.NewFinder()
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Watcher{
		reg:    NewRegistry(),
		finder: finder,
		point:  point,
		sink:   sink,
		opts:   opts,
	}
}

// Init claims the exec interception site. A conflict with a pre-existing
// hook is a hard startup failure naming the conflicting owner.
func (w *Watcher) Init() error {
	return w.point.Install(hookOwner, w.intercept)
}

// Close releases the interception site.
func (w *Watcher) Close() {
	w.point.Remove(hookOwner)
}

// Registry exposes the machine-to-handler mapping.
func (w *Watcher) Registry() *Registry { return w.reg }

// MachineLoaded creates and attaches a handler for m. path is the image
// file the machine was loaded from; when empty, discovery through the path
// finder is attempted. A broken symbol file degrades to no symbols; the
// error is returned so hosts can log it, alongside a usable handler.
func (w *Watcher) MachineLoaded(m *amx.Machine, path string) (*Handler, error) {
	if path == "" {
		path, _ = w.finder.Find(m.Sum())
	} else {
		w.finder.AddKnownFile(m.Sum(), path)
	}

	var table sym.Table = sym.None()
	var symErr error
	if path != "" {
		info, ok, err := sym.LoadFile(sym.CompanionPath(path))
		switch {
		case err != nil:
			symErr = err
		case ok:
			table = info
		}
	}

	h := newHandler(m, table, path, w.sink, w.opts)
	h.attach()
	m.SetExecHook(w.point.Dispatch)
	w.reg.Put(h)
	return h, symErr
}

// MachineUnloaded detaches and removes the handler for m.
func (w *Watcher) MachineUnloaded(m *amx.Machine) {
	if h, ok := w.reg.Remove(m); ok {
		h.detach()
	}
	m.SetExecHook(nil)
}

// intercept is installed at the exec interception site. Browse runs and
// machines without handlers pass straight through.
func (w *Watcher) intercept(m *amx.Machine, index int, next amx.ExecFunc) (amx.Cell, error) {
	if m.Browse() {
		return next(m, index)
	}
	h, ok := w.reg.Get(m)
	if !ok {
		return next(m, index)
	}

	w.pushActive(h)
	defer w.popActive()
	return h.processExec(m, index, next)
}

func (w *Watcher) pushActive(h *Handler) {
	w.mu.Lock()
	w.active = append(w.active, h)
	w.mu.Unlock()
}

func (w *Watcher) popActive() {
	w.mu.Lock()
	w.active = w.active[:len(w.active)-1]
	w.mu.Unlock()
}

// current returns the handler of the innermost executing machine.
func (w *Watcher) current() *Handler {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.active) == 0 {
		return nil
	}
	return w.active[len(w.active)-1]
}

// OnCrash is the process-fault entry point, invoked by the external crash
// collaborator with no machine context. The report is built from the
// innermost executing handler's previously captured state.
func (w *Watcher) OnCrash() {
	if h := w.current(); h != nil {
		h.emitFault(KindCrash)
	}
}

// OnInterrupt handles an external interrupt signal the same way.
func (w *Watcher) OnInterrupt() {
	if h := w.current(); h != nil {
		h.emitFault(KindInterrupt)
	}
}
