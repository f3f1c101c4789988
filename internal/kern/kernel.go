package kern

import (
	"context"
	"time"

	"github.com/san-kum/marlin/internal/ctxlog"
	"github.com/san-kum/marlin/internal/state"
)

// Observer is notified around every stage of a run.
type Observer interface {
	UnitStart(name string, index, total int)
	UnitDone(name string, index, total int, elapsed time.Duration, err error)
}

// Kernel is the fixed, ordered composition of stages applied to a
// state. The order is an author-specified dependency chain: the kernel
// never reorders, never infers dependencies and never retries.
type Kernel struct {
	name      string
	units     []Unit
	observers []Observer
}

// New assembles a kernel from its ordered units.
func New(name string, units ...Unit) *Kernel {
	return &Kernel{name: name, units: units}
}

// Name returns the kernel's name.
func (k *Kernel) Name() string { return k.name }

// Units returns the ordered stages.
func (k *Kernel) Units() []Unit { return k.units }

// AddObserver registers a run observer.
func (k *Kernel) AddObserver(o Observer) { k.observers = append(k.observers, o) }

// Run applies every unit in declared order: compute, merge with
// override semantics, evict. The pool, owned by the caller, carries the
// tiled execution; it may be nil, in which case tiles run sequentially.
// A failing stage aborts the whole run with no partial state.
func (k *Kernel) Run(ctx context.Context, pool Pool, st *state.State) (*state.State, error) {
	log := ctxlog.FromContext(ctx)
	total := len(k.units)
	for i, u := range k.units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, o := range k.observers {
			o.UnitStart(u.Name, i, total)
		}
		start := time.Now()
		log.Debug("running stage", "kernel", k.name, "stage", u.Name, "index", i)

		out, err := u.Run(ctx, pool, st)
		for _, o := range k.observers {
			o.UnitDone(u.Name, i, total, time.Since(start), err)
		}
		if err != nil {
			if ce, ok := err.(*ComputationError); ok {
				ce.Index = i
			}
			return nil, err
		}

		for name := range out {
			if st.Has(name) {
				log.Debug("stage overrides existing variable", "stage", u.Name, "variable", name)
			}
		}
		st, err = st.Merge(out)
		if err != nil {
			return nil, err
		}
		for _, name := range u.Evict {
			if u.Template.Declares(name) {
				continue
			}
			log.Debug("evicting variable", "stage", u.Name, "variable", name)
			st.Drop(name)
		}
	}
	return st, nil
}

// Template generates the empty state describing the model at the end of
// a run without computing anything, for shape inspection and memory
// estimation. Later templates may reference dimensions introduced
// inline by earlier ones.
func (k *Kernel) Template(st *state.State) (*state.State, error) {
	for _, u := range k.units {
		vars, err := u.Template.Generate(st)
		if err != nil {
			return nil, u.tag(err)
		}
		st, err = st.Merge(vars)
		if err != nil {
			return nil, err
		}
	}
	return st, nil
}
