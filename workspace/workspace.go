// Package workspace implements the owner of a base molecule and its
// stack collection, plus the atom-name and class-tag overlay namespace
// that describes the intended meaning of indices appearing in any
// stack's resolved molecule.
package workspace

import (
	"context"
	"errors"
	"runtime"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/lme/lmecore/layer"
	"github.com/lme/lmecore/molecule"
	"github.com/lme/lmecore/namespace"
	"github.com/lme/lmecore/stack"
	"github.com/lme/lmecore/stacktree"
)

// Error kinds named by §7, reported as sentinel values so callers can
// compare with errors.Is.
var (
	ErrNoSuchStack  = errors.New("workspace: no such stack")
	ErrInvalidRange = errors.New("workspace: range out of bounds")
	ErrIdMapUnique  = errors.New("workspace: name already owned by a different index")
)

// Workspace owns an immutable base molecule and a mutable list of
// stacks, plus the atom-name/class-tag overlay. The zero value is not
// usable; construct with New.
//
// Each stack slot is replaced wholesale on write (readers holding the
// old slice value keep seeing the old Stack; Go's value semantics for
// Stack and its layer slice give this "old value stays alive until its
// last reader drops it" property for free, no refcounting needed).
type Workspace struct {
	mu   sync.RWMutex
	base molecule.Molecule

	stacks []stack.Stack

	atomNames *namespace.UniqueValueMap[string, int]
	classTags *namespace.NtoN[int, string]
}

// New creates a workspace owning base, with an empty stack list.
func New(base molecule.Molecule) *Workspace {
	return &Workspace{
		base:      base,
		atomNames: namespace.New[string, int](),
		classTags: namespace.NewNtoN[int, string](),
	}
}

// Stacks returns the number of stacks currently held.
func (w *Workspace) Stacks() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.stacks)
}

// Read evaluates stack index against a fresh copy of the base molecule.
//
// The workspace lock is held only long enough to copy the stack value
// and the base molecule header; it is released before folding layers,
// so a slow PluginFilter inside index's stack never blocks unrelated
// stacks or mutators (§5, "no lock held across a plugin subprocess call").
func (w *Workspace) Read(ctx context.Context, index int) (molecule.Molecule, error) {
	w.mu.RLock()
	if index < 0 || index >= len(w.stacks) {
		w.mu.RUnlock()
		return molecule.Molecule{}, pkgerrors.Wrapf(ErrNoSuchStack, "index %d", index)
	}
	s := w.stacks[index]
	base := w.base
	w.mu.RUnlock()

	return s.Read(ctx, base.Clone())
}

// ReadRange evaluates every stack in [start, start+count) concurrently,
// bounded by GOMAXPROCS, mirroring Clean's use of fan-out for
// independent per-slot work. A single stack's failure does not abort
// its siblings; the result at that position carries the error.
func (w *Workspace) ReadRange(ctx context.Context, start, count int) ([]molecule.Molecule, []error) {
	w.mu.RLock()
	if start < 0 || count < 0 || start+count > len(w.stacks) {
		w.mu.RUnlock()
		return nil, []error{pkgerrors.Wrapf(ErrInvalidRange, "[%d,%d) of %d", start, start+count, len(w.stacks))}
	}
	slots := make([]stack.Stack, count)
	copy(slots, w.stacks[start:start+count])
	base := w.base
	w.mu.RUnlock()

	results := make([]molecule.Molecule, count)
	errs := make([]error, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range slots {
		i, s := i, s
		g.Go(func() error {
			m, err := s.Read(gctx, base)
			results[i] = m
			errs[i] = err
			return nil // per-slot errors do not abort siblings
		})
	}
	_ = g.Wait()
	return results, errs
}

// CreateStack appends copies+1 references to s and returns the index of
// the first inserted slot. All inserted copies alias the same layer
// slice header (structural sharing; no layer is cloned).
func (w *Workspace) CreateStack(s stack.Stack, copies int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	first := len(w.stacks)
	for i := 0; i <= copies; i++ {
		w.stacks = append(w.stacks, s)
	}
	return first
}

// CreateStackFromLayer is the one-layer-stack shorthand for CreateStack.
func (w *Workspace) CreateStackFromLayer(l layer.Layer, copies int) int {
	return w.CreateStack(stack.FromLayer(l), copies)
}

// CloneStack is equivalent to CreateStack(stacks[i].Clone(), copies);
// Stack values are immutable, so "clone" is simply reading the slot.
func (w *Workspace) CloneStack(i, copies int) (int, error) {
	w.mu.RLock()
	if i < 0 || i >= len(w.stacks) {
		w.mu.RUnlock()
		return 0, pkgerrors.Wrapf(ErrNoSuchStack, "index %d", i)
	}
	s := w.stacks[i]
	w.mu.RUnlock()
	return w.CreateStack(s, copies), nil
}

// CloneBase is equivalent to CreateStack(stacks[i].Base(), copies).
func (w *Workspace) CloneBase(i, copies int) (int, error) {
	w.mu.RLock()
	if i < 0 || i >= len(w.stacks) {
		w.mu.RUnlock()
		return 0, pkgerrors.Wrapf(ErrNoSuchStack, "index %d", i)
	}
	s := w.stacks[i].Base()
	w.mu.RUnlock()
	return w.CreateStack(s, copies), nil
}

// WriteToStack writes m into every stack in [start, start+count), each
// via Stack.Write (collapsing into the top Fill, or appending a new
// one). Clones are computed concurrently, bounded by GOMAXPROCS; the
// workspace write lock is taken once, after every clone has succeeded,
// to swap all slots in at once (§4.4, §5, P7: atomicity is per-batch
// commit, never partial). Returns false without modifying anything if
// the range is out of bounds.
func (w *Workspace) WriteToStack(ctx context.Context, start, count int, m molecule.Molecule) (bool, error) {
	return w.batchMutate(ctx, start, count, func(s stack.Stack) stack.Stack {
		return s.Write(m)
	})
}

// AddLayerToStack appends l to every stack in [start, start+count); l
// is shared by reference across every modified clone.
func (w *Workspace) AddLayerToStack(ctx context.Context, start, count int, l layer.Layer) (bool, error) {
	return w.batchMutate(ctx, start, count, func(s stack.Stack) stack.Stack {
		return s.AddLayer(l)
	})
}

func (w *Workspace) batchMutate(ctx context.Context, start, count int, mutate func(stack.Stack) stack.Stack) (bool, error) {
	w.mu.RLock()
	if start < 0 || count < 0 || start+count > len(w.stacks) {
		w.mu.RUnlock()
		return false, nil
	}
	slots := make([]stack.Stack, count)
	copy(slots, w.stacks[start:start+count])
	w.mu.RUnlock()

	clones := make([]stack.Stack, count)
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range slots {
		i, s := i, s
		g.Go(func() error {
			clones[i] = mutate(s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if start+count > len(w.stacks) {
		// Shrunk concurrently with our clone pass; reject rather than
		// commit a now-stale batch.
		return false, nil
	}
	copy(w.stacks[start:start+count], clones)
	return true, nil
}

// InsertAtomName maps name to index in the overlay namespace.
func (w *Workspace) InsertAtomName(name string, index int) namespace.InsertResult[string] {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.atomNames.Insert(name, index)
}

// AtomIndex returns the index named name, if any.
func (w *Workspace) AtomIndex(name string) (int, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.atomNames.Get(name)
}

// AtomName returns the name owning index, if any.
func (w *Workspace) AtomName(index int) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.atomNames.KeyOf(index)
}

// TagAtom adds (index, tag) to the class-tag relation.
func (w *Workspace) TagAtom(index int, tag string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.classTags.Insert(index, tag)
}

// UntagAtom removes (index, tag) from the class-tag relation.
func (w *Workspace) UntagAtom(index int, tag string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.classTags.Remove(index, tag)
}

// TagsOf returns every tag associated with index.
func (w *Workspace) TagsOf(index int) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.classTags.GetLeft(index)
}

// AtomsTagged returns every index associated with tag.
func (w *Workspace) AtomsTagged(tag string) []int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.classTags.GetRight(tag)
}

// Export builds a WorkspaceExport snapshot: the base molecule, a
// dehydrated stack forest, and the two overlay namespace maps,
// recovering original_source's Workspace::export.
func (w *Workspace) Export() Export {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stacksCopy := make([]stack.Stack, len(w.stacks))
	copy(stacksCopy, w.stacks)

	names := make(map[string]int, len(w.atomNames.Data()))
	for k, v := range w.atomNames.Data() {
		names[k] = v
	}
	var groups [][2]interface{}
	for _, p := range w.classTags.Pairs() {
		groups = append(groups, [2]interface{}{p[1], p[0]})
	}

	return Export{
		Base:      w.base.Clone(),
		Forest:    stacktree.Dehydrate(stacksCopy),
		AtomNames: names,
		Groups:    groups,
	}
}

// Export is the in-memory counterpart of §6's WorkspaceExport wire shape.
type Export struct {
	Base      molecule.Molecule
	Forest    stacktree.Forest
	AtomNames map[string]int
	Groups    [][2]interface{}
}

// Import rebuilds a workspace from an Export, hydrating the stack
// forest back into an indexed stack list (the inverse of Export,
// recovering original_source's tree-to-stacks reimport path).
func Import(exp Export) (*Workspace, error) {
	stacks, err := stacktree.Hydrate(exp.Forest)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "workspace: import")
	}
	w := New(exp.Base)
	w.stacks = stacks
	for name, idx := range exp.AtomNames {
		if res := w.atomNames.Insert(name, idx); res.Kind == namespace.Duplicated {
			return nil, pkgerrors.Wrapf(ErrIdMapUnique, "name %q conflicts with %q over index %d", name, res.DuplicatedKey, idx)
		}
	}
	for _, p := range exp.Groups {
		name, _ := p[0].(string)
		idx, err := groupIndex(p[1])
		if err != nil {
			return nil, pkgerrors.Wrap(err, "workspace: import group")
		}
		w.classTags.Insert(idx, name)
	}
	return w, nil
}

func groupIndex(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, pkgerrors.Errorf("group index is not a number: %v", v)
	}
}
