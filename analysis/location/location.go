// Package location decomposes the non-aliased memory of a MIR function into
// a flat table of trackable locations, one dataflow bit each. Roots are
// indirect function arguments and statically scoped stack allocations; field
// projections introduce sub-locations nested below their root.
package location

import (
	"math"

	"github.com/silt-dev/silt/mir"
	"github.com/silt-dev/silt/utils"
	"github.com/silt-dev/silt/utils/bits"

	"github.com/benbjohnson/immutable"
	uf "github.com/spakin/disjoint"
)

// unboundedFields marks an aggregate whose fields cannot be statically
// enumerated. It never counts down to zero, so the aggregate bit is never
// retired.
const unboundedFields = math.MaxInt32

// Location is one trackable memory cell, or a field projection within one.
type Location struct {
	// Rep is the value defining this location's address.
	Rep mir.Value

	// SubLocations contains the location's own bit and the bits of all
	// sub-locations below it, minus any aggregate bits already retired by
	// full field coverage. Instruction semantics operate on this set.
	SubLocations bits.Bits

	// SelfAndParents contains the location's own bit and the bits of all its
	// transitive parents.
	SelfAndParents bits.Bits

	// ParentIdx is the index of the immediate parent location, or -1.
	ParentIdx int

	// fieldsNotCovered counts the aggregate fields without an own
	// sub-location. Lazily computed on the first projection; -1 until then.
	fieldsNotCovered int
}

func newLocation(val mir.Value, index, parentIdx int) Location {
	loc := Location{Rep: val, ParentIdx: parentIdx, fieldsNotCovered: -1}
	loc.SubLocations.Set(index)
	loc.SelfAndParents.Set(index)
	return loc
}

// subLocKey memoizes one (parent location, field number) projection.
type subLocKey struct {
	parent, field int
}

func (k subLocKey) Hash() uint32 {
	return utils.HashCombine(uint32(k.parent), uint32(k.field))
}

func (k subLocKey) Equal(o subLocKey) bool { return k == o }

// Locations is the location table of one function. It is built once by
// Analyze and read-only afterwards.
type Locations struct {
	locs      []Location
	addrToIdx *immutable.Map[mir.Value, int]

	// aliases groups every address value with the addresses derived from it
	// through transparent access scopes. The class representative data is the
	// underlying base address.
	aliases map[mir.Value]*uf.Element

	// singleBlock collects stack allocations whose lifetime is confined to
	// one block. They skip the dataflow solve entirely; see
	// HandleSingleBlockLocations.
	singleBlock []*mir.AllocStack
}

func newLocations() *Locations {
	return &Locations{
		addrToIdx: immutable.NewMap[mir.Value, int](utils.PointerHasher[mir.Value]{}),
		aliases:   map[mir.Value]*uf.Element{},
	}
}

// Analyze builds the location table for fn. Roots whose uses cannot all be
// statically analyzed are excluded wholesale; tracking must never produce a
// failure for memory it does not fully understand.
func Analyze(fn *mir.Function) *Locations {
	ls := newLocations()
	for _, arg := range fn.Params {
		if arg.Convention().IsIndirect() {
			ls.analyzeLocation(arg)
		}
	}
	fn.ForEachInstr(func(i mir.Instruction) {
		if as, ok := i.(*mir.AllocStack); ok && !as.Dynamic {
			if allUsesInSameBlock(as) {
				ls.singleBlock = append(ls.singleBlock, as)
			} else {
				ls.analyzeLocation(as)
			}
		}
	})
	return ls
}

// allUsesInSameBlock reports whether the allocation is deallocated in its own
// block. Stack discipline then confines every use to that block. A missing
// dealloc_stack (possible on unreachable paths) disqualifies the fast path.
func allUsesInSameBlock(as *mir.AllocStack) bool {
	numDeallocs := 0
	for _, user := range *as.Referrers() {
		if _, ok := user.(*mir.DeallocStack); ok {
			numDeallocs++
			if user.Parent() != as.Parent() {
				return false
			}
		}
	}
	return numDeallocs == 1
}

func (ls *Locations) NumLocations() int { return len(ls.locs) }

// At returns the location with the given bit index. The returned pointer is
// valid as long as the table is not re-analyzed.
func (ls *Locations) At(idx int) *Location { return &ls.locs[idx] }

// Index resolves an address value, stripping access scopes, to its assigned
// bit index, or -1 if the address is not tracked.
func (ls *Locations) Index(addr mir.Value) int {
	if idx, ok := ls.addrToIdx.Get(ls.baseValue(addr)); ok {
		return idx
	}
	return -1
}

// Get resolves an address value to its location, or nil if untracked.
func (ls *Locations) Get(addr mir.Value) *Location {
	idx := ls.Index(addr)
	if idx < 0 {
		return nil
	}
	return &ls.locs[idx]
}

// SetBits ORs the bits covered by addr's location into bs.
func (ls *Locations) SetBits(bs *bits.Bits, addr mir.Value) {
	if loc := ls.Get(addr); loc != nil {
		bs.UnionWith(loc.SubLocations)
	}
}

// ClearBits removes the bits covered by addr's location from bs.
func (ls *Locations) ClearBits(bs *bits.Bits, addr mir.Value) {
	if loc := ls.Get(addr); loc != nil {
		bs.Reset(loc.SubLocations)
	}
}

// HandleSingleBlockLocations re-analyzes the deferred single-block
// allocations, grouped by their parent block, and invokes the handler once
// per block. The table is rebuilt for each group, so handlers must not
// retain locations across calls.
func (ls *Locations) HandleSingleBlockLocations(handler func(*mir.Block)) {
	var current *mir.Block
	ls.clear()

	for _, as := range ls.singleBlock {
		if current != nil && as.Parent() != current {
			handler(current)
			ls.clear()
		}
		current = as.Parent()
		ls.analyzeLocation(as)
	}
	if current != nil {
		handler(current)
	}
	ls.clear()
}

func (ls *Locations) clear() {
	ls.locs = nil
	ls.addrToIdx = immutable.NewMap[mir.Value, int](utils.PointerHasher[mir.Value]{})
}

func (ls *Locations) analyzeLocation(v mir.Value) {
	if !mir.Trackable(v.Type()) {
		return
	}

	idx := len(ls.locs)
	ls.locs = append(ls.locs, newLocation(v, idx, -1))

	// The address map is persistent, so discarding an unanalyzable root
	// together with its partially registered children is a snapshot restore.
	saved := ls.addrToIdx
	memo := utils.NewImmMap[subLocKey, int]()
	if !ls.analyzeUses(v, idx, &memo) {
		ls.locs = ls.locs[:idx]
		ls.addrToIdx = saved
		return
	}
	ls.addrToIdx = ls.addrToIdx.Set(v, idx)
}

// analyzeUses walks all uses of the address v, which belongs to the location
// with index locIdx. It reports whether every use is understood by the
// lifetime model.
func (ls *Locations) analyzeUses(v mir.Value, locIdx int, memo **immutable.Map[subLocKey, int]) bool {
	refs := v.Referrers()
	if refs == nil {
		return true
	}
	for _, user := range *refs {
		switch user := user.(type) {
		case *mir.FieldAddr:
			if !ls.analyzeProjection(user, locIdx, user.Field, memo) {
				return false
			}
		case *mir.BeginAccess:
			ls.recordAlias(user, v)
			if !ls.analyzeUses(user, locIdx, memo) {
				return false
			}
		case *mir.Store:
			// A trivial store down-grades the whole root: it may silently
			// re-initialize memory, and the two would disagree. An address
			// appearing as the stored value escapes.
			if user.Addr != v || user.Qualifier() == mir.StoreTrivial {
				return false
			}
		case *mir.Load, *mir.EndAccess, *mir.EndBorrow, *mir.DestroyAddr,
			*mir.Apply, *mir.TryApply, *mir.Yield, *mir.CopyAddr,
			*mir.DebugAddr, *mir.DeallocStack:
			// Plain uses that neither project nor escape the address.
		default:
			return false
		}
	}
	return true
}

// analyzeProjection registers the sub-location for one field projection,
// reusing the sub-location index if the same field was projected before.
func (ls *Locations) analyzeProjection(proj *mir.FieldAddr, parentIdx, field int, memo **immutable.Map[subLocKey, int]) bool {
	if !mir.Trackable(proj.Type()) {
		return true
	}

	key := subLocKey{parent: parentIdx, field: field}
	subIdx, ok := (*memo).Get(key)
	if !ok {
		subIdx = len(ls.locs)
		ls.locs = append(ls.locs, newLocation(proj, subIdx, parentIdx))
		ls.locs[subIdx].SelfAndParents.UnionWith(ls.locs[parentIdx].SelfAndParents)

		for idx := parentIdx; idx >= 0; idx = ls.locs[idx].ParentIdx {
			ls.locs[idx].SubLocations.Set(subIdx)
		}

		ls.initFieldsCounter(parentIdx)
		ls.locs[parentIdx].fieldsNotCovered--
		if ls.locs[parentIdx].fieldsNotCovered == 0 {
			// Every field now has its own sub-location: retire the
			// aggregate-level bit, state is tracked per field from here on.
			for idx := parentIdx; idx >= 0; idx = ls.locs[idx].ParentIdx {
				ls.locs[idx].SubLocations.Clear(parentIdx)
			}
		}
		*memo = (*memo).Set(key, subIdx)
	}

	if !ls.analyzeUses(proj, subIdx, memo) {
		return false
	}
	ls.addrToIdx = ls.addrToIdx.Set(proj, subIdx)
	return true
}

func (ls *Locations) initFieldsCounter(idx int) {
	loc := &ls.locs[idx]
	if loc.fieldsNotCovered >= 0 {
		return
	}
	loc.fieldsNotCovered = 0
	switch t := loc.Rep.Type().(type) {
	case *mir.StructType:
		if t.Opaque {
			loc.fieldsNotCovered = unboundedFields
			return
		}
		for _, f := range t.Fields {
			if mir.Trackable(f) {
				loc.fieldsNotCovered++
			}
		}
	case *mir.TupleType:
		for _, e := range t.Elems {
			if mir.Trackable(e) {
				loc.fieldsNotCovered++
			}
		}
	}
}

func (ls *Locations) classOf(v mir.Value) *uf.Element {
	e, ok := ls.aliases[v]
	if !ok {
		e = uf.NewElement()
		e.Data = v
		ls.aliases[v] = e
	}
	return e
}

// recordAlias merges the access-scope value into the alias class of the
// address it derives from, keeping the class representative data at the
// underlying base address.
func (ls *Locations) recordAlias(scope, base mir.Value) {
	root := ls.classOf(base).Find().Data
	uf.Union(ls.classOf(base), ls.classOf(scope))
	ls.classOf(base).Find().Data = root
}

// baseValue resolves an address through transparent access scopes.
func (ls *Locations) baseValue(addr mir.Value) mir.Value {
	if e, ok := ls.aliases[addr]; ok {
		return e.Find().Data.(mir.Value)
	}
	return addr
}
