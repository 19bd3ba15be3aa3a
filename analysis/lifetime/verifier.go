// Package lifetime verifies that every non-aliased memory location of a MIR
// function is initialized exactly when required: never read uninitialized,
// never initialized twice, and never still initialized when its lifetime
// ends. Verification is read-only and deterministic.
package lifetime

import (
	"fmt"
	"io"
	"os"

	"github.com/silt-dev/silt/analysis/dataflow"
	"github.com/silt-dev/silt/analysis/location"
	"github.com/silt-dev/silt/mir"
	"github.com/silt-dev/silt/utils/bits"
)

// Config controls failure reporting. The zero value aborts the process on
// the first failure, the behavior expected of a compiler-internal sanity
// check.
type Config struct {
	// ReportAll collects and returns failures instead of aborting on the
	// first one.
	ReportAll bool
	// Out receives failure reports. Defaults to os.Stderr.
	Out io.Writer
}

func (c Config) out() io.Writer {
	if c.Out == nil {
		return os.Stderr
	}
	return c.Out
}

// Verify checks the memory lifetime of all locations in fn and returns the
// failures found (always nil unless conf.ReportAll is set).
func Verify(fn *mir.Function, conf Config) []Failure {
	v := &verifier{fn: fn, conf: conf}
	v.run()
	return v.failures
}

// Solve builds and solves the forward initialization dataflow of fn without
// checking it. Returns a nil Dataflow if fn has no trackable locations.
func Solve(fn *mir.Function) (*location.Locations, *dataflow.Dataflow) {
	v := &verifier{fn: fn, conf: Config{ReportAll: true}}
	v.locs = location.Analyze(fn)
	if v.locs.NumLocations() == 0 {
		return v.locs, nil
	}
	df := dataflow.New(fn, v.locs.NumLocations())
	df.EntryReachability()
	v.initDataflow(df)
	df.SolveForward()
	return v.locs, df
}

// VerifyModule verifies every function of a module. Functions are
// independent; each one gets a private location table and state table.
func VerifyModule(m *mir.Module, conf Config) []Failure {
	var failures []Failure
	for _, fn := range m.Funcs {
		failures = append(failures, Verify(fn, conf)...)
	}
	return failures
}

type verifier struct {
	fn       *mir.Function
	locs     *location.Locations
	conf     Config
	failures []Failure
}

func (v *verifier) run() {
	// First step: locations which (potentially) span multiple blocks.
	v.locs = location.Analyze(v.fn)
	if v.locs.NumLocations() > 0 {
		df := dataflow.New(v.fn, v.locs.NumLocations())
		df.EntryReachability()
		v.initDataflow(df)
		df.SolveForward()
		v.checkFunction(df)
	}

	// Second step: single-block locations, which need no dataflow at all.
	v.locs.HandleSingleBlockLocations(func(blk *mir.Block) {
		b := bits.New(v.locs.NumLocations())
		v.checkBlock(blk, &b)
	})
}

// require records a failure unless cond holds.
func (v *verifier) require(cond bool, kind Kind, reason string, locIdx int, at mir.Instruction) {
	if cond {
		return
	}
	failure := Failure{Kind: kind, Reason: reason, LocIdx: locIdx, At: at, Fn: v.fn}
	fmt.Fprintln(v.conf.out(), failure)

	if v.conf.ReportAll {
		v.failures = append(v.failures, failure)
		return
	}
	fmt.Fprintf(v.conf.out(), "in function:\n%s", v.fn)
	os.Exit(1)
}

// requireNone records a failure if any bit of wrong is set, anchored at the
// first such bit.
func (v *verifier) requireNone(wrong bits.Bits, kind Kind, reason string, at mir.Instruction) {
	v.require(wrong.None(), kind, reason, wrong.FindFirst(), at)
}

// requireBitsSet requires all bits of addr's location set in b.
func (v *verifier) requireBitsSet(b bits.Bits, addr mir.Value, kind Kind, at mir.Instruction) {
	if loc := v.locs.Get(addr); loc != nil {
		v.requireNone(bits.AndNot(loc.SubLocations, b), kind,
			"memory is not initialized, but should be", at)
	}
}

// requireBitsClear requires all bits of addr's location clear in b.
func (v *verifier) requireBitsClear(b bits.Bits, addr mir.Value, kind Kind, at mir.Instruction) {
	if loc := v.locs.Get(addr); loc != nil {
		v.requireNone(bits.And(loc.SubLocations, b), kind,
			"memory is initialized, but shouldn't be", at)
	}
}

// initDataflow seeds the state table. Entry and exit sets start all-ones —
// the top element of the intersection lattice — except the function entry,
// which holds exactly the initialized indirect arguments. Unreachable blocks
// keep all-ones entry/exit and all-zero gen/kill, making them identity
// elements of the solve; their instructions are never checked.
func (v *verifier) initDataflow(df *dataflow.Dataflow) {
	df.ForEach(func(st *dataflow.BlockState) {
		if st.Block == v.fn.Entry() {
			for _, arg := range v.fn.Params {
				if arg.Convention().IsIndirect() && arg.Convention() != mir.Out {
					v.locs.SetBits(&st.EntrySet, arg)
				}
			}
		} else {
			st.EntrySet.SetAll()
		}
		st.ExitSet.SetAll()

		if st.ReachableFromEntry {
			v.initBlock(st)
		}
	})
}

// initBlock computes the gen/kill sets of one block.
func (v *verifier) initBlock(st *dataflow.BlockState) {
	// Out results of a try_apply terminating the single predecessor belong
	// to this block's edge, not to the predecessor's gen set.
	v.outResultsOfPredecessor(&st.GenSet, st.Block)

	for _, i := range st.Block.Instrs {
		switch i := i.(type) {
		case *mir.Load:
			if i.Qualifier() == mir.LoadTake {
				v.killBits(st, i.X)
			}
		case *mir.Store:
			v.genBits(st, i.Addr)
		case *mir.CopyAddr:
			if i.TakeSrc {
				v.killBits(st, i.Src)
			}
			if i.InitDst {
				v.genBits(st, i.Dst)
			}
		case *mir.DestroyAddr:
			v.killBits(st, i.X)
		case *mir.Apply:
			for n, arg := range i.Args {
				v.operandBits(st, arg, i.ArgumentConvention(n), false)
			}
		case *mir.TryApply:
			for n, arg := range i.Args {
				v.operandBits(st, arg, i.ArgumentConvention(n), true)
			}
		case *mir.Yield:
			for n, arg := range i.Args {
				v.operandBits(st, arg, i.ArgumentConvention(n), false)
			}
		}
	}
}

func (v *verifier) genBits(st *dataflow.BlockState, addr mir.Value) {
	v.locs.ClearBits(&st.KillSet, addr)
	v.locs.SetBits(&st.GenSet, addr)
}

func (v *verifier) killBits(st *dataflow.BlockState, addr mir.Value) {
	v.locs.ClearBits(&st.GenSet, addr)
	v.locs.SetBits(&st.KillSet, addr)
}

func (v *verifier) operandBits(st *dataflow.BlockState, arg mir.Value, conv mir.Convention, isTryApply bool) {
	switch conv {
	case mir.In, mir.InConstant:
		v.killBits(st, arg)
	case mir.Out:
		// An out result of a try_apply is only initialized on the normal
		// edge; it is handled in outResultsOfPredecessor instead.
		if !isTryApply {
			v.genBits(st, arg)
		}
	case mir.InGuaranteed, mir.Inout, mir.Direct:
	}
}

// outResultsOfPredecessor sets the bits of locations that become initialized
// on the edge into blk: the out arguments of a try_apply terminating blk's
// single predecessor, valid only in the normal successor.
func (v *verifier) outResultsOfPredecessor(b *bits.Bits, blk *mir.Block) {
	pred := blk.SinglePred()
	if pred == nil {
		return
	}
	ta, ok := pred.Term().(*mir.TryApply)
	if !ok || ta.Normal != blk {
		return
	}
	for n, arg := range ta.Args {
		if ta.ArgumentConvention(n) == mir.Out {
			v.locs.SetBits(b, arg)
		}
	}
}

// checkFunction runs all per-instruction and block-boundary checks once the
// dataflow has converged.
func (v *verifier) checkFunction(df *dataflow.Dataflow) {
	// The bits required to be set at function exits.
	expectedReturn := bits.New(v.locs.NumLocations())
	expectedThrow := bits.New(v.locs.NumLocations())
	for _, arg := range v.fn.Params {
		switch arg.Convention() {
		case mir.Inout, mir.InGuaranteed:
			v.locs.SetBits(&expectedReturn, arg)
			v.locs.SetBits(&expectedThrow, arg)
		case mir.Out:
			v.locs.SetBits(&expectedReturn, arg)
		}
	}

	df.ForEach(func(st *dataflow.BlockState) {
		if !st.ReachableFromEntry {
			return
		}

		// A location lifetime mismatch at a merge point shows up as a
		// symmetric difference between a predecessor's exit set and the
		// solved entry set. Checked before the block replay so that it is
		// the first failure reported for the block.
		for _, pred := range st.Block.Preds() {
			predState := df.State(pred)
			if predState.ReachableFromEntry {
				v.requireNone(bits.Xor(st.EntrySet, predState.ExitSet), MergeMismatch,
					"lifetime mismatch in predecessors", st.Block.First())
			}
		}

		b := st.EntrySet.Copy()
		v.checkBlock(st.Block, &b)

		switch term := st.Block.Term().(type) {
		case *mir.Return, *mir.Unwind:
			v.requireNone(bits.AndNot(expectedReturn, st.ExitSet), LeakAtScopeEnd,
				"indirect argument is not alive at function return", term)
			v.requireNone(bits.AndNot(st.ExitSet, expectedReturn), LeakAtScopeEnd,
				"memory is initialized at function return but shouldn't be", term)
		case *mir.Throw:
			v.requireNone(bits.AndNot(expectedThrow, st.ExitSet), LeakAtScopeEnd,
				"indirect argument is not alive at throw", term)
			v.requireNone(bits.AndNot(st.ExitSet, expectedThrow), LeakAtScopeEnd,
				"memory is initialized at throw but shouldn't be", term)
		}
	})
}

// checkBlock replays blk's instructions over the running bit set b, checking
// each instruction's requirements and applying its effects.
func (v *verifier) checkBlock(blk *mir.Block, b *bits.Bits) {
	v.outResultsOfPredecessor(b, blk)

	for _, i := range blk.Instrs {
		switch i := i.(type) {
		case *mir.Load:
			v.requireBitsSet(*b, i.X, UninitializedRead, i)
			if i.Qualifier() == mir.LoadTake {
				v.locs.ClearBits(b, i.X)
			}
		case *mir.Store:
			switch i.Qualifier() {
			case mir.StoreInit:
				v.requireBitsClear(*b, i.Addr, DoubleInitialization, i)
				v.locs.SetBits(b, i.Addr)
			case mir.StoreAssign:
				v.requireBitsSet(*b, i.Addr, UninitializedRead, i)
			case mir.StoreTrivial:
				// A trivial store is either an init or an assign, so nothing
				// is required. The bits must be set regardless: a trivial
				// store may assign a non-trivial aggregate member.
				v.locs.SetBits(b, i.Addr)
			}
		case *mir.CopyAddr:
			v.requireBitsSet(*b, i.Src, UninitializedRead, i)
			if i.TakeSrc {
				v.locs.ClearBits(b, i.Src)
			}
			if i.InitDst {
				v.requireBitsClear(*b, i.Dst, DoubleInitialization, i)
				v.locs.SetBits(b, i.Dst)
			} else {
				v.requireBitsSet(*b, i.Dst, UninitializedRead, i)
			}
		case *mir.DestroyAddr:
			v.requireBitsSet(*b, i.X, UninitializedRead, i)
			v.locs.ClearBits(b, i.X)
		case *mir.EndBorrow:
			v.requireBitsSet(*b, i.X, UninitializedRead, i)
		case *mir.DebugAddr:
			v.requireBitsSet(*b, i.X, UninitializedRead, i)
		case *mir.DeallocStack:
			v.requireBitsClear(*b, i.X, LeakAtScopeEnd, i)
		case *mir.Apply:
			for n, arg := range i.Args {
				v.checkFuncArgument(b, arg, i.ArgumentConvention(n), i)
			}
		case *mir.TryApply:
			for n, arg := range i.Args {
				v.checkFuncArgument(b, arg, i.ArgumentConvention(n), i)
			}
		case *mir.Yield:
			for n, arg := range i.Args {
				v.checkFuncArgument(b, arg, i.ArgumentConvention(n), i)
			}
		}
	}
}

// checkFuncArgument checks one by-address call argument against the current
// live bits and applies the convention's effect.
func (v *verifier) checkFuncArgument(b *bits.Bits, arg mir.Value, conv mir.Convention, at mir.Instruction) {
	switch conv {
	case mir.In, mir.InConstant:
		v.requireBitsSet(*b, arg, UninitializedRead, at)
		v.locs.ClearBits(b, arg)
	case mir.Out:
		v.requireBitsClear(*b, arg, DoubleInitialization, at)
		v.locs.SetBits(b, arg)
	case mir.InGuaranteed, mir.Inout:
		v.requireBitsSet(*b, arg, UninitializedRead, at)
	case mir.Direct:
	}
}
