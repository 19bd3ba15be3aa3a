// Package dataflow is a generic forward/backward fixed-point solver for
// bit-vector dataflow problems over a MIR control-flow graph. It knows the
// graph shape and nothing about what the bits mean.
package dataflow

import (
	"github.com/silt-dev/silt/mir"
	"github.com/silt-dev/silt/utils/bits"
	"github.com/silt-dev/silt/utils/worklist"
)

// BlockState holds the dataflow facts of one basic block. States are
// allocated once per function in a single table indexed by block ordinal;
// only indices, never addresses, need to be retained across iterations.
type BlockState struct {
	Block *mir.Block

	EntrySet bits.Bits
	ExitSet  bits.Bits
	GenSet   bits.Bits
	KillSet  bits.Bits

	ReachableFromEntry bool
	ExitReachable      bool
}

// Dataflow attaches a BlockState to every block of one function.
type Dataflow struct {
	fn     *mir.Function
	states []BlockState
}

// New preallocates the state table with vectors of width numBits. The table
// is sized once up front; it is never resized during solving.
func New(fn *mir.Function, numBits int) *Dataflow {
	df := &Dataflow{
		fn:     fn,
		states: make([]BlockState, len(fn.Blocks)),
	}
	for idx, blk := range fn.Blocks {
		st := &df.states[idx]
		st.Block = blk
		st.EntrySet = bits.New(numBits)
		st.ExitSet = bits.New(numBits)
		st.GenSet = bits.New(numBits)
		st.KillSet = bits.New(numBits)
	}
	return df
}

// State returns the state of blk.
func (df *Dataflow) State(blk *mir.Block) *BlockState {
	return &df.states[blk.Index]
}

// ForEach visits every block state in block order.
func (df *Dataflow) ForEach(do func(st *BlockState)) {
	for idx := range df.states {
		do(&df.states[idx])
	}
}

// EntryReachability marks every block reachable from the function entry.
func (df *Dataflow) EntryReachability() {
	entry := df.State(df.fn.Entry())
	entry.ReachableFromEntry = true

	worklist.Start(entry, func(st *BlockState, add func(*BlockState)) {
		for _, succ := range st.Block.Succs() {
			succState := df.State(succ)
			if !succState.ReachableFromEntry {
				succState.ReachableFromEntry = true
				add(succState)
			}
		}
	})
}

// ExitReachability marks every block from which a function-exiting
// terminator is reachable.
func (df *Dataflow) ExitReachability() {
	var exits []*BlockState
	df.ForEach(func(st *BlockState) {
		if st.Block.Term().IsFunctionExiting() {
			st.ExitReachable = true
			exits = append(exits, st)
		}
	})

	worklist.StartV(exits, func(st *BlockState, add func(*BlockState)) {
		for _, pred := range st.Block.Preds() {
			predState := df.State(pred)
			if !predState.ExitReachable {
				predState.ExitReachable = true
				add(predState)
			}
		}
	})
}

// SolveForward iterates entry = ∩ preds' exit, exit = (entry ∪ gen) − kill
// to a fixed point. The entry block's entry set is seeded by the caller and
// left untouched, as it has no predecessors. Termination follows from the
// monotone transfer function on a finite lattice.
func (df *Dataflow) SolveForward() {
	changed := false
	firstRound := true
	for {
		changed = false
		for idx := range df.states {
			st := &df.states[idx]
			b := st.EntrySet.Copy()
			for _, pred := range st.Block.Preds() {
				b.IntersectWith(df.State(pred).ExitSet)
			}
			if firstRound || !b.Equal(st.EntrySet) {
				changed = true
				st.EntrySet = b.Copy()
				b.UnionWith(st.GenSet)
				b.Reset(st.KillSet)
				st.ExitSet = b
			}
		}
		firstRound = false
		if !changed {
			break
		}
	}
}

// SolveBackward is the dual direction: exit = ∩ succs' entry, entry =
// (exit ∪ gen) − kill.
func (df *Dataflow) SolveBackward() {
	changed := false
	firstRound := true
	for {
		changed = false
		for idx := len(df.states) - 1; idx >= 0; idx-- {
			st := &df.states[idx]
			b := st.ExitSet.Copy()
			for _, succ := range st.Block.Succs() {
				b.IntersectWith(df.State(succ).EntrySet)
			}
			if firstRound || !b.Equal(st.ExitSet) {
				changed = true
				st.ExitSet = b.Copy()
				b.UnionWith(st.GenSet)
				b.Reset(st.KillSet)
				st.EntrySet = b
			}
		}
		firstRound = false
		if !changed {
			break
		}
	}
}
