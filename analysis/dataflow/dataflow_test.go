package dataflow

import (
	"math/rand"
	"testing"

	"github.com/silt-dev/silt/mir"
	"github.com/silt-dev/silt/testutil"
	"github.com/silt-dev/silt/utils/bits"

	"github.com/sebdah/goldie/v2"
)

const diamondSrc = `
func @diamond(%c: direct Int64) {
bb0:
  cond_br %c, bb1, bb2
bb1:
  br bb3
bb2:
  br bb3
bb3:
  return
}
`

func TestReachability(t *testing.T) {
	fn := testutil.ParseFunction(t, `
func @reach(%c: direct Int64) {
bb0:
  cond_br %c, bb1, bb2
bb1:
  br bb3
bb2:
  br bb2
bb3:
  return
bb4:
  unreachable
}
`)
	df := New(fn, 0)
	df.EntryReachability()
	df.ExitReachability()

	wantEntry := []bool{true, true, true, true, false}
	wantExit := []bool{true, true, false, true, false}
	df.ForEach(func(st *BlockState) {
		if st.ReachableFromEntry != wantEntry[st.Block.Index] {
			t.Errorf("%s: ReachableFromEntry = %v", st.Block.Name(), st.ReachableFromEntry)
		}
		if st.ExitReachable != wantExit[st.Block.Index] {
			t.Errorf("%s: ExitReachable = %v", st.Block.Name(), st.ExitReachable)
		}
	})
}

// solveDiamond builds the diamond CFG where bb0 generates bit 0 and bb1
// kills it again on one branch.
func solveDiamond(t *testing.T) *Dataflow {
	fn := testutil.ParseFunction(t, diamondSrc)
	df := New(fn, 2)
	df.State(fn.Blocks[0]).GenSet.Set(0)
	df.State(fn.Blocks[1]).KillSet.Set(0)
	df.SolveForward()
	return df
}

func TestSolveForward(t *testing.T) {
	df := solveDiamond(t)

	wantExit := []string{"[0]", "[]", "[0]", "[]"}
	df.ForEach(func(st *BlockState) {
		if got := st.ExitSet.String(); got != wantExit[st.Block.Index] {
			t.Errorf("%s exit = %s, want %s", st.Block.Name(), got, wantExit[st.Block.Index])
		}
	})

	// The merge point intersects the disagreeing branch exits.
	merge := df.State(df.fn.Blocks[3])
	if !merge.EntrySet.None() {
		t.Errorf("merge entry = %v, want []", merge.EntrySet)
	}

	assertForwardFixedPoint(t, df)
}

func TestSolveBackward(t *testing.T) {
	fn := testutil.ParseFunction(t, diamondSrc)
	df := New(fn, 2)
	// Treat bit 0 as a fact needed at the end: generated in bb3, killed in
	// the bb2 branch.
	df.State(fn.Blocks[3]).GenSet.Set(0)
	df.State(fn.Blocks[2]).KillSet.Set(0)
	df.SolveBackward()

	wantEntry := []string{"[]", "[0]", "[]", "[0]"}
	df.ForEach(func(st *BlockState) {
		if got := st.EntrySet.String(); got != wantEntry[st.Block.Index] {
			t.Errorf("%s entry = %s, want %s", st.Block.Name(), got, wantEntry[st.Block.Index])
		}
	})

	df.ForEach(func(st *BlockState) {
		if len(st.Block.Succs()) == 0 {
			return
		}
		meet := bits.New(2)
		meet.SetAll()
		for _, succ := range st.Block.Succs() {
			meet.IntersectWith(df.State(succ).EntrySet)
		}
		if !st.ExitSet.Equal(meet) {
			t.Errorf("%s exit %v is not the meet of successor entries %v", st.Block.Name(), st.ExitSet, meet)
		}
	})
}

func assertForwardFixedPoint(t *testing.T, df *Dataflow) {
	t.Helper()
	df.ForEach(func(st *BlockState) {
		want := st.EntrySet.Copy()
		want.UnionWith(st.GenSet)
		want.Reset(st.KillSet)
		if !st.ExitSet.Equal(want) {
			t.Errorf("%s: exit %v != (entry ∪ gen) − kill %v", st.Block.Name(), st.ExitSet, want)
		}

		if len(st.Block.Preds()) == 0 {
			return
		}
		meet := df.State(st.Block.Preds()[0]).ExitSet.Copy()
		for _, pred := range st.Block.Preds()[1:] {
			meet.IntersectWith(df.State(pred).ExitSet)
		}
		if !st.EntrySet.Equal(meet) {
			t.Errorf("%s: entry %v != meet of predecessor exits %v", st.Block.Name(), st.EntrySet, meet)
		}
	})
}

// TestSolveForwardRandom checks the fixed-point equalities on randomly
// generated DAGs with random gen/kill assignments.
func TestSolveForwardRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 50; round++ {
		numBlocks := 2 + rng.Intn(10)
		numBits := 1 + rng.Intn(8)

		b := mir.NewBuilder("random")
		cond := b.AddParam("c", &mir.ScalarType{TName: "Int64"}, mir.Direct)

		blocks := make([]*mir.Block, numBlocks)
		for i := range blocks {
			blocks[i] = b.NewBlock()
		}
		// Edges only go forward, so the graph stays acyclic and every block
		// has a terminator.
		for i, blk := range blocks {
			b.SetBlock(blk)
			if i == numBlocks-1 {
				b.Return()
				continue
			}
			then := blocks[i+1+rng.Intn(numBlocks-i-1)]
			els := blocks[i+1+rng.Intn(numBlocks-i-1)]
			b.CondBr(cond, then, els)
		}
		fn, err := b.Finish()
		if err != nil {
			t.Fatal(err)
		}

		df := New(fn, numBits)
		df.ForEach(func(st *BlockState) {
			for i := 0; i < numBits; i++ {
				switch rng.Intn(3) {
				case 0:
					st.GenSet.Set(i)
				case 1:
					st.KillSet.Set(i)
				}
			}
		})
		df.SolveForward()
		assertForwardFixedPoint(t, df)
	}
}

func TestDataflowDump(t *testing.T) {
	df := solveDiamond(t)
	goldie.New(t).Assert(t, t.Name(), []byte(df.String()))
}
