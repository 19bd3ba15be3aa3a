package mir

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

const roundTripSrc = `
struct Pair { Int64, Int64 }
opaque struct Blob { Int64, Pair }

func @fill(%out: out Pair, %cond: direct Int64) {
bb0:
  %0 = alloc_stack Pair
  %1 = field_addr %0, 0
  store 1 to [init] %1
  %2 = field_addr %0, 1
  store 2 to [init] %2
  cond_br %cond, bb1, bb2
bb1:
  copy_addr [take] %0 to [init] %out
  dealloc_stack %0
  br bb3
bb2:
  destroy_addr %0
  dealloc_stack %0
  %3 = alloc_stack [dynamic] Pair
  apply @fallback(%3: inout, %out: out)
  br bb3
bb3:
  return
}

func @caller(%p: inout Pair) {
bb0:
  %0 = begin_access %p
  %1 = load [copy] %0
  end_access %0
  %2 = alloc_stack Blob
  try_apply @mayThrow(%2: out) normal bb1, error bb2
bb1:
  destroy_addr %2
  dealloc_stack %2
  yield (%p: in_guaranteed)
  return
bb2:
  dealloc_stack %2
  throw
}
`

func TestParsePrintRoundTrip(t *testing.T) {
	m, err := ParseModuleString(roundTripSrc)
	if err != nil {
		t.Fatal(err)
	}

	printed := m.String()
	m2, err := ParseModuleString(printed)
	if err != nil {
		t.Fatalf("printed module failed to re-parse: %v\n%s", err, printed)
	}
	if again := m2.String(); printed != again {
		t.Errorf("printing is not stable:\n--- first ---\n%s\n--- second ---\n%s", printed, again)
	}
}

func TestParsedStructure(t *testing.T) {
	m, err := ParseModuleString(roundTripSrc)
	if err != nil {
		t.Fatal(err)
	}

	fill := m.Func("fill")
	if fill == nil {
		t.Fatal("function @fill not found")
	}
	if len(fill.Blocks) != 4 {
		t.Fatalf("@fill has %d blocks, want 4", len(fill.Blocks))
	}

	// bb3 is the merge point of bb1 and bb2.
	merge := fill.Blocks[3]
	if len(merge.Preds()) != 2 {
		t.Errorf("%s has %d predecessors, want 2", merge.Name(), len(merge.Preds()))
	}
	if succs := fill.Entry().Succs(); len(succs) != 2 {
		t.Errorf("entry has %d successors, want 2", len(succs))
	}

	// The alloc in bb0 is used by two projections, a copy_addr, a destroy
	// and a dealloc in each branch.
	alloc := fill.Entry().Instrs[0].(*AllocStack)
	if uses := len(*alloc.Referrers()); uses != 6 {
		t.Errorf("alloc_stack has %d uses, want 6", uses)
	}

	caller := m.Func("caller")
	term := caller.Entry().Term()
	try, ok := term.(*TryApply)
	if !ok {
		t.Fatalf("@caller entry terminator is %T, want *TryApply", term)
	}
	if succs := try.Successors(); len(succs) != 2 ||
		succs[0] != caller.Blocks[1] || succs[1] != caller.Blocks[2] {
		t.Error("try_apply successors are not (normal, error) in order")
	}
	if try.ArgumentConvention(0) != Out {
		t.Errorf("try_apply argument convention = %v, want out", try.ArgumentConvention(0))
	}

	if m.Types["Blob"].Fields[1] != m.Types["Pair"] {
		t.Error("struct field referencing a named type should resolve to it")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name, src, want string
	}{
		{
			"unknown instruction",
			"func @f() {\nbb0:\n  frobnicate %0\n  return\n}",
			"unknown instruction",
		},
		{
			"undefined value",
			"func @f() {\nbb0:\n  destroy_addr %9\n  return\n}",
			"undefined value",
		},
		{
			"missing terminator",
			"func @f() {\nbb0:\n  %0 = alloc_stack Int64\n}",
			"terminator",
		},
		{
			"field out of range",
			"struct P { Int64 }\nfunc @f() {\nbb0:\n  %0 = alloc_stack P\n  %1 = field_addr %0, 3\n  return\n}",
			"field",
		},
		{
			"redefinition",
			"func @f() {\nbb0:\n  %0 = alloc_stack Int64\n  %0 = alloc_stack Int64\n  return\n}",
			"redefinition",
		},
		{
			"unbound result",
			"func @f() {\nbb0:\n  alloc_stack Int64\n  return\n}",
			"not bound",
		},
		{
			"undefined block",
			"func @f() {\nbb0:\n  br bb7\n}",
			"undefined block",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseModuleString(test.src)
			if err == nil {
				t.Fatal("expected a parse error")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %q does not mention %q", err, test.want)
			}
		})
	}
}

func TestPrintGolden(t *testing.T) {
	m, err := ParseModuleString(roundTripSrc)
	if err != nil {
		t.Fatal(err)
	}
	g := goldie.New(t)
	g.Assert(t, t.Name(), []byte(m.String()))
}
