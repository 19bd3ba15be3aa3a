package lifetime

import (
	"io"
	"testing"

	"github.com/silt-dev/silt/mir"
	"github.com/silt-dev/silt/testutil"
)

// collect runs the verifier in collect mode with reports discarded.
func collect(t *testing.T, fn *mir.Function) []Failure {
	t.Helper()
	return Verify(fn, Config{ReportAll: true, Out: io.Discard})
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name, src string
		want      []Kind
	}{
		{
			"init then read then destroy",
			`
func @ok() {
bb0:
  %0 = alloc_stack Int64
  store 1 to [init] %0
  %1 = load [copy] %0
  destroy_addr %0
  dealloc_stack %0
  return
}
`,
			nil,
		},
		{
			"read before write",
			`
func @readBeforeWrite() {
bb0:
  %0 = alloc_stack Int64
  %1 = load [copy] %0
  store 1 to [init] %0
  destroy_addr %0
  dealloc_stack %0
  return
}
`,
			[]Kind{UninitializedRead},
		},
		{
			"double initialization",
			`
func @dblInit(%x: out Int64) {
bb0:
  store 1 to [init] %x
  store 2 to [init] %x
  br bb1
bb1:
  return
}
`,
			[]Kind{DoubleInitialization},
		},
		{
			"inout not alive at return",
			`
func @inoutDead(%x: inout Int64) {
bb0:
  %0 = load [take] %x
  br bb1
bb1:
  return
}
`,
			[]Kind{LeakAtScopeEnd},
		},
		{
			"leaked field at dealloc",
			`
struct Pair { Int64, Int64 }

func @leak() {
bb0:
  %0 = alloc_stack Pair
  %1 = field_addr %0, 0
  store 1 to [init] %1
  dealloc_stack %0
  return
}
`,
			[]Kind{LeakAtScopeEnd},
		},
		{
			"take from in_guaranteed argument",
			`
func @takeGuaranteed(%x: in_guaranteed Int64) {
bb0:
  %0 = load [take] %x
  br bb1
bb1:
  return
}
`,
			// The take de-initializes memory the function must keep alive.
			[]Kind{LeakAtScopeEnd},
		},
		{
			"consume in argument twice",
			`
func @consumeTwice(%x: in Int64) {
bb0:
  apply @sink(%x: in)
  apply @sink(%x: in)
  br bb1
bb1:
  return
}
`,
			[]Kind{UninitializedRead},
		},
		{
			"copy_addr take moves between locals",
			`
func @move(%dst: out Int64) {
bb0:
  %0 = alloc_stack Int64
  store 1 to [init] %0
  copy_addr [take] %0 to [init] %dst
  dealloc_stack %0
  return
}
`,
			nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fn := testutil.ParseFunction(t, test.src)
			failures := collect(t, fn)
			if len(failures) != len(test.want) {
				t.Fatalf("got %d failures, want %d: %v", len(failures), len(test.want), failures)
			}
			for i, f := range failures {
				if f.Kind != test.want[i] {
					t.Errorf("failure %d is %v, want %v", i, f.Kind, test.want[i])
				}
			}
		})
	}
}

func TestFailureAnchoredAtRead(t *testing.T) {
	fn := testutil.ParseFunction(t, `
func @readBeforeWrite() {
bb0:
  %0 = alloc_stack Int64
  %1 = load [copy] %0
  store 1 to [init] %0
  destroy_addr %0
  dealloc_stack %0
  return
}
`)
	failures := collect(t, fn)
	if len(failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(failures))
	}
	if failures[0].At != fn.Entry().Instrs[1] {
		t.Errorf("failure anchored at %s, want the load", failures[0].At)
	}
}

func TestMergeMismatch(t *testing.T) {
	fn := testutil.ParseFunction(t, `
func @mismatch(%c: direct Int64) {
bb0:
  %0 = alloc_stack Int64
  cond_br %c, bb1, bb2
bb1:
  store 1 to [init] %0
  br bb3
bb2:
  br bb3
bb3:
  %1 = load [copy] %0
  destroy_addr %0
  dealloc_stack %0
  return
}
`)
	failures := collect(t, fn)
	if len(failures) == 0 {
		t.Fatal("expected failures")
	}
	first := failures[0]
	if first.Kind != MergeMismatch {
		t.Fatalf("first failure is %v, want merge-mismatch", first.Kind)
	}
	merge := fn.Blocks[3]
	if first.At != merge.First() {
		t.Errorf("merge mismatch anchored at %s, want first instruction of %s", first.At, merge.Name())
	}
}

func TestTryApplyOutOnNormalEdgeOnly(t *testing.T) {
	fn := testutil.ParseFunction(t, `
func @tryOut(%x: out Int64) {
bb0:
  try_apply @init(%x: out) normal bb1, error bb2
bb1:
  return
bb2:
  throw
}
`)
	if failures := collect(t, fn); len(failures) != 0 {
		t.Errorf("out result on the normal edge should verify, got %v", failures)
	}

	// Returning normally on the error edge leaves the out result
	// uninitialized at a return terminator.
	bad := testutil.ParseFunction(t, `
func @tryOutBad(%x: out Int64) {
bb0:
  try_apply @init(%x: out) normal bb1, error bb2
bb1:
  return
bb2:
  return
}
`)
	failures := collect(t, bad)
	if len(failures) != 1 || failures[0].Kind != LeakAtScopeEnd {
		t.Errorf("got %v, want one leak-at-scope-end on the error-edge return", failures)
	}
}

func TestUntrackedMemoryNeverFails(t *testing.T) {
	fn := testutil.ParseFunction(t, `
struct Pair { Int64, Int64 }

func @escaped(%p: inout Pair) {
bb0:
  %0 = alloc_stack Pair
  store %0 to [assign] %p
  %1 = load [copy] %0
  br bb1
bb1:
  dealloc_stack %0
  return
}
`)
	// The allocation's address escapes through the store, so its
	// never-initialized read must not be reported.
	if failures := collect(t, fn); len(failures) != 0 {
		t.Errorf("untracked memory produced failures: %v", failures)
	}
}

func TestVerifyIsIdempotent(t *testing.T) {
	m := testutil.ParseModule(t, `
func @bad() {
bb0:
  %0 = alloc_stack Int64
  %1 = load [copy] %0
  dealloc_stack %0
  return
}

func @good(%x: inout Int64) {
bb0:
  %0 = load [copy] %x
  br bb1
bb1:
  return
}
`)
	conf := Config{ReportAll: true, Out: io.Discard}
	first := VerifyModule(m, conf)
	second := VerifyModule(m, conf)
	if len(first) != len(second) {
		t.Fatalf("runs disagree: %d vs %d failures", len(first), len(second))
	}
	for i := range first {
		if first[i].Kind != second[i].Kind || first[i].At != second[i].At {
			t.Errorf("failure %d differs between runs", i)
		}
	}
	if len(first) != 1 {
		t.Errorf("got %d failures, want 1", len(first))
	}
}
