package bits

import "testing"

func TestSetTestClear(t *testing.T) {
	b := New(10)
	for _, i := range []int{0, 3, 9} {
		b.Set(i)
	}
	for i := 0; i < 10; i++ {
		want := i == 0 || i == 3 || i == 9
		if b.Test(i) != want {
			t.Errorf("Test(%d) = %v, want %v", i, b.Test(i), want)
		}
	}

	b.Clear(3)
	if b.Test(3) {
		t.Error("bit 3 still set after Clear")
	}
	// Out-of-range probes are harmless.
	b.Clear(100)
	if b.Test(100) || b.Test(-1) {
		t.Error("out-of-range Test should be false")
	}
}

func TestSetGrows(t *testing.T) {
	var b Bits
	b.Set(130)
	if b.Len() != 131 {
		t.Errorf("Len() = %d, want 131", b.Len())
	}
	if !b.Test(130) || b.Test(129) {
		t.Error("unexpected bits after growing Set")
	}
}

func TestSetAllRespectsWidth(t *testing.T) {
	b := New(70)
	b.SetAll()
	for i := 0; i < 70; i++ {
		if !b.Test(i) {
			t.Fatalf("bit %d not set by SetAll", i)
		}
	}
	if !b.Equal(func() Bits {
		o := New(70)
		for i := 0; i < 70; i++ {
			o.Set(i)
		}
		return o
	}()) {
		t.Error("SetAll set bits beyond the vector width")
	}

	b.ClearAll()
	if !b.None() {
		t.Error("bits remain after ClearAll")
	}
}

func TestLatticeOps(t *testing.T) {
	mk := func(is ...int) Bits {
		b := New(8)
		for _, i := range is {
			b.Set(i)
		}
		return b
	}

	tests := []struct {
		name string
		op   func(a, b *Bits)
		a, b Bits
		want Bits
	}{
		{"union", func(a, b *Bits) { a.UnionWith(*b) }, mk(0, 2), mk(1, 2), mk(0, 1, 2)},
		{"intersect", func(a, b *Bits) { a.IntersectWith(*b) }, mk(0, 2, 5), mk(2, 5, 7), mk(2, 5)},
		{"reset", func(a, b *Bits) { a.Reset(*b) }, mk(0, 2, 5), mk(2, 7), mk(0, 5)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			test.op(&test.a, &test.b)
			if !test.a.Equal(test.want) {
				t.Errorf("got %v, want %v", test.a, test.want)
			}
		})
	}
}

func TestWidthInsensitiveEqual(t *testing.T) {
	a := New(4)
	b := New(200)
	a.Set(1)
	b.Set(1)
	if !a.Equal(b) || !b.Equal(a) {
		t.Error("vectors with equal bits but unequal widths should be Equal")
	}
	b.Set(190)
	if a.Equal(b) {
		t.Error("vectors differing in a high bit should not be Equal")
	}
}

func TestFreshOps(t *testing.T) {
	mk := func(is ...int) Bits {
		var b Bits
		for _, i := range is {
			b.Set(i)
		}
		return b
	}

	a, b := mk(0, 1, 64), mk(1, 64, 65)
	if got := And(a, b); !got.Equal(mk(1, 64)) {
		t.Errorf("And = %v", got)
	}
	if got := AndNot(a, b); !got.Equal(mk(0)) {
		t.Errorf("AndNot = %v", got)
	}
	if got := Xor(a, b); !got.Equal(mk(0, 65)) {
		t.Errorf("Xor = %v", got)
	}
	// Operands are untouched.
	if !a.Equal(mk(0, 1, 64)) || !b.Equal(mk(1, 64, 65)) {
		t.Error("fresh ops mutated an operand")
	}
}

func TestFindFirstAndForEach(t *testing.T) {
	var b Bits
	if b.FindFirst() != -1 {
		t.Error("FindFirst on empty vector should be -1")
	}
	for _, i := range []int{3, 64, 100} {
		b.Set(i)
	}
	if got := b.FindFirst(); got != 3 {
		t.Errorf("FindFirst = %d, want 3", got)
	}

	var seen []int
	b.ForEach(func(i int) { seen = append(seen, i) })
	want := []int{3, 64, 100}
	if len(seen) != len(want) {
		t.Fatalf("ForEach visited %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("ForEach visited %v, want %v", seen, want)
		}
	}

	if got := b.String(); got != "[3,64,100]" {
		t.Errorf("String = %q", got)
	}
}

func TestCopyIsIndependent(t *testing.T) {
	a := New(5)
	a.Set(2)
	b := a.Copy()
	b.Set(4)
	if a.Test(4) {
		t.Error("mutating a copy changed the original")
	}
}
