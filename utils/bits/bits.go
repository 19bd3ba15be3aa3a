// Package bits provides the small growable bit vectors used as dataflow
// lattice elements. One bit corresponds to one memory location.
package bits

import (
	mb "math/bits"
	"strconv"
	"strings"
)

const wordSize = 64

// Bits is a fixed-width bit vector. The zero value is an empty vector of
// width 0. Mutating operations never shrink a vector; Set grows it on demand.
type Bits struct {
	words []uint64
	n     int
}

func New(n int) Bits {
	return Bits{
		words: make([]uint64, (n+wordSize-1)/wordSize),
		n:     n,
	}
}

func (b Bits) Len() int {
	return b.n
}

// grow widens the vector such that bit i is addressable.
func (b *Bits) grow(i int) {
	if i >= b.n {
		b.n = i + 1
	}
	for len(b.words)*wordSize <= i {
		b.words = append(b.words, 0)
	}
}

func (b *Bits) Set(i int) {
	b.grow(i)
	b.words[i/wordSize] |= 1 << (i % wordSize)
}

func (b *Bits) Clear(i int) {
	if i >= b.n {
		return
	}
	b.words[i/wordSize] &^= 1 << (i % wordSize)
}

func (b Bits) Test(i int) bool {
	if i < 0 || i >= b.n {
		return false
	}
	return b.words[i/wordSize]&(1<<(i%wordSize)) != 0
}

// SetAll sets every bit within the vector's width.
func (b *Bits) SetAll() {
	for w := range b.words {
		b.words[w] = ^uint64(0)
	}
	b.clearSlack()
}

func (b *Bits) ClearAll() {
	for w := range b.words {
		b.words[w] = 0
	}
}

// clearSlack zeroes the bits between the vector width and the word boundary,
// keeping Equal and None oblivious to lengths.
func (b *Bits) clearSlack() {
	if rem := b.n % wordSize; rem != 0 && len(b.words) > 0 {
		b.words[len(b.words)-1] &= (1 << rem) - 1
	}
}

// UnionWith computes b ∪ o in place, widening b if necessary.
func (b *Bits) UnionWith(o Bits) {
	if o.n > 0 {
		b.grow(o.n - 1)
	}
	for w, word := range o.words {
		b.words[w] |= word
	}
}

// IntersectWith computes b ∩ o in place. Bits beyond o's width are dropped.
func (b *Bits) IntersectWith(o Bits) {
	for w := range b.words {
		if w < len(o.words) {
			b.words[w] &= o.words[w]
		} else {
			b.words[w] = 0
		}
	}
}

// Reset clears every bit of b that is set in o.
func (b *Bits) Reset(o Bits) {
	for w := range b.words {
		if w < len(o.words) {
			b.words[w] &^= o.words[w]
		}
	}
}

func (b Bits) Copy() Bits {
	words := make([]uint64, len(b.words))
	copy(words, b.words)
	return Bits{words: words, n: b.n}
}

func (b Bits) Equal(o Bits) bool {
	long, short := b.words, o.words
	if len(long) < len(short) {
		long, short = short, long
	}
	for w, word := range long {
		var other uint64
		if w < len(short) {
			other = short[w]
		}
		if word != other {
			return false
		}
	}
	return true
}

func (b Bits) None() bool {
	for _, word := range b.words {
		if word != 0 {
			return false
		}
	}
	return true
}

// FindFirst returns the index of the lowest set bit, or -1.
func (b Bits) FindFirst() int {
	for w, word := range b.words {
		if word != 0 {
			return w*wordSize + mb.TrailingZeros64(word)
		}
	}
	return -1
}

func (b Bits) ForEach(do func(i int)) {
	for w, word := range b.words {
		for word != 0 {
			i := mb.TrailingZeros64(word)
			do(w*wordSize + i)
			word &= word - 1
		}
	}
}

// And returns a ∩ b as a fresh vector.
func And(a, b Bits) Bits {
	res := a.Copy()
	res.IntersectWith(b)
	return res
}

// AndNot returns a − b as a fresh vector.
func AndNot(a, b Bits) Bits {
	res := a.Copy()
	res.Reset(b)
	return res
}

// Xor returns the symmetric difference of a and b as a fresh vector.
func Xor(a, b Bits) Bits {
	res := a.Copy()
	if b.n > 0 {
		res.grow(b.n - 1)
	}
	for w, word := range b.words {
		res.words[w] ^= word
	}
	return res
}

// String renders the vector as the list of set bit indices, e.g. "[0,2,5]".
func (b Bits) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	sep := ""
	b.ForEach(func(i int) {
		sb.WriteString(sep)
		sb.WriteString(strconv.Itoa(i))
		sep = ","
	})
	sb.WriteByte(']')
	return sb.String()
}
