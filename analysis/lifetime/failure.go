package lifetime

import (
	"fmt"
	"strings"

	"github.com/silt-dev/silt/mir"
	"github.com/silt-dev/silt/utils"

	"github.com/fatih/color"
)

var colorize = struct {
	Kind        func(...interface{}) string
	Site        func(...interface{}) string
	Instruction func(...interface{}) string
	Fn          func(...interface{}) string
}{
	Kind: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiRed).SprintFunc())(is...)
	},
	Site: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiGreen).SprintFunc())(is...)
	},
	Instruction: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiWhite).SprintFunc())(is...)
	},
	Fn: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiBlue).SprintFunc())(is...)
	},
}

// Kind classifies a lifetime verification failure. Every kind is equally
// fatal: each one is a soundness bug in either the MIR producer or the
// lifetime model itself.
type Kind int

const (
	// UninitializedRead is a read of a location not fully covered by set bits.
	UninitializedRead Kind = iota
	// DoubleInitialization is an initializing write into a location that is
	// already (partially) initialized.
	DoubleInitialization
	// LeakAtScopeEnd is a scope end, stack deallocation or function exit
	// observing bits it requires clear as set, or bits it requires set as
	// clear.
	LeakAtScopeEnd
	// MergeMismatch is a pair of predecessors disagreeing on a location's
	// liveness at a shared successor.
	MergeMismatch
)

var kindNames = map[Kind]string{
	UninitializedRead:    "uninitialized-read",
	DoubleInitialization: "double-initialization",
	LeakAtScopeEnd:       "leak-at-scope-end",
	MergeMismatch:        "merge-mismatch",
}

func (k Kind) String() string { return kindNames[k] }

// Failure is one violated lifetime requirement.
type Failure struct {
	Kind Kind
	// Reason is the violated predicate, in human-readable form.
	Reason string
	// LocIdx is the bit index of the offending location, or -1 when the
	// failure is not tied to a single location.
	LocIdx int
	// At is the offending instruction.
	At mir.Instruction
	// Fn is the enclosing function.
	Fn *mir.Function
}

func (f Failure) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "memory lifetime failure [%s] in @%s: %s\n",
		colorize.Kind(f.Kind), colorize.Fn(f.Fn.Name()), f.Reason)
	if f.LocIdx >= 0 {
		fmt.Fprintf(&sb, "  memory location: #%s\n", colorize.Site(f.LocIdx))
	}
	fmt.Fprintf(&sb, "  at instruction: %s", colorize.Instruction(f.At))
	return sb.String()
}
