package mir

import (
	"errors"
	"fmt"
)

var (
	errMissingTerminator = errors.New("basic block is not closed by a terminator")
	errNotAnAggregate    = errors.New("field projection of a non-aggregate type")
)

// Instruction is a single MIR instruction. Value-producing instructions
// additionally implement Value.
type Instruction interface {
	Parent() *Block
	// Operands returns the values used by the instruction, in operand order.
	Operands() []Value
	String() string

	setParent(*Block)
}

// Terminator is the closing instruction of a basic block.
type Terminator interface {
	Instruction
	Successors() []*Block
	// IsFunctionExiting reports whether control leaves the function through
	// this terminator (return, throw, unwind).
	IsFunctionExiting() bool
}

// node is embedded by all instructions.
type node struct {
	block *Block
}

func (n *node) Parent() *Block     { return n.block }
func (n *node) setParent(b *Block) { n.block = b }

// LoadMode is the ownership qualifier of a Load.
type LoadMode int

const (
	// LoadCopy reads the value, leaving the location initialized.
	LoadCopy LoadMode = iota
	// LoadTake moves the value out, de-initializing the location.
	LoadTake
	// LoadTrivial reads a value without ownership semantics.
	LoadTrivial
)

var loadModeNames = map[LoadMode]string{
	LoadCopy:    "copy",
	LoadTake:    "take",
	LoadTrivial: "trivial",
}

func (m LoadMode) String() string { return loadModeNames[m] }

// StoreMode is the ownership qualifier of a Store.
type StoreMode int

const (
	// StoreInit writes into uninitialized memory.
	StoreInit StoreMode = iota
	// StoreAssign replaces an existing value in place.
	StoreAssign
	// StoreTrivial writes a value without ownership semantics. It acts as
	// either an init or an assign.
	StoreTrivial
)

var storeModeNames = map[StoreMode]string{
	StoreInit:    "init",
	StoreAssign:  "assign",
	StoreTrivial: "trivial",
}

func (m StoreMode) String() string { return storeModeNames[m] }

// AllocStack allocates uninitialized stack memory for one value of the given
// type. Its result is the address of that memory.
type AllocStack struct {
	register
	// Dynamic marks an allocation whose lifetime is not statically scoped.
	// Such allocations are excluded from lifetime tracking.
	Dynamic bool
}

func (i *AllocStack) Operands() []Value { return nil }

// DeallocStack ends the lifetime of a stack allocation. The memory must not
// hold an initialized value at this point.
type DeallocStack struct {
	node
	X Value
}

func (i *DeallocStack) Operands() []Value { return []Value{i.X} }

// FieldAddr projects the address of field Field out of the aggregate at
// address X.
type FieldAddr struct {
	register
	X     Value
	Field int
}

func (i *FieldAddr) Operands() []Value { return []Value{i.X} }

// BeginAccess opens a transparent access scope over an address. The result
// aliases X for the duration of the scope.
type BeginAccess struct {
	register
	X Value
}

func (i *BeginAccess) Operands() []Value { return []Value{i.X} }

// EndAccess closes the access scope opened by X.
type EndAccess struct {
	node
	X Value
}

func (i *EndAccess) Operands() []Value { return []Value{i.X} }

// EndBorrow ends a borrow scope whose originating address is X. The borrowed
// location must still hold its value.
type EndBorrow struct {
	node
	X Value
}

func (i *EndBorrow) Operands() []Value { return []Value{i.X} }

// Load reads the value at address X according to its qualifier.
type Load struct {
	register
	X    Value
	Mode LoadMode
}

func (i *Load) Operands() []Value { return []Value{i.X} }

// Qualifier returns the ownership qualifier of the load.
func (i *Load) Qualifier() LoadMode { return i.Mode }

// SetQualifier replaces the ownership qualifier of the load.
func (i *Load) SetQualifier(m LoadMode) { i.Mode = m }

// Store writes Val to address Addr according to its qualifier.
type Store struct {
	node
	Val  Value
	Addr Value
	Mode StoreMode
}

func (i *Store) Operands() []Value { return []Value{i.Val, i.Addr} }

// Qualifier returns the ownership qualifier of the store.
func (i *Store) Qualifier() StoreMode { return i.Mode }

// SetQualifier replaces the ownership qualifier of the store.
func (i *Store) SetQualifier(m StoreMode) { i.Mode = m }

// CopyAddr copies the value from address Src to address Dst. TakeSrc
// de-initializes the source; InitDest requires an uninitialized destination.
type CopyAddr struct {
	node
	Src, Dst         Value
	TakeSrc, InitDst bool
}

func (i *CopyAddr) Operands() []Value { return []Value{i.Src, i.Dst} }

// DestroyAddr destroys the value at address X, de-initializing the location.
type DestroyAddr struct {
	node
	X Value
}

func (i *DestroyAddr) Operands() []Value { return []Value{i.X} }

// DebugAddr observes the value at address X without consuming it.
type DebugAddr struct {
	node
	X Value
}

func (i *DebugAddr) Operands() []Value { return []Value{i.X} }

// Apply calls a function. Args[i] is passed with convention Convs[i].
type Apply struct {
	node
	Callee string
	Args   []Value
	Convs  []Convention
}

func (i *Apply) Operands() []Value { return i.Args }

// ArgumentConvention returns the passing convention of operand n.
func (i *Apply) ArgumentConvention(n int) Convention { return i.Convs[n] }

// TryApply calls a function that may throw. Control continues in Normal on
// ordinary return and in Error on throw. An out argument is initialized on
// the Normal edge only.
type TryApply struct {
	node
	Callee        string
	Args          []Value
	Convs         []Convention
	Normal, Error *Block
}

func (i *TryApply) Operands() []Value                   { return i.Args }
func (i *TryApply) ArgumentConvention(n int) Convention { return i.Convs[n] }
func (i *TryApply) Successors() []*Block                { return []*Block{i.Normal, i.Error} }
func (i *TryApply) IsFunctionExiting() bool             { return false }

// Yield passes values to the caller of a coroutine. Conventions follow the
// same rules as Apply.
type Yield struct {
	node
	Args  []Value
	Convs []Convention
}

func (i *Yield) Operands() []Value                   { return i.Args }
func (i *Yield) ArgumentConvention(n int) Convention { return i.Convs[n] }

// Return exits the function normally.
type Return struct{ node }

func (i *Return) Operands() []Value       { return nil }
func (i *Return) Successors() []*Block    { return nil }
func (i *Return) IsFunctionExiting() bool { return true }

// Throw exits the function along the throwing path.
type Throw struct{ node }

func (i *Throw) Operands() []Value       { return nil }
func (i *Throw) Successors() []*Block    { return nil }
func (i *Throw) IsFunctionExiting() bool { return true }

// Unwind exits a coroutine along the abnormal path.
type Unwind struct{ node }

func (i *Unwind) Operands() []Value       { return nil }
func (i *Unwind) Successors() []*Block    { return nil }
func (i *Unwind) IsFunctionExiting() bool { return true }

// Br branches unconditionally.
type Br struct {
	node
	Target *Block
}

func (i *Br) Operands() []Value       { return nil }
func (i *Br) Successors() []*Block    { return []*Block{i.Target} }
func (i *Br) IsFunctionExiting() bool { return false }

// CondBr branches on a condition value.
type CondBr struct {
	node
	Cond       Value
	Then, Else *Block
}

func (i *CondBr) Operands() []Value       { return []Value{i.Cond} }
func (i *CondBr) Successors() []*Block    { return []*Block{i.Then, i.Else} }
func (i *CondBr) IsFunctionExiting() bool { return false }

// Unreachable marks a block terminator that is never executed.
type Unreachable struct{ node }

func (i *Unreachable) Operands() []Value       { return nil }
func (i *Unreachable) Successors() []*Block    { return nil }
func (i *Unreachable) IsFunctionExiting() bool { return false }

// fieldTypeOf resolves the type of field n of the aggregate at address base.
func fieldTypeOf(base Value, n int) (Type, error) {
	fields, ok := FieldTypes(base.Type())
	if !ok {
		return nil, errNotAnAggregate
	}
	if n < 0 || n >= len(fields) {
		return nil, fmt.Errorf("field index %d out of range for %s", n, base.Type())
	}
	return fields[n], nil
}
