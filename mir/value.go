package mir

import "strconv"

// Value is an SSA-like MIR value. Address-producing values (stack
// allocations, projections, access scopes, indirect arguments) carry the
// type of their pointee, not a distinct address type.
type Value interface {
	// Name returns the printable name of the value, e.g. %2 or %arg.
	Name() string
	Type() Type
	// Referrers returns the instructions using this value as an operand, or
	// nil if the value kind does not maintain use lists (constants).
	Referrers() *[]Instruction
	String() string
}

// Convention classifies how a value is passed through a function boundary.
type Convention int

const (
	// Direct values are passed by value in registers. No lifetime obligations.
	Direct Convention = iota
	// In passes ownership of an initialized memory location to the callee.
	In
	// InConstant is In for borrowed-immutable call sites.
	InConstant
	// InGuaranteed passes an initialized location the callee must not consume.
	InGuaranteed
	// Inout passes a location that is initialized at entry and exit, but may
	// be reassigned in between.
	Inout
	// Out passes an uninitialized location the callee must initialize.
	Out
)

var convNames = map[Convention]string{
	Direct:       "direct",
	In:           "in",
	InConstant:   "in_constant",
	InGuaranteed: "in_guaranteed",
	Inout:        "inout",
	Out:          "out",
}

func (c Convention) String() string { return convNames[c] }

// IsIndirect reports whether the convention passes its value by address.
func (c Convention) IsIndirect() bool { return c != Direct }

// Argument is a function parameter. Indirect arguments are address values.
type Argument struct {
	parent    *Function
	name      string
	typ       Type
	conv      Convention
	referrers []Instruction
}

func (a *Argument) Name() string              { return "%" + a.name }
func (a *Argument) Type() Type                { return a.typ }
func (a *Argument) Parent() *Function         { return a.parent }
func (a *Argument) Convention() Convention    { return a.conv }
func (a *Argument) Referrers() *[]Instruction { return &a.referrers }

func (a *Argument) String() string {
	return a.Name() + ": " + a.conv.String() + " " + a.typ.String()
}

// Const is a literal value.
type Const struct {
	typ Type
	Lit string
}

func NewConst(t Type, lit string) *Const {
	return &Const{typ: t, Lit: lit}
}

func (c *Const) Name() string              { return c.Lit }
func (c *Const) Type() Type                { return c.typ }
func (c *Const) Referrers() *[]Instruction { return nil }
func (c *Const) String() string            { return c.Lit }

// AggregateConst is a structured literal, e.g. {{1, 2}, 3}. Element order
// follows the field order of the aggregate type. A nil element denotes
// uninitialized memory.
type AggregateConst struct {
	typ   Type
	Elems []Value
}

func NewAggregateConst(t Type, elems ...Value) *AggregateConst {
	return &AggregateConst{typ: t, Elems: elems}
}

func (c *AggregateConst) Name() string              { return c.String() }
func (c *AggregateConst) Type() Type                { return c.typ }
func (c *AggregateConst) Referrers() *[]Instruction { return nil }

func (c *AggregateConst) String() string {
	res := "{"
	for i, el := range c.Elems {
		if i > 0 {
			res += ", "
		}
		if el == nil {
			res += "uninit"
		} else {
			res += el.String()
		}
	}
	return res + "}"
}

// register is embedded by every value-producing instruction.
type register struct {
	node
	num       int
	typ       Type
	referrers []Instruction
}

func (r *register) Name() string              { return "%" + strconv.Itoa(r.num) }
func (r *register) Type() Type                { return r.typ }
func (r *register) Referrers() *[]Instruction { return &r.referrers }
