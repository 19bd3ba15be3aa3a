package mir

import "strconv"

// Block is a basic block. Instrs is non-empty and closed by a Terminator
// once the enclosing function is finished.
type Block struct {
	parent *Function
	// Index is the ordinal of the block within its function. It is stable
	// and used to index per-block analysis state.
	Index  int
	Instrs []Instruction

	preds []*Block
}

func (b *Block) Parent() *Function { return b.parent }

func (b *Block) Name() string { return "bb" + strconv.Itoa(b.Index) }

// Term returns the block's terminator.
func (b *Block) Term() Terminator {
	return b.Instrs[len(b.Instrs)-1].(Terminator)
}

// First returns the block's first instruction.
func (b *Block) First() Instruction {
	return b.Instrs[0]
}

func (b *Block) Preds() []*Block { return b.preds }

func (b *Block) Succs() []*Block { return b.Term().Successors() }

// SinglePred returns the unique predecessor of the block, or nil.
func (b *Block) SinglePred() *Block {
	if len(b.preds) != 1 {
		return nil
	}
	return b.preds[0]
}

// Function is a MIR function: ordered parameters and ordered basic blocks,
// with Blocks[0] as the unique entry block.
type Function struct {
	name   string
	Params []*Argument
	Blocks []*Block

	nextReg int
}

func (f *Function) Name() string { return f.name }

func (f *Function) Entry() *Block { return f.Blocks[0] }

// ForEachInstr visits every instruction of the function in block order.
func (f *Function) ForEachInstr(do func(Instruction)) {
	for _, b := range f.Blocks {
		for _, i := range b.Instrs {
			do(i)
		}
	}
}

// Module is a collection of functions sharing a set of named types.
type Module struct {
	Funcs []*Function
	Types map[string]*StructType
}

// Func returns the function with the given name, or nil.
func (m *Module) Func(name string) *Function {
	for _, f := range m.Funcs {
		if f.name == name {
			return f
		}
	}
	return nil
}
