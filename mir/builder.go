package mir

import "fmt"

// Builder constructs a Function instruction by instruction. All emit methods
// append to the current block. Operand use lists and predecessor edges are
// maintained by the builder, so a finished function is ready for analysis.
type Builder struct {
	fn  *Function
	cur *Block
}

func NewBuilder(name string) *Builder {
	return &Builder{fn: &Function{name: name}}
}

// AddParam declares a function parameter. Indirect parameters are address
// values typed by their pointee.
func (b *Builder) AddParam(name string, t Type, conv Convention) *Argument {
	arg := &Argument{parent: b.fn, name: name, typ: t, conv: conv}
	b.fn.Params = append(b.fn.Params, arg)
	return arg
}

// NewBlock creates a fresh basic block. The first created block is the
// function entry. The new block becomes the current block.
func (b *Builder) NewBlock() *Block {
	blk := &Block{parent: b.fn, Index: len(b.fn.Blocks)}
	b.fn.Blocks = append(b.fn.Blocks, blk)
	b.cur = blk
	return blk
}

// SetBlock redirects emission to blk.
func (b *Builder) SetBlock(blk *Block) { b.cur = blk }

func (b *Builder) emit(i Instruction) {
	if b.cur == nil {
		b.NewBlock()
	}
	i.setParent(b.cur)
	b.cur.Instrs = append(b.cur.Instrs, i)
	for _, op := range i.Operands() {
		if refs := op.Referrers(); refs != nil {
			*refs = append(*refs, i)
		}
	}
}

func (b *Builder) defineRegister(r *register, t Type) {
	r.num = b.fn.nextReg
	b.fn.nextReg++
	r.typ = t
}

func (b *Builder) AllocStack(t Type, dynamic bool) *AllocStack {
	i := &AllocStack{Dynamic: dynamic}
	b.defineRegister(&i.register, t)
	b.emit(i)
	return i
}

func (b *Builder) DeallocStack(addr Value) *DeallocStack {
	i := &DeallocStack{X: addr}
	b.emit(i)
	return i
}

func (b *Builder) FieldAddr(base Value, field int) *FieldAddr {
	ft, err := fieldTypeOf(base, field)
	if err != nil {
		panic(fmt.Sprintf("field_addr %s, %d: %v", base.Name(), field, err))
	}
	i := &FieldAddr{X: base, Field: field}
	b.defineRegister(&i.register, ft)
	b.emit(i)
	return i
}

func (b *Builder) BeginAccess(addr Value) *BeginAccess {
	i := &BeginAccess{X: addr}
	b.defineRegister(&i.register, addr.Type())
	b.emit(i)
	return i
}

func (b *Builder) EndAccess(access Value) *EndAccess {
	i := &EndAccess{X: access}
	b.emit(i)
	return i
}

func (b *Builder) EndBorrow(addr Value) *EndBorrow {
	i := &EndBorrow{X: addr}
	b.emit(i)
	return i
}

func (b *Builder) Load(addr Value, m LoadMode) *Load {
	i := &Load{X: addr, Mode: m}
	b.defineRegister(&i.register, addr.Type())
	b.emit(i)
	return i
}

func (b *Builder) Store(val, addr Value, m StoreMode) *Store {
	i := &Store{Val: val, Addr: addr, Mode: m}
	b.emit(i)
	return i
}

func (b *Builder) CopyAddr(src, dst Value, takeSrc, initDst bool) *CopyAddr {
	i := &CopyAddr{Src: src, Dst: dst, TakeSrc: takeSrc, InitDst: initDst}
	b.emit(i)
	return i
}

func (b *Builder) DestroyAddr(addr Value) *DestroyAddr {
	i := &DestroyAddr{X: addr}
	b.emit(i)
	return i
}

func (b *Builder) DebugAddr(addr Value) *DebugAddr {
	i := &DebugAddr{X: addr}
	b.emit(i)
	return i
}

func (b *Builder) Apply(callee string, args []Value, convs []Convention) *Apply {
	i := &Apply{Callee: callee, Args: args, Convs: convs}
	b.emit(i)
	return i
}

func (b *Builder) TryApply(callee string, args []Value, convs []Convention, normal, errBlk *Block) *TryApply {
	i := &TryApply{Callee: callee, Args: args, Convs: convs, Normal: normal, Error: errBlk}
	b.emit(i)
	return i
}

func (b *Builder) Yield(args []Value, convs []Convention) *Yield {
	i := &Yield{Args: args, Convs: convs}
	b.emit(i)
	return i
}

func (b *Builder) Return() *Return {
	i := &Return{}
	b.emit(i)
	return i
}

func (b *Builder) Throw() *Throw {
	i := &Throw{}
	b.emit(i)
	return i
}

func (b *Builder) Unwind() *Unwind {
	i := &Unwind{}
	b.emit(i)
	return i
}

func (b *Builder) Unreachable() *Unreachable {
	i := &Unreachable{}
	b.emit(i)
	return i
}

func (b *Builder) Br(target *Block) *Br {
	i := &Br{Target: target}
	b.emit(i)
	return i
}

func (b *Builder) CondBr(cond Value, then, els *Block) *CondBr {
	i := &CondBr{Cond: cond, Then: then, Else: els}
	b.emit(i)
	return i
}

// Finish validates the function and computes predecessor edges.
func (b *Builder) Finish() (*Function, error) {
	fn := b.fn
	if len(fn.Blocks) == 0 {
		return nil, fmt.Errorf("function @%s has no blocks", fn.name)
	}
	for _, blk := range fn.Blocks {
		if len(blk.Instrs) == 0 {
			return nil, fmt.Errorf("@%s %s: %w", fn.name, blk.Name(), errMissingTerminator)
		}
		if _, ok := blk.Instrs[len(blk.Instrs)-1].(Terminator); !ok {
			return nil, fmt.Errorf("@%s %s: %w", fn.name, blk.Name(), errMissingTerminator)
		}
		for _, i := range blk.Instrs[:len(blk.Instrs)-1] {
			if _, ok := i.(Terminator); ok {
				return nil, fmt.Errorf("@%s %s: terminator %s in mid-block position", fn.name, blk.Name(), i)
			}
		}
	}
	for _, blk := range fn.Blocks {
		for _, succ := range blk.Succs() {
			succ.preds = append(succ.preds, blk)
		}
	}
	return fn, nil
}
