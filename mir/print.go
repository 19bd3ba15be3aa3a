package mir

import (
	"fmt"
	"sort"
	"strings"
)

// The textual MIR syntax printed here is accepted back by ParseModule.

func (i *AllocStack) String() string {
	if i.Dynamic {
		return fmt.Sprintf("%s = alloc_stack [dynamic] %s", i.Name(), i.Type())
	}
	return fmt.Sprintf("%s = alloc_stack %s", i.Name(), i.Type())
}

func (i *DeallocStack) String() string {
	return "dealloc_stack " + i.X.Name()
}

func (i *FieldAddr) String() string {
	return fmt.Sprintf("%s = field_addr %s, %d", i.Name(), i.X.Name(), i.Field)
}

func (i *BeginAccess) String() string {
	return fmt.Sprintf("%s = begin_access %s", i.Name(), i.X.Name())
}

func (i *EndAccess) String() string {
	return "end_access " + i.X.Name()
}

func (i *EndBorrow) String() string {
	return "end_borrow " + i.X.Name()
}

func (i *Load) String() string {
	return fmt.Sprintf("%s = load [%s] %s", i.Name(), i.Mode, i.X.Name())
}

func (i *Store) String() string {
	return fmt.Sprintf("store %s to [%s] %s", i.Val.Name(), i.Mode, i.Addr.Name())
}

func (i *CopyAddr) String() string {
	src, dst := i.Src.Name(), i.Dst.Name()
	if i.TakeSrc {
		src = "[take] " + src
	}
	if i.InitDst {
		dst = "[init] " + dst
	}
	return fmt.Sprintf("copy_addr %s to %s", src, dst)
}

func (i *DestroyAddr) String() string {
	return "destroy_addr " + i.X.Name()
}

func (i *DebugAddr) String() string {
	return "debug_addr " + i.X.Name()
}

func callArgs(args []Value, convs []Convention) string {
	strs := make([]string, len(args))
	for n, arg := range args {
		strs[n] = arg.Name() + ": " + convs[n].String()
	}
	return "(" + strings.Join(strs, ", ") + ")"
}

func (i *Apply) String() string {
	return "apply @" + i.Callee + callArgs(i.Args, i.Convs)
}

func (i *TryApply) String() string {
	return fmt.Sprintf("try_apply @%s%s normal %s, error %s",
		i.Callee, callArgs(i.Args, i.Convs), i.Normal.Name(), i.Error.Name())
}

func (i *Yield) String() string {
	return "yield " + callArgs(i.Args, i.Convs)
}

func (i *Return) String() string      { return "return" }
func (i *Throw) String() string       { return "throw" }
func (i *Unwind) String() string      { return "unwind" }
func (i *Unreachable) String() string { return "unreachable" }

func (i *Br) String() string {
	return "br " + i.Target.Name()
}

func (i *CondBr) String() string {
	return fmt.Sprintf("cond_br %s, %s, %s", i.Cond.Name(), i.Then.Name(), i.Else.Name())
}

// typeDecl renders the declaration of a named struct type.
func typeDecl(t *StructType) string {
	fields := make([]string, len(t.Fields))
	for n, f := range t.Fields {
		fields[n] = f.String()
	}
	head := "struct "
	if t.Opaque {
		head = "opaque struct "
	}
	return head + t.TName + " { " + strings.Join(fields, ", ") + " }"
}

func (f *Function) String() string {
	var sb strings.Builder
	params := make([]string, len(f.Params))
	for n, p := range f.Params {
		params[n] = p.String()
	}
	fmt.Fprintf(&sb, "func @%s(%s) {\n", f.name, strings.Join(params, ", "))
	for _, blk := range f.Blocks {
		fmt.Fprintf(&sb, "%s:\n", blk.Name())
		for _, i := range blk.Instrs {
			fmt.Fprintf(&sb, "  %s\n", i)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (m *Module) String() string {
	var sb strings.Builder
	names := make([]string, 0, len(m.Types))
	for name := range m.Types {
		names = append(names, name)
	}
	// Deterministic declaration order.
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(typeDecl(m.Types[name]) + "\n")
	}
	if len(names) > 0 {
		sb.WriteString("\n")
	}
	for n, f := range m.Funcs {
		if n > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(f.String())
	}
	return sb.String()
}
