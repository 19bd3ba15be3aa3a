package mir

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseModule parses the textual MIR format produced by Module.String.
//
// The format is line oriented. A module is a sequence of named struct
// declarations followed by function bodies:
//
//	struct Pair { Int64, Int64 }
//	opaque struct Blob { Int64 }
//
//	func @main(%a: inout Pair) {
//	bb0:
//	  %0 = alloc_stack Int64
//	  store 42 to [init] %0
//	  ...
//	  return
//	}
//
// '//' starts a comment running to the end of the line.
func ParseModule(r io.Reader) (*Module, error) {
	p := &parser{
		module:   &Module{Types: map[string]*StructType{}},
		declared: map[string]bool{},
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		p.lines = append(p.lines, strings.TrimSpace(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// Struct names are registered before bodies are parsed so that field
	// types may refer to declarations appearing later in the input.
	for _, line := range p.lines {
		if name := structDeclName(line); name != "" {
			if _, dup := p.module.Types[name]; !dup {
				p.module.Types[name] = &StructType{TName: name}
			}
		}
	}

	for p.pos < len(p.lines) {
		line := p.next()
		switch {
		case line == "":
		case strings.HasPrefix(line, "struct "), strings.HasPrefix(line, "opaque struct "):
			if err := p.parseStruct(line); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "func @"):
			if err := p.parseFunc(line); err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf("unexpected top-level input %q", line)
		}
	}
	return p.module, nil
}

// ParseModuleString is ParseModule over an in-memory module.
func ParseModuleString(s string) (*Module, error) {
	return ParseModule(strings.NewReader(s))
}

type parser struct {
	lines    []string
	pos      int
	module   *Module
	declared map[string]bool
}

// structDeclName extracts the type name from a struct declaration line, or
// returns "" if the line is not one. Malformed declarations are reported by
// parseStruct during the main pass.
func structDeclName(line string) string {
	if !strings.HasPrefix(line, "struct ") && !strings.HasPrefix(line, "opaque struct ") {
		return ""
	}
	line = strings.TrimPrefix(strings.TrimPrefix(line, "opaque "), "struct ")
	name, _, ok := strings.Cut(line, "{")
	if !ok {
		return ""
	}
	return strings.TrimSpace(name)
}

func (p *parser) next() string {
	line := p.lines[p.pos]
	p.pos++
	return line
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("line %d: %s", p.pos, fmt.Sprintf(format, args...))
}

// splitTop splits s at top-level commas, ignoring commas nested in parentheses
// or braces.
func splitTop(s string) (parts []string) {
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{':
			depth++
		case ')', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[last:i]))
				last = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[last:]); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

func (p *parser) parseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, p.errorf("missing type")
	case s == "RawPtr":
		return &RawPointerType{}, nil
	case s[0] == '(':
		if s[len(s)-1] != ')' {
			return nil, p.errorf("malformed tuple type %q", s)
		}
		var elems []Type
		for _, part := range splitTop(s[1 : len(s)-1]) {
			el, err := p.parseType(part)
			if err != nil {
				return nil, err
			}
			elems = append(elems, el)
		}
		return &TupleType{Elems: elems}, nil
	default:
		if st, ok := p.module.Types[s]; ok {
			return st, nil
		}
		return &ScalarType{TName: s}, nil
	}
}

func (p *parser) parseStruct(line string) error {
	opaque := strings.HasPrefix(line, "opaque ")
	line = strings.TrimPrefix(strings.TrimPrefix(line, "opaque "), "struct ")
	name, body, ok := strings.Cut(line, "{")
	if !ok || !strings.HasSuffix(strings.TrimSpace(body), "}") {
		return p.errorf("malformed struct declaration")
	}
	name = strings.TrimSpace(name)
	body = strings.TrimSpace(body)
	body = strings.TrimSpace(body[:len(body)-1])

	if p.declared[name] {
		return p.errorf("duplicate type name %s", name)
	}
	p.declared[name] = true

	// Fill in the shell registered up front; values parsed elsewhere may
	// already hold a pointer to it.
	st := p.module.Types[name]
	st.Opaque = opaque
	for _, part := range splitTop(body) {
		ft, err := p.parseType(part)
		if err != nil {
			return err
		}
		st.Fields = append(st.Fields, ft)
	}
	return nil
}

var convByName = func() map[string]Convention {
	m := make(map[string]Convention, len(convNames))
	for conv, name := range convNames {
		m[name] = conv
	}
	return m
}()

// funcParser tracks per-function parse state: textual value names and block
// labels, both resolved against builder-made entities.
type funcParser struct {
	*parser
	b      *Builder
	vals   map[string]Value
	blocks map[string]*Block
}

func (p *parser) parseFunc(header string) error {
	header = strings.TrimPrefix(header, "func @")
	name, rest, ok := strings.Cut(header, "(")
	if !ok {
		return p.errorf("malformed function header")
	}
	params, rest, ok := strings.Cut(rest, ")")
	if !ok || strings.TrimSpace(rest) != "{" {
		return p.errorf("malformed function header")
	}

	fp := &funcParser{
		parser: p,
		b:      NewBuilder(strings.TrimSpace(name)),
		vals:   map[string]Value{},
		blocks: map[string]*Block{},
	}

	for _, param := range splitTop(params) {
		pname, spec, ok := strings.Cut(param, ":")
		pname = strings.TrimSpace(pname)
		if !ok || !strings.HasPrefix(pname, "%") {
			return p.errorf("malformed parameter %q", param)
		}
		convName, typeStr, ok := strings.Cut(strings.TrimSpace(spec), " ")
		if !ok {
			return p.errorf("malformed parameter %q", param)
		}
		conv, found := convByName[convName]
		if !found {
			return p.errorf("unknown convention %q", convName)
		}
		t, err := p.parseType(typeStr)
		if err != nil {
			return err
		}
		arg := fp.b.AddParam(pname[1:], t, conv)
		fp.vals[pname] = arg
	}

	// Blocks may be referenced before their label appears, so scan ahead for
	// all labels of this function first.
	for pos := p.pos; pos < len(p.lines); pos++ {
		line := p.lines[pos]
		if line == "}" {
			break
		}
		if strings.HasSuffix(line, ":") {
			label := strings.TrimSuffix(line, ":")
			fp.blocks[label] = fp.b.NewBlock()
		}
	}

	for p.pos < len(p.lines) {
		line := p.next()
		switch {
		case line == "":
		case line == "}":
			fn, err := fp.b.Finish()
			if err != nil {
				return err
			}
			p.module.Funcs = append(p.module.Funcs, fn)
			return nil
		case strings.HasSuffix(line, ":"):
			fp.b.SetBlock(fp.blocks[strings.TrimSuffix(line, ":")])
		default:
			if err := fp.parseInstr(line); err != nil {
				return err
			}
		}
	}
	return p.errorf("unexpected end of input in function @%s", name)
}

func (fp *funcParser) value(tok string) (Value, error) {
	tok = strings.TrimSpace(tok)
	if strings.HasPrefix(tok, "%") {
		v, ok := fp.vals[tok]
		if !ok {
			return nil, fp.errorf("undefined value %s", tok)
		}
		return v, nil
	}
	if _, err := strconv.Atoi(tok); err == nil {
		return NewConst(&ScalarType{TName: "Int64"}, tok), nil
	}
	return nil, fp.errorf("malformed operand %q", tok)
}

func (fp *funcParser) block(tok string) (*Block, error) {
	blk, ok := fp.blocks[strings.TrimSpace(tok)]
	if !ok {
		return nil, fp.errorf("undefined block %q", tok)
	}
	return blk, nil
}

// bracketed extracts a leading "[flag]" from s, returning the flag and the
// remainder.
func bracketed(s string) (flag, rest string, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		return "", s, false
	}
	flag, rest, ok = strings.Cut(s[1:], "]")
	return flag, strings.TrimSpace(rest), ok
}

func (fp *funcParser) parseInstr(line string) error {
	var def string
	if lhs, rhs, ok := strings.Cut(line, " = "); ok {
		def = strings.TrimSpace(lhs)
		line = strings.TrimSpace(rhs)
	}
	op, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	var result Value
	switch op {
	case "alloc_stack":
		flag, typeStr, _ := bracketed(rest)
		dynamic := flag == "dynamic"
		if flag != "" && !dynamic {
			return fp.errorf("unknown alloc_stack flag [%s]", flag)
		}
		t, err := fp.parseType(typeStr)
		if err != nil {
			return err
		}
		result = fp.b.AllocStack(t, dynamic)

	case "dealloc_stack", "destroy_addr", "debug_addr", "end_access", "end_borrow":
		x, err := fp.value(rest)
		if err != nil {
			return err
		}
		switch op {
		case "dealloc_stack":
			fp.b.DeallocStack(x)
		case "destroy_addr":
			fp.b.DestroyAddr(x)
		case "debug_addr":
			fp.b.DebugAddr(x)
		case "end_access":
			fp.b.EndAccess(x)
		case "end_borrow":
			fp.b.EndBorrow(x)
		}

	case "field_addr":
		parts := splitTop(rest)
		if len(parts) != 2 {
			return fp.errorf("malformed field_addr")
		}
		base, err := fp.value(parts[0])
		if err != nil {
			return err
		}
		field, err := strconv.Atoi(parts[1])
		if err != nil {
			return fp.errorf("malformed field index %q", parts[1])
		}
		if _, err := fieldTypeOf(base, field); err != nil {
			return fp.errorf("field_addr: %v", err)
		}
		result = fp.b.FieldAddr(base, field)

	case "begin_access":
		x, err := fp.value(rest)
		if err != nil {
			return err
		}
		result = fp.b.BeginAccess(x)

	case "load":
		flag, operand, ok := bracketed(rest)
		if !ok {
			return fp.errorf("load requires a [mode] qualifier")
		}
		mode, err := loadModeOf(flag)
		if err != nil {
			return fp.errorf("%v", err)
		}
		x, err := fp.value(operand)
		if err != nil {
			return err
		}
		result = fp.b.Load(x, mode)

	case "store":
		valStr, addrPart, ok := strings.Cut(rest, " to ")
		if !ok {
			return fp.errorf("malformed store")
		}
		flag, addrStr, ok := bracketed(addrPart)
		if !ok {
			return fp.errorf("store requires a [mode] qualifier")
		}
		mode, err := storeModeOf(flag)
		if err != nil {
			return fp.errorf("%v", err)
		}
		val, err := fp.value(valStr)
		if err != nil {
			return err
		}
		addr, err := fp.value(addrStr)
		if err != nil {
			return err
		}
		fp.b.Store(val, addr, mode)

	case "copy_addr":
		srcPart, dstPart, ok := strings.Cut(rest, " to ")
		if !ok {
			return fp.errorf("malformed copy_addr")
		}
		srcFlag, srcStr, _ := bracketed(srcPart)
		dstFlag, dstStr, _ := bracketed(dstPart)
		if srcFlag != "" && srcFlag != "take" {
			return fp.errorf("unknown copy_addr source flag [%s]", srcFlag)
		}
		if dstFlag != "" && dstFlag != "init" {
			return fp.errorf("unknown copy_addr destination flag [%s]", dstFlag)
		}
		src, err := fp.value(srcStr)
		if err != nil {
			return err
		}
		dst, err := fp.value(dstStr)
		if err != nil {
			return err
		}
		fp.b.CopyAddr(src, dst, srcFlag == "take", dstFlag == "init")

	case "apply":
		callee, args, convs, _, err := fp.parseCall(rest)
		if err != nil {
			return err
		}
		fp.b.Apply(callee, args, convs)

	case "try_apply":
		callee, args, convs, tail, err := fp.parseCall(rest)
		if err != nil {
			return err
		}
		tail = strings.TrimSpace(tail)
		if !strings.HasPrefix(tail, "normal ") {
			return fp.errorf("try_apply requires normal and error successors")
		}
		parts := splitTop(strings.TrimPrefix(tail, "normal "))
		if len(parts) != 2 || !strings.HasPrefix(parts[1], "error ") {
			return fp.errorf("try_apply requires normal and error successors")
		}
		normal, err := fp.block(parts[0])
		if err != nil {
			return err
		}
		errBlk, err := fp.block(strings.TrimPrefix(parts[1], "error "))
		if err != nil {
			return err
		}
		fp.b.TryApply(callee, args, convs, normal, errBlk)

	case "yield":
		args, convs, _, err := fp.parseCallArgs(rest)
		if err != nil {
			return err
		}
		fp.b.Yield(args, convs)

	case "br":
		target, err := fp.block(rest)
		if err != nil {
			return err
		}
		fp.b.Br(target)

	case "cond_br":
		parts := splitTop(rest)
		if len(parts) != 3 {
			return fp.errorf("malformed cond_br")
		}
		cond, err := fp.value(parts[0])
		if err != nil {
			return err
		}
		then, err := fp.block(parts[1])
		if err != nil {
			return err
		}
		els, err := fp.block(parts[2])
		if err != nil {
			return err
		}
		fp.b.CondBr(cond, then, els)

	case "return":
		fp.b.Return()
	case "throw":
		fp.b.Throw()
	case "unwind":
		fp.b.Unwind()
	case "unreachable":
		fp.b.Unreachable()

	default:
		return fp.errorf("unknown instruction %q", op)
	}

	if def != "" {
		if result == nil {
			return fp.errorf("%s does not produce a value", op)
		}
		if _, dup := fp.vals[def]; dup {
			return fp.errorf("redefinition of %s", def)
		}
		fp.vals[def] = result
	} else if result != nil {
		return fp.errorf("result of %s is not bound to a name", op)
	}
	return nil
}

// parseCall parses "@callee(%x: conv, ...)" and returns anything following
// the closing parenthesis.
func (fp *funcParser) parseCall(s string) (callee string, args []Value, convs []Convention, tail string, err error) {
	if !strings.HasPrefix(s, "@") {
		return "", nil, nil, "", fp.errorf("call requires a @callee")
	}
	callee, rest, ok := strings.Cut(s[1:], "(")
	if !ok {
		return "", nil, nil, "", fp.errorf("malformed call")
	}
	args, convs, tail, err = fp.parseCallArgs("(" + rest)
	return callee, args, convs, tail, err
}

func (fp *funcParser) parseCallArgs(s string) (args []Value, convs []Convention, tail string, err error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") {
		return nil, nil, "", fp.errorf("malformed argument list")
	}
	depth := 0
	end := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return nil, nil, "", fp.errorf("unbalanced argument list")
	}
	for _, part := range splitTop(s[1:end]) {
		argStr, convName, ok := strings.Cut(part, ":")
		if !ok {
			return nil, nil, "", fp.errorf("argument %q lacks a convention", part)
		}
		arg, err := fp.value(argStr)
		if err != nil {
			return nil, nil, "", err
		}
		conv, found := convByName[strings.TrimSpace(convName)]
		if !found {
			return nil, nil, "", fp.errorf("unknown convention %q", convName)
		}
		args = append(args, arg)
		convs = append(convs, conv)
	}
	return args, convs, s[end+1:], nil
}

func loadModeOf(name string) (LoadMode, error) {
	for mode, n := range loadModeNames {
		if n == name {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown load qualifier [%s]", name)
}

func storeModeOf(name string) (StoreMode, error) {
	for mode, n := range storeModeNames {
		if n == name {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown store qualifier [%s]", name)
}
