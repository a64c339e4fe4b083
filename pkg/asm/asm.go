// Package asm prints, reads and assembles postfix instruction streams.
//
// A stream carries no addresses: a label followed by JF or JMP is a jump
// operand, any other label marks the position it lands on. Assembly resolves
// every landing marker to an index and fuses each "label JF/JMP" pair into a
// single machine jump.
package asm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"gopostfix/pkg/compiler"
	"gopostfix/pkg/vm"
)

var log = commonlog.GetLogger("postfix.asm")

var tokenOps = map[compiler.TokenType]vm.Opcode{
	compiler.PLUS:        vm.OpAdd,
	compiler.MINUS:       vm.OpSub,
	compiler.STAR:        vm.OpMul,
	compiler.SLASH:       vm.OpDiv,
	compiler.NEG:         vm.OpNeg,
	compiler.EQUALS:      vm.OpEq,
	compiler.NOT_EQ:      vm.OpNe,
	compiler.LESS:        vm.OpLt,
	compiler.GREATER:     vm.OpGt,
	compiler.LESS_EQ:     vm.OpLe,
	compiler.GREATER_EQ:  vm.OpGe,
	compiler.AND_LOGICAL: vm.OpAnd,
	compiler.OR_LOGICAL:  vm.OpOr,
	compiler.NOT:         vm.OpNot,
	compiler.ASSIGN:      vm.OpStore,
}

var pseudoOps = map[compiler.Op]vm.Opcode{
	compiler.OpOut:   vm.OpOut,
	compiler.OpInput: vm.OpInput,
	compiler.OpJF:    vm.OpJF,
	compiler.OpJMP:   vm.OpJMP,
}

var varKinds = map[compiler.VarType]vm.Kind{
	compiler.TypeInteger: vm.KindInt,
	compiler.TypeReal:    vm.KindReal,
	compiler.TypeBoolean: vm.KindBool,
}

var labelName = regexp.MustCompile(`^m([0-9]+)$`)

// isJumpOperand reports whether code[i] is a label used as the operand of the
// jump that follows it.
func isJumpOperand(code []compiler.Instr, i int) bool {
	return code[i].Kind == compiler.InstrLabel && i+1 < len(code) && code[i+1].IsJump()
}

// Format renders code one instruction per line. Declarations from syms come
// first as ".VAR name type" directives; landing markers print as "m<N>:"
// definitions at column zero, everything else is indented. syms may be nil.
func Format(code []compiler.Instr, syms *compiler.SymbolTable) string {
	var sb strings.Builder
	if syms != nil {
		for _, name := range syms.Names() {
			v, _ := syms.Lookup(name)
			fmt.Fprintf(&sb, ".VAR %s %s\n", name, v.Type)
		}
	}
	for i, in := range code {
		if in.Kind == compiler.InstrLabel && !isJumpOperand(code, i) {
			fmt.Fprintf(&sb, "%s:\n", in.Label.Name())
			continue
		}
		fmt.Fprintf(&sb, "    %s\n", in.Text())
	}
	return sb.String()
}

var typeNames = map[string]compiler.VarType{
	"integer": compiler.TypeInteger,
	"real":    compiler.TypeReal,
	"boolean": compiler.TypeBoolean,
}

// Parse reads a listing produced by Format. Comments start with ';'. The
// listing's own line numbers become the instructions' source lines.
func Parse(text string) ([]compiler.Instr, *compiler.SymbolTable, error) {
	syms := compiler.NewSymbolTable()
	type word struct {
		text    string
		landing bool
		lineNo  int
	}
	var words []word
	for i, raw := range strings.Split(text, "\n") {
		line := raw
		if cut := strings.IndexByte(line, ';'); cut >= 0 {
			line = line[:cut]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if strings.EqualFold(fields[0], ".VAR") {
			if len(fields) != 3 {
				return nil, nil, fmt.Errorf(".VAR expects a name and a type on line %d", i+1)
			}
			vt, ok := typeNames[strings.ToLower(fields[2])]
			if !ok {
				return nil, nil, fmt.Errorf("unknown type '%s' on line %d", fields[2], i+1)
			}
			syms.Declare(fields[1], vt)
			continue
		}
		for _, f := range fields {
			w := word{text: f, lineNo: i + 1}
			if strings.HasSuffix(f, ":") {
				w.text = strings.TrimSuffix(f, ":")
				w.landing = true
			}
			words = append(words, w)
		}
	}

	code := make([]compiler.Instr, 0, len(words))
	for i, w := range words {
		if m := labelName.FindStringSubmatch(w.text); m != nil {
			next := ""
			if i+1 < len(words) {
				next = words[i+1].text
			}
			if w.landing || next == "JF" || next == "JMP" {
				n, err := strconv.Atoi(m[1])
				if err != nil {
					return nil, nil, fmt.Errorf("invalid label '%s' on line %d", w.text, w.lineNo)
				}
				code = append(code, compiler.LabelInstr(compiler.Label{N: n, Line: w.lineNo}))
				continue
			}
		}
		if w.landing {
			return nil, nil, fmt.Errorf("invalid label '%s' on line %d", w.text, w.lineNo)
		}
		if op, ok := compiler.LookupOp(w.text); ok {
			code = append(code, compiler.OpInstr(op, w.lineNo))
			continue
		}
		tok, err := lexWord(w.text, w.lineNo)
		if err != nil {
			return nil, nil, err
		}
		code = append(code, compiler.TokenInstr(tok))
	}
	return code, syms, nil
}

// lexWord classifies a single listing word as a source token.
func lexWord(text string, lineNo int) (compiler.Token, error) {
	if text == "@" {
		return compiler.Token{Type: compiler.NEG, Lexeme: "@", Line: lineNo}, nil
	}
	toks, err := compiler.Lex(text)
	if err != nil {
		return compiler.Token{}, fmt.Errorf("invalid instruction '%s' on line %d: %v", text, lineNo, err)
	}
	// A single token lexes as [tok NEWLINE EOF].
	if len(toks) != 3 {
		return compiler.Token{}, fmt.Errorf("invalid instruction '%s' on line %d", text, lineNo)
	}
	tok := toks[0]
	tok.Line = lineNo
	return tok, nil
}

// Assembler resolves labels to instruction indexes.
type Assembler struct {
	labels map[int]int
}

func NewAssembler() *Assembler {
	return &Assembler{labels: make(map[int]int)}
}

// Assemble lowers code to a Program. syms may be nil.
func Assemble(code []compiler.Instr, syms *compiler.SymbolTable) (*vm.Program, error) {
	return NewAssembler().Assemble(code, syms)
}

func (a *Assembler) Assemble(code []compiler.Instr, syms *compiler.SymbolTable) (*vm.Program, error) {
	if err := a.pass1(code); err != nil {
		return nil, err
	}
	prog, err := a.pass2(code)
	if err != nil {
		return nil, err
	}
	if syms != nil {
		for _, name := range syms.Names() {
			v, _ := syms.Lookup(name)
			prog.Vars = append(prog.Vars, vm.Var{Name: name, Kind: varKinds[v.Type]})
		}
	}
	log.Debugf("assembled %d instructions, %d labels", len(prog.Code), len(a.labels))
	return prog, nil
}

// pass1 records the machine index of every landing marker. Jump operands and
// landing markers occupy no machine instruction.
func (a *Assembler) pass1(code []compiler.Instr) error {
	address := 0
	for i, in := range code {
		if in.Kind != compiler.InstrLabel {
			address++
			continue
		}
		if isJumpOperand(code, i) {
			continue
		}
		if _, exists := a.labels[in.Label.N]; exists {
			return fmt.Errorf("duplicate label '%s' on line %d", in.Label.Name(), in.Line)
		}
		a.labels[in.Label.N] = address
	}
	return nil
}

func (a *Assembler) pass2(code []compiler.Instr) (*vm.Program, error) {
	prog := &vm.Program{Version: vm.ProgramVersion, Code: make([]vm.Instruction, 0, len(code))}

	for i := 0; i < len(code); i++ {
		in := code[i]
		switch in.Kind {
		case compiler.InstrLabel:
			if !isJumpOperand(code, i) {
				continue
			}
			target, ok := a.labels[in.Label.N]
			if !ok {
				return nil, fmt.Errorf("undefined label '%s' on line %d", in.Label.Name(), in.Line)
			}
			jump := code[i+1]
			prog.Code = append(prog.Code, vm.Instruction{Op: pseudoOps[jump.Op], Target: target, Line: jump.Line})
			i++

		case compiler.InstrOp:
			if in.IsJump() {
				return nil, fmt.Errorf("%s without a label operand on line %d", in.Op, in.Line)
			}
			op, ok := pseudoOps[in.Op]
			if !ok {
				return nil, fmt.Errorf("unknown pseudo-op %s on line %d", in.Op, in.Line)
			}
			prog.Code = append(prog.Code, vm.Instruction{Op: op, Line: in.Line})

		case compiler.InstrToken:
			ins, err := lowerToken(in.Token)
			if err != nil {
				return nil, err
			}
			prog.Code = append(prog.Code, ins)
		}
	}
	return prog, nil
}

func lowerToken(tok compiler.Token) (vm.Instruction, error) {
	ins := vm.Instruction{Line: tok.Line}
	switch tok.Type {
	case compiler.IDENTIFIER:
		ins.Op = vm.OpPushVar
		ins.Name = tok.Lexeme
	case compiler.INTEGER:
		v, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			return ins, fmt.Errorf("integer literal out of range on line %d: %s", tok.Line, tok.Lexeme)
		}
		ins.Op = vm.OpPushInt
		ins.Int = v
	case compiler.REAL:
		v, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			return ins, fmt.Errorf("invalid real literal on line %d: %s", tok.Line, tok.Lexeme)
		}
		ins.Op = vm.OpPushReal
		ins.Real = v
	case compiler.BOOLEAN:
		ins.Op = vm.OpPushBool
		ins.Bool = tok.Lexeme == "true"
	default:
		op, ok := tokenOps[tok.Type]
		if !ok {
			return ins, fmt.Errorf("cannot assemble %s %q on line %d", tok.Type, tok.Lexeme, tok.Line)
		}
		ins.Op = op
	}
	return ins, nil
}

// Build compiles src and assembles the result.
func Build(src string) (*vm.Program, *compiler.Translation, error) {
	tr, err := compiler.Compile(src)
	if err != nil {
		return nil, nil, err
	}
	prog, err := Assemble(tr.Code, tr.Symbols)
	if err != nil {
		return nil, tr, fmt.Errorf("assembly error: %w", err)
	}
	return prog, tr, nil
}
