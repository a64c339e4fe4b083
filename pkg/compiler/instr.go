package compiler

import (
	"fmt"
	"strings"
)

// InstrKind tags the variant held by an Instr.
type InstrKind uint8

const (
	InstrToken InstrKind = iota // source token: operand, operator or '='
	InstrOp                     // pseudo-opcode
	InstrLabel                  // jump operand or landing marker, by position
)

// Op is a pseudo-opcode of the stack machine.
type Op uint8

const (
	OpNone  Op = iota
	OpOut      // pop and print
	OpInput    // read into the preceding identifier
	OpJF       // pop condition, jump to the preceding label if false
	OpJMP      // jump to the preceding label
)

var opNames = [...]string{
	OpNone:  "NONE",
	OpOut:   "OUT",
	OpInput: "INPUT",
	OpJF:    "JF",
	OpJMP:   "JMP",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// LookupOp returns the pseudo-opcode spelled name.
func LookupOp(name string) (Op, bool) {
	for op, n := range opNames {
		if op != int(OpNone) && n == name {
			return Op(op), true
		}
	}
	return OpNone, false
}

// Instr is one element of the postfix instruction stream.
type Instr struct {
	Kind  InstrKind
	Token Token // InstrToken
	Op    Op    // InstrOp
	Label Label // InstrLabel
	Line  int
}

func TokenInstr(t Token) Instr {
	return Instr{Kind: InstrToken, Token: t, Line: t.Line}
}

func OpInstr(op Op, line int) Instr {
	return Instr{Kind: InstrOp, Op: op, Line: line}
}

func LabelInstr(l Label) Instr {
	return Instr{Kind: InstrLabel, Label: l, Line: l.Line}
}

// IsJump reports whether the instruction is JF or JMP.
func (in Instr) IsJump() bool {
	return in.Kind == InstrOp && (in.Op == OpJF || in.Op == OpJMP)
}

// Text returns the lexeme the instruction prints as.
func (in Instr) Text() string {
	switch in.Kind {
	case InstrOp:
		return in.Op.String()
	case InstrLabel:
		return in.Label.Name()
	}
	return in.Token.Lexeme
}

func (in Instr) String() string {
	return in.Text()
}

// Stream renders code as a single space-separated line.
func Stream(code []Instr) string {
	parts := make([]string, len(code))
	for i, in := range code {
		parts[i] = in.Text()
	}
	return strings.Join(parts, " ")
}
