package vm

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ProgramVersion is bumped whenever the encoded layout of Program changes.
const ProgramVersion = 1

// Opcode selects the machine operation of an Instruction.
type Opcode uint8

const (
	OpNOP Opcode = iota
	OpPushInt
	OpPushReal
	OpPushBool
	OpPushVar
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
	OpAnd
	OpOr
	OpNot
	OpStore
	OpOut
	OpInput
	OpJF
	OpJMP
)

var opcodeNames = [...]string{
	OpNOP:      "NOP",
	OpPushInt:  "PUSHI",
	OpPushReal: "PUSHR",
	OpPushBool: "PUSHB",
	OpPushVar:  "PUSHV",
	OpAdd:      "ADD",
	OpSub:      "SUB",
	OpMul:      "MUL",
	OpDiv:      "DIV",
	OpNeg:      "NEG",
	OpEq:       "EQ",
	OpNe:       "NE",
	OpLt:       "LT",
	OpGt:       "GT",
	OpLe:       "LE",
	OpGe:       "GE",
	OpAnd:      "AND",
	OpOr:       "OR",
	OpNot:      "NOT",
	OpStore:    "STORE",
	OpOut:      "OUT",
	OpInput:    "INPUT",
	OpJF:       "JF",
	OpJMP:      "JMP",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// Instruction is one executable step. Only the operand field matching Op is
// meaningful.
type Instruction struct {
	Op     Opcode  `cbor:"1,keyasint"`
	Int    int64   `cbor:"2,keyasint,omitempty"`
	Real   float64 `cbor:"3,keyasint,omitempty"`
	Bool   bool    `cbor:"4,keyasint,omitempty"`
	Name   string  `cbor:"5,keyasint,omitempty"` // variable for OpPushVar
	Target int     `cbor:"6,keyasint,omitempty"` // resolved index for OpJF/OpJMP
	Line   int     `cbor:"7,keyasint,omitempty"` // source line
}

func (in Instruction) String() string {
	switch in.Op {
	case OpPushInt:
		return fmt.Sprintf("%s %d", in.Op, in.Int)
	case OpPushReal:
		return fmt.Sprintf("%s %g", in.Op, in.Real)
	case OpPushBool:
		return fmt.Sprintf("%s %t", in.Op, in.Bool)
	case OpPushVar:
		return fmt.Sprintf("%s %s", in.Op, in.Name)
	case OpJF, OpJMP:
		return fmt.Sprintf("%s %d", in.Op, in.Target)
	}
	return in.Op.String()
}

// Var declares a program variable with its type.
type Var struct {
	Name string `cbor:"1,keyasint"`
	Kind Kind   `cbor:"2,keyasint"`
}

// Program is an assembled, label-free instruction sequence.
type Program struct {
	Version int           `cbor:"1,keyasint"`
	Code    []Instruction `cbor:"2,keyasint"`
	Vars    []Var         `cbor:"3,keyasint,omitempty"`
}

var ErrProgramVersion = errors.New("unsupported program version")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalProgram serializes a Program to canonical CBOR bytes.
func MarshalProgram(p *Program) ([]byte, error) {
	return cborEncMode.Marshal(p)
}

// UnmarshalProgram deserializes a Program from CBOR bytes.
func UnmarshalProgram(data []byte) (*Program, error) {
	var p Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("vm: unmarshal program: %w", err)
	}
	if p.Version != ProgramVersion {
		return nil, fmt.Errorf("vm: %w: %d", ErrProgramVersion, p.Version)
	}
	return &p, nil
}
