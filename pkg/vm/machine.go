// Package vm executes assembled postfix programs on a value stack.
package vm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("postfix.vm")

var (
	ErrStackUnderflow  = errors.New("stack underflow")
	ErrUndeclared      = errors.New("undeclared variable")
	ErrUnsetVariable   = errors.New("variable used before assignment")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrBadInput        = errors.New("bad input")
	ErrStepLimit       = errors.New("step limit exceeded")
	ErrInvalidOpcode   = errors.New("invalid opcode")
	ErrInvalidJumpDest = errors.New("jump target out of range")
)

// RuntimeError locates a failure in the program.
type RuntimeError struct {
	PC   int
	Line int
	Err  error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at pc %d (line %d): %v", e.PC, e.Line, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Slot holds a variable's declared kind and current value.
type Slot struct {
	Kind  Kind
	Value Value
	Set   bool
}

// Machine is a stack machine running one Program.
type Machine struct {
	Code  []Instruction
	PC    int
	Stack []Value
	Vars  map[string]*Slot

	// MaxSteps bounds execution; zero means unbounded.
	MaxSteps int
	Steps    int
	Halted   bool

	// Output is where OUT writes. If nil, os.Stdout is used.
	Output io.Writer
	// Input is where INPUT reads whitespace-separated words. If nil, os.Stdin is used.
	Input io.Reader

	words *bufio.Scanner
}

// NewMachine loads p with every declared variable unset.
func NewMachine(p *Program) *Machine {
	m := &Machine{
		Code: p.Code,
		Vars: make(map[string]*Slot, len(p.Vars)),
	}
	for _, v := range p.Vars {
		m.Vars[v.Name] = &Slot{Kind: v.Kind}
	}
	return m
}

func (m *Machine) outputSink() io.Writer {
	if m.Output != nil {
		return m.Output
	}
	return os.Stdout
}

func (m *Machine) nextWord() (string, error) {
	if m.words == nil {
		in := m.Input
		if in == nil {
			in = os.Stdin
		}
		m.words = bufio.NewScanner(in)
		m.words.Split(bufio.ScanWords)
	}
	if !m.words.Scan() {
		if err := m.words.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadInput, err)
		}
		return "", fmt.Errorf("%w: unexpected end of input", ErrBadInput)
	}
	return m.words.Text(), nil
}

// Lookup returns the current value of a variable.
func (m *Machine) Lookup(name string) (Value, bool) {
	s, ok := m.Vars[name]
	if !ok || !s.Set {
		return Value{}, false
	}
	return s.Value, true
}

func (m *Machine) push(v Value) {
	m.Stack = append(m.Stack, v)
}

func (m *Machine) pop() (Value, error) {
	if len(m.Stack) == 0 {
		return Value{}, ErrStackUnderflow
	}
	v := m.Stack[len(m.Stack)-1]
	m.Stack = m.Stack[:len(m.Stack)-1]
	return v, nil
}

// popValue pops and dereferences a variable reference.
func (m *Machine) popValue() (Value, error) {
	v, err := m.pop()
	if err != nil {
		return Value{}, err
	}
	if v.Kind != KindRef {
		return v, nil
	}
	s, ok := m.Vars[v.Ref]
	if !ok {
		return Value{}, fmt.Errorf("%w %q", ErrUndeclared, v.Ref)
	}
	if !s.Set {
		return Value{}, fmt.Errorf("%w: %q", ErrUnsetVariable, v.Ref)
	}
	return s.Value, nil
}

func (m *Machine) popRef() (*Slot, string, error) {
	v, err := m.pop()
	if err != nil {
		return nil, "", err
	}
	if v.Kind != KindRef {
		return nil, "", fmt.Errorf("%w: assignment target is a %s value", ErrTypeMismatch, v.Kind)
	}
	s, ok := m.Vars[v.Ref]
	if !ok {
		return nil, "", fmt.Errorf("%w %q", ErrUndeclared, v.Ref)
	}
	return s, v.Ref, nil
}

// store assigns v to the slot; integers widen into real variables.
func (m *Machine) store(s *Slot, name string, v Value) error {
	if s.Kind == KindReal && v.Kind == KindInt {
		v = RealValue(float64(v.I))
	}
	if s.Kind != v.Kind {
		return fmt.Errorf("%w: cannot store %s into %s variable %q", ErrTypeMismatch, v.Kind, s.Kind, name)
	}
	s.Value = v
	s.Set = true
	return nil
}

// Step executes one instruction. Running off the end of the code halts the
// machine.
func (m *Machine) Step() error {
	if m.Halted {
		return nil
	}
	if m.PC < 0 || m.PC >= len(m.Code) {
		m.Halted = true
		return nil
	}
	// A machine stopped by its step budget is suspended, not halted.
	if m.MaxSteps > 0 && m.Steps >= m.MaxSteps {
		return &RuntimeError{PC: m.PC, Line: m.Code[m.PC].Line, Err: ErrStepLimit}
	}

	pc := m.PC
	in := m.Code[pc]
	m.PC++
	m.Steps++

	if err := m.exec(in); err != nil {
		m.Halted = true
		return &RuntimeError{PC: pc, Line: in.Line, Err: err}
	}
	return nil
}

// Run steps until the machine halts or fails.
func (m *Machine) Run() error {
	for !m.Halted {
		if err := m.Step(); err != nil {
			log.Errorf("%s", err)
			return err
		}
	}
	log.Debugf("halted after %d steps", m.Steps)
	return nil
}

func (m *Machine) exec(in Instruction) error {
	switch in.Op {
	case OpNOP:

	case OpPushInt:
		m.push(IntValue(in.Int))
	case OpPushReal:
		m.push(RealValue(in.Real))
	case OpPushBool:
		m.push(BoolValue(in.Bool))
	case OpPushVar:
		m.push(RefValue(in.Name))

	case OpAdd, OpSub, OpMul, OpDiv, OpEq, OpNe, OpLt, OpGt, OpLe, OpGe, OpAnd, OpOr:
		b, err := m.popValue()
		if err != nil {
			return err
		}
		a, err := m.popValue()
		if err != nil {
			return err
		}
		r, err := binary(in.Op, a, b)
		if err != nil {
			return err
		}
		m.push(r)

	case OpNeg:
		a, err := m.popValue()
		if err != nil {
			return err
		}
		switch a.Kind {
		case KindInt:
			m.push(IntValue(-a.I))
		case KindReal:
			m.push(RealValue(-a.F))
		default:
			return fmt.Errorf("%w: cannot negate %s", ErrTypeMismatch, a.Kind)
		}

	case OpNot:
		a, err := m.popValue()
		if err != nil {
			return err
		}
		if a.Kind != KindBool {
			return fmt.Errorf("%w: cannot negate %s", ErrTypeMismatch, a.Kind)
		}
		m.push(BoolValue(!a.B))

	case OpStore:
		v, err := m.popValue()
		if err != nil {
			return err
		}
		s, name, err := m.popRef()
		if err != nil {
			return err
		}
		return m.store(s, name, v)

	case OpOut:
		v, err := m.popValue()
		if err != nil {
			return err
		}
		fmt.Fprintln(m.outputSink(), v)

	case OpInput:
		s, name, err := m.popRef()
		if err != nil {
			return err
		}
		word, err := m.nextWord()
		if err != nil {
			return err
		}
		v, err := ParseValue(s.Kind, word)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadInput, err)
		}
		return m.store(s, name, v)

	case OpJF:
		c, err := m.popValue()
		if err != nil {
			return err
		}
		if c.Kind != KindBool {
			return fmt.Errorf("%w: condition is %s", ErrTypeMismatch, c.Kind)
		}
		if !c.B {
			return m.jump(in.Target)
		}

	case OpJMP:
		return m.jump(in.Target)

	default:
		return fmt.Errorf("%w %d", ErrInvalidOpcode, in.Op)
	}
	return nil
}

// jump moves the PC. A target equal to len(Code) is the end of the program.
func (m *Machine) jump(target int) error {
	if target < 0 || target > len(m.Code) {
		return fmt.Errorf("%w: %d", ErrInvalidJumpDest, target)
	}
	m.PC = target
	return nil
}

func binary(op Opcode, a, b Value) (Value, error) {
	switch op {
	case OpAnd, OpOr:
		if a.Kind != KindBool || b.Kind != KindBool {
			return Value{}, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, a.Kind, op, b.Kind)
		}
		if op == OpAnd {
			return BoolValue(a.B && b.B), nil
		}
		return BoolValue(a.B || b.B), nil
	case OpEq, OpNe:
		if a.Kind == KindBool && b.Kind == KindBool {
			return BoolValue((a.B == b.B) == (op == OpEq)), nil
		}
	}

	if !a.IsNumeric() || !b.IsNumeric() {
		return Value{}, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, a.Kind, op, b.Kind)
	}

	if a.Kind == KindInt && b.Kind == KindInt {
		x, y := a.I, b.I
		switch op {
		case OpAdd:
			return IntValue(x + y), nil
		case OpSub:
			return IntValue(x - y), nil
		case OpMul:
			return IntValue(x * y), nil
		case OpDiv:
			if y == 0 {
				return Value{}, ErrDivisionByZero
			}
			return IntValue(x / y), nil
		case OpEq:
			return BoolValue(x == y), nil
		case OpNe:
			return BoolValue(x != y), nil
		case OpLt:
			return BoolValue(x < y), nil
		case OpGt:
			return BoolValue(x > y), nil
		case OpLe:
			return BoolValue(x <= y), nil
		case OpGe:
			return BoolValue(x >= y), nil
		}
	}

	x, y := a.AsReal(), b.AsReal()
	switch op {
	case OpAdd:
		return RealValue(x + y), nil
	case OpSub:
		return RealValue(x - y), nil
	case OpMul:
		return RealValue(x * y), nil
	case OpDiv:
		if y == 0 {
			return Value{}, ErrDivisionByZero
		}
		return RealValue(x / y), nil
	case OpEq:
		return BoolValue(x == y), nil
	case OpNe:
		return BoolValue(x != y), nil
	case OpLt:
		return BoolValue(x < y), nil
	case OpGt:
		return BoolValue(x > y), nil
	case OpLe:
		return BoolValue(x <= y), nil
	case OpGe:
		return BoolValue(x >= y), nil
	}
	return Value{}, fmt.Errorf("%w %s", ErrInvalidOpcode, op)
}
