package compiler

import "testing"

func TestLabelAllocator(t *testing.T) {
	var alloc LabelAllocator
	first := alloc.Allocate(3)
	second := alloc.Allocate(7)
	if first.Name() != "m1" || second.Name() != "m2" {
		t.Errorf("got %s %s, want m1 m2", first, second)
	}
	if second.Line != 7 {
		t.Errorf("line %d, want 7", second.Line)
	}
	if alloc.Count() != 2 {
		t.Errorf("count %d, want 2", alloc.Count())
	}
}

func TestLookupOp(t *testing.T) {
	for _, op := range []Op{OpOut, OpInput, OpJF, OpJMP} {
		got, ok := LookupOp(op.String())
		if !ok || got != op {
			t.Errorf("LookupOp(%q) = %v, %v", op.String(), got, ok)
		}
	}
	for _, name := range []string{"NONE", "jf", "m1", ""} {
		if _, ok := LookupOp(name); ok {
			t.Errorf("LookupOp(%q) should fail", name)
		}
	}
}

func TestInstrText(t *testing.T) {
	code := []Instr{
		TokenInstr(Token{Type: IDENTIFIER, Lexeme: "a", Line: 1}),
		LabelInstr(Label{N: 4, Line: 1}),
		OpInstr(OpJF, 1),
		TokenInstr(Token{Type: NEG, Lexeme: "@", Line: 1}),
	}
	if got := Stream(code); got != "a m4 JF @" {
		t.Errorf("got %q", got)
	}
	if !code[2].IsJump() || code[1].IsJump() {
		t.Error("only the JF instruction is a jump")
	}
}
