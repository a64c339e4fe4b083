package compiler

import "fmt"

// Label is a jump target. The same label appears in the instruction stream
// both as the operand of JF/JMP and as the landing marker of its position.
type Label struct {
	N    int
	Line int // source line of the construct that allocated it
}

// Name returns the label's lexeme, m<N>.
func (l Label) Name() string {
	return fmt.Sprintf("m%d", l.N)
}

func (l Label) String() string {
	return l.Name()
}

// LabelAllocator hands out sequentially numbered labels starting at m1.
type LabelAllocator struct {
	next int
}

// Allocate returns a fresh label. Numbers are never reused by an allocator.
func (a *LabelAllocator) Allocate(line int) Label {
	a.next++
	return Label{N: a.next, Line: line}
}

// Count reports how many labels have been allocated so far.
func (a *LabelAllocator) Count() int {
	return a.next
}
