package vm

import (
	"io"
	"testing"
)

// BenchmarkMachine_Loop measures the dispatch overhead of Step on a counting
// loop of ten thousand iterations.
func BenchmarkMachine_Loop(b *testing.B) {
	code := []Instruction{
		pushV("n"), pushI(0), op(OpStore),
		pushV("n"), pushI(10_000), op(OpLt),
		{Op: OpJF, Target: 13},
		pushV("n"), pushV("n"), pushI(1), op(OpAdd), op(OpStore),
		{Op: OpJMP, Target: 3},
	}
	prog := &Program{Version: ProgramVersion, Code: code, Vars: []Var{{Name: "n", Kind: KindInt}}}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := NewMachine(prog)
		m.Output = io.Discard
		if err := m.Run(); err != nil {
			b.Fatal(err)
		}
	}
}
