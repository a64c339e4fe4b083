package vm

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func countdown() []Instruction {
	// n = 3; while n > 0 { out n; n = n - 1 }
	return []Instruction{
		pushV("n"), pushI(3), op(OpStore),
		pushV("n"), pushI(0), op(OpGt),
		{Op: OpJF, Target: 15},
		pushV("n"), op(OpOut),
		pushV("n"), pushV("n"), pushI(1), op(OpSub), op(OpStore),
		{Op: OpJMP, Target: 3},
	}
}

func TestHibernateAndRestore(t *testing.T) {
	m, out := newTestMachine(countdown(), Var{Name: "n", Kind: KindInt})
	m.MaxSteps = 10
	if err := m.Run(); !errors.Is(err, ErrStepLimit) {
		t.Fatalf("got %v, want ErrStepLimit", err)
	}
	if m.Halted {
		t.Fatal("a machine stopped by its step budget should stay resumable")
	}
	if got := out.String(); got != "3\n" {
		t.Fatalf("before hibernation got %q", got)
	}

	path := filepath.Join(t.TempDir(), "machine.zip")
	if err := m.HibernateToFile(path); err != nil {
		t.Fatal(err)
	}

	resumed := &Machine{}
	rest := &bytes.Buffer{}
	resumed.Output = rest
	if err := resumed.RestoreFromFile(path); err != nil {
		t.Fatal(err)
	}
	if resumed.PC != m.PC || len(resumed.Stack) != len(m.Stack) {
		t.Fatalf("restored pc=%d stack=%v, want pc=%d stack=%v", resumed.PC, resumed.Stack, m.PC, m.Stack)
	}
	if err := resumed.Run(); err != nil {
		t.Fatal(err)
	}
	if got := rest.String(); got != "2\n1\n" {
		t.Errorf("after restore got %q", got)
	}
	if v, ok := resumed.Lookup("n"); !ok || v.I != 0 {
		t.Errorf("n = %v, %v", v, ok)
	}
}

func TestHibernateKeepsUnsetVariables(t *testing.T) {
	m, _ := newTestMachine([]Instruction{pushV("a")}, Var{Name: "a", Kind: KindReal}, Var{Name: "b", Kind: KindBool})
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	data, err := m.HibernateToBytes()
	if err != nil {
		t.Fatal(err)
	}

	var restored Machine
	if err := restored.RestoreFromBytes(data); err != nil {
		t.Fatal(err)
	}
	if restored.Vars["a"].Kind != KindReal || restored.Vars["a"].Set {
		t.Errorf("a = %+v", restored.Vars["a"])
	}
	if restored.Vars["b"].Kind != KindBool {
		t.Errorf("b = %+v", restored.Vars["b"])
	}
	if len(restored.Stack) != 1 || restored.Stack[0] != RefValue("a") {
		t.Errorf("stack = %v", restored.Stack)
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {
	var m Machine
	if err := m.RestoreFromBytes([]byte("not a zip")); err == nil {
		t.Error("expected an error")
	}
}

func TestHibernateNonFiniteReals(t *testing.T) {
	vars := []Var{{Name: "x", Kind: KindReal}, {Name: "y", Kind: KindReal}, {Name: "z", Kind: KindReal}}
	m, _ := newTestMachine([]Instruction{
		pushV("x"), op(OpInput),
		pushV("y"), op(OpInput),
		pushV("z"), op(OpInput),
		pushV("x"),
	}, vars...)
	m.Input = strings.NewReader("Inf -Inf NaN")
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	m.Stack = append(m.Stack, RealValue(math.Inf(1)))

	data, err := m.HibernateToBytes()
	if err != nil {
		t.Fatalf("HibernateToBytes: %v", err)
	}
	var restored Machine
	if err := restored.RestoreFromBytes(data); err != nil {
		t.Fatal(err)
	}

	if v, _ := restored.Lookup("x"); !math.IsInf(v.F, 1) {
		t.Errorf("x = %v, want +Inf", v)
	}
	if v, _ := restored.Lookup("y"); !math.IsInf(v.F, -1) {
		t.Errorf("y = %v, want -Inf", v)
	}
	if v, _ := restored.Lookup("z"); !math.IsNaN(v.F) {
		t.Errorf("z = %v, want NaN", v)
	}
	if len(restored.Stack) != 2 || !math.IsInf(restored.Stack[1].F, 1) {
		t.Errorf("stack = %v", restored.Stack)
	}
}
