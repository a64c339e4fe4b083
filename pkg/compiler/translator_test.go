package compiler

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// program wraps body in a declaration section and begin/end.
func program(body string) string {
	return "integer a, b, c, x\nboolean f\nbegin\n" + body + "\nend\n"
}

func translate(t *testing.T, src string) *Translation {
	t.Helper()
	syms, stmts := BuildSymbolTable(mustLex(t, src))
	tr, err := Translate(stmts, syms, nil)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	return tr
}

func labelNames(labels []Label) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l.Name()
	}
	return strings.Join(parts, " ")
}

func TestTranslateStatements(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   string
		labels string
	}{
		{
			name: "assign and write",
			body: "a = 1\nwrite(a)",
			want: "a 1 = a OUT",
		},
		{
			name: "assignment expression",
			body: "x = a + b * c",
			want: "x a b c * + =",
		},
		{
			name: "write expression",
			body: "write((a + 1) * 2)",
			want: "a 1 + 2 * OUT",
		},
		{
			name: "write negation",
			body: "write(-a)",
			want: "a @ OUT",
		},
		{
			name: "read list",
			body: "read(a, b, c)",
			want: "a INPUT b INPUT c INPUT",
		},
		{
			name:   "if",
			body:   "if (a < b)\nwrite(a)\nendif",
			want:   "a b < m1 JF a OUT m1",
			labels: "m1 m1",
		},
		{
			name:   "if else",
			body:   "if (a < b)\nwrite(a)\nelse\nwrite(b)\nendif",
			want:   "a b < m1 JF a OUT m2 JMP m1 b OUT m2",
			labels: "m1 m2 m1 m2",
		},
		{
			name:   "do while",
			body:   "do while (a < 10)\na = a + 1\nenddo",
			want:   "m1 a 10 < m2 JF a a 1 + = m1 JMP m2",
			labels: "m1 m2 m1 m2",
		},
		{
			name:   "if compound condition",
			body:   "if (a > 0) && (b > 0)\nwrite(a)\nendif",
			want:   "a 0 > b 0 > && m1 JF a OUT m1",
			labels: "m1 m1",
		},
		{
			name:   "if without parentheses",
			body:   "if a < b\nwrite(a)\nendif",
			want:   "a b < m1 JF a OUT m1",
			labels: "m1 m1",
		},
		{
			name:   "do while compound condition",
			body:   "do while (a < 3) && f\na = a + 1\nenddo",
			want:   "m1 a 3 < f && m2 JF a a 1 + = m1 JMP m2",
			labels: "m1 m2 m1 m2",
		},
		{
			name:   "if inside loop",
			body:   "do while (a < 10)\nif (a == 5)\nwrite(a)\nendif\na = a + 1\nenddo",
			want:   "m1 a 10 < m2 JF a 5 == m3 JF a OUT m3 a a 1 + = m1 JMP m2",
			labels: "m1 m2 m3 m3 m1 m2",
		},
		{
			name:   "nested if in then branch",
			body:   "if (f)\nif (a > b)\nwrite(1)\nendif\nelse\nwrite(2)\nendif",
			want:   "f m1 JF a b > m2 JF 1 OUT m2 m3 JMP m1 2 OUT m3",
			labels: "m1 m2 m2 m3 m1 m3",
		},
		{
			name:   "sequential ifs",
			body:   "if (f)\nwrite(1)\nendif\nif (f)\nwrite(2)\nendif",
			want:   "f m1 JF 1 OUT m1 f m2 JF 2 OUT m2",
			labels: "m1 m1 m2 m2",
		},
		{
			name:   "empty loop body",
			body:   "do while (f)\nenddo",
			want:   "m1 f m2 JF m1 JMP m2",
			labels: "m1 m2 m1 m2",
		},
		{
			name: "empty program",
			body: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := translate(t, program(tt.body))
			if got := Stream(tr.Code); got != tt.want {
				t.Errorf("stream:\n got %q\nwant %q", got, tt.want)
			}
			if got := labelNames(tr.Labels); got != tt.labels {
				t.Errorf("labels: got %q, want %q", got, tt.labels)
			}
		})
	}
}

func TestTranslateInstructionKinds(t *testing.T) {
	tr := translate(t, program("do while (a < 3)\nread(a)\nenddo"))
	for i, in := range tr.Code {
		switch in.Text() {
		case "JF", "JMP", "INPUT", "OUT":
			if in.Kind != InstrOp {
				t.Errorf("%d %s: kind %d, want InstrOp", i, in.Text(), in.Kind)
			}
		case "m1", "m2":
			if in.Kind != InstrLabel {
				t.Errorf("%d %s: kind %d, want InstrLabel", i, in.Text(), in.Kind)
			}
		default:
			if in.Kind != InstrToken {
				t.Errorf("%d %s: kind %d, want InstrToken", i, in.Text(), in.Kind)
			}
		}
	}
}

func TestTranslateLoopLabelOrder(t *testing.T) {
	tr := translate(t, program("do while (a < 3)\ndo while (b < 3)\nb = b + 1\nenddo\na = a + 1\nenddo"))

	uses := map[int]int{}
	for _, l := range tr.Labels {
		uses[l.N]++
	}
	for n, c := range uses {
		if c != 2 {
			t.Errorf("m%d used %d times, want 2", n, c)
		}
	}
	// Each loop allocates its top label before its bottom label.
	if tr.Code[0].Label.N >= tr.Labels[1].N {
		t.Errorf("outer top m%d should precede bottom m%d", tr.Code[0].Label.N, tr.Labels[1].N)
	}
}

func TestTranslateLabelsAreUnique(t *testing.T) {
	body := strings.Repeat("if (f)\nwrite(1)\nelse\nwrite(2)\nendif\n", 5)
	tr := translate(t, program(body))

	seen := map[int]int{}
	for _, l := range tr.Labels {
		seen[l.N]++
	}
	if len(seen) != 10 {
		t.Errorf("got %d distinct labels, want 10", len(seen))
	}
	for n := 1; n <= 10; n++ {
		if seen[n] != 2 {
			t.Errorf("m%d used %d times, want 2", n, seen[n])
		}
	}
}

func TestTranslateIsRepeatable(t *testing.T) {
	src := program("read(a)\nif (a > 0)\nwrite(a)\nelse\nwrite(-a)\nendif")
	syms, stmts := BuildSymbolTable(mustLex(t, src))

	first, err := Translate(stmts, syms, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Translate(stmts, syms, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first.Code, second.Code) {
		t.Errorf("second pass differs:\n%s\n%s", Stream(first.Code), Stream(second.Code))
	}
	if !reflect.DeepEqual(first.Labels, second.Labels) {
		t.Errorf("label trails differ: %v vs %v", first.Labels, second.Labels)
	}
}

func TestTranslateLabelLines(t *testing.T) {
	tr := translate(t, program("if (f)\nwrite(1)\nelse\nwrite(2)\nendif"))
	// The declarations take two lines and begin a third.
	if tr.Labels[0].Line != 4 {
		t.Errorf("if label line %d, want 4", tr.Labels[0].Line)
	}
	if tr.Labels[1].Line != 6 {
		t.Errorf("else label line %d, want 6", tr.Labels[1].Line)
	}
}

func TestTranslateUnexpectedEnd(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unclosed write", "write(a"},
		{"unclosed read", "read(a, b"},
		{"if without endif", "if (f)\nwrite(a)"},
		{"do without enddo", "do while (f)\na = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syms, stmts := BuildSymbolTable(mustLex(t, program(tt.body)))
			tr, err := Translate(stmts, syms, nil)
			if !errors.Is(err, ErrUnexpectedEnd) {
				t.Fatalf("got %v, want ErrUnexpectedEnd", err)
			}
			if tr != nil {
				t.Error("no partial translation should be returned")
			}
		})
	}
}

func TestTranslateConditionErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"unclosed if condition", "if (f\nwrite(a)\nendif", ErrUnbalancedParens},
		{"extra closing paren", "if (a > 0))\nwrite(a)\nendif", ErrUnbalancedParens},
		{"empty do condition", "do while\nenddo", ErrEmptyExpression},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileWith(program(tt.body), ShuntingYard{})
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTranslateTrailingTokens(t *testing.T) {
	for _, body := range []string{"write(a) b = 1", "read(a) write(a)", "read(a, b) c"} {
		t.Run(body, func(t *testing.T) {
			syms, stmts := BuildSymbolTable(mustLex(t, program(body)))
			tr, err := Translate(stmts, syms, nil)
			if !errors.Is(err, ErrTrailingTokens) {
				t.Fatalf("got %v, want ErrTrailingTokens", err)
			}
			if tr != nil {
				t.Error("no partial translation should be returned")
			}
		})
	}
}

func TestTranslateAssignmentWithoutNewline(t *testing.T) {
	stmts := exprTokens(t, "a = 1")
	if _, err := Translate(stmts, NewSymbolTable(), nil); !errors.Is(err, ErrUnexpectedEnd) {
		t.Errorf("got %v, want ErrUnexpectedEnd", err)
	}
}

func TestTranslateTransformerError(t *testing.T) {
	sentinel := errors.New("transformer refused")
	xf := TransformFunc(func([]Token) ([]Token, error) {
		return nil, sentinel
	})
	syms, stmts := BuildSymbolTable(mustLex(t, program("write(a)")))
	_, err := Translate(stmts, syms, xf)
	if err != sentinel {
		t.Errorf("got %v, want the transformer's error unchanged", err)
	}

	_, err = CompileWith(program("a = (1"), ShuntingYard{})
	if !errors.Is(err, ErrUnbalancedParens) {
		t.Errorf("got %v, want ErrUnbalancedParens", err)
	}
}

func TestTranslateCustomTransformer(t *testing.T) {
	// An identity transformer leaves expressions in infix order.
	identity := TransformFunc(func(toks []Token) ([]Token, error) {
		return append([]Token(nil), toks...), nil
	})
	tr, err := CompileWith(program("x = a + b"), identity)
	if err != nil {
		t.Fatal(err)
	}
	if got := Stream(tr.Code); got != "x a + b =" {
		t.Errorf("got %q", got)
	}
}

func TestCompile(t *testing.T) {
	tr, err := Compile("integer a\nbegin\na = 1\nwrite(a)\nend\n")
	if err != nil {
		t.Fatal(err)
	}
	if got := Stream(tr.Code); got != "a 1 = a OUT" {
		t.Errorf("got %q", got)
	}
	if tr.Symbols.Len() != 1 {
		t.Errorf("got %d symbols, want 1", tr.Symbols.Len())
	}

	if _, err := Compile("begin\na = $\nend"); err == nil || !strings.Contains(err.Error(), "lex error") {
		t.Errorf("expected a lex error, got %v", err)
	}
}
