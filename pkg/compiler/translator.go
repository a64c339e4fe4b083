package compiler

import (
	"errors"
	"fmt"
)

// ErrUnexpectedEnd is returned when the statement tokens run out while a
// statement is still open.
var ErrUnexpectedEnd = errors.New("unexpected end of statements")

// ErrTrailingTokens is returned when a statement that ends at its closing
// parenthesis is followed by more tokens on the same line.
var ErrTrailingTokens = errors.New("unexpected tokens after statement")

// Translation is the result of one translation pass.
type Translation struct {
	Code    []Instr
	Labels  []Label // every label use, in emission order
	Symbols *SymbolTable
}

// translation is the state of one pass. It is threaded through the recursive
// statement dispatch and never shared between passes.
type translation struct {
	toks   []Token
	pos    int
	out    []Instr
	labels []Label
	alloc  LabelAllocator
	xf     Transformer
}

// Translate walks the statement tokens once and emits the postfix instruction
// stream. A nil Transformer selects ShuntingYard. Errors from the transformer
// are returned unchanged; on any error no partial result is returned.
func Translate(stmts []Token, syms *SymbolTable, xf Transformer) (*Translation, error) {
	if xf == nil {
		xf = ShuntingYard{}
	}
	t := &translation{toks: stmts, xf: xf}
	for t.pos < len(t.toks) {
		if err := t.statement(); err != nil {
			return nil, err
		}
	}
	log.Debugf("translated %d statement tokens into %d instructions, %d labels allocated",
		len(stmts), len(t.out), t.alloc.Count())
	return &Translation{Code: t.out, Labels: t.labels, Symbols: syms}, nil
}

// statement translates the form starting at the cursor and leaves the cursor
// after it. Tokens that start no form (line terminators, stray closers) are
// stepped over.
func (t *translation) statement() error {
	switch t.toks[t.pos].Type {
	case IDENTIFIER:
		return t.assignment()
	case WRITE:
		return t.write()
	case READ:
		return t.read()
	case IF:
		return t.ifStmt()
	case DO:
		return t.doLoop()
	}
	t.pos++
	return nil
}

func (t *translation) emit(in Instr) {
	t.out = append(t.out, in)
}

func (t *translation) emitTokens(toks []Token) {
	for _, tok := range toks {
		t.out = append(t.out, TokenInstr(tok))
	}
}

// useLabel emits l and records the use in the audit trail.
func (t *translation) useLabel(l Label) {
	t.labels = append(t.labels, l)
	t.out = append(t.out, LabelInstr(l))
}

func unexpectedEnd(open Token) error {
	return fmt.Errorf("line %d: %s: %w", open.Line, open.Lexeme, ErrUnexpectedEnd)
}

// next consumes and returns the token at the cursor.
func (t *translation) next(open Token) (Token, error) {
	if t.pos >= len(t.toks) {
		return Token{}, unexpectedEnd(open)
	}
	tok := t.toks[t.pos]
	t.pos++
	return tok, nil
}

// collectUntil gathers tokens up to, not including, the first token of type
// stop. The cursor is left on the stop token.
func (t *translation) collectUntil(open Token, stop TokenType) ([]Token, error) {
	start := t.pos
	for ; t.pos < len(t.toks); t.pos++ {
		if t.toks[t.pos].Type == stop {
			return t.toks[start:t.pos], nil
		}
	}
	return nil, unexpectedEnd(open)
}

// endOfLine checks that the cursor sits on a line terminator or at the end of
// the statements.
func (t *translation) endOfLine(open Token) error {
	if t.pos >= len(t.toks) || t.toks[t.pos].Type == NEWLINE {
		return nil
	}
	tok := t.toks[t.pos]
	return fmt.Errorf("line %d: %q after %s: %w", tok.Line, tok.Lexeme, open.Lexeme, ErrTrailingTokens)
}

// collectParen gathers tokens up to the ')' that closes an already consumed
// '('. The cursor is left after that ')'.
func (t *translation) collectParen(open Token) ([]Token, error) {
	start := t.pos
	depth := 0
	for ; t.pos < len(t.toks); t.pos++ {
		switch t.toks[t.pos].Type {
		case LPAREN:
			depth++
		case RPAREN:
			if depth == 0 {
				run := t.toks[start:t.pos]
				t.pos++
				return run, nil
			}
			depth--
		}
	}
	return nil, unexpectedEnd(open)
}

// expression transforms run and emits the postfix result.
func (t *translation) expression(run []Token) error {
	postfix, err := t.xf.Transform(run)
	if err != nil {
		return err
	}
	t.emitTokens(postfix)
	return nil
}

// assignment: ident = expr NEWLINE  →  ident <expr> =
func (t *translation) assignment() error {
	ident := t.toks[t.pos]
	t.pos++
	assign, err := t.next(ident)
	if err != nil {
		return err
	}
	run, err := t.collectUntil(ident, NEWLINE)
	if err != nil {
		return err
	}
	t.emit(TokenInstr(ident))
	if err := t.expression(run); err != nil {
		return err
	}
	t.emit(TokenInstr(assign))
	t.pos++ // NEWLINE
	return nil
}

// write: write ( expr )  →  <expr> OUT
func (t *translation) write() error {
	kw := t.toks[t.pos]
	t.pos += 2 // keyword and '('
	run, err := t.collectParen(kw)
	if err != nil {
		return err
	}
	if err := t.expression(run); err != nil {
		return err
	}
	t.emit(OpInstr(OpOut, kw.Line))
	return t.endOfLine(kw)
}

// read: read ( a, b )  →  a INPUT b INPUT
func (t *translation) read() error {
	kw := t.toks[t.pos]
	t.pos += 2 // keyword and '('
	for {
		tok, err := t.next(kw)
		if err != nil {
			return err
		}
		switch tok.Type {
		case RPAREN:
			return t.endOfLine(kw)
		case COMMA:
			continue
		}
		t.emit(TokenInstr(tok))
		t.emit(OpInstr(OpInput, tok.Line))
	}
}

// ifStmt lays out
//
//	<cond> A JF <then> A                        without else
//	<cond> A JF <then> B JMP A <else> B         with else
//
// The condition is the rest of the line after the keyword.
func (t *translation) ifStmt() error {
	kw := t.toks[t.pos]
	t.pos++
	cond, err := t.collectUntil(kw, NEWLINE)
	if err != nil {
		return err
	}
	if err := t.expression(cond); err != nil {
		return err
	}

	falseLabel := t.alloc.Allocate(kw.Line)
	t.useLabel(falseLabel)
	t.emit(OpInstr(OpJF, kw.Line))

	var endLabel Label
	hasElse := false
	for {
		if t.pos >= len(t.toks) {
			return unexpectedEnd(kw)
		}
		tok := t.toks[t.pos]
		if tok.Type == ENDIF {
			t.pos++
			break
		}
		if tok.Type == ELSE && !hasElse {
			endLabel = t.alloc.Allocate(tok.Line)
			t.useLabel(endLabel)
			t.emit(OpInstr(OpJMP, tok.Line))
			t.useLabel(falseLabel)
			hasElse = true
			t.pos++
			continue
		}
		if err := t.statement(); err != nil {
			return err
		}
	}

	if hasElse {
		t.useLabel(endLabel)
	} else {
		t.useLabel(falseLabel)
	}
	return nil
}

// doLoop lays out
//
//	Top <cond> Bottom JF <body> Top JMP Bottom
//
// The condition is the rest of the line after "do while" and is tested before
// every pass through the body.
func (t *translation) doLoop() error {
	kw := t.toks[t.pos]
	t.pos += 2 // do, while

	top := t.alloc.Allocate(kw.Line)
	t.useLabel(top)
	bottom := t.alloc.Allocate(kw.Line)

	cond, err := t.collectUntil(kw, NEWLINE)
	if err != nil {
		return err
	}
	if err := t.expression(cond); err != nil {
		return err
	}
	t.useLabel(bottom)
	t.emit(OpInstr(OpJF, kw.Line))

	for {
		if t.pos >= len(t.toks) {
			return unexpectedEnd(kw)
		}
		if t.toks[t.pos].Type == ENDDO {
			t.pos++
			break
		}
		if err := t.statement(); err != nil {
			return err
		}
	}

	t.useLabel(top)
	t.emit(OpInstr(OpJMP, kw.Line))
	t.useLabel(bottom)
	return nil
}
