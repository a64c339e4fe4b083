package compiler

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyExpression  = errors.New("empty expression")
	ErrUnbalancedParens = errors.New("unbalanced parentheses")
	ErrUnexpectedToken  = errors.New("unexpected token in expression")
)

// Transformer converts an infix expression run into postfix order. It must not
// retain or modify its input.
type Transformer interface {
	Transform(tokens []Token) ([]Token, error)
}

// TransformFunc adapts an ordinary function to the Transformer interface.
type TransformFunc func(tokens []Token) ([]Token, error)

func (f TransformFunc) Transform(tokens []Token) ([]Token, error) {
	return f(tokens)
}

// ShuntingYard is the default Transformer: Dijkstra's operator-precedence
// algorithm over the expression operators of the language.
type ShuntingYard struct{}

// precedence returns the binding power of an operator; higher binds tighter.
func precedence(tt TokenType) int {
	switch tt {
	case NEG, NOT:
		return 6
	case STAR, SLASH:
		return 5
	case PLUS, MINUS:
		return 4
	case EQUALS, NOT_EQ, LESS, GREATER, LESS_EQ, GREATER_EQ:
		return 3
	case AND_LOGICAL:
		return 2
	case OR_LOGICAL:
		return 1
	}
	return 0
}

func isUnary(tt TokenType) bool {
	return tt == NEG || tt == NOT
}

// Transform returns tokens in postfix order. A '-' in prefix position becomes a
// NEG token with lexeme "@".
func (ShuntingYard) Transform(tokens []Token) ([]Token, error) {
	if len(tokens) == 0 {
		return nil, ErrEmptyExpression
	}

	out := make([]Token, 0, len(tokens))
	var ops []Token

	// prefix is true where an operand is expected, so '-' there is unary.
	prefix := true
	for _, tok := range tokens {
		switch {
		case tok.Type.IsOperand():
			out = append(out, tok)
			prefix = false

		case tok.Type == LPAREN:
			ops = append(ops, tok)
			prefix = true

		case tok.Type == RPAREN:
			for len(ops) > 0 && ops[len(ops)-1].Type != LPAREN {
				out = append(out, ops[len(ops)-1])
				ops = ops[:len(ops)-1]
			}
			if len(ops) == 0 {
				return nil, fmt.Errorf("line %d: %w", tok.Line, ErrUnbalancedParens)
			}
			ops = ops[:len(ops)-1]
			prefix = false

		case tok.Type.IsOperator():
			if prefix && tok.Type == MINUS {
				tok = Token{Type: NEG, Lexeme: "@", Line: tok.Line}
			}
			if isUnary(tok.Type) {
				// Prefix operators bind to what follows; nothing to reduce yet.
				ops = append(ops, tok)
				prefix = true
				continue
			}
			p := precedence(tok.Type)
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				if top.Type == LPAREN || precedence(top.Type) < p {
					break
				}
				out = append(out, top)
				ops = ops[:len(ops)-1]
			}
			ops = append(ops, tok)
			prefix = true

		default:
			return nil, fmt.Errorf("line %d: %w: %q", tok.Line, ErrUnexpectedToken, tok.Lexeme)
		}
	}

	for len(ops) > 0 {
		top := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		if top.Type == LPAREN {
			return nil, fmt.Errorf("line %d: %w", top.Line, ErrUnbalancedParens)
		}
		out = append(out, top)
	}
	return out, nil
}
