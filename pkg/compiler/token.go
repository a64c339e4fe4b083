package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER // variable name
	INTEGER    // decimal integer literal
	REAL       // decimal literal with a fractional part
	BOOLEAN    // true / false

	// Type keywords (declaration section)
	TYPE_INTEGER // "integer"
	TYPE_REAL    // "real"
	TYPE_BOOLEAN // "boolean"

	// Statement keywords
	BEGIN // "begin"
	END   // "end"
	WRITE // "write"
	READ  // "read"
	IF    // "if"
	ELSE  // "else"
	ENDIF // "endif"
	DO    // "do"
	WHILE // "while"
	ENDDO // "enddo"

	// Punctuation
	LPAREN  // (
	RPAREN  // )
	COMMA   // ,
	NEWLINE // line terminator

	// Arithmetic operators
	PLUS  // +
	MINUS // -
	STAR  // *
	SLASH // /
	NEG   // unary minus, synthesized by the expression transformer

	// Logical operators
	AND_LOGICAL // &&
	OR_LOGICAL  // ||
	NOT         // !

	// Assignment / comparison  (order matters: ASSIGN before EQUALS)
	ASSIGN     // =
	EQUALS     // ==
	NOT_EQ     // !=
	LESS       // <
	GREATER    // >
	LESS_EQ    // <=
	GREATER_EQ // >=
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	EOF:          "EOF",
	IDENTIFIER:   "IDENTIFIER",
	INTEGER:      "INTEGER",
	REAL:         "REAL",
	BOOLEAN:      "BOOLEAN",
	TYPE_INTEGER: "TYPE_INTEGER",
	TYPE_REAL:    "TYPE_REAL",
	TYPE_BOOLEAN: "TYPE_BOOLEAN",
	BEGIN:        "BEGIN",
	END:          "END",
	WRITE:        "WRITE",
	READ:         "READ",
	IF:           "IF",
	ELSE:         "ELSE",
	ENDIF:        "ENDIF",
	DO:           "DO",
	WHILE:        "WHILE",
	ENDDO:        "ENDDO",
	LPAREN:       "LPAREN",
	RPAREN:       "RPAREN",
	COMMA:        "COMMA",
	NEWLINE:      "NEWLINE",
	PLUS:         "PLUS",
	MINUS:        "MINUS",
	STAR:         "STAR",
	SLASH:        "SLASH",
	NEG:          "NEG",
	AND_LOGICAL:  "AND_LOGICAL",
	OR_LOGICAL:   "OR_LOGICAL",
	NOT:          "NOT",
	ASSIGN:       "ASSIGN",
	EQUALS:       "EQUALS",
	NOT_EQ:       "NOT_EQ",
	LESS:         "LESS",
	GREATER:      "GREATER",
	LESS_EQ:      "LESS_EQ",
	GREATER_EQ:   "GREATER_EQ",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// IsOperator reports whether tt is an operator of the expression language.
func (tt TokenType) IsOperator() bool {
	return tt >= PLUS && tt <= GREATER_EQ && tt != ASSIGN
}

// IsOperand reports whether tt pushes a value: a literal or a variable.
func (tt TokenType) IsOperand() bool {
	return tt >= IDENTIFIER && tt <= BOOLEAN
}

// isTypeKeyword reports whether tt opens a declaration group.
func (tt TokenType) isTypeKeyword() bool {
	return tt == TYPE_INTEGER || tt == TYPE_REAL || tt == TYPE_BOOLEAN
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched
	Line   int    // 1-based source line
}

func (t Token) String() string {
	return fmt.Sprintf("%-12s %-10q  line %d", t.Type, t.Lexeme, t.Line)
}
