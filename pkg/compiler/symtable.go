package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// VarType is the declared type of a variable.
type VarType int

const (
	TypeUnknown VarType = iota
	TypeInteger
	TypeReal
	TypeBoolean
)

var varTypeNames = [...]string{
	TypeUnknown: "unknown",
	TypeInteger: "integer",
	TypeReal:    "real",
	TypeBoolean: "boolean",
}

func (vt VarType) String() string {
	if int(vt) >= 0 && int(vt) < len(varTypeNames) {
		return varTypeNames[vt]
	}
	return fmt.Sprintf("VarType(%d)", int(vt))
}

// varTypeFor maps a type keyword to the type it declares.
func varTypeFor(tt TokenType) VarType {
	switch tt {
	case TYPE_INTEGER:
		return TypeInteger
	case TYPE_REAL:
		return TypeReal
	case TYPE_BOOLEAN:
		return TypeBoolean
	}
	return TypeUnknown
}

// Variable is a declared name. Value stays unset until the machine stores one.
type Variable struct {
	Name  string
	Type  VarType
	Value any
	Set   bool
}

// SymbolTable maps variable names to their declarations.
type SymbolTable struct {
	vars map[string]*Variable
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{vars: make(map[string]*Variable)}
}

// Declare records name with the given type, replacing any earlier declaration.
func (s *SymbolTable) Declare(name string, vt VarType) *Variable {
	v := &Variable{Name: name, Type: vt}
	s.vars[name] = v
	return v
}

// Lookup returns the variable and whether it was found.
func (s *SymbolTable) Lookup(name string) (*Variable, bool) {
	v, ok := s.vars[name]
	return v, ok
}

func (s *SymbolTable) Len() int {
	return len(s.vars)
}

// Names returns the declared names in sorted order.
func (s *SymbolTable) Names() []string {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String returns a deterministically ordered dump of the table.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	if len(s.vars) == 0 {
		sb.WriteString("Variables: (empty)\n")
		return sb.String()
	}
	sb.WriteString("Variables:\n")
	for _, name := range s.Names() {
		v := s.vars[name]
		value := "unset"
		if v.Set {
			value = fmt.Sprint(v.Value)
		}
		fmt.Fprintf(&sb, "  %-20s  Type: %-8s Value: %s\n", name, v.Type, value)
	}
	return sb.String()
}

// BuildSymbolTable scans the declaration section in front of "begin" and
// returns the resulting table together with the statement tokens found between
// "begin" and "end". Identifiers seen before any type keyword are ignored;
// malformed declarations are collected on a best-effort basis.
func BuildSymbolTable(tokens []Token) (*SymbolTable, []Token) {
	syms := NewSymbolTable()

	i := 0
	current := TypeUnknown
	for ; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Type == BEGIN {
			i++
			break
		}
		if tok.Type.isTypeKeyword() {
			current = varTypeFor(tok.Type)
			continue
		}
		if tok.Type == IDENTIFIER && current != TypeUnknown {
			syms.Declare(tok.Lexeme, current)
		}
	}

	var stmts []Token
	for ; i < len(tokens); i++ {
		if tokens[i].Type == END || tokens[i].Type == EOF {
			break
		}
		stmts = append(stmts, tokens[i])
	}

	log.Debugf("declared %d variables, %d statement tokens", syms.Len(), len(stmts))
	return syms, stmts
}
