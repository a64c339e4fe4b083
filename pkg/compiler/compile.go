package compiler

import "fmt"

// Compile runs the front half of the pipeline on src: scanning, declaration
// collection and statement translation with the default transformer.
func Compile(src string) (*Translation, error) {
	return CompileWith(src, ShuntingYard{})
}

// CompileWith is Compile with a caller-supplied expression transformer.
func CompileWith(src string, xf Transformer) (*Translation, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, fmt.Errorf("lex error: %w", err)
	}

	syms, stmts := BuildSymbolTable(tokens)

	tr, err := Translate(stmts, syms, xf)
	if err != nil {
		return nil, fmt.Errorf("translate error: %w", err)
	}

	log.Infof("compiled %d variables into %d instructions", syms.Len(), len(tr.Code))
	return tr, nil
}
