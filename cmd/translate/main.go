package main

import (
	"fmt"
	"os"

	"gopostfix/pkg/asm"
	"gopostfix/pkg/compiler"
)

const testSource = `integer a, b
begin
read(b)
a = 1
do while (a < b)
a = a * 2
enddo
if (a == b)
write(a)
else
write(-a)
endif
end
`

func main() {
	src := testSource
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
	}

	fmt.Printf("Source:\n%s\n", src)

	// Lex
	tokens, err := compiler.Lex(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lex error:", err)
		os.Exit(1)
	}

	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()

	// Declarations
	syms, stmts := compiler.BuildSymbolTable(tokens)
	fmt.Printf("Statement tokens (%d)\n", len(stmts))
	for _, tok := range stmts {
		fmt.Println(" ", tok)
	}
	fmt.Println()
	fmt.Print(syms)
	fmt.Println()

	// Translate
	tr, err := compiler.Translate(stmts, syms, compiler.ShuntingYard{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "translate error:", err)
		os.Exit(1)
	}

	fmt.Println("Postfix")
	fmt.Println(" ", compiler.Stream(tr.Code))
	fmt.Println()

	fmt.Println("Listing")
	fmt.Print(asm.Format(tr.Code, nil))
	fmt.Println()

	fmt.Printf("Label uses (%d)\n", len(tr.Labels))
	for _, l := range tr.Labels {
		fmt.Printf("  %-6s line %d\n", l.Name(), l.Line)
	}
}
