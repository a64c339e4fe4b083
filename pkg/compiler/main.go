// Package compiler provides the lexer, declaration scanner, expression
// transformer and statement translator for the postfix language.
//
// Pipeline: source → Lex → BuildSymbolTable → Translate → postfix instruction stream
package compiler

import "github.com/tliron/commonlog"

var log = commonlog.GetLogger("postfix.compiler")
