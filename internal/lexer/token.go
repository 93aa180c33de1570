// Package lexer turns contract source text into a lazy stream of tokens.
package lexer

import (
	"fmt"

	"martianoff/simc/simerr"
)

// Kind classifies a token.
type Kind int

const (
	EOF Kind = iota
	Identifier
	Keyword
	Literal
	Operator
	Punctuation
	WitnessRef
)

var kindNames = [...]string{
	EOF:         "end of input",
	Identifier:  "identifier",
	Keyword:     "keyword",
	Literal:     "literal",
	Operator:    "operator",
	Punctuation: "punctuation",
	WitnessRef:  "witness reference",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var keywords = map[string]bool{
	"mod":     true,
	"param":   true,
	"fn":      true,
	"let":     true,
	"match":   true,
	"if":      true,
	"else":    true,
	"const":   true,
	"witness": true,
	"jet":     true,
	"true":    true,
	"false":   true,
	"Left":    true,
	"Right":   true,
	"Some":    true,
	"None":    true,
}

// IsKeyword reports whether s is a reserved word.
func IsKeyword(s string) bool {
	return keywords[s]
}

// Token is a single lexical unit. For WitnessRef tokens Text holds the slot
// name without the "witness::" prefix.
type Token struct {
	Kind   Kind
	Text   string
	Pos    simerr.Pos
	Offset int // rune offset of the first character
}

// Is reports whether the token has the given kind and text.
func (t Token) Is(kind Kind, text string) bool {
	return t.Kind == kind && t.Text == text
}

// Describe renders the token for error messages.
func (t Token) Describe() string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case WitnessRef:
		return fmt.Sprintf("%q", "witness::"+t.Text)
	case Identifier:
		return fmt.Sprintf("identifier %q", t.Text)
	case Literal:
		return fmt.Sprintf("literal %s", t.Text)
	}
	return fmt.Sprintf("%q", t.Text)
}

func (t Token) String() string {
	return fmt.Sprintf("%s %s(%s)", t.Pos, t.Kind, t.Text)
}
