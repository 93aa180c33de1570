package lexer

import (
	"testing"

	"martianoff/simc/simerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []Kind {
	res := make([]Kind, len(toks))
	for i, t := range toks {
		res[i] = t.Kind
	}
	return res
}

func texts(toks []Token) []string {
	res := make([]string, len(toks))
	for i, t := range toks {
		res[i] = t.Text
	}
	return res
}

func TestLexerTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kinds []Kind
		texts []string
	}{
		{
			name:  "Empty module",
			input: "mod param {}\nfn main() {}",
			kinds: []Kind{Keyword, Keyword, Punctuation, Punctuation, Keyword, Identifier, Punctuation, Punctuation, Punctuation, Punctuation, EOF},
			texts: []string{"mod", "param", "{", "}", "fn", "main", "(", ")", "{", "}", ""},
		},
		{
			name:  "Witness reference is one token",
			input: "witness::VALUE",
			kinds: []Kind{WitnessRef, EOF},
			texts: []string{"VALUE", ""},
		},
		{
			name:  "Witness declaration keyword",
			input: "witness SIG: u64;",
			kinds: []Kind{Keyword, Identifier, Punctuation, Identifier, Punctuation, EOF},
			texts: []string{"witness", "SIG", ":", "u64", ";", ""},
		},
		{
			name:  "Operators",
			input: "-> => = :: :",
			kinds: []Kind{Operator, Operator, Operator, Operator, Punctuation, EOF},
			texts: []string{"->", "=>", "=", "::", ":", ""},
		},
		{
			name:  "Number literals",
			input: "42 0x2A 0b101 1_000",
			kinds: []Kind{Literal, Literal, Literal, Literal, EOF},
			texts: []string{"42", "0x2A", "0b101", "1_000", ""},
		},
		{
			name:  "Comments are discarded",
			input: "fn /* block\ncomment */ main // trailing\n",
			kinds: []Kind{Keyword, Identifier, EOF},
			texts: []string{"fn", "main", ""},
		},
		{
			name:  "Jet path",
			input: "jet::add_32",
			kinds: []Kind{Keyword, Operator, Identifier, EOF},
			texts: []string{"jet", "::", "add_32", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := All(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.kinds, kinds(toks))
			assert.Equal(t, tt.texts, texts(toks))
		})
	}
}

func TestLexerPositions(t *testing.T) {
	toks, err := All("fn main() {\n  witness::X\n}")
	require.NoError(t, err)
	require.Len(t, toks, 8)
	assert.Equal(t, simerr.Pos{Line: 1, Column: 1}, toks[0].Pos)
	assert.Equal(t, simerr.Pos{Line: 1, Column: 4}, toks[1].Pos)
	assert.Equal(t, simerr.Pos{Line: 2, Column: 3}, toks[5].Pos)
	assert.Equal(t, WitnessRef, toks[5].Kind)
	assert.Equal(t, simerr.Pos{Line: 3, Column: 1}, toks[6].Pos)
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		line   int
		column int
	}{
		{name: "Unknown character", input: "fn main() { $ }", line: 1, column: 13},
		{name: "Bad digit", input: "\n  12ab", line: 2, column: 5},
		{name: "Lone minus", input: "a - b", line: 1, column: 3},
		{name: "Unterminated comment", input: "fn /* main", line: 1, column: 4},
		{name: "Empty hex", input: "0x", line: 1, column: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := All(tt.input)
			require.Error(t, err)
			var lexErr *simerr.LexError
			require.ErrorAs(t, err, &lexErr)
			assert.Equal(t, tt.line, lexErr.Line)
			assert.Equal(t, tt.column, lexErr.Column)
		})
	}
}

func TestTokensIsRestartable(t *testing.T) {
	seq := Tokens("fn main() {}")
	var first, second []string
	for tok, err := range seq {
		require.NoError(t, err)
		first = append(first, tok.Text)
	}
	for tok, err := range seq {
		require.NoError(t, err)
		second = append(second, tok.Text)
	}
	assert.Equal(t, first, second)
}

func TestTokensIsLazy(t *testing.T) {
	// The bad character is never reached when iteration stops early.
	count := 0
	for tok, err := range Tokens("fn main $") {
		require.NoError(t, err)
		count++
		if tok.Text == "main" {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestNextIsStickyAfterEOF(t *testing.T) {
	l := New("x")
	tok, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, Identifier, tok.Kind)
	for i := 0; i < 3; i++ {
		tok, err = l.Next()
		require.NoError(t, err)
		assert.Equal(t, EOF, tok.Kind)
	}
}

func TestCommentsDoNotChangeTokenStream(t *testing.T) {
	plain, err := All("fn main() { witness::A }")
	require.NoError(t, err)
	commented, err := All("// header\nfn   main( /* none */ )\n{\n\twitness::A // slot\n}\n")
	require.NoError(t, err)
	assert.Equal(t, texts(plain), texts(commented))
	assert.Equal(t, kinds(plain), kinds(commented))
}
