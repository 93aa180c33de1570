package lexer

import (
	"iter"
	"unicode"

	"martianoff/simc/simerr"

	"github.com/antlr4-go/antlr/v4"
)

// Lexer scans a single source text. A Lexer is not safe for concurrent use;
// create one per goroutine or use Tokens, which starts a fresh scan on every
// iteration.
type Lexer struct {
	input  *antlr.InputStream
	line   int
	column int
	err    error
	done   bool
}

// New creates a Lexer positioned at the start of src.
func New(src string) *Lexer {
	return &Lexer{
		input:  antlr.NewInputStream(src),
		line:   1,
		column: 1,
	}
}

// Tokens returns a lazy, restartable sequence of the tokens in src. The
// sequence ends after the EOF token or after the first error.
func Tokens(src string) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		l := New(src)
		for {
			tok, err := l.Next()
			if !yield(tok, err) || err != nil || tok.Kind == EOF {
				return
			}
		}
	}
}

// All scans src completely.
func All(src string) ([]Token, error) {
	var toks []Token
	for tok, err := range Tokens(src) {
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
	}
	return toks, nil
}

func (l *Lexer) peek(offset int) rune {
	c := l.input.LA(offset)
	if c == antlr.TokenEOF {
		return -1
	}
	return rune(c)
}

func (l *Lexer) advance() rune {
	c := l.peek(1)
	if c < 0 {
		return c
	}
	l.input.Consume()
	if c == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return c
}

func (l *Lexer) pos() simerr.Pos {
	return simerr.Pos{Line: l.line, Column: l.column}
}

// Next returns the next token. Once EOF or an error has been returned, every
// further call returns the same result.
func (l *Lexer) Next() (Token, error) {
	if l.err != nil {
		return Token{}, l.err
	}
	if l.done {
		return Token{Kind: EOF, Pos: l.pos(), Offset: l.input.Index()}, nil
	}
	tok, err := l.scan()
	if err != nil {
		l.err = err
		return Token{}, err
	}
	if tok.Kind == EOF {
		l.done = true
	}
	return tok, nil
}

func (l *Lexer) scan() (Token, error) {
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}

	start := l.input.Index()
	pos := l.pos()
	c := l.peek(1)

	switch {
	case c < 0:
		return Token{Kind: EOF, Pos: pos, Offset: start}, nil
	case isIdentStart(c):
		return l.scanWord(start, pos), nil
	case isDigit(c):
		return l.scanNumber(start, pos)
	}

	switch c {
	case '-':
		if l.peek(2) == '>' {
			return l.emit2(Operator, start, pos), nil
		}
	case '=':
		if l.peek(2) == '>' {
			return l.emit2(Operator, start, pos), nil
		}
		l.advance()
		return Token{Kind: Operator, Text: "=", Pos: pos, Offset: start}, nil
	case ':':
		if l.peek(2) == ':' {
			return l.emit2(Operator, start, pos), nil
		}
		l.advance()
		return Token{Kind: Punctuation, Text: ":", Pos: pos, Offset: start}, nil
	case '(', ')', '{', '}', ',', ';', '<', '>':
		l.advance()
		return Token{Kind: Punctuation, Text: string(c), Pos: pos, Offset: start}, nil
	}
	return Token{}, simerr.NewLexError(pos.Line, pos.Column, c)
}

func (l *Lexer) emit2(kind Kind, start int, pos simerr.Pos) Token {
	l.advance()
	l.advance()
	return Token{Kind: kind, Text: l.input.GetText(start, start+1), Pos: pos, Offset: start}
}

// skipTrivia discards whitespace and comments.
func (l *Lexer) skipTrivia() error {
	for {
		c := l.peek(1)
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			l.advance()
		case c == '/' && l.peek(2) == '/':
			for c := l.peek(1); c >= 0 && c != '\n'; c = l.peek(1) {
				l.advance()
			}
		case c == '/' && l.peek(2) == '*':
			pos := l.pos()
			l.advance()
			l.advance()
			for {
				if l.peek(1) < 0 {
					return simerr.NewLexErrorMsg(pos.Line, pos.Column, "unterminated block comment")
				}
				if l.peek(1) == '*' && l.peek(2) == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return nil
		}
	}
}

func (l *Lexer) scanWord(start int, pos simerr.Pos) Token {
	for isIdentPart(l.peek(1)) {
		l.advance()
	}
	text := l.input.GetText(start, l.input.Index()-1)

	// witness::NAME is a single token
	if text == "witness" && l.peek(1) == ':' && l.peek(2) == ':' && isIdentStart(l.peek(3)) {
		l.advance()
		l.advance()
		nameStart := l.input.Index()
		for isIdentPart(l.peek(1)) {
			l.advance()
		}
		name := l.input.GetText(nameStart, l.input.Index()-1)
		return Token{Kind: WitnessRef, Text: name, Pos: pos, Offset: start}
	}

	if IsKeyword(text) {
		return Token{Kind: Keyword, Text: text, Pos: pos, Offset: start}
	}
	return Token{Kind: Identifier, Text: text, Pos: pos, Offset: start}
}

func (l *Lexer) scanNumber(start int, pos simerr.Pos) (Token, error) {
	isDigitFn := isDigit
	if l.peek(1) == '0' && (l.peek(2) == 'x' || l.peek(2) == 'X') {
		isDigitFn = isHexDigit
		l.advance()
		l.advance()
	} else if l.peek(1) == '0' && (l.peek(2) == 'b' || l.peek(2) == 'B') {
		isDigitFn = isBinDigit
		l.advance()
		l.advance()
	}

	digits := 0
	for {
		c := l.peek(1)
		if c == '_' {
			l.advance()
			continue
		}
		if isDigitFn(c) {
			digits++
			l.advance()
			continue
		}
		if isIdentPart(c) {
			p := l.pos()
			return Token{}, simerr.NewLexError(p.Line, p.Column, c)
		}
		break
	}
	if digits == 0 {
		p := l.pos()
		return Token{}, simerr.NewLexErrorMsg(p.Line, p.Column, "number has no digits")
	}
	text := l.input.GetText(start, l.input.Index()-1)
	return Token{Kind: Literal, Text: text, Pos: pos, Offset: start}, nil
}

func isIdentStart(c rune) bool {
	return c == '_' || (c >= 0 && unicode.IsLetter(c))
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || (c >= 0 && unicode.IsDigit(c))
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c rune) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isBinDigit(c rune) bool {
	return c == '0' || c == '1'
}
