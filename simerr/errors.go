// Package simerr defines the error taxonomy shared by every stage of the
// compiler pipeline.
package simerr

import (
	"errors"
	"fmt"
)

// ErrorType defines the category of the error.
type ErrorType string

const (
	TypeInput    ErrorType = "InputError"
	TypeLex      ErrorType = "LexError"
	TypeParse    ErrorType = "ParseError"
	TypeType     ErrorType = "TypeError"
	TypeLowering ErrorType = "LoweringError"
	TypeBind     ErrorType = "BindError"
)

// SimError is the interface for all pipeline errors.
type SimError interface {
	error
	Type() ErrorType
}

// BaseError provides common fields for pipeline errors.
type BaseError struct {
	Msg     string
	ErrType ErrorType
}

func (e *BaseError) Error() string {
	return fmt.Sprintf("[%s] %s", e.ErrType, e.Msg)
}

func (e *BaseError) Type() ErrorType {
	return e.ErrType
}

// Pos is a 1-based line and column in the source text.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("line %d:%d", p.Line, p.Column)
}

// IsValid reports whether the position points into the source.
func (p Pos) IsValid() bool {
	return p.Line > 0
}

// InputError reports empty or malformed top-level input. It renders as its
// bare message because hosts display it verbatim.
type InputError struct {
	BaseError
}

func (e *InputError) Error() string {
	return e.Msg
}

// LexError represents an unrecognized character in the source.
type LexError struct {
	BaseError
	Pos
	Char rune
}

func (e *LexError) Error() string {
	return fmt.Sprintf("[%s] %s %s", e.ErrType, e.Pos, e.Msg)
}

// ParseError represents a grammar violation, including a missing main function.
type ParseError struct {
	BaseError
	Pos
	Expected string
	Found    string
}

func (e *ParseError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("[%s] %s %s", e.ErrType, e.Pos, e.Msg)
	}
	return fmt.Sprintf("[%s] %s", e.ErrType, e.Msg)
}

// TypeErrorKind distinguishes the flavors of type errors.
type TypeErrorKind string

const (
	KindMismatch           TypeErrorKind = "mismatch"
	KindUnresolvedWitness  TypeErrorKind = "unresolved-witness"
	KindConflictingWitness TypeErrorKind = "conflicting-witness-type"
	KindCannotInfer        TypeErrorKind = "cannot-infer"
	KindUndefined          TypeErrorKind = "undefined"
	KindArity              TypeErrorKind = "arity"
	KindOverflow           TypeErrorKind = "overflow"
	KindNotConstant        TypeErrorKind = "not-constant"
	KindDuplicate          TypeErrorKind = "duplicate"
)

// TypeError represents a failure of type checking or inference.
type TypeError struct {
	BaseError
	Pos
	Kind     TypeErrorKind
	Name     string
	Expected string
	Found    string
}

func (e *TypeError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("[%s] %s %s", e.ErrType, e.Pos, e.Msg)
	}
	return fmt.Sprintf("[%s] %s", e.ErrType, e.Msg)
}

// LoweringError reports a construct with no combinator equivalent.
type LoweringError struct {
	BaseError
	Pos
	Node   string
	Reason string
}

func (e *LoweringError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("[%s] %s %s: %s", e.ErrType, e.Pos, e.Node, e.Reason)
	}
	return fmt.Sprintf("[%s] %s: %s", e.ErrType, e.Node, e.Reason)
}

// BindErrorKind distinguishes the flavors of witness binding errors.
type BindErrorKind string

const (
	KindMissingWitness BindErrorKind = "missing-witness"
	KindUnusedWitness  BindErrorKind = "unused-witness"
	KindTypeMismatch   BindErrorKind = "type-mismatch"
	KindInvalidProgram BindErrorKind = "invalid-program"
)

// BindError represents a failure to bind witness values into a program.
type BindError struct {
	BaseError
	Kind     BindErrorKind
	Name     string
	Expected string
	Found    string
}

// NewInputError creates a new InputError.
func NewInputError(msg string) *InputError {
	return &InputError{BaseError: BaseError{Msg: msg, ErrType: TypeInput}}
}

// NewInputErrorf creates a new InputError with a formatted message.
func NewInputErrorf(format string, args ...interface{}) *InputError {
	return NewInputError(fmt.Sprintf(format, args...))
}

// NewLexError creates a LexError for an unexpected character.
func NewLexError(line, column int, ch rune) *LexError {
	return &LexError{
		BaseError: BaseError{
			Msg:     fmt.Sprintf("unexpected character %q", ch),
			ErrType: TypeLex,
		},
		Pos:  Pos{Line: line, Column: column},
		Char: ch,
	}
}

// NewLexErrorMsg creates a LexError with a custom message.
func NewLexErrorMsg(line, column int, msg string) *LexError {
	return &LexError{
		BaseError: BaseError{Msg: msg, ErrType: TypeLex},
		Pos:       Pos{Line: line, Column: column},
	}
}

// NewParseError creates a ParseError describing what was expected and found.
func NewParseError(line, column int, expected, found string) *ParseError {
	return &ParseError{
		BaseError: BaseError{
			Msg:     fmt.Sprintf("expected %s, found %s", expected, found),
			ErrType: TypeParse,
		},
		Pos:      Pos{Line: line, Column: column},
		Expected: expected,
		Found:    found,
	}
}

// NewParseErrorMsg creates a ParseError with a custom message.
func NewParseErrorMsg(line, column int, msg string) *ParseError {
	return &ParseError{
		BaseError: BaseError{Msg: msg, ErrType: TypeParse},
		Pos:       Pos{Line: line, Column: column},
	}
}

// NewTypeError creates a TypeError of the given kind.
func NewTypeError(pos Pos, kind TypeErrorKind, msg string) *TypeError {
	return &TypeError{
		BaseError: BaseError{Msg: msg, ErrType: TypeType},
		Pos:       pos,
		Kind:      kind,
	}
}

// NewMismatchError creates a TypeError for an expected/found mismatch.
func NewMismatchError(pos Pos, expected, found string) *TypeError {
	e := NewTypeError(pos, KindMismatch, fmt.Sprintf("expected type %s, found %s", expected, found))
	e.Expected = expected
	e.Found = found
	return e
}

// NewWitnessTypeError creates a TypeError about a named witness slot.
func NewWitnessTypeError(pos Pos, kind TypeErrorKind, name, msg string) *TypeError {
	e := NewTypeError(pos, kind, msg)
	e.Name = name
	return e
}

// NewLoweringError creates a LoweringError for the given node.
func NewLoweringError(pos Pos, node, reason string) *LoweringError {
	return &LoweringError{
		BaseError: BaseError{Msg: reason, ErrType: TypeLowering},
		Pos:       pos,
		Node:      node,
		Reason:    reason,
	}
}

// NewBindError creates a BindError for the given witness.
func NewBindError(kind BindErrorKind, name, msg string) *BindError {
	return &BindError{
		BaseError: BaseError{Msg: msg, ErrType: TypeBind},
		Kind:      kind,
		Name:      name,
	}
}

// NewBindMismatchError creates a BindError for a value of the wrong type.
func NewBindMismatchError(name, expected, found string) *BindError {
	e := NewBindError(KindTypeMismatch, name,
		fmt.Sprintf("witness %s: expected %s, found %s", name, expected, found))
	e.Expected = expected
	e.Found = found
	return e
}

// TypeOf returns the category of err, or "" if err is not a pipeline error.
func TypeOf(err error) ErrorType {
	var se SimError
	if errors.As(err, &se) {
		return se.Type()
	}
	return ""
}
