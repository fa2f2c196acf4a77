package signature

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedSignature reports an expression that cannot be parsed:
	// empty input, unbalanced parentheses, or an operator without an operand.
	ErrMalformedSignature = errors.New("malformed signature")

	// ErrPatternDecode reports a pattern that is not an even-length,
	// non-empty hexadecimal string.
	ErrPatternDecode = errors.New("invalid hex pattern")
)

// Error describes where in an expression parsing or decoding failed.
// It matches ErrMalformedSignature or ErrPatternDecode with errors.Is.
type Error struct {
	Kind error
	Expr string
	Pos  int
	Msg  string
}

func (e *Error) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%v at offset %d: %s", e.Kind, e.Pos, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func malformed(expr string, pos int, msg string) error {
	return &Error{Kind: ErrMalformedSignature, Expr: expr, Pos: pos, Msg: msg}
}

func decodeError(pattern string, msg string) error {
	return &Error{Kind: ErrPatternDecode, Expr: pattern, Pos: -1, Msg: fmt.Sprintf("%q: %s", pattern, msg)}
}
