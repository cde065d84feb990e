package calcpipe

import (
	"errors"
	"strconv"
)

// Kind classifies an evaluation failure by who has to act on it.
type Kind int8

const (
	// KindNone is the kind of a nil error or an error from outside the
	// pipeline.
	KindNone Kind = iota
	// KindMalformed is an expression that cannot be evaluated: unbalanced
	// brackets, too few operands for an operator, or a postfix sequence that
	// does not reduce to exactly one value.
	KindMalformed
	// KindDivisionByZero is a division the arithmetic capability rejected
	// because the divisor was zero.
	KindDivisionByZero
	// KindService is an arithmetic capability that was unreachable or failed
	// unexpectedly. It is the only kind worth retrying.
	KindService
	// KindInternal is a defect in the pipeline itself.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "NONE"
	case KindMalformed:
		return "MALFORMED_EXPRESSION"
	case KindDivisionByZero:
		return "DIVISION_BY_ZERO"
	case KindService:
		return "ARITHMETIC_SERVICE_ERROR"
	case KindInternal:
		return "INTERNAL_ERROR"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind is the inverse of Kind.String. Unknown names give KindNone.
func ParseKind(s string) Kind {
	for k := KindMalformed; k <= KindInternal; k++ {
		if k.String() == s {
			return k
		}
	}
	return KindNone
}

// KindOf returns the kind of the first error in err's chain that has one.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindNone
}

// Retryable reports whether a caller may reasonably retry the evaluation that
// produced err.
func Retryable(err error) bool {
	return KindOf(err) == KindService
}

// ErrMalformed matches every malformed expression error with errors.Is.
var ErrMalformed = errors.New("malformed expression")

// Errors reported by an Arithmetic capability. Implementations should wrap one
// of these so that Evaluate can classify the failure.
var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrUnsupported    = errors.New("unsupported operation")
	ErrUnavailable    = errors.New("arithmetic unavailable")
)

// BracketError is an unmatched bracket. It implements InputError.
type BracketError struct {
	// Col is the position of the bracket.
	Col int
	// Open is true for a ( with no ) and false for a ) with no (.
	Open bool
}

func (err *BracketError) Error() string {
	if err.Open {
		return errpos(err.Col, "open bracket ( with no close bracket")
	}
	return errpos(err.Col, "close bracket ) with no open bracket")
}

func (err *BracketError) Pos() int {
	return err.Col
}

func (err *BracketError) Kind() Kind {
	return KindMalformed
}

func (err *BracketError) Is(target error) bool {
	return target == ErrMalformed
}

// StackError is an operator with fewer than two operands available. It
// implements InputError.
type StackError struct {
	// Col is the position of the operator.
	Col int
	// Operator is the operator symbol.
	Operator byte
	// Have is the number of operands that were available.
	Have int
}

func (err *StackError) Error() string {
	return errpos(err.Col, "operator "+strconv.QuoteRune(rune(err.Operator))+" needs 2 operands, have "+strconv.Itoa(err.Have))
}

func (err *StackError) Pos() int {
	return err.Col
}

func (err *StackError) Kind() Kind {
	return KindMalformed
}

func (err *StackError) Is(target error) bool {
	return target == ErrMalformed
}

// ResultError is a postfix sequence which did not reduce to exactly one value.
// It implements InputError.
type ResultError struct {
	// Col is the position of the last token, or 0 for empty input.
	Col int
	// Have is the number of values left on the operand stack.
	Have int
}

func (err *ResultError) Error() string {
	if err.Have == 0 {
		return errpos(err.Col, "no expression")
	}
	return errpos(err.Col, "expression left "+strconv.Itoa(err.Have)+" values instead of 1")
}

func (err *ResultError) Pos() int {
	return err.Col
}

func (err *ResultError) Kind() Kind {
	return KindMalformed
}

func (err *ResultError) Is(target error) bool {
	return target == ErrMalformed
}

// DivisionByZeroError is a division rejected by the arithmetic capability. It
// implements InputError and unwraps to the capability's error.
type DivisionByZeroError struct {
	// Col is the position of the / operator.
	Col int
	// X is the dividend.
	X float64
	// Err is the error from the capability.
	Err error
}

func (err *DivisionByZeroError) Error() string {
	return errpos(err.Col, "division by zero: "+strconv.FormatFloat(err.X, 'g', -1, 64)+" / 0")
}

func (err *DivisionByZeroError) Pos() int {
	return err.Col
}

func (err *DivisionByZeroError) Kind() Kind {
	return KindDivisionByZero
}

func (err *DivisionByZeroError) Unwrap() error {
	return err.Err
}

// ServiceError is a failed call to the arithmetic capability other than a
// division by zero. It unwraps to the capability's error.
type ServiceError struct {
	// Col is the position of the operator being computed.
	Col int
	// Op is the operation that failed.
	Op Operation
	// Err is the error from the capability.
	Err error
}

func (err *ServiceError) Error() string {
	return errpos(err.Col, "computing "+err.Op.String()+": "+err.Err.Error())
}

func (err *ServiceError) Kind() Kind {
	return KindService
}

func (err *ServiceError) Unwrap() error {
	return err.Err
}

// InternalError is a token that reached the evaluator but names no operation,
// e.g. a bracket in a postfix sequence. It indicates a bug in whatever
// produced the sequence.
type InternalError struct {
	// Token is the offending token.
	Token Token
}

func (err *InternalError) Error() string {
	return errpos(err.Token.Pos(), "internal error: "+strconv.Quote(err.Token.String())+" is not an arithmetic operator")
}

func (err *InternalError) Kind() Kind {
	return KindInternal
}

// errpos is a shortcut to create an error message with a position.
func errpos(pos int, msg string) string {
	return strconv.Itoa(pos) + ": " + msg
}

// InputError is an error caused by the input expression, with position
// information. Every such error from the pipeline implements InputError.
type InputError interface {
	error
	// Pos returns the 1-based byte column of the token that caused the error.
	Pos() int
}

var (
	_ InputError = (*BracketError)(nil)
	_ InputError = (*StackError)(nil)
	_ InputError = (*ResultError)(nil)
	_ InputError = (*DivisionByZeroError)(nil)
)
