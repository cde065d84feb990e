package calcpipe

import (
	"context"
	"fmt"
	"strconv"
)

// Operation is one of the four arithmetic operations an Arithmetic capability
// computes.
type Operation int8

const (
	Add Operation = iota + 1
	Subtract
	Multiply
	Divide
)

func (op Operation) String() string {
	switch op {
	case Add:
		return "ADD"
	case Subtract:
		return "SUBTRACT"
	case Multiply:
		return "MULTIPLY"
	case Divide:
		return "DIVIDE"
	default:
		return "Operation(" + strconv.Itoa(int(op)) + ")"
	}
}

// Symbol returns the operator symbol for op, or 0 if op is not valid.
func (op Operation) Symbol() byte {
	switch op {
	case Add:
		return '+'
	case Subtract:
		return '-'
	case Multiply:
		return '*'
	case Divide:
		return '/'
	default:
		return 0
	}
}

// ParseOperation is the inverse of Operation.String. The error wraps
// ErrUnsupported.
func ParseOperation(s string) (Operation, error) {
	for op := Add; op <= Divide; op++ {
		if op.String() == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupported, s)
}

// operation maps an operator symbol to its operation. Brackets have none.
func operation(sym byte) (Operation, bool) {
	switch sym {
	case '+':
		return Add, true
	case '-':
		return Subtract, true
	case '*':
		return Multiply, true
	case '/':
		return Divide, true
	default:
		return 0, false
	}
}

// Arithmetic computes a op b. Implementations report a zero divisor with an
// error wrapping ErrDivisionByZero, an operation they do not know with
// ErrUnsupported, and transport failures with ErrUnavailable. Any other error
// is treated like ErrUnavailable.
//
// The context bounds the whole evaluation that the call is part of.
type Arithmetic interface {
	Compute(ctx context.Context, a float64, op Operation, b float64) (float64, error)
}

// ArithmeticFunc adapts a function to the Arithmetic interface.
type ArithmeticFunc func(ctx context.Context, a float64, op Operation, b float64) (float64, error)

func (f ArithmeticFunc) Compute(ctx context.Context, a float64, op Operation, b float64) (float64, error) {
	return f(ctx, a, op, b)
}

// Local computes operations in process. It never blocks and ignores its
// context.
var Local Arithmetic = ArithmeticFunc(compute)

// compute performs a single operation.
func compute(_ context.Context, a float64, op Operation, b float64) (float64, error) {
	switch op {
	case Add:
		return a + b, nil
	case Subtract:
		return a - b, nil
	case Multiply:
		return a * b, nil
	case Divide:
		if b == 0 {
			return 0, fmt.Errorf("%w: %g / %g", ErrDivisionByZero, a, b)
		}
		return a / b, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnsupported, op)
	}
}
