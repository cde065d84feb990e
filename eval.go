package calcpipe

import (
	"context"
	"errors"
	"log/slog"
)

// Evaluate computes the value of a postfix token sequence, asking arith for
// the result of each operator in order. Each call completes before the next
// begins, because later operators consume earlier results.
//
// The sequence must reduce to exactly one value. Too few operands for an
// operator gives a *StackError, and any other final stack size, including
// empty input, gives a *ResultError. Failures from arith become a
// *DivisionByZeroError when they wrap ErrDivisionByZero and a *ServiceError
// otherwise. A bracket token gives an *InternalError. If ctx ends before an
// operator is computed, the result is a *ServiceError wrapping ctx.Err().
func Evaluate(ctx context.Context, postfix []Token, arith Arithmetic) (float64, error) {
	var s stack
	for _, tok := range postfix {
		if tok.Kind() == TokenNum {
			s.push(tok.Value())
			continue
		}
		op, ok := operation(tok.Symbol())
		if !ok {
			return 0, &InternalError{Token: tok}
		}
		if s.len() < 2 {
			return 0, &StackError{Col: tok.Pos(), Operator: tok.Symbol(), Have: s.len()}
		}
		b := s.pop()
		a := s.pop()
		if err := ctx.Err(); err != nil {
			return 0, &ServiceError{Col: tok.Pos(), Op: op, Err: err}
		}
		r, err := arith.Compute(ctx, a, op, b)
		if err != nil {
			if errors.Is(err, ErrDivisionByZero) {
				return 0, &DivisionByZeroError{Col: tok.Pos(), X: a, Err: err}
			}
			return 0, &ServiceError{Col: tok.Pos(), Op: op, Err: err}
		}
		s.push(r)
	}
	if s.len() != 1 {
		col := 0
		if len(postfix) > 0 {
			col = postfix[len(postfix)-1].Pos()
		}
		return 0, &ResultError{Col: col, Have: s.len()}
	}
	return s.pop(), nil
}

// stack is the operand stack for one evaluation.
type stack struct {
	v []float64
}

func (s *stack) push(x float64) {
	s.v = append(s.v, x)
}

// pop removes the top from the stack and returns it. Panics if the stack is
// empty.
func (s *stack) pop() float64 {
	x := s.v[len(s.v)-1]
	s.v = s.v[:len(s.v)-1]
	return x
}

func (s *stack) len() int {
	return len(s.v)
}

// Pipeline evaluates infix expressions with an Arithmetic capability. A
// Pipeline holds no state between evaluations and is safe for concurrent use
// if its Arithmetic is.
type Pipeline struct {
	// Arith computes each operation.
	Arith Arithmetic
	// Log receives a debug record for each stage. If nil, nothing is logged.
	Log *slog.Logger
}

// Eval tokenizes src, converts it to postfix, and evaluates it. The first
// failing stage's error is returned unchanged.
func (p *Pipeline) Eval(ctx context.Context, src string) (float64, error) {
	toks := Tokenize(src)
	p.debug(ctx, "tokenized", slog.String("expression", src), slog.String("tokens", FormatTokens(toks)))
	post, err := ToPostfix(toks)
	if err != nil {
		return 0, err
	}
	p.debug(ctx, "converted to postfix", slog.String("postfix", FormatTokens(post)))
	r, err := Evaluate(ctx, post, p.Arith)
	if err != nil {
		return 0, err
	}
	p.debug(ctx, "evaluated", slog.Float64("result", r))
	return r, nil
}

func (p *Pipeline) debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	if p.Log == nil {
		return
	}
	p.Log.LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
}

// EvalString is a shortcut to evaluate an infix expression with arith.
func EvalString(ctx context.Context, src string, arith Arithmetic) (float64, error) {
	p := Pipeline{Arith: arith}
	return p.Eval(ctx, src)
}
