// Package calcpipe evaluates arithmetic expressions by handing every operation
// to an Arithmetic capability, which is usually a remote service.
//
// Evaluation runs in three stages. Tokenize scans digits and the symbols
// "+-*/()" and drops everything else, so "2 + 3" and "2+3" are the same input.
// ToPostfix reorders the tokens with the shunting-yard algorithm, giving * and
// / higher precedence than + and -, all left-associative. Evaluate walks the
// postfix sequence with an operand stack and asks the capability for the
// result of each operator, one call at a time and in order.
//
// EvalString runs all three stages. Every failure is a typed error; KindOf
// tells a bad expression apart from a failing arithmetic backend.
//
package calcpipe
