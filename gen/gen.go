// Package gen generates random infix expressions for test traffic.
package gen

import (
	"math/rand"
	"strings"
)

// operators are the binary operators generated expressions use.
const operators = "+-*/"

// DefaultLength is the expression length used when none is requested.
const DefaultLength = 15

// Expression generates an expression of single digits 1 through 9 alternating
// with operators, separated by spaces, e.g. "3 * 7 - 1". length counts both
// digits and operators. An even length is reduced by one so that the
// expression never ends with an operator, and a length below 1 gives the
// empty string.
//
// Generated expressions have no brackets and no zero divisors, so they always
// evaluate successfully.
func Expression(r *rand.Rand, length int) string {
	if length < 1 {
		return ""
	}
	if length%2 == 0 {
		length--
	}
	var b strings.Builder
	b.Grow(2 * length)
	for i := 0; i < length; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i%2 == 0 {
			b.WriteByte(byte('1' + r.Intn(9)))
		} else {
			b.WriteByte(operators[r.Intn(len(operators))])
		}
	}
	return b.String()
}
