package calcpipe

// ToPostfix converts an infix token sequence to postfix order using the
// shunting-yard algorithm. * and / bind more tightly than + and -, and all
// four are left-associative. Brackets group and never appear in the result.
// An unmatched bracket in either direction gives a *BracketError.
//
// ToPostfix checks only bracket balance. Sequences like "1 2" or "+" convert
// without error and are rejected later by Evaluate.
func ToPostfix(infix []Token) ([]Token, error) {
	post := make([]Token, 0, len(infix))
	// ops is the operator stack. Its top is the last element.
	var ops []Token
	for _, tok := range infix {
		if tok.Kind() == TokenNum {
			post = append(post, tok)
			continue
		}
		switch tok.Symbol() {
		case '(':
			ops = append(ops, tok)
		case ')':
			k := len(ops) - 1
			for k >= 0 && ops[k].Symbol() != '(' {
				post = append(post, ops[k])
				k--
			}
			if k < 0 {
				return nil, &BracketError{Col: tok.Pos(), Open: false}
			}
			// Discard the (.
			ops = ops[:k]
		default:
			prec := binop(tok.Symbol())
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				if top.Symbol() == '(' || !binop(top.Symbol()).before(prec) {
					break
				}
				post = append(post, top)
				ops = ops[:len(ops)-1]
			}
			ops = append(ops, tok)
		}
	}
	for k := len(ops) - 1; k >= 0; k-- {
		if ops[k].Symbol() == '(' {
			return nil, &BracketError{Col: ops[k].Pos(), Open: true}
		}
		post = append(post, ops[k])
	}
	return post, nil
}

type operator struct {
	// prec is the precedence value. Higher is more binding.
	prec int8
}

// before reports whether an operator p already on the stack must be output
// before the incoming operator in is pushed. Every operator is
// left-associative, so equal precedence pops.
func (p operator) before(in operator) bool {
	return p.prec >= in.prec
}

// binop gets the binary operator for a symbol. Panics if sym is a bracket or
// not an operator at all.
func binop(sym byte) operator {
	switch sym {
	case '+', '-':
		return operator{prec: 1}
	case '*', '/':
		return operator{prec: 2}
	default:
		panic("calcpipe: no precedence for " + string(sym))
	}
}
