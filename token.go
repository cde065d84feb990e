package calcpipe

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Token is a number or an operator in an infix or postfix sequence. Tokens
// are created with Num or Op and are immutable. The zero Token is the number
// 0 with no position.
type Token struct {
	num  float64
	kind TokenKind
	sym  byte
	pos  int
}

// TokenKind identifies the variant of a Token.
type TokenKind int8

const (
	// TokenNum is a literal operand.
	TokenNum TokenKind = iota
	// TokenOp is one of the symbols in Operators, including brackets.
	TokenOp
)

func (k TokenKind) String() string {
	switch k {
	case TokenNum:
		return "Num"
	case TokenOp:
		return "Op"
	default:
		return "TokenKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Operators contains the symbols which are lexed as operator tokens.
const Operators = "+-*/()"

// Num creates a number token. pos is the 1-based byte column of the literal
// in its source, or 0 if the token has no source.
func Num(v float64, pos int) Token {
	return Token{num: v, kind: TokenNum, pos: pos}
}

// Op creates an operator token. Panics if sym is not in Operators.
func Op(sym byte, pos int) Token {
	if strings.IndexByte(Operators, sym) < 0 {
		panic("calcpipe: invalid operator " + strconv.QuoteRune(rune(sym)))
	}
	return Token{kind: TokenOp, sym: sym, pos: pos}
}

// Kind returns the variant of the token.
func (t Token) Kind() TokenKind {
	return t.kind
}

// Value returns the value of a number token. It is 0 for operators.
func (t Token) Value() float64 {
	return t.num
}

// Symbol returns the symbol of an operator token. It is 0 for numbers.
func (t Token) Symbol() byte {
	return t.sym
}

// Pos returns the 1-based byte column of the token in its source.
func (t Token) Pos() int {
	return t.pos
}

func (t Token) String() string {
	if t.kind == TokenOp {
		return string(t.sym)
	}
	return strconv.FormatFloat(t.num, 'g', -1, 64)
}

// FormatTokens writes a token sequence separated by spaces, e.g. "2 3 +".
func FormatTokens(toks []Token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.String())
	}
	return b.String()
}

// jsonToken is the wire form of a token.
type jsonToken struct {
	Type     string   `json:"type"`
	Value    *float64 `json:"value,omitempty"`
	Operator string   `json:"operator,omitempty"`
}

// MarshalJSON encodes a number as {"type":"number","value":v} and an operator
// as {"type":"operator","operator":"+"}. Positions are not encoded.
func (t Token) MarshalJSON() ([]byte, error) {
	if t.kind == TokenOp {
		return json.Marshal(jsonToken{Type: "operator", Operator: string(t.sym)})
	}
	v := t.num
	return json.Marshal(jsonToken{Type: "number", Value: &v})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (t *Token) UnmarshalJSON(b []byte) error {
	var j jsonToken
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	switch j.Type {
	case "number":
		if j.Value == nil {
			return errors.New("calcpipe: number token without value")
		}
		*t = Num(*j.Value, 0)
	case "operator":
		if len(j.Operator) != 1 || strings.IndexByte(Operators, j.Operator[0]) < 0 {
			return errors.New("calcpipe: invalid operator token " + strconv.Quote(j.Operator))
		}
		*t = Op(j.Operator[0], 0)
	default:
		return errors.New("calcpipe: unknown token type " + strconv.Quote(j.Type))
	}
	return nil
}
