package calcpipe

import (
	"strconv"
	"strings"
)

type lexer struct {
	src string
	// off is the byte offset of the next unscanned byte.
	off int
}

func lex(src string) *lexer {
	return &lexer{src: src}
}

// next scans the next token from the input. ok is false once the input is
// exhausted. Bytes which are neither digits nor operators are skipped.
func (l *lexer) next() (tok Token, ok bool) {
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case isDigit(c):
			return l.scanNum(), true
		case strings.IndexByte(Operators, c) >= 0:
			l.off++
			return Op(c, l.off), true
		default:
			// Whitespace, letters, dots, and anything else contribute nothing.
			l.off++
		}
	}
	return Token{}, false
}

// scanNum scans a maximal run of decimal digits. The lexer must be positioned
// on a digit.
func (l *lexer) scanNum() Token {
	start := l.off
	for l.off < len(l.src) && isDigit(l.src[l.off]) {
		l.off++
	}
	// A digit run is always valid syntax. The only possible error is a range
	// error, in which case ParseFloat already gives +Inf.
	v, _ := strconv.ParseFloat(l.src[start:l.off], 64)
	return Num(v, start+1)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// Tokenize splits an infix expression into number and operator tokens in
// source order. Numbers are unsigned runs of decimal digits; a - is always an
// operator. Characters which are not digits or in Operators are dropped
// rather than rejected.
func Tokenize(src string) []Token {
	var toks []Token
	l := lex(src)
	for {
		tok, ok := l.next()
		if !ok {
			return toks
		}
		toks = append(toks, tok)
	}
}
