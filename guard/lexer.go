package guard

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

// lexer turns a guard/rate expression source string into a flat token
// stream. It is a small hand-written scanner, not a generated one: the
// grammar (spec §6) is deliberately a strict subset of a calculator
// expression, so a handful of rune-classification rules cover it.
type lexer struct {
	src []rune
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src)}
}

func (l *lexer) peekRune() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) tokenize() ([]token, error) {
	var toks []token
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			toks = append(toks, token{kind: tokEOF})
			return toks, nil
		}
		c := l.src[l.pos]
		switch {
		case c >= '0' && c <= '9' || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
			tok, err := l.scanNumber()
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
		case isIdentStart(c):
			toks = append(toks, l.scanIdent())
		case c == '(':
			l.pos++
			toks = append(toks, token{kind: tokLParen, text: "("})
		case c == ')':
			l.pos++
			toks = append(toks, token{kind: tokRParen, text: ")"})
		case c == ',':
			l.pos++
			toks = append(toks, token{kind: tokComma, text: ","})
		default:
			tok, err := l.scanOperator()
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
		}
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t' || l.src[l.pos] == '\n' || l.src[l.pos] == '\r') {
		l.pos++
	}
}

func (l *lexer) scanNumber() (token, error) {
	start := l.pos
	for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
		l.pos++
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	text := string(l.src[start:l.pos])
	var n float64
	if _, err := fmt.Sscanf(text, "%g", &n); err != nil {
		return token{}, fmt.Errorf("invalid number literal %q: %w", text, err)
	}
	return token{kind: tokNumber, text: text, num: n}, nil
}

func (l *lexer) scanIdent() token {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	return token{kind: tokIdent, text: string(l.src[start:l.pos])}
}

func (l *lexer) scanOperator() (token, error) {
	two := ""
	if l.pos+1 < len(l.src) {
		two = string(l.src[l.pos : l.pos+2])
	}
	switch two {
	case "&&", "||", "==", "!=", ">=", "<=":
		l.pos += 2
		return token{kind: tokOp, text: two}, nil
	}
	one := string(l.src[l.pos])
	if strings.ContainsRune("+-*/%><!", rune(one[0])) {
		l.pos++
		return token{kind: tokOp, text: one}, nil
	}
	return token{}, fmt.Errorf("unexpected character %q at offset %d", one, l.pos)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}
