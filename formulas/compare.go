// This file is part of Sheet Server.
//
// Sheet Server is free software: you can redistribute it and/or modify it under the
// terms of the GNU Affero General Public License as published by the Free Software Foundation,
// either version 3 of the License, or (at your option) any later version.
//
// Sheet Server is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU General Public License along with Sheet Server.
// If not, see https://www.gnu.org/licenses/agpl-3.0.html
package formulas

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// A logical test is closed over three token kinds: numeric literals, string
// literals and one comparison operator. Anything else is rejected, so a test
// can never do more than compare two values.

type tokenKind int

const (
	numberToken tokenKind = iota
	stringToken
	operatorToken
)

type token struct {
	kind   tokenKind
	text   string // operator, or the unescaped string payload
	number float64
}

// Longest first so ">=" is not read as ">".
var comparators = []string{
	"==", "!=", ">=", "<=", "<>", ">", "<", "=",
}

var comparatorAliases = map[string]string{
	"=":  "==",
	"<>": "!=",
}

func (t token) String() string {
	switch t.kind {
	case numberToken:
		return strconv.FormatFloat(t.number, 'g', -1, 64)
	case stringToken:
		return quote(t.text)
	}
	return t.text
}

type lexer struct {
	input  string
	pos    int
	tokens []token
}

func (l *lexer) skipSpaces() {
	for l.pos < len(l.input) && strings.IndexByte(" \t\r\n", l.input[l.pos]) >= 0 {
		l.pos++
	}
}

func (l *lexer) expectsOperand() bool {
	return len(l.tokens) == 0 || l.tokens[len(l.tokens)-1].kind == operatorToken
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func (l *lexer) startsNumber() bool {
	c := l.input[l.pos]
	if isDigit(c) || c == '.' {
		return true
	}
	if (c == '-' || c == '+') && l.expectsOperand() && l.pos+1 < len(l.input) {
		next := l.input[l.pos+1]
		return isDigit(next) || next == '.'
	}
	return false
}

func (l *lexer) lexNumber() error {
	start := l.pos
	if c := l.input[l.pos]; c == '-' || c == '+' {
		l.pos++
	}
	digits := func() {
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	digits()
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		digits()
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '-' || l.input[l.pos] == '+') {
			l.pos++
		}
		digits()
	}
	text := l.input[start:l.pos]
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", text)
	}
	l.tokens = append(l.tokens, token{kind: numberToken, text: text, number: n})
	return nil
}

func (l *lexer) lexString() error {
	var b strings.Builder
	for l.pos++; l.pos < len(l.input); l.pos++ {
		c := l.input[l.pos]
		if c != '"' {
			b.WriteByte(c)
			continue
		}
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '"' {
			b.WriteByte('"')
			l.pos++
			continue
		}
		l.pos++
		l.tokens = append(l.tokens, token{kind: stringToken, text: b.String()})
		return nil
	}
	return errors.New("unterminated string literal")
}

func (l *lexer) lexOperator() error {
	for _, op := range comparators {
		if strings.HasPrefix(l.input[l.pos:], op) {
			l.pos += len(op)
			if alias, ok := comparatorAliases[op]; ok {
				op = alias
			}
			l.tokens = append(l.tokens, token{kind: operatorToken, text: op})
			return nil
		}
	}
	return fmt.Errorf("unexpected character %q", l.input[l.pos])
}

func lexComparison(input string) ([]token, error) {
	l := lexer{input: input}
	for {
		l.skipSpaces()
		if l.pos >= len(l.input) {
			return l.tokens, nil
		}
		var err error
		switch {
		case l.input[l.pos] == '"':
			err = l.lexString()
		case l.startsNumber():
			err = l.lexNumber()
		default:
			err = l.lexOperator()
		}
		if err != nil {
			return nil, err
		}
	}
}

// evalComparison evaluates "operand op operand", or a lone numeric operand
// which is true when non-zero.
func evalComparison(input string) (bool, error) {
	tokens, err := lexComparison(input)
	if err != nil {
		return false, err
	}
	switch len(tokens) {
	case 0:
		return false, errors.New("empty expression")
	case 1:
		if tokens[0].kind != numberToken {
			return false, fmt.Errorf("%s is not a condition", tokens[0])
		}
		return tokens[0].number != 0, nil
	case 3:
		lhs, op, rhs := tokens[0], tokens[1], tokens[2]
		if lhs.kind == operatorToken || op.kind != operatorToken || rhs.kind == operatorToken {
			return false, errors.New("expected operand, comparison, operand")
		}
		return compare(lhs, op.text, rhs)
	}
	return false, fmt.Errorf("expected a single comparison, got %d tokens", len(tokens))
}

func compare(lhs token, op string, rhs token) (bool, error) {
	if lhs.kind == numberToken && rhs.kind == numberToken {
		a, b := lhs.number, rhs.number
		switch op {
		case "==":
			return a == b, nil
		case "!=":
			return a != b, nil
		case ">":
			return a > b, nil
		case "<":
			return a < b, nil
		case ">=":
			return a >= b, nil
		case "<=":
			return a <= b, nil
		}
		return false, fmt.Errorf("unsupported operator %s", op)
	}

	// At least one side is a string: only equality is defined, and values
	// of different kinds are never equal.
	equal := lhs.kind == rhs.kind && lhs.text == rhs.text
	switch op {
	case "==":
		return equal, nil
	case "!=":
		return !equal, nil
	}
	return false, fmt.Errorf("cannot compare %s %s %s", lhs, op, rhs)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
