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

// Package formulas evaluates the two kinds of spreadsheet requests the
// server accepts: IF formulas over a sheet of named cells, and aggregates
// over a list of raw cell values.
package formulas

import (
	"errors"
	"log"
	"strings"

	"acb/sheet-server/cellvalue"
	"github.com/xuri/efp"
)

// MaxFormulaLength bounds the size of a formula accepted for evaluation.
const MaxFormulaLength = 4096

// IfFormula is a parsed IF(logicalTest, trueBranch, falseBranch). It lives
// for a single evaluation.
type IfFormula struct {
	LogicalTest string
	TrueBranch  string
	FalseBranch string
}

// ParseIf parses "=IF(test, a, b)". The leading "=" is optional and the
// function name is case-insensitive.
func ParseIf(formula string) (IfFormula, error) {
	text := strings.TrimSpace(formula)
	text = strings.TrimSpace(strings.TrimPrefix(text, "="))

	if len(text) < 3 || !strings.EqualFold(text[:3], "IF(") {
		return IfFormula{}, unsupported(formula, text)
	}
	if !strings.HasSuffix(text, ")") {
		return IfFormula{}, newError(ErrSyntax, formula, "invalid IF syntax, missing closing parenthesis")
	}

	args, err := splitArguments(text[3 : len(text)-1])
	if err != nil {
		return IfFormula{}, newError(ErrSyntax, formula, "invalid IF syntax (%s)", err)
	}
	if len(args) != 3 {
		return IfFormula{}, newError(ErrSyntax, formula, "IF formula must have 3 arguments, got %d", len(args))
	}
	for i, arg := range args {
		if arg == "" {
			return IfFormula{}, newError(ErrSyntax, formula, "argument %d of IF is empty", i+1)
		}
	}
	return IfFormula{
		LogicalTest: args[0],
		TrueBranch:  args[1],
		FalseBranch: args[2],
	}, nil
}

// unsupported names the function that was used instead of IF, when there is one.
func unsupported(formula, text string) *Error {
	ps := efp.ExcelParser()
	for _, t := range ps.Parse(text) {
		if t.TType == efp.TokenTypeFunction && t.TSubType == efp.TokenSubTypeStart {
			return newError(ErrSyntax, formula, "unsupported function %s, only IF formulas are supported", strings.ToUpper(t.TValue))
		}
	}
	return newError(ErrSyntax, formula, "unsupported formula, only IF formulas are supported")
}

// splitArguments splits on commas that are neither nested in parentheses nor
// inside a string literal, trimming each argument.
func splitArguments(inner string) ([]string, error) {
	args := make([]string, 0, 3)
	depth, start, inString := 0, 0, false
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		switch {
		case c == '"':
			// An escaped "" toggles twice and stays inside the literal.
			inString = !inString
		case inString:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, errors.New("unbalanced parentheses")
			}
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(inner[start:i]))
			start = i + 1
		}
	}
	if inString {
		return nil, errors.New("unterminated string literal")
	}
	if depth != 0 {
		return nil, errors.New("unbalanced parentheses")
	}
	return append(args, strings.TrimSpace(inner[start:])), nil
}

// Evaluate picks a branch according to the logical test and returns it with
// cell references substituted. A quoted branch yields its payload.
func (f IfFormula) Evaluate(sheet cellvalue.Sheet) (string, error) {
	test := substituteCells(f.LogicalTest, sheet)
	ok, err := evalComparison(test)
	if err != nil {
		return "", newError(ErrEvaluation, f.LogicalTest, "error evaluating logical test (%s)", err)
	}

	branch := f.FalseBranch
	if ok {
		branch = f.TrueBranch
	}
	result := unquote(strings.TrimSpace(substituteCells(branch, sheet)))
	log.Printf("Evaluated IF(%s) as %t: %s", test, ok, result)
	return result, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return s
}

// EvaluateFormula parses an IF formula and evaluates it against sheet.
func EvaluateFormula(formula string, sheet cellvalue.Sheet) (string, error) {
	if strings.TrimSpace(formula) == "" {
		return "", newError(ErrInvalidInput, "", "formula is required")
	}
	if len(formula) > MaxFormulaLength {
		return "", newError(ErrInvalidInput, "", "formula longer than %d bytes", MaxFormulaLength)
	}
	f, err := ParseIf(formula)
	if err != nil {
		return "", err
	}
	return f.Evaluate(sheet)
}
