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
	"regexp"
	"strings"

	"acb/sheet-server/cellvalue"
)

// Whole references only: A1 must not match inside A10 or XA1.
var cellRefPattern = regexp.MustCompile(`\b[A-Z]+[0-9]+\b`)

// substituteCells replaces every cell reference outside string literals with
// a literal for the referenced cell's value.
func substituteCells(text string, sheet cellvalue.Sheet) string {
	var b strings.Builder
	start := 0
	for i := 0; i < len(text); {
		if text[i] != '"' {
			i++
			continue
		}
		b.WriteString(replaceRefs(text[start:i], sheet))
		end := closingQuote(text, i)
		b.WriteString(text[i:end])
		i, start = end, end
	}
	b.WriteString(replaceRefs(text[start:], sheet))
	return b.String()
}

func replaceRefs(text string, sheet cellvalue.Sheet) string {
	return cellRefPattern.ReplaceAllStringFunc(text, func(ref string) string {
		return cellLiteral(sheet[ref])
	})
}

// closingQuote returns the index just past the string literal opening at i,
// or len(text) if it is never closed. "" inside a literal is an escaped quote.
func closingQuote(text string, i int) int {
	for j := i + 1; j < len(text); j++ {
		if text[j] != '"' {
			continue
		}
		if j+1 < len(text) && text[j+1] == '"' {
			j++
			continue
		}
		return j + 1
	}
	return len(text)
}

// cellLiteral renders a cell as a numeric or string literal. Only one level of
// {"value": ...} is unwrapped; missing cells and anything that is not a
// scalar after that are 0.
func cellLiteral(v cellvalue.Value) string {
	switch w := v.(type) {
	case *cellvalue.Wrapped:
		if w == nil {
			return "0"
		}
		v = w.Value
	case *cellvalue.Keyed, cellvalue.Object:
		return "0"
	}

	switch v := v.(type) {
	case cellvalue.Number, cellvalue.Bool:
		return cellvalue.FormatNumber(cellvalue.ExtractNumber(v))
	case cellvalue.Text:
		if n, ok := cellvalue.ParseNumber(string(v)); ok {
			return cellvalue.FormatNumber(n)
		}
		return quote(string(v))
	}
	return "0"
}
