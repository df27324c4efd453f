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
)

var (
	// ErrInvalidInput: empty value set, missing or oversized fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSyntax: malformed formula, wrong argument count, unsupported function.
	ErrSyntax = errors.New("syntax error")
	// ErrEvaluation: the logical test cannot be evaluated.
	ErrEvaluation = errors.New("evaluation error")
	// ErrUnsupportedOperation: unknown aggregate name.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// Error is the failure returned by every evaluator entry point. Kind is one
// of the Err* sentinels, Text is the offending input.
type Error struct {
	Kind error
	Text string
	Msg  string
}

func (e *Error) Error() string {
	if e.Text == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, e.Text)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, text, format string, args ...any) *Error {
	return &Error{Kind: kind, Text: text, Msg: fmt.Sprintf(format, args...)}
}
