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

// Package workbook reads and writes xlsx files: uploaded workbooks become a
// cellvalue.Sheet, and sample workbooks seed random datasets.
package workbook

import (
	"errors"
	"fmt"
	"io"

	"acb/sheet-server/cellvalue"
	"github.com/xuri/excelize/v2"
)

var ErrInvalidWorkbook = errors.New("invalid xlsx workbook")

func open(r io.Reader) (*excelize.File, string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrInvalidWorkbook, err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, "", fmt.Errorf("%w: no worksheets", ErrInvalidWorkbook)
	}
	return f, sheets[0], nil
}

// ReadCells reads the first worksheet into a sheet keyed by A1 references,
// each cell wrapped as {"value": ...}. Numeric text becomes a number.
func ReadCells(r io.Reader) (cellvalue.Sheet, error) {
	f, sheetName, err := open(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	sheet := cellvalue.Sheet{}
	for rowIdx, row := range rows {
		for colIdx, text := range row {
			if text == "" {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return nil, err
			}
			sheet[ref] = &cellvalue.Wrapped{Value: parseValue(text)}
		}
	}
	return sheet, nil
}

func parseValue(s string) cellvalue.Value {
	if n, ok := cellvalue.ParseNumber(s); ok {
		return cellvalue.Number(n)
	}
	return cellvalue.Text(s)
}
