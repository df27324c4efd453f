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
package workbook

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"

	"acb/sheet-server/cellvalue"
	"github.com/xuri/excelize/v2"
	"golang.org/x/exp/maps"
)

// MaxRows caps the size of a generated dataset.
const MaxRows = 100

const outputSheet = "Sheet1"

var (
	ErrInvalidRowCount = errors.New("invalid row count")
	ErrEmptySample     = errors.New("sample file is empty")
)

// ColumnRange describes one column of a sample: numeric columns are filled
// with integers in [Min, Max], the others are left blank.
type ColumnRange struct {
	Name    string
	Numeric bool
	Min     int64
	Max     int64
}

func (c ColumnRange) random(rng *rand.Rand) any {
	if !c.Numeric {
		return nil
	}
	// Two's complement wraparound keeps the span and the offset exact
	// even when Max-Min does not fit in an int64.
	span := uint64(c.Max) - uint64(c.Min)
	if span == math.MaxUint64 {
		return int64(rng.Uint64())
	}
	return int64(uint64(c.Min) + rng.Uint64N(span+1))
}

// truncInt64 truncates f toward zero, saturating at the int64 bounds.
func truncInt64(f float64) int64 {
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(math.Trunc(f))
}

// SampleRanges reads the header row and per-column ranges of the first
// worksheet. The range of a column is the truncated min and max of its
// numeric cells.
func SampleRanges(r io.Reader) ([]ColumnRange, error) {
	f, sheetName, err := open(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	if len(rows) < 2 || width == 0 {
		return nil, ErrEmptySample
	}

	columns := make([]ColumnRange, width)
	for i := range columns {
		if i < len(rows[0]) && rows[0][i] != "" {
			columns[i].Name = rows[0][i]
		} else {
			columns[i].Name = fmt.Sprintf("Unnamed: %d", i)
		}
	}

	lows := make(map[int]float64)
	highs := make(map[int]float64)
	for _, row := range rows[1:] {
		for i, text := range row {
			n, ok := cellvalue.ParseNumber(text)
			if !ok {
				continue
			}
			if low, seen := lows[i]; !seen || n < low {
				lows[i] = n
			}
			if high, seen := highs[i]; !seen || n > high {
				highs[i] = n
			}
		}
	}
	for _, i := range maps.Keys(lows) {
		columns[i].Numeric = true
		columns[i].Min = truncInt64(lows[i])
		columns[i].Max = truncInt64(highs[i])
	}
	return columns, nil
}

// Generate builds a workbook with the sample's header and rows random rows,
// capped at MaxRows.
func Generate(sample io.Reader, rows int, rng *rand.Rand) (*excelize.File, error) {
	if rows <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRowCount, rows)
	}
	rows = min(rows, MaxRows)

	columns, err := SampleRanges(sample)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	header := make([]any, len(columns))
	for i, column := range columns {
		header[i] = column.Name
	}
	if err := f.SetSheetRow(outputSheet, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}
	for r := 0; r < rows; r++ {
		values := make([]any, len(columns))
		for i, column := range columns {
			values[i] = column.random(rng)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(outputSheet, cell, &values); err != nil {
			f.Close()
			return nil, err
		}
	}
	log.Printf("Generated %d random rows over %d columns", rows, len(columns))
	return f, nil
}
