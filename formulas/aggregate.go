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
	"log"
	"math"
	"slices"

	"acb/sheet-server/cellvalue"
	"golang.org/x/exp/maps"
)

// Operation names an aggregate, as sent in the "type" field of a math request.
type Operation string

const (
	Sum     Operation = "sum"
	Average Operation = "average"
	Min     Operation = "min"
	Max     Operation = "max"
	Count   Operation = "count"
	Round   Operation = "round"
	Abs     Operation = "abs"
	Product Operation = "product"
)

// Every reducer receives at least one number.
var aggregates = map[Operation]func([]float64) float64{
	Sum:     sum,
	Average: average,
	Min: func(numbers []float64) float64 {
		return slices.Min(numbers)
	},
	Max: func(numbers []float64) float64 {
		return slices.Max(numbers)
	},
	Count: func(numbers []float64) float64 {
		return float64(len(numbers))
	},
	// round and abs are scalar: only the first value counts.
	Round: func(numbers []float64) float64 {
		return math.RoundToEven(numbers[0])
	},
	Abs: func(numbers []float64) float64 {
		return math.Abs(numbers[0])
	},
	Product: func(numbers []float64) float64 {
		p := float64(1)
		for _, n := range numbers {
			p *= n
		}
		return p
	},
}

func sum(numbers []float64) float64 {
	s := float64(0)
	for _, n := range numbers {
		s += n
	}
	return s
}

// average falls back to summing scaled values when the plain sum overflows
// but the mean itself is representable.
func average(numbers []float64) float64 {
	n := float64(len(numbers))
	if s := sum(numbers); !math.IsInf(s, 0) {
		return s / n
	}
	mean := float64(0)
	for _, x := range numbers {
		mean += x / n
	}
	return mean
}

// Operations lists the supported aggregate names in sorted order.
func Operations() []Operation {
	ops := maps.Keys(aggregates)
	slices.Sort(ops)
	return ops
}

// Aggregate extracts a number from every raw value and reduces them with op.
func Aggregate(op Operation, values []cellvalue.Value) (float64, error) {
	if len(values) == 0 {
		return 0, newError(ErrInvalidInput, "", "no valid numeric values")
	}
	reduce, ok := aggregates[op]
	if !ok {
		return 0, newError(ErrUnsupportedOperation, string(op), "unsupported math operation")
	}

	numbers := make([]float64, len(values))
	for i, v := range values {
		numbers[i] = cellvalue.ExtractNumber(v)
	}
	result := reduce(numbers)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, newError(ErrInvalidInput, string(op), "result out of range")
	}
	log.Printf("Aggregated %d values with %s: %v", len(numbers), op, result)
	return result, nil
}
