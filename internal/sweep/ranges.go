// Package sweep expands per-entity parameter ranges into the discrete value
// combinations a study runs. It covers loading the range table, expanding a
// single range into values and forming the Cartesian product per entity.
package sweep

import (
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/simsweep/internal/faults"
)

const (
	// rangeEpsilon is the tolerance applied at the far endpoint so that
	// accumulated floating point error never drops the end value.
	rangeEpsilon = 1e-10

	// maxValues caps a single expanded range.
	maxValues = 10000
)

// RangeDescriptor is one row of the range table: the sweep for a single
// attribute of a single entity.
type RangeDescriptor struct {
	EntityID     string
	Attribute    string
	Start        float64
	End          float64
	Step         float64
	Replications int
}

// Values expands the descriptor. See Expand.
func (d RangeDescriptor) Values() ([]float64, error) {
	v, err := Expand(d.Start, d.End, d.Step)
	if err != nil {
		if fe, ok := err.(*faults.Error); ok {
			fe.Subject = d.EntityID + "/" + d.Attribute
		}
		return nil, err
	}
	return v, nil
}

// Expand generates the values from start to end inclusive, walking by the
// magnitude of step in whichever direction end lies. Every value is rounded
// to two decimal places; consecutive values that round to the same number
// are emitted once. When start == end the result is [start].
//
// A zero, NaN or infinite step, non-finite endpoints, or a range that would
// produce more than maxValues entries is a range fault.
func Expand(start, end, step float64) ([]float64, error) {
	if step == 0 {
		return nil, faults.Newf(faults.KindRange, "expand", "", "step size cannot be zero")
	}
	if isBad(start) || isBad(end) || isBad(step) {
		return nil, faults.Newf(faults.KindRange, "expand", "",
			"non-finite range %v..%v step %v", start, end, step)
	}

	step = math.Abs(step)
	if math.Abs(end-start)/step+1 > maxValues {
		return nil, faults.Newf(faults.KindRange, "expand", "",
			"range %v..%v step %v exceeds %d values", start, end, step, maxValues)
	}

	var out []float64
	if start < end {
		for i := 0; ; i++ {
			v := start + float64(i)*step
			if v > end+rangeEpsilon {
				break
			}
			out = appendDistinct(out, round2(v))
		}
	} else {
		for i := 0; ; i++ {
			v := start - float64(i)*step
			if v < end-rangeEpsilon {
				break
			}
			out = appendDistinct(out, round2(v))
		}
	}
	return out, nil
}

// appendDistinct drops a value that rounds onto its predecessor, which
// happens when the step is finer than the rounding precision.
func appendDistinct(out []float64, v float64) []float64 {
	if n := len(out); n > 0 && out[n-1] == v {
		return out
	}
	return append(out, v)
}

func isBad(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatValue renders a swept value for filenames and attribute text: the
// shortest decimal that round-trips, always with a fractional part, so 1
// renders as "1.0" and 0.25 as "0.25".
func FormatValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
