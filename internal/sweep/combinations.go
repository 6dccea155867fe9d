package sweep

import (
	"fmt"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/banshee-data/simsweep/internal/faults"
)

// maxCombinations caps the product for a single entity.
const maxCombinations = 100000

// Binding assigns one value to one attribute.
type Binding struct {
	Attribute string
	Value     float64
}

// Combination binds every swept attribute of one entity to a single value,
// in attribute declaration order.
type Combination struct {
	EntityID string
	Bindings []Binding
}

// Key renders the bindings as name/value pairs joined by underscores, e.g.
// "tau0.8_sigma0.5".
func (c Combination) Key() string {
	var s string
	for i, b := range c.Bindings {
		if i > 0 {
			s += "_"
		}
		s += b.Attribute + FormatValue(b.Value)
	}
	return s
}

// Combinations returns the Cartesian product of the given value sequences,
// one sequence per attribute in attrs order. The rightmost attribute varies
// fastest. Every sequence must be non-empty.
func Combinations(entityID string, attrs []string, sequences [][]float64) ([]Combination, error) {
	if len(attrs) != len(sequences) {
		return nil, fmt.Errorf("combinations for %s: %d attributes but %d sequences", entityID, len(attrs), len(sequences))
	}
	if len(attrs) == 0 {
		return nil, nil
	}

	lens := make([]int, len(sequences))
	total := int64(1)
	for i, seq := range sequences {
		if len(seq) == 0 {
			return nil, faults.Newf(faults.KindRange, "combine", entityID+"/"+attrs[i], "empty value sequence")
		}
		lens[i] = len(seq)
		total *= int64(len(seq))
		if total > maxCombinations {
			return nil, faults.Newf(faults.KindRange, "combine", entityID,
				"parameter combinations would exceed safe limit of %d", maxCombinations)
		}
	}

	product := combin.Cartesian(lens)
	out := make([]Combination, len(product))
	for i, idx := range product {
		c := Combination{EntityID: entityID, Bindings: make([]Binding, len(attrs))}
		for dim, j := range idx {
			c.Bindings[dim] = Binding{Attribute: attrs[dim], Value: sequences[dim][j]}
		}
		out[i] = c
	}
	return out, nil
}

// EntityCombinations expands every range of the entity and returns its
// combinations. An attribute whose range cannot be expanded is reported
// through skip and left out of the product; the remaining attributes are
// still swept.
func EntityCombinations(e EntityRanges, skip func(error)) ([]Combination, error) {
	var (
		attrs []string
		seqs  [][]float64
	)
	for _, r := range e.Ranges {
		v, err := r.Values()
		if err != nil {
			if skip != nil {
				skip(err)
			}
			continue
		}
		attrs = append(attrs, r.Attribute)
		seqs = append(seqs, v)
	}
	return Combinations(e.ID, attrs, seqs)
}
