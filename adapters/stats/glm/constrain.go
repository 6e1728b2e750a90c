package glm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// constraint fixes contrast·beta = value by eliminating the pivot coefficient.
type constraint struct {
	contrast []float64
	value    float64
	pivot    int
}

// Constrain returns a reduced design in which contrast·beta is held at value.
// The pivot coefficient (largest |contrast| entry) is solved out and its
// column folded into the offset; the remaining coefficients keep their order.
// The bias-reduction penalty keeps using the unconstrained information matrix,
// so penalized profiles stay comparable with the unconstrained fit.
func (d *Design) Constrain(contrast []float64, value float64) (*Design, error) {
	n, p := d.X.Dims()
	if len(contrast) != p {
		return nil, fmt.Errorf("contrast has %d entries, %s design has %d coefficients", len(contrast), d.Name(), p)
	}
	if p < 2 {
		return nil, fmt.Errorf("cannot constrain the only coefficient of the %s design", d.Name())
	}

	pivot := 0
	for j := range contrast {
		if math.Abs(contrast[j]) > math.Abs(contrast[pivot]) {
			pivot = j
		}
	}
	cp := contrast[pivot]
	if cp == 0 {
		return nil, fmt.Errorf("contrast is identically zero")
	}

	x := mat.NewDense(n, p-1, nil)
	offset := make([]float64, n)
	columns := make([]string, 0, p-1)
	for j, name := range d.Columns {
		if j != pivot {
			columns = append(columns, name)
		}
	}
	for i := 0; i < n; i++ {
		row := d.X.RawRowView(i)
		xp := row[pivot]
		offset[i] = d.Offset[i] + value/cp*xp
		col := 0
		for j := 0; j < p; j++ {
			if j == pivot {
				continue
			}
			x.Set(i, col, row[j]-contrast[j]/cp*xp)
			col++
		}
	}

	return &Design{
		Kind:       d.Kind,
		Groups:     d.Groups,
		Columns:    columns,
		X:          x,
		Responded:  d.Responded,
		Tested:     d.Tested,
		Offset:     offset,
		penalty:    d.penaltyMatrix(),
		constraint: &constraint{contrast: append([]float64(nil), contrast...), value: value, pivot: pivot},
	}, nil
}

// Reduce drops the pivot coefficient from a full-length coefficient vector,
// giving a starting point for a constrained fit.
func (d *Design) Reduce(beta []float64) []float64 {
	if d.constraint == nil {
		return append([]float64(nil), beta...)
	}
	out := make([]float64, 0, len(beta)-1)
	for j, b := range beta {
		if j != d.constraint.pivot {
			out = append(out, b)
		}
	}
	return out
}

// Expand maps reduced coefficients back to the unconstrained parameterization.
func (d *Design) Expand(gamma []float64) []float64 {
	if d.constraint == nil {
		return append([]float64(nil), gamma...)
	}
	c := d.constraint
	beta := make([]float64, len(gamma)+1)
	sum := 0.0
	col := 0
	for j := range beta {
		if j == c.pivot {
			continue
		}
		beta[j] = gamma[col]
		sum += c.contrast[j] * gamma[col]
		col++
	}
	beta[c.pivot] = (c.value - sum) / c.contrast[c.pivot]
	return beta
}
