package glm

import (
	"fmt"
	"math"

	"goelda/domain/core"
	"goelda/domain/dilution"

	"gonum.org/v1/gonum/mat"
)

// ModelKind enumerates the three nested single-hit models.
type ModelKind int

const (
	// Null: intercept + log(dose).
	Null ModelKind = iota
	// SingleHit: Null + group main effects (parallel slopes).
	SingleHit
	// Full: SingleHit + group x log(dose) interactions.
	Full
)

func (k ModelKind) String() string {
	switch k {
	case Null:
		return "null"
	case SingleHit:
		return "single-hit"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("ModelKind(%d)", int(k))
	}
}

const (
	ColumnIntercept = "(intercept)"
	ColumnLogDose   = "log(dose)"
)

// GroupColumn names the treatment-coded indicator of a non-reference group.
func GroupColumn(group string) string { return "group[" + group + "]" }

// InteractionColumn names the group-specific log-dose slope offset.
func InteractionColumn(group string) string { return GroupColumn(group) + ":" + ColumnLogDose }

// Design is a linear predictor over a fixed observation order.
type Design struct {
	Kind      ModelKind
	Groups    []string // first group is the reference level
	Columns   []string
	X         *mat.Dense
	Responded []float64
	Tested    []float64
	Offset    []float64

	// penalty is the model matrix whose Fisher information enters the
	// bias-reduction penalty. It differs from X only for constrained designs.
	penalty    *mat.Dense
	constraint *constraint
}

// Specs holds the three nested designs for one dataset.
type Specs struct {
	Null      *Design
	SingleHit *Design
	Full      *Design
}

// Design returns the design for kind.
func (s Specs) Design(kind ModelKind) *Design {
	switch kind {
	case Null:
		return s.Null
	case SingleHit:
		return s.SingleHit
	default:
		return s.Full
	}
}

// Builder turns observations into model matrices.
type Builder struct{}

// NewBuilder creates a design matrix builder
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildAll checks identifiability once and returns all three designs.
func (b *Builder) BuildAll(ds dilution.Dataset) (Specs, error) {
	groups, err := b.checkIdentifiable(ds)
	if err != nil {
		return Specs{}, err
	}
	return Specs{
		Null:      b.build(ds, groups, Null),
		SingleHit: b.build(ds, groups, SingleHit),
		Full:      b.build(ds, groups, Full),
	}, nil
}

// Build returns the design for a single model kind.
func (b *Builder) Build(ds dilution.Dataset, kind ModelKind) (*Design, error) {
	groups, err := b.checkIdentifiable(ds)
	if err != nil {
		return nil, err
	}
	return b.build(ds, groups, kind), nil
}

func (b *Builder) checkIdentifiable(ds dilution.Dataset) ([]string, error) {
	groups := ds.Groups()
	if len(groups) < 1 {
		return nil, core.NewInsufficientGroupsError(len(groups))
	}

	doses := make(map[string]map[float64]bool, len(groups))
	for _, o := range ds.Observations {
		if o.Tested <= 0 {
			continue
		}
		if doses[o.Group] == nil {
			doses[o.Group] = make(map[float64]bool)
		}
		doses[o.Group][o.Dose] = true
	}
	for _, g := range groups {
		if n := len(doses[g]); n < 2 {
			return nil, &core.DegenerateDoseError{Group: g, DistinctDoses: n}
		}
	}
	return groups, nil
}

func (b *Builder) build(ds dilution.Dataset, groups []string, kind ModelKind) *Design {
	columns := []string{ColumnIntercept, ColumnLogDose}
	if kind >= SingleHit {
		for _, g := range groups[1:] {
			columns = append(columns, GroupColumn(g))
		}
	}
	if kind == Full {
		for _, g := range groups[1:] {
			columns = append(columns, InteractionColumn(g))
		}
	}

	level := make(map[string]int, len(groups))
	for i, g := range groups {
		level[g] = i
	}

	n, p, k := ds.Len(), len(columns), len(groups)
	x := mat.NewDense(n, p, nil)
	responded := make([]float64, n)
	tested := make([]float64, n)
	for i, o := range ds.Observations {
		logDose := math.Log(o.Dose)
		x.Set(i, 0, 1)
		x.Set(i, 1, logDose)
		if lv := level[o.Group]; lv > 0 {
			if kind >= SingleHit {
				x.Set(i, 1+lv, 1)
			}
			if kind == Full {
				x.Set(i, k+lv, logDose)
			}
		}
		responded[i] = float64(o.Responded)
		tested[i] = float64(o.Tested)
	}

	return &Design{
		Kind:      kind,
		Groups:    append([]string(nil), groups...),
		Columns:   columns,
		X:         x,
		Responded: responded,
		Tested:    tested,
		Offset:    make([]float64, n),
	}
}

// Name identifies the design in errors and logs.
func (d *Design) Name() string {
	if d.constraint != nil {
		return d.Kind.String() + " (constrained)"
	}
	return d.Kind.String()
}

// NumObservations returns the number of rows
func (d *Design) NumObservations() int {
	n, _ := d.X.Dims()
	return n
}

// NumParams returns the number of estimated coefficients.
func (d *Design) NumParams() int {
	_, p := d.X.Dims()
	return p
}

// ColumnIndex finds a named column, or -1.
func (d *Design) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// GroupContrast returns the coefficient combination giving a group's log rate
// at unit dose: the intercept for the reference group, intercept plus the
// group's indicator otherwise.
func (d *Design) GroupContrast(group string) ([]float64, error) {
	c := make([]float64, d.NumParams())
	c[0] = 1
	if group == d.Groups[0] {
		return c, nil
	}
	j := d.ColumnIndex(GroupColumn(group))
	if j < 0 {
		return nil, fmt.Errorf("group %q has no column in the %s design", group, d.Name())
	}
	c[j] = 1
	return c, nil
}

func (d *Design) penaltyMatrix() *mat.Dense {
	if d.penalty != nil {
		return d.penalty
	}
	return d.X
}
