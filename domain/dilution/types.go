package dilution

import (
	"encoding/json"
	"math"
	"strings"

	"goelda/domain/core"
)

// Observation is one row of a dilution assay: Tested cultures were seeded with
// Dose cells each and Responded of them turned positive.
type Observation struct {
	Dose      float64 `json:"dose"`
	Responded int     `json:"responded"`
	Tested    int     `json:"tested"`
	Group     string  `json:"group"`
}

// Dataset is an ordered, immutable sequence of observations.
// Group order is the order of first appearance.
type Dataset struct {
	Observations []Observation `json:"observations"`
}

// NewDataset copies obs so later mutation by the caller cannot leak in.
func NewDataset(obs []Observation) Dataset {
	cp := make([]Observation, len(obs))
	copy(cp, obs)
	return Dataset{Observations: cp}
}

// Len returns the number of observations
func (d Dataset) Len() int { return len(d.Observations) }

// Groups returns the distinct group labels in order of first appearance.
func (d Dataset) Groups() []string {
	seen := make(map[string]bool)
	groups := make([]string, 0)
	for _, o := range d.Observations {
		if !seen[o.Group] {
			seen[o.Group] = true
			groups = append(groups, o.Group)
		}
	}
	return groups
}

// Restrict returns a new Dataset holding only the observations of the given
// groups, in their original order.
func (d Dataset) Restrict(groups ...string) Dataset {
	keep := make(map[string]bool, len(groups))
	for _, g := range groups {
		keep[g] = true
	}
	out := make([]Observation, 0, len(d.Observations))
	for _, o := range d.Observations {
		if keep[o.Group] {
			out = append(out, o)
		}
	}
	return Dataset{Observations: out}
}

// Validate checks every observation invariant and fails on the first violation.
func (d Dataset) Validate() error {
	if len(d.Observations) == 0 {
		return &core.InputValidationError{Row: -1, Field: "observations", Invariant: "dataset is empty"}
	}
	for i, o := range d.Observations {
		switch {
		case strings.TrimSpace(o.Group) == "":
			return &core.InputValidationError{Row: i, Field: "group", Invariant: "label must not be empty"}
		case math.IsNaN(o.Dose) || math.IsInf(o.Dose, 0) || o.Dose <= 0:
			return &core.InputValidationError{Row: i, Field: "dose", Invariant: "must be a positive finite number"}
		case o.Tested <= 0:
			return &core.InputValidationError{Row: i, Field: "tested", Invariant: "must be positive"}
		case o.Responded < 0:
			return &core.InputValidationError{Row: i, Field: "responded", Invariant: "must not be negative"}
		case o.Responded > o.Tested:
			return &core.InputValidationError{Row: i, Field: "responded", Invariant: "must not exceed tested"}
		}
	}
	return nil
}

// Fingerprint hashes the observations together with the options that affect
// the numerical result.
func (d Dataset) Fingerprint(opts Options) core.Fingerprint {
	payload := struct {
		Observations    []Observation  `json:"observations"`
		ConfidenceLevel float64        `json:"confidence_level"`
		BiasReduced     bool           `json:"bias_reduced"`
		IntervalMethod  IntervalMethod `json:"interval_method"`
		MaxIterations   int            `json:"max_iterations"`
		Tolerance       float64        `json:"tolerance"`
	}{d.Observations, opts.ConfidenceLevel, opts.BiasReduced, opts.IntervalMethod, opts.MaxIterations, opts.Tolerance}

	data, _ := json.Marshal(payload)
	return core.NewFingerprint(data)
}
