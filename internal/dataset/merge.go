package dataset

import (
	"fmt"

	"goelda/domain/core"
	"goelda/domain/dilution"
)

// DuplicatePolicy defines how cultures of the same group at the same dose are
// combined when tables are merged
type DuplicatePolicy string

const (
	KeepAll      DuplicatePolicy = "keep"  // Keep every row as its own observation
	Pool         DuplicatePolicy = "pool"  // Sum responded and tested per (group, dose)
	ErrorOnDupes DuplicatePolicy = "error" // Reject repeated (group, dose) pairs
)

// ParseDuplicatePolicy accepts keep, pool or error; "" means keep.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(s); p {
	case "":
		return KeepAll, nil
	case KeepAll, Pool, ErrorOnDupes:
		return p, nil
	}
	return "", fmt.Errorf("unknown duplicate policy %q (want keep, pool or error)", s)
}

// MergeResult is the combined table plus how many rows shared a (group, dose)
// with an earlier row.
type MergeResult struct {
	Dataset         dilution.Dataset `json:"-"`
	Tables          int              `json:"tables"`
	RowCount        int              `json:"row_count"`
	DuplicatesFound int              `json:"duplicates_found,omitempty"`
}

type cultureKey struct {
	group string
	dose  float64
}

// Merge concatenates tables in order. Group order follows first appearance
// across all tables, so the reference group is the first group of the first
// table. The merged table is validated before it is returned.
func Merge(policy DuplicatePolicy, tables ...dilution.Dataset) (*MergeResult, error) {
	result := &MergeResult{Tables: len(tables)}
	index := make(map[cultureKey]int)
	var obs []dilution.Observation

	for t, table := range tables {
		for i, o := range table.Observations {
			key := cultureKey{o.Group, o.Dose}
			at, dup := index[key]
			if !dup {
				index[key] = len(obs)
				obs = append(obs, o)
				continue
			}

			result.DuplicatesFound++
			switch policy {
			case ErrorOnDupes:
				return nil, &core.InputValidationError{
					Row:       i,
					Field:     "dose",
					Invariant: fmt.Sprintf("group %q dose %g repeated in table %d", o.Group, o.Dose, t+1),
				}
			case Pool:
				obs[at].Responded += o.Responded
				obs[at].Tested += o.Tested
			default:
				obs = append(obs, o)
			}
		}
	}

	result.Dataset = dilution.NewDataset(obs)
	result.RowCount = result.Dataset.Len()
	if err := result.Dataset.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}
